package domain

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	u, err := NewUser("u1", "alice")
	require.NoError(t, err)
	assert.Equal(t, UserID("u1"), u.ID)
	assert.Equal(t, "alice", u.Username)

	_, err = NewUser("", "alice")
	assert.True(t, errors.Is(err, ErrUserIDEmpty))
	_, err = NewUser("u1", "")
	assert.True(t, errors.Is(err, ErrUsernameEmpty))
	_, err = NewUser("u1", strings.Repeat("x", MaxUsernameLen+1))
	assert.True(t, errors.Is(err, ErrUsernameTooLong))
	_, err = NewUser("u1", strings.Repeat("ж", MaxUsernameLen))
	assert.NoError(t, err)
}

func TestClientID(t *testing.T) {
	assert.False(t, UnassignedClientID.Assigned())
	assert.Equal(t, "unassigned", UnassignedClientID.String())

	id := NewClientID()
	assert.True(t, id.Assigned())
	assert.NotEqual(t, id, NewClientID())
}

func TestRoomParams_Validate(t *testing.T) {
	name, err := RoomParams{Name: "  Sprint 42 "}.Validate(36)
	require.NoError(t, err)
	assert.Equal(t, RoomName("Sprint 42"), name)

	_, err = RoomParams{Name: "   "}.Validate(36)
	assert.True(t, errors.Is(err, ErrRoomNameEmpty))

	_, err = RoomParams{Name: "abcdef"}.Validate(3)
	assert.True(t, errors.Is(err, ErrRoomNameTooLong))

	name, err = RoomParams{Name: "Планирование спринта"}.Validate(20)
	require.NoError(t, err)
	assert.Equal(t, RoomName("Планирование спринта"), name)
	_, err = RoomParams{Name: "Планирование спринта!"}.Validate(20)
	assert.True(t, errors.Is(err, ErrRoomNameTooLong))
}

func TestParseRoomID(t *testing.T) {
	id := NewRoomID()
	got, err := ParseRoomID(strings.ToUpper(string(id)))
	require.NoError(t, err)
	assert.Equal(t, id, got)

	for _, raw := range []string{
		"not-a-room",
		"{" + string(id) + "}",
		"urn:uuid:" + string(id),
		strings.ReplaceAll(string(id), "-", ""),
	} {
		_, err = ParseRoomID(raw)
		assert.True(t, errors.Is(err, ErrRoomIDInvalid), raw)
	}
}
