package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

var (
	ErrRoomNameEmpty   = errors.New("room name empty")
	ErrRoomNameTooLong = errors.New("room name too long")
	ErrRoomIDInvalid   = errors.New("room id is not a uuid")
)

const canonicalUUIDLen = 36

type (
	RoomName string
	RoomID   string
)

type Room struct {
	ID    RoomID
	Name  RoomName
	Owner ClientID
}

func NewRoomID() RoomID { return RoomID(uuid.NewString()) }

// ParseRoomID accepts the hyphenated 36-character uuid form, in either case.
// Braced and urn:uuid: forms are rejected.
func ParseRoomID(raw string) (RoomID, error) {
	if len(raw) != canonicalUUIDLen {
		return "", errors.Wrapf(ErrRoomIDInvalid, "%q", raw)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", errors.Wrapf(ErrRoomIDInvalid, "%q", raw)
	}
	return RoomID(id.String()), nil
}

// RoomParams is what a client supplies when creating a room.
type RoomParams struct {
	Name string `json:"name"`
}

// Validate trims the name and checks its length in characters against maxLen.
func (p RoomParams) Validate(maxLen int) (RoomName, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return "", ErrRoomNameEmpty
	}
	if maxLen > 0 && utf8.RuneCountInString(name) > maxLen {
		return "", ErrRoomNameTooLong
	}
	return RoomName(name), nil
}
