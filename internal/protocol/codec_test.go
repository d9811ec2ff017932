package protocol

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/calvinlauco/scrum-poker/internal/domain"
)

func TestDecode_CreateRoom(t *testing.T) {
	req, err := Decode(TextFrame([]byte(`{"CreateRoom":{"params":{"name":"Sprint 42"}}}`)))
	require.NoError(t, err)
	assert.Equal(t, CreateRoom{Params: domain.RoomParams{Name: "Sprint 42"}}, req)
}

func TestDecode_JoinRoom(t *testing.T) {
	req, err := Decode(TextFrame([]byte(`{"JoinRoom":{"room_uuid":"0b8a7c9e-2f0e-4a43-9b43-6a4cbb2f1d2e"}}`)))
	require.NoError(t, err)
	assert.Equal(t, JoinRoom{RoomUUID: "0b8a7c9e-2f0e-4a43-9b43-6a4cbb2f1d2e"}, req)
}

func TestDecode_LocalAndReserved(t *testing.T) {
	req, err := Decode(TextFrame([]byte(`{"Ping":{}}`)))
	require.NoError(t, err)
	assert.Equal(t, KindPing, req.Kind())

	req, err = Decode(TextFrame([]byte(`{"LeaveRoom":{}}`)))
	require.NoError(t, err)
	assert.Equal(t, KindLeaveRoom, req.Kind())

	req, err = Decode(TextFrame([]byte(`{"Rename":{"name":"bob"}}`)))
	require.NoError(t, err)
	res, ok := req.(Reserved)
	require.True(t, ok)
	assert.Equal(t, KindRename, res.Variant)
	assert.JSONEq(t, `{"name":"bob"}`, string(res.Payload))
}

func TestDecode_Unrecognized(t *testing.T) {
	cases := map[string]string{
		"not json":            `hello`,
		"array":               `[1,2]`,
		"null":                `null`,
		"empty object":        `{}`,
		"two variants":        `{"Ping":{},"LeaveRoom":{}}`,
		"unknown variant":     `{"Vote":{"card":"5"}}`,
		"create without name": `{"CreateRoom":{"params":{}}}`,
		"create flat params":  `{"CreateRoom":{"name":"x"}}`,
		"join without room":   `{"JoinRoom":{}}`,
		"join wrong type":     `{"JoinRoom":{"room_uuid":5}}`,
		"join not a uuid":     `{"JoinRoom":{"room_uuid":"not-a-uuid"}}`,
		"join braced uuid":    `{"JoinRoom":{"room_uuid":"{0b8a7c9e-2f0e-4a43-9b43-6a4cbb2f1d2e}"}}`,
		"ping not object":     `{"Ping":3}`,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			req, err := Decode(TextFrame([]byte(text)))
			assert.Nil(t, req)
			assert.True(t, errors.Is(err, ErrUnrecognized), "got %v", err)
		})
	}
}

func TestDecode_BinaryAndClose(t *testing.T) {
	_, err := Decode(Frame{Type: FrameBinary, Data: []byte(`{"Ping":{}}`)})
	assert.True(t, errors.Is(err, ErrBinaryFrame))

	_, err = Decode(Frame{Type: FrameClose})
	assert.True(t, errors.Is(err, ErrNotDecodable))
}

func TestEncode(t *testing.T) {
	b, err := Encode(RoomClosed("bye"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"RoomClosed":"bye"}`, string(b))

	b, err = Encode(NewError(CodeUnsupportedRequest, "Rename"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"Error":{"code":"unsupported_request","message":"Rename"}}`, string(b))

	b, err = Encode(Pong{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Pong":{}}`, string(b))

	_, err = Encode(nil)
	assert.Error(t, err)
}

func TestDecodeResponse(t *testing.T) {
	in := RoomJoined{
		RoomUUID: "r1",
		Name:     "planning",
		Members:  []domain.User{{ID: "u1", Username: "alice"}},
	}
	b, err := Encode(in)
	require.NoError(t, err)

	out, err := DecodeResponse(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncodeRequest_DecodesBack(t *testing.T) {
	for _, req := range []Request{
		CreateRoom{Params: domain.RoomParams{Name: "a"}},
		JoinRoom{RoomUUID: domain.NewRoomID()},
		LeaveRoom{},
		Ping{},
	} {
		b, err := EncodeRequest(req)
		require.NoError(t, err)
		got, err := Decode(TextFrame(b))
		require.NoError(t, err)
		assert.Equal(t, req, got)
	}
}

// Arbitrary text never panics and only decodes when it is a single-key
// object naming a known variant.
func TestDecode_ArbitraryTextProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOf(rapid.Byte()).Draw(t, "data")
		req, err := Decode(TextFrame(data))
		if err != nil {
			if !errors.Is(err, ErrUnrecognized) {
				t.Fatalf("unexpected error class: %v", err)
			}
			return
		}
		if _, ok := requestDecoders[req.Kind()]; !ok {
			t.Fatalf("decoded unknown kind %q", req.Kind())
		}
	})
}

func TestDecode_BinaryProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOf(rapid.Byte()).Draw(t, "data")
		_, err := Decode(Frame{Type: FrameBinary, Data: data})
		if !errors.Is(err, ErrBinaryFrame) {
			t.Fatalf("binary frame decoded: %v", err)
		}
	})
}
