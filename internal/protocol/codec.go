package protocol

import (
	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"

	"github.com/calvinlauco/scrum-poker/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrUnrecognized is returned for a text frame that matches no known request shape.
	ErrUnrecognized = errors.New("unrecognized message")
	// ErrBinaryFrame is returned for any binary frame; no variant carries binary payloads.
	ErrBinaryFrame = errors.New("unexpected binary frame")
	// ErrNotDecodable is returned for control frames such as close.
	ErrNotDecodable = errors.New("frame carries no message")
)

type FrameType int

const (
	FrameText FrameType = iota
	FrameBinary
	FrameClose
)

func (t FrameType) String() string {
	switch t {
	case FrameText:
		return "text"
	case FrameBinary:
		return "binary"
	case FrameClose:
		return "close"
	default:
		return "unknown"
	}
}

// Frame is one message-boundary unit as delivered by the transport.
type Frame struct {
	Type FrameType
	Data []byte
}

func TextFrame(data []byte) Frame { return Frame{Type: FrameText, Data: data} }

type requestDecoder func(payload jsoniter.RawMessage) (Request, error)

var requestDecoders = map[Kind]requestDecoder{
	KindCreateRoom: func(payload jsoniter.RawMessage) (Request, error) {
		var wire struct {
			Params *struct {
				Name *string `json:"name"`
			} `json:"params"`
		}
		if err := json.Unmarshal(payload, &wire); err != nil {
			return nil, err
		}
		if wire.Params == nil || wire.Params.Name == nil {
			return nil, errors.New("missing params.name")
		}
		req := CreateRoom{}
		req.Params.Name = *wire.Params.Name
		return req, nil
	},
	KindJoinRoom: func(payload jsoniter.RawMessage) (Request, error) {
		var wire struct {
			RoomUUID *string `json:"room_uuid"`
		}
		if err := json.Unmarshal(payload, &wire); err != nil {
			return nil, err
		}
		if wire.RoomUUID == nil {
			return nil, errors.New("missing room_uuid")
		}
		id, err := domain.ParseRoomID(*wire.RoomUUID)
		if err != nil {
			return nil, err
		}
		return JoinRoom{RoomUUID: id}, nil
	},
	KindLeaveRoom: func(payload jsoniter.RawMessage) (Request, error) {
		if err := expectObject(payload); err != nil {
			return nil, err
		}
		return LeaveRoom{}, nil
	},
	KindPing: func(payload jsoniter.RawMessage) (Request, error) {
		if err := expectObject(payload); err != nil {
			return nil, err
		}
		return Ping{}, nil
	},
	KindRename: reserved(KindRename),
	KindKick:   reserved(KindKick),
}

func reserved(kind Kind) requestDecoder {
	return func(payload jsoniter.RawMessage) (Request, error) {
		return Reserved{Variant: kind, Payload: append([]byte(nil), payload...)}, nil
	}
}

func expectObject(payload jsoniter.RawMessage) error {
	var obj map[string]jsoniter.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return err
	}
	if obj == nil {
		return errors.New("payload is not an object")
	}
	return nil
}

// Decode turns a transport frame into a request. Binary frames always fail
// with ErrBinaryFrame; text that is not exactly one known variant fails with
// ErrUnrecognized. Both are non-fatal for the connection.
func Decode(f Frame) (Request, error) {
	switch f.Type {
	case FrameText:
		return decodeText(f.Data)
	case FrameBinary:
		return nil, ErrBinaryFrame
	default:
		return nil, ErrNotDecodable
	}
}

func decodeText(data []byte) (Request, error) {
	kind, payload, err := splitEnvelope(data)
	if err != nil {
		return nil, err
	}
	dec, ok := requestDecoders[kind]
	if !ok {
		return nil, errors.Wrapf(ErrUnrecognized, "unknown variant %q", kind)
	}
	req, err := dec(payload)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "variant %q", kind), ErrUnrecognized)
	}
	return req, nil
}

func splitEnvelope(data []byte) (Kind, jsoniter.RawMessage, error) {
	var env map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, errors.Mark(errors.Wrap(err, "envelope"), ErrUnrecognized)
	}
	if len(env) != 1 {
		return "", nil, errors.Wrapf(ErrUnrecognized, "envelope has %d keys", len(env))
	}
	for k, v := range env {
		return Kind(k), v, nil
	}
	return "", nil, ErrUnrecognized
}

// Encode renders a response as a single text frame payload.
func Encode(resp Response) ([]byte, error) {
	if resp == nil {
		return nil, errors.New("nil response")
	}
	b, err := json.Marshal(map[Kind]Response{resp.Kind(): resp})
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s", resp.Kind())
	}
	return b, nil
}

// EncodeRequest is the client-side counterpart of Decode.
func EncodeRequest(req Request) ([]byte, error) {
	if r, ok := req.(Reserved); ok {
		payload := jsoniter.RawMessage(r.Payload)
		if len(payload) == 0 {
			payload = jsoniter.RawMessage("{}")
		}
		return json.Marshal(map[Kind]jsoniter.RawMessage{r.Variant: payload})
	}
	return json.Marshal(map[Kind]Request{req.Kind(): req})
}

var responseFactories = map[Kind]func() Response{
	KindRegistered:   func() Response { return &Registered{} },
	KindRoomCreated:  func() Response { return &RoomCreated{} },
	KindRoomJoined:   func() Response { return &RoomJoined{} },
	KindRoomLeft:     func() Response { return &RoomLeft{} },
	KindMemberJoined: func() Response { return &MemberJoined{} },
	KindMemberLeft:   func() Response { return &MemberLeft{} },
	KindRoomClosed:   func() Response { v := RoomClosed(""); return &v },
	KindError:        func() Response { return &Error{} },
	KindPong:         func() Response { return &Pong{} },
	KindAck:          func() Response { return &Ack{} },
}

// DecodeResponse is the client-side counterpart of Encode. It returns the
// response by value, matching what the server passed to Encode.
func DecodeResponse(data []byte) (Response, error) {
	kind, payload, err := splitEnvelope(data)
	if err != nil {
		return nil, err
	}
	factory, ok := responseFactories[kind]
	if !ok {
		return nil, errors.Wrapf(ErrUnrecognized, "unknown response %q", kind)
	}
	ptr := factory()
	if err := json.Unmarshal(payload, ptr); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "response %q", kind), ErrUnrecognized)
	}
	return deref(ptr), nil
}

func deref(r Response) Response {
	switch v := r.(type) {
	case *Registered:
		return *v
	case *RoomCreated:
		return *v
	case *RoomJoined:
		return *v
	case *RoomLeft:
		return *v
	case *MemberJoined:
		return *v
	case *MemberLeft:
		return *v
	case *RoomClosed:
		return *v
	case *Error:
		return *v
	case *Pong:
		return *v
	case *Ack:
		return *v
	}
	return r
}
