package pkg

import (
	"encoding/json"
	"fmt"
)

type MessageType int

const (
	TypeMessageUnknown MessageType = iota
	TypeMessageRole
	TypeMessageGame
	TypeMessageMove
	TypeMessageReject
	TypeMessageResync
)

func (m MessageType) String() string {
	switch m {
	case TypeMessageRole:
		return "role"
	case TypeMessageGame:
		return "game"
	case TypeMessageMove:
		return "move"
	case TypeMessageReject:
		return "reject"
	case TypeMessageResync:
		return "resync"
	default:
		return "unknown"
	}
}

// The browser client reads the type by name, so it goes on the wire as text.
func (m MessageType) MarshalText() ([]byte, error) {
	if m == TypeMessageUnknown {
		return nil, fmt.Errorf("unknown message type %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *MessageType) UnmarshalText(b []byte) error {
	switch string(b) {
	case "role":
		*m = TypeMessageRole
	case "game":
		*m = TypeMessageGame
	case "move":
		*m = TypeMessageMove
	case "reject":
		*m = TypeMessageReject
	case "resync":
		*m = TypeMessageResync
	default:
		*m = TypeMessageUnknown
	}
	return nil
}

type MessageInterface interface {
	Type() MessageType
}

// MessageTransport is the envelope every message travels in.
type MessageTransport struct {
	MsgType MessageType     `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Wrap puts a message into its envelope.
func Wrap(m MessageInterface) (MessageTransport, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return MessageTransport{}, err
	}
	return MessageTransport{MsgType: m.Type(), Data: data}, nil
}

// Unwrap decodes the payload of an envelope into its typed message.
func (t MessageTransport) Unwrap() (MessageInterface, error) {
	var m MessageInterface
	switch t.MsgType {
	case TypeMessageRole:
		m = &MessageRole{}
	case TypeMessageGame:
		m = &MessageGame{}
	case TypeMessageMove:
		m = &MessageMove{}
	case TypeMessageReject:
		m = &MessageReject{}
	case TypeMessageResync:
		return MessageResync{}, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", t.MsgType)
	}
	if len(t.Data) > 0 {
		if err := json.Unmarshal(t.Data, m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", t.MsgType, err)
		}
	}
	switch v := m.(type) {
	case *MessageRole:
		return *v, nil
	case *MessageGame:
		return *v, nil
	case *MessageMove:
		return *v, nil
	case *MessageReject:
		return *v, nil
	}
	return m, nil
}

// MessageRole tells a connection which seat it holds. Sent once, to that connection only.
type MessageRole struct {
	Role Role   `json:"role"`
	Name string `json:"name,omitempty"`
}

func (m MessageRole) Type() MessageType {
	return TypeMessageRole
}

// MessageGame is a full snapshot of the authoritative position.
type MessageGame struct {
	Fen     string `json:"fen"`
	Ply     int    `json:"ply"`
	Outcome string `json:"outcome,omitempty"`
	Method  string `json:"method,omitempty"`
}

func (m MessageGame) Type() MessageType {
	return TypeMessageGame
}

// Terminal reports whether the snapshot is a finished game.
func (m MessageGame) Terminal() bool {
	return m.Outcome != "" && m.Outcome != OutcomeNone
}

// MessageMove is both the submission (only Move set) and the broadcast of an accepted move.
type MessageMove struct {
	Move    string `json:"move"`
	Ply     int    `json:"ply,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Method  string `json:"method,omitempty"`
}

func (m MessageMove) Type() MessageType {
	return TypeMessageMove
}

func (m MessageMove) Terminal() bool {
	return m.Outcome != "" && m.Outcome != OutcomeNone
}

// MessageReject is sent only to the submitter of a move the authority refused.
type MessageReject struct {
	Move   string `json:"move"`
	Reason string `json:"reason"`
	Ply    int    `json:"ply"`
}

func (m MessageReject) Type() MessageType {
	return TypeMessageReject
}

// MessageResync asks the authority for a fresh snapshot.
type MessageResync struct{}

func (m MessageResync) Type() MessageType {
	return TypeMessageResync
}
