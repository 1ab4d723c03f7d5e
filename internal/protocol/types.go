package protocol

import (
	"fmt"

	"github.com/danmuck/marquee/internal/protocol/frame"
	"github.com/danmuck/marquee/internal/protocol/value"
)

// MessageType identifies the operation a message carries.
type MessageType uint32

const (
	MessageHello   MessageType = 1
	MessageWelcome MessageType = 2
	MessagePing    MessageType = 3
	MessagePong    MessageType = 4
	MessageEcho    MessageType = 5
	MessageStats   MessageType = 6
	MessageBye     MessageType = 7
	MessageError   MessageType = 8
)

var messageTypeNames = map[MessageType]string{
	MessageHello:   "hello",
	MessageWelcome: "welcome",
	MessagePing:    "ping",
	MessagePong:    "pong",
	MessageEcho:    "echo",
	MessageStats:   "stats",
	MessageBye:     "bye",
	MessageError:   "error",
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", uint32(t))
}

func (t MessageType) Known() bool {
	_, ok := messageTypeNames[t]
	return ok
}

// ErrorCode is the first argument of an Error message.
type ErrorCode int32

const (
	CodeMalformed    ErrorCode = 1
	CodeUnknownType  ErrorCode = 2
	CodeBadArguments ErrorCode = 3
	CodeInternal     ErrorCode = 4
	CodeShuttingDown ErrorCode = 5
)

// Message is one decoded protocol message.
type Message struct {
	ID    uint64
	Type  MessageType
	Flags uint16
	Args  []value.Value
}

func (m *Message) IsResponse() bool {
	return m.Flags&frame.FlagIsResponse != 0
}

func (m *Message) IsError() bool {
	return m.Flags&frame.FlagIsError != 0
}

// String renders the message for diagnostics.
func (m *Message) String() string {
	if m == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s#%d %s", m.Type, m.ID, value.Display(value.List(m.Args)))
}

// NewMessage builds a request message.
func NewMessage(id uint64, t MessageType, args ...value.Value) *Message {
	return &Message{ID: id, Type: t, Args: args}
}

// Reply builds a response correlated to req.
func Reply(req *Message, t MessageType, args ...value.Value) *Message {
	var id uint64
	if req != nil {
		id = req.ID
	}
	return &Message{ID: id, Type: t, Flags: frame.FlagIsResponse, Args: args}
}

// NewError builds an Error response carrying code and text.
func NewError(id uint64, code ErrorCode, text string) *Message {
	return &Message{
		ID:    id,
		Type:  MessageError,
		Flags: frame.FlagIsResponse | frame.FlagIsError,
		Args:  []value.Value{value.Integer(code), value.String(text)},
	}
}

// ErrorDetails extracts code and text from an Error message.
func ErrorDetails(m *Message) (ErrorCode, string, error) {
	if m == nil {
		return 0, "", ErrNilMessage
	}
	if m.Type != MessageError {
		return 0, "", ErrMessageTypeMismatch
	}
	args, err := ParseArgs(m, errorSchema)
	if err != nil {
		return 0, "", err
	}
	code, _ := value.AsInt32(args.Get("code"))
	text, _ := value.AsString(args.Get("text"))
	return ErrorCode(code), text, nil
}

var errorSchema = Schema{
	MessageType: MessageError,
	Args: []ArgSpec{
		{Name: "code", Kind: value.KindInteger, Required: true},
		{Name: "text", Kind: value.KindString, Required: true},
	},
}
