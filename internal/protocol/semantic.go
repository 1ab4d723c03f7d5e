package protocol

import (
	"fmt"

	"github.com/danmuck/marquee/internal/protocol/value"
)

// ArgSpec declares one positional argument of a message type.
type ArgSpec struct {
	Name     string
	Kind     value.Kind
	Required bool
}

// Schema defines the positional arguments of a message type.
type Schema struct {
	MessageType MessageType
	Args        []ArgSpec
}

// Args holds schema-validated arguments by name.
type Args struct {
	byName map[string]value.Value
	Extra  []value.Value
}

// Get returns the named argument, or nil when an optional argument was absent.
func (a Args) Get(name string) value.Value {
	return a.byName[name]
}

func (a Args) Has(name string) bool {
	_, ok := a.byName[name]
	return ok
}

// ParseArgs validates msg against schema. Arguments past the schema are kept
// in Extra; an optional argument may be omitted or sent as void.
func ParseArgs(msg *Message, schema Schema) (Args, error) {
	if msg == nil {
		return Args{}, ErrNilMessage
	}
	if msg.Type != schema.MessageType {
		return Args{}, ErrMessageTypeMismatch
	}
	out := Args{byName: make(map[string]value.Value, len(schema.Args))}
	for i, spec := range schema.Args {
		if i >= len(msg.Args) {
			if spec.Required {
				return Args{}, MissingArgError{Index: i, Name: spec.Name}
			}
			continue
		}
		arg := msg.Args[i]
		kind := value.KindVoid
		if arg != nil {
			kind = arg.Kind()
		}
		if kind == value.KindVoid && !spec.Required && spec.Kind != value.KindVoid {
			continue
		}
		if kind != spec.Kind {
			return Args{}, fmt.Errorf("%w: argument %d (%s) got %s want %s",
				ErrArgKindMismatch, i, spec.Name, kind, spec.Kind)
		}
		out.byName[spec.Name] = arg
	}
	if len(msg.Args) > len(schema.Args) {
		out.Extra = append(out.Extra, msg.Args[len(schema.Args):]...)
	}
	return out, nil
}
