package server

import (
	"fmt"

	"github.com/danmuck/marquee/internal/observability"
	"github.com/danmuck/marquee/internal/protocol"
	"github.com/danmuck/marquee/internal/protocol/value"
)

var helloSchema = protocol.Schema{
	MessageType: protocol.MessageHello,
	Args: []protocol.ArgSpec{
		{Name: "name", Kind: value.KindString},
	},
}

// dispatch answers one request; done reports that the session should end.
func (s *Service) dispatch(sess *Session, msg *protocol.Message) (reply *protocol.Message, done bool) {
	outcome := "ok"
	defer func() {
		label := "unknown"
		if msg.Type.Known() {
			label = msg.Type.String()
		}
		observability.RecordMessage(label, outcome)
	}()

	switch msg.Type {
	case protocol.MessageHello:
		args, err := protocol.ParseArgs(msg, helloSchema)
		if err != nil {
			outcome = "bad_arguments"
			return protocol.NewError(msg.ID, protocol.CodeBadArguments, err.Error()), false
		}
		if name, err := value.AsString(args.Get("name")); err == nil {
			sess.name.Store(name)
		}
		return protocol.Reply(msg, protocol.MessageWelcome,
			value.String(sess.ID),
			value.String(s.cfg.Name),
		), false
	case protocol.MessagePing:
		return protocol.Reply(msg, protocol.MessagePong, msg.Args...), false
	case protocol.MessageEcho:
		return protocol.Reply(msg, protocol.MessageEcho, msg.Args...), false
	case protocol.MessageStats:
		return protocol.Reply(msg, protocol.MessageStats, s.statsRecord()), false
	case protocol.MessageBye:
		return protocol.Reply(msg, protocol.MessageBye), true
	default:
		outcome = "unknown_type"
		return protocol.NewError(msg.ID, protocol.CodeUnknownType,
			fmt.Sprintf("unsupported message type %s", msg.Type)), false
	}
}

func (s *Service) statsRecord() value.Record {
	st := s.Stats()
	return value.MustRecord(
		value.Field{Name: "sessions", Value: value.Integer(int32(st.Sessions))},
		value.Field{Name: "messages", Value: value.Long(int64(st.Messages))},
		value.Field{Name: "malformed", Value: value.Long(int64(st.Malformed))},
		value.Field{Name: "uptime_seconds", Value: value.Long(int64(st.Uptime.Seconds()))},
	)
}
