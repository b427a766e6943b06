package http

import (
	"encoding/json"

	"github.com/samber/lo"

	"github.com/vovakirdan/lingorelay/internal/core"
	"github.com/vovakirdan/lingorelay/internal/proto"
)

// inboundToCommand decodes one frame. A non-nil *proto.Error is reported to
// the client and the connection stays open.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeJoin:
		var join proto.JoinData
		if err := json.Unmarshal(inbound.Data, &join); err != nil {
			return nil, badRequest("malformed join payload")
		}
		return &core.Command{
			Kind:     core.CommandJoinRoom,
			Room:     join.Room,
			User:     join.Username,
			Language: join.Language,
			Role:     join.Role,
		}, nil
	case proto.InboundTypeChatMessage:
		var msg proto.ChatMessageData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return nil, badRequest("malformed chatMessage payload")
		}
		return &core.Command{
			Kind:     core.CommandSendRoomMessage,
			Room:     msg.Room,
			Text:     msg.Message,
			Language: msg.Language,
		}, nil
	case proto.InboundTypeLeave:
		var leave proto.LeaveData
		if len(inbound.Data) > 0 {
			if err := json.Unmarshal(inbound.Data, &leave); err != nil {
				return nil, badRequest("malformed leave payload")
			}
		}
		return &core.Command{Kind: core.CommandLeaveRoom, Room: leave.Room}, nil
	default:
		return nil, badRequest("unknown message type")
	}
}

func badRequest(msg string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeBadRequest, Message: msg}
}

func recordToProto(rec core.Record) proto.Record {
	return proto.Record{
		Username:     rec.Sender,
		Role:         string(rec.SenderRole),
		Text:         rec.Text,
		OriginalText: rec.OriginalText,
		IsTranslated: rec.Translated,
		Type:         string(rec.Tag),
		Timestamp:    rec.Timestamp.UTC().Format(proto.TimestampLayout),
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventMessage:
		return proto.Outbound{Type: proto.OutboundTypeMessage, Data: recordToProto(event.Record)}
	case core.EventHistory:
		records := lo.Map(event.Records, func(rec core.Record, _ int) proto.Record {
			return recordToProto(rec)
		})
		return proto.Outbound{Type: proto.OutboundTypeHistory, Data: records}
	case core.EventSuggestions:
		suggestions := event.Suggestions
		if suggestions == nil {
			suggestions = []string{}
		}
		return proto.Outbound{Type: proto.OutboundTypeSuggestions, Data: suggestions}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Data: proto.Error{Code: "unknown", Message: "unknown error"}}
		}
		return proto.Outbound{
			Type: proto.OutboundTypeError,
			Data: proto.Error{Code: event.Error.Code, Message: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeError, Data: proto.Error{Code: "unknown", Message: "unsupported event"}}
	}
}
