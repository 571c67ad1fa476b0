package http

import (
	"encoding/json"
	"time"

	"github.com/samber/lo"

	"github.com/relaychat/relaychat-server/internal/core"
	"github.com/relaychat/relaychat-server/internal/proto"
	"github.com/relaychat/relaychat-server/internal/store"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeUserJoin:
		var join proto.UserJoinData
		if err := json.Unmarshal(inbound.Data, &join); err != nil {
			return nil, nil, err
		}
		if join.Username == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "username is required"}, nil
		}
		return &core.Command{Kind: core.CommandJoin, Username: join.Username}, nil, nil

	case proto.InboundTypeJoinRoom, proto.InboundTypeLeaveRoom:
		var room proto.RoomData
		if err := json.Unmarshal(inbound.Data, &room); err != nil {
			return nil, nil, err
		}
		if room.Room == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room is required"}, nil
		}
		kind := core.CommandJoinRoom
		if inbound.Type == proto.InboundTypeLeaveRoom {
			kind = core.CommandLeaveRoom
		}
		return &core.Command{Kind: kind, Room: room.Room}, nil, nil

	case proto.InboundTypeSendMessage:
		var msg proto.SendMessageData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return nil, nil, err
		}
		return &core.Command{
			Kind: core.CommandSendMessage,
			Body: msg.Message,
			Room: msg.RoomID,
		}, nil, nil

	case proto.InboundTypeTyping:
		var typing proto.TypingData
		if err := json.Unmarshal(inbound.Data, &typing); err != nil {
			return nil, nil, err
		}
		return &core.Command{Kind: core.CommandTyping, IsTyping: typing.IsTyping}, nil, nil

	case proto.InboundTypePrivateMessage:
		var pm proto.PrivateMessageData
		if err := json.Unmarshal(inbound.Data, &pm); err != nil {
			return nil, nil, err
		}
		if pm.To == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "target is required"}, nil
		}
		return &core.Command{
			Kind: core.CommandPrivateMessage,
			To:   pm.To,
			Body: pm.Message,
		}, nil, nil

	case proto.InboundTypeSendFile:
		var file proto.SendFileData
		if err := json.Unmarshal(inbound.Data, &file); err != nil {
			return nil, nil, err
		}
		if file.FileURL == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "file url is required"}, nil
		}
		return &core.Command{
			Kind:      core.CommandSendFile,
			FileName:  file.FileName,
			FileURL:   file.FileURL,
			To:        file.To,
			IsPrivate: file.IsPrivate,
			Room:      file.RoomID,
		}, nil, nil

	case proto.InboundTypeReactMessage:
		var react proto.ReactMessageData
		if err := json.Unmarshal(inbound.Data, &react); err != nil {
			return nil, nil, err
		}
		if react.MessageID == "" || react.Reaction == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "message id and reaction are required"}, nil
		}
		return &core.Command{
			Kind:      core.CommandReactMessage,
			MessageID: react.MessageID,
			Reaction:  react.Reaction,
		}, nil, nil

	case proto.InboundTypeReadMessage:
		var read proto.ReadMessageData
		if err := json.Unmarshal(inbound.Data, &read); err != nil {
			return nil, nil, err
		}
		if read.MessageID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "message id is required"}, nil
		}
		return &core.Command{
			Kind:      core.CommandReadMessage,
			MessageID: read.MessageID,
			Reader:    read.UserID,
		}, nil, nil

	case proto.InboundTypeMessageDelivered:
		var ack proto.MessageDeliveredData
		if err := json.Unmarshal(inbound.Data, &ack); err != nil {
			return nil, nil, err
		}
		return &core.Command{
			Kind:      core.CommandMessageDelivered,
			MessageID: ack.MessageID,
			Reader:    ack.UserID,
		}, nil, nil

	case proto.InboundTypeGetUnreadCount:
		var req proto.UnreadCountData
		if err := json.Unmarshal(inbound.Data, &req); err != nil {
			return nil, nil, err
		}
		return &core.Command{Kind: core.CommandUnreadCount, Reader: req.UserID}, nil, nil

	case proto.InboundTypeSearchMessages:
		var search proto.SearchMessagesData
		if err := json.Unmarshal(inbound.Data, &search); err != nil {
			return nil, nil, err
		}
		return &core.Command{Kind: core.CommandSearchMessages, Query: search.Query}, nil, nil

	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventUserList:
		return outboundEvent(proto.EventUserList, lo.Map(event.Users, func(p core.Presence, _ int) proto.UserEntry {
			return proto.UserEntry{Username: p.Username, ID: p.SessionID}
		}))
	case core.EventUserJoined:
		return outboundEvent(proto.EventUserJoined, proto.PresenceEvent{Username: event.User, ID: event.SessionID})
	case core.EventUserLeft:
		return outboundEvent(proto.EventUserLeft, proto.PresenceEvent{Username: event.User, ID: event.SessionID})
	case core.EventReceiveMessage:
		return outboundEvent(proto.EventReceiveMessage, messageEvent(event.Message))
	case core.EventPrivateMessage:
		return outboundEvent(proto.EventPrivateMessage, messageEvent(event.Message))
	case core.EventReceiveFile:
		return outboundEvent(proto.EventReceiveFile, messageEvent(event.Message))
	case core.EventTypingUsers:
		typing := event.Typing
		if typing == nil {
			typing = []string{}
		}
		return outboundEvent(proto.EventTypingUsers, typing)
	case core.EventMessageReacted:
		return outboundEvent(proto.EventMessageReacted, messageEvent(event.Message))
	case core.EventMessageRead:
		return outboundEvent(proto.EventMessageRead, messageEvent(event.Message))
	case core.EventMessageDelivered:
		return outboundEvent(proto.EventMessageDelivered, proto.DeliveredEvent{MessageID: event.MessageID, UserID: event.Reader})
	case core.EventUnreadCount:
		return outboundEvent(proto.EventUnreadCount, event.Count)
	case core.EventSearchResults:
		return outboundEvent(proto.EventSearchResults, lo.Map(event.Messages, func(m *store.Message, _ int) proto.MessageEvent {
			return messageEvent(m)
		}))
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func outboundEvent(name string, data any) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeEvent, Event: name, Data: data}
}

func messageEvent(msg *store.Message) proto.MessageEvent {
	if msg == nil {
		return proto.MessageEvent{}
	}
	reactions := msg.Reactions
	if reactions == nil {
		reactions = []string{}
	}
	readBy := msg.ReadBy
	if readBy == nil {
		readBy = []string{}
	}
	return proto.MessageEvent{
		ID:        msg.ID,
		Sender:    msg.Sender,
		SenderID:  msg.SenderID,
		Message:   msg.Body,
		RoomID:    msg.Room,
		To:        msg.To,
		IsPrivate: msg.IsPrivate,
		FileURL:   msg.FileURL,
		Reactions: reactions,
		ReadBy:    readBy,
		Timestamp: msg.CreatedAt.Format(time.RFC3339),
	}
}
