package tg

import (
	"github.com/gotd/td/tg"

	"tgwatch/internal/store"
)

// ParseMessage normalizes a raw API message into a store row. Service
// messages and other non-message classes are rejected by the caller;
// this only sees *tg.Message.
func ParseMessage(m *tg.Message, ownID int64) *store.Message {
	chatID := peerID(m.PeerID)
	fromID := senderID(m, ownID, chatID)

	return &store.Message{
		ChatID: chatID,
		MsgID:  int64(m.ID),
		FromID: fromID,
		Body:   m.Message,
	}
}

// peerID flattens the peer union into a bare chat identifier.
func peerID(p tg.PeerClass) int64 {
	switch peer := p.(type) {
	case *tg.PeerUser:
		return peer.UserID
	case *tg.PeerChat:
		return peer.ChatID
	case *tg.PeerChannel:
		return peer.ChannelID
	default:
		return 0
	}
}

// senderID resolves the author. FromID is absent on most private-chat
// messages: outgoing ones belong to the account, incoming ones to the
// peer user.
func senderID(m *tg.Message, ownID, chatID int64) int64 {
	if m.FromID != nil {
		return peerID(m.FromID)
	}
	if m.Out {
		return ownID
	}
	if _, ok := m.PeerID.(*tg.PeerUser); ok {
		return chatID
	}
	return 0
}
