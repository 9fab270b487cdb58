package tg

import (
	"context"

	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"tgwatch/internal/bus"
	"tgwatch/internal/store"
)

// EventHandler translates raw MTProto updates into bus events and keeps
// the entity cache current.
type EventHandler struct {
	db     *store.DB
	bus    *bus.Bus
	ownID  int64
	logger *zap.Logger
}

// NewEventHandler creates an update-to-bus translator.
func NewEventHandler(db *store.DB, b *bus.Bus, ownID int64, logger *zap.Logger) *EventHandler {
	return &EventHandler{db: db, bus: b, ownID: ownID, logger: logger}
}

// Register attaches the handler to a dispatcher.
func (h *EventHandler) Register(d tg.UpdateDispatcher) {
	d.OnNewMessage(h.onNewMessage)
	d.OnNewChannelMessage(h.onNewChannelMessage)
	d.OnDeleteMessages(h.onDeleteMessages)
	d.OnDeleteChannelMessages(h.onDeleteChannelMessages)
}

func (h *EventHandler) onNewMessage(_ context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
	h.rememberEntities(e)
	h.publishMessage(u.Message)
	return nil
}

func (h *EventHandler) onNewChannelMessage(_ context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
	h.rememberEntities(e)
	h.publishMessage(u.Message)
	return nil
}

func (h *EventHandler) publishMessage(mc tg.MessageClass) {
	msg, ok := mc.(*tg.Message)
	if !ok {
		// Service messages carry no user content.
		return
	}
	h.bus.Emit("tg.message", ParseMessage(msg, h.ownID))
}

func (h *EventHandler) onDeleteMessages(_ context.Context, e tg.Entities, u *tg.UpdateDeleteMessages) error {
	h.rememberEntities(e)
	h.bus.Emit("tg.deleted", &store.DeletedBatch{MsgIDs: toInt64s(u.Messages)})
	return nil
}

func (h *EventHandler) onDeleteChannelMessages(_ context.Context, e tg.Entities, u *tg.UpdateDeleteChannelMessages) error {
	h.rememberEntities(e)
	h.bus.Emit("tg.deleted", &store.DeletedBatch{
		MsgIDs:    toInt64s(u.Messages),
		ChannelID: u.ChannelID,
	})
	return nil
}

// rememberEntities persists every user, chat and channel attached to an
// update. Access hashes are required to rebuild input peers after a
// restart, so the cache is written eagerly.
func (h *EventHandler) rememberEntities(e tg.Entities) {
	for id, u := range e.Users {
		h.upsert(&store.Peer{
			ID:         id,
			Kind:       store.PeerUser,
			AccessHash: u.AccessHash,
			Username:   u.Username,
			FirstName:  u.FirstName,
		})
	}
	for id, c := range e.Chats {
		h.upsert(&store.Peer{
			ID:        id,
			Kind:      store.PeerChat,
			FirstName: c.Title,
		})
	}
	for id, c := range e.Channels {
		h.upsert(&store.Peer{
			ID:         id,
			Kind:       store.PeerChannel,
			AccessHash: c.AccessHash,
			Username:   c.Username,
			FirstName:  c.Title,
		})
	}
}

func (h *EventHandler) upsert(p *store.Peer) {
	if err := h.db.UpsertPeer(p); err != nil {
		h.logger.Warn("failed to cache peer",
			zap.Error(err), zap.Int64("peer_id", p.ID))
	}
}

func toInt64s(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}
