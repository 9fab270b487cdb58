// Package deletions reacts to explicit deletion notifications from the
// event stream.
package deletions

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"tgwatch/internal/bus"
	"tgwatch/internal/notify"
	"tgwatch/internal/store"
)

// TextUnavailable is recorded when a deletion arrives for a message
// that was never ingested.
const TextUnavailable = "<text not available>"

// Resolver turns a chat ID into a human-readable label.
type Resolver interface {
	DisplayName(ctx context.Context, chatID int64) (string, error)
}

// Alerter dispatches deletion alerts. Implemented by notify.Notifier.
type Alerter interface {
	Notify(ctx context.Context, a notify.Alert)
}

// Handler consumes "tg.deleted" batches: it marks the messages deleted,
// appends audit records and fires alerts. Every notified deletion is
// labeled deleted_by_owner; true authorship is not derivable from the
// event.
type Handler struct {
	db       *store.DB
	bus      *bus.Bus
	resolver Resolver
	alerter  Alerter
	logger   *zap.Logger
	cancel   context.CancelFunc
}

// NewHandler creates a new explicit-deletion handler.
func NewHandler(db *store.DB, b *bus.Bus, resolver Resolver, alerter Alerter, logger *zap.Logger) *Handler {
	return &Handler{
		db:       db,
		bus:      b,
		resolver: resolver,
		alerter:  alerter,
		logger:   logger,
	}
}

// Start subscribes to deletion events on the bus.
func (h *Handler) Start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	ch, unsub := h.bus.Subscribe("tg.deleted", 64)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				batch, ok := evt.Payload.(*store.DeletedBatch)
				if !ok {
					continue
				}
				h.HandleBatch(ctx, batch)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the handler.
func (h *Handler) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
}

// HandleBatch processes one upstream deletion notification. A failure
// on one ID never blocks the remaining IDs in the batch.
func (h *Handler) HandleBatch(ctx context.Context, batch *store.DeletedBatch) {
	for _, msgID := range batch.MsgIDs {
		// A channel hint scopes the lookup: channel-local IDs collide
		// with common-sequence IDs from other chats.
		mark, err := h.db.MarkDeletedIfPresent(batch.ChannelID, msgID)
		if err != nil {
			h.logger.Error("failed to mark message deleted",
				zap.Error(err), zap.Int64("msg_id", msgID))
			continue
		}

		body := mark.Body
		chatID := mark.ChatID
		if !mark.Found {
			body = TextUnavailable
			chatID = batch.ChannelID
		}

		now := time.Now()
		rec := &store.DeletionRecord{
			MsgID:     msgID,
			ChatID:    chatID,
			Body:      body,
			Reason:    store.ReasonDeletedByOwner,
			DeletedAt: now.UnixMilli(),
		}
		if err := h.db.InsertDeletionRecord(rec); err != nil {
			h.logger.Error("failed to record deletion",
				zap.Error(err), zap.Int64("msg_id", msgID))
			continue
		}

		label := resolveLabel(ctx, h.resolver, chatID)
		h.alerter.Notify(ctx, notify.Alert{
			MsgID:     msgID,
			ChatID:    chatID,
			ChatLabel: label,
			Body:      body,
			Reason:    store.ReasonDeletedByOwner,
			DeletedAt: now,
		})

		h.logger.Warn("message deleted",
			zap.Int64("msg_id", msgID),
			zap.String("chat", label),
			zap.String("content", body))
	}
}

// resolveLabel is best-effort: an unresolvable chat falls back to its
// raw identifier, and a deletion that carried no chat at all to
// "unknown".
func resolveLabel(ctx context.Context, r Resolver, chatID int64) string {
	if chatID == 0 {
		return "unknown"
	}
	if r != nil {
		if name, err := r.DisplayName(ctx, chatID); err == nil && name != "" {
			return name
		}
	}
	return strconv.FormatInt(chatID, 10)
}
