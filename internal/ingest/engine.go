// Package ingest writes observed messages into the store.
package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tgwatch/internal/bus"
	"tgwatch/internal/store"
	"tgwatch/internal/urltext"
)

// Engine handles idempotent ingestion of messages into the store.
// It subscribes to "tg.message" events on the bus and processes them.
type Engine struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewEngine creates a new ingestion engine.
func NewEngine(db *store.DB, b *bus.Bus, logger *zap.Logger) *Engine {
	return &Engine{
		db:     db,
		bus:    b,
		logger: logger,
	}
}

// Start subscribes to inbound Telegram message events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("tg.message", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				msg, ok := evt.Payload.(*store.Message)
				if !ok {
					continue
				}
				if err := e.IngestMessage(msg); err != nil {
					// One failed write must not stop the stream.
					e.logger.Error("failed to ingest message",
						zap.Error(err),
						zap.Int64("msg_id", msg.MsgID),
						zap.Int64("chat_id", msg.ChatID))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

// IngestMessage records a single message (idempotent). URLs are
// annotated at ingestion time; an absent body is stored as "".
func (e *Engine) IngestMessage(msg *store.Message) error {
	msg.DetectedURLs = urltext.Join(urltext.Extract(msg.Body))

	if err := e.db.RecordMessage(msg); err != nil {
		return fmt.Errorf("record message: %w", err)
	}

	e.bus.Emit("message.recorded", map[string]int64{
		"chat_id": msg.ChatID,
		"msg_id":  msg.MsgID,
	})

	if e.logger != nil {
		e.logger.Info("logged message",
			zap.Int64("msg_id", msg.MsgID),
			zap.Int64("chat_id", msg.ChatID))
	}
	return nil
}
