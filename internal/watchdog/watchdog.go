// Package watchdog infers deletions the upstream never announces.
// Private-chat messages removed by the other party produce no event,
// so the only way to notice is to periodically diff the local log
// against a fresh remote snapshot.
package watchdog

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"tgwatch/internal/notify"
	"tgwatch/internal/store"
)

// Transport is the narrow slice of the Telegram adapter the watchdog
// needs: peer classification and a full scan of the account's own
// message IDs in a chat.
type Transport interface {
	PeerKind(ctx context.Context, chatID int64) (string, error)
	OwnMessageIDs(ctx context.Context, chatID int64) (map[int64]struct{}, error)
	DisplayName(ctx context.Context, chatID int64) (string, error)
}

// Alerter dispatches deletion alerts. Implemented by notify.Notifier.
type Alerter interface {
	Notify(ctx context.Context, a notify.Alert)
}

// Watchdog periodically reconciles stored undeleted message IDs against
// the live remote set, chat by chat. Anything present locally but gone
// remotely is declared deleted by the other party. This is a
// best-effort liveness check: a transiently incomplete remote fetch can
// produce a false positive, accepted in exchange for simplicity.
type Watchdog struct {
	db        *store.DB
	transport Transport
	alerter   Alerter
	ownID     int64
	interval  time.Duration
	logger    *zap.Logger
	cancel    context.CancelFunc
}

// New creates a watchdog sweeping every interval.
func New(db *store.DB, transport Transport, alerter Alerter, ownID int64, interval time.Duration, logger *zap.Logger) *Watchdog {
	return &Watchdog{
		db:        db,
		transport: transport,
		alerter:   alerter,
		ownID:     ownID,
		interval:  interval,
		logger:    logger,
	}
}

// Start begins the sweep loop. A failed iteration never stops
// subsequent iterations.
func (w *Watchdog) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	go w.loop(ctx)
}

// Stop stops the loop. In-flight chat reconciliation finishes its
// current chat; no rollback is needed since each ID is handled
// atomically.
func (w *Watchdog) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *Watchdog) loop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Sweep runs one reconciliation pass over every chat where the account
// has sent messages. A failure in one chat skips only that chat.
func (w *Watchdog) Sweep(ctx context.Context) {
	chats, err := w.db.ChatsWithOwnMessages(w.ownID)
	if err != nil {
		w.logger.Error("watchdog: failed to list chats", zap.Error(err))
		return
	}

	for _, chatID := range chats {
		if ctx.Err() != nil {
			return
		}
		if err := w.reconcileChat(ctx, chatID); err != nil {
			w.logger.Error("watchdog failed in chat",
				zap.Error(err), zap.Int64("chat_id", chatID))
		}
	}
}

func (w *Watchdog) reconcileChat(ctx context.Context, chatID int64) error {
	kind, err := w.transport.PeerKind(ctx, chatID)
	if err != nil {
		return err
	}
	// Group and channel deletions are not reconcilable this way without
	// per-chat full history; only strictly one-to-one chats qualify.
	if kind != store.PeerUser {
		return nil
	}

	localIDs, err := w.db.UndeletedMessageIDs(chatID, w.ownID)
	if err != nil {
		return err
	}
	if len(localIDs) == 0 {
		return nil
	}

	remoteIDs, err := w.transport.OwnMessageIDs(ctx, chatID)
	if err != nil {
		return err
	}

	for msgID := range localIDs {
		if _, stillThere := remoteIDs[msgID]; stillThere {
			continue
		}
		w.flagDeleted(ctx, chatID, msgID)
	}
	return nil
}

// flagDeleted marks one missing ID and emits the audit record + alert.
// Failures are logged; the remaining IDs of the chat still get flagged.
func (w *Watchdog) flagDeleted(ctx context.Context, chatID, msgID int64) {
	mark, err := w.db.MarkDeletedIfPresent(chatID, msgID)
	if err != nil {
		w.logger.Error("watchdog: failed to mark deleted",
			zap.Error(err), zap.Int64("msg_id", msgID))
		return
	}

	body := mark.Body
	if !mark.Found {
		body = "<unknown>"
	}

	now := time.Now()
	rec := &store.DeletionRecord{
		MsgID:     msgID,
		ChatID:    chatID,
		Body:      body,
		Reason:    store.ReasonDeletedByOtherParty,
		DeletedAt: now.UnixMilli(),
	}
	if err := w.db.InsertDeletionRecord(rec); err != nil {
		w.logger.Error("watchdog: failed to record deletion",
			zap.Error(err), zap.Int64("msg_id", msgID))
		return
	}

	label := w.labelFor(ctx, chatID)
	w.alerter.Notify(ctx, notify.Alert{
		MsgID:     msgID,
		ChatID:    chatID,
		ChatLabel: label,
		Body:      body,
		Reason:    store.ReasonDeletedByOtherParty,
		DeletedAt: now,
	})

	w.logger.Warn("watchdog: own message likely deleted by other party",
		zap.Int64("msg_id", msgID),
		zap.String("chat", label),
		zap.String("content", body))
}

func (w *Watchdog) labelFor(ctx context.Context, chatID int64) string {
	if name, err := w.transport.DisplayName(ctx, chatID); err == nil && name != "" {
		return name
	}
	return strconv.FormatInt(chatID, 10)
}
