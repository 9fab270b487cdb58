// Package tg wraps the gotd MTProto client behind the narrow surface
// the rest of the daemon consumes: an event stream on the bus, full
// own-message scans for the watchdog, label resolution and the alert DM
// channel.
package tg

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"tgwatch/internal/bus"
	"tgwatch/internal/config"
	"tgwatch/internal/status"
	"tgwatch/internal/store"
)

// Adapter manages the Telegram connection for a single user account.
type Adapter struct {
	client     *telegram.Client
	api        *tg.Client
	sender     *message.Sender
	dispatcher tg.UpdateDispatcher
	db         *store.DB
	bus        *bus.Bus
	machine    *status.Machine
	logger     *zap.Logger

	ownID    int64
	alertTo  int64
	pageSize int

	cancel context.CancelFunc
	done   chan struct{}
}

// NewAdapter creates an adapter from an exported string session. The
// session must already be authorized; tgwatchd performs no interactive
// login.
func NewAdapter(cfg *config.Config, db *store.DB, b *bus.Bus, machine *status.Machine, logger *zap.Logger) (*Adapter, error) {
	data, err := session.TelethonSession(cfg.StringSession)
	if err != nil {
		return nil, fmt.Errorf("decode string session: %w", err)
	}

	var storage session.StorageMemory
	loader := session.Loader{Storage: &storage}
	if err := loader.Save(context.Background(), data); err != nil {
		return nil, fmt.Errorf("seed session storage: %w", err)
	}

	dispatcher := tg.NewUpdateDispatcher()
	client := telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		SessionStorage: &storage,
		UpdateHandler:  dispatcher,
		Logger:         logger.Named("mtproto"),
	})

	api := client.API()
	return &Adapter{
		client:     client,
		api:        api,
		sender:     message.NewSender(api),
		dispatcher: dispatcher,
		db:         db,
		bus:        b,
		machine:    machine,
		logger:     logger,
		ownID:      cfg.OwnUserID,
		alertTo:    cfg.LogChatID,
		pageSize:   cfg.HistoryPageSize,
	}, nil
}

// RegisterEvents wires an event handler into the update dispatcher.
// Must be called before Start.
func (a *Adapter) RegisterEvents(h *EventHandler) {
	h.Register(a.dispatcher)
}

// Start connects in the background and keeps the connection alive
// until Stop or context cancellation.
func (a *Adapter) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})

	go func() {
		defer close(a.done)
		if err := a.run(ctx); err != nil && ctx.Err() == nil {
			a.logger.Error("telegram client stopped", zap.Error(err))
			_ = a.machine.Transition(status.Error)
		}
	}()
}

// Stop disconnects and waits for the client goroutine to exit.
func (a *Adapter) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.done != nil {
		<-a.done
	}
}

func (a *Adapter) run(ctx context.Context) error {
	_ = a.machine.Transition(status.Connecting)

	return a.client.Run(ctx, func(ctx context.Context) error {
		st, err := a.client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("auth status: %w", err)
		}
		if !st.Authorized {
			return errors.New("string session is not authorized")
		}

		self, err := a.client.Self(ctx)
		if err != nil {
			return fmt.Errorf("resolve self: %w", err)
		}
		a.logger.Info("signed in",
			zap.Int64("user_id", self.ID),
			zap.String("first_name", self.FirstName))
		if self.ID != a.ownID {
			a.logger.Warn("OWN_USER_ID does not match the session user",
				zap.Int64("configured", a.ownID),
				zap.Int64("session", self.ID))
		}

		_ = a.machine.Transition(status.Ready)
		a.bus.Emit("session.connected", self.ID)

		<-ctx.Done()
		return ctx.Err()
	})
}

// PeerKind reports whether the chat is a user, basic group or channel,
// from the durable entity cache.
func (a *Adapter) PeerKind(_ context.Context, chatID int64) (string, error) {
	p, err := a.db.GetPeer(chatID)
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", fmt.Errorf("peer %d not in cache", chatID)
	}
	return p.Kind, nil
}

// DisplayName resolves a human-readable label for a chat:
// @username, then first name, then the raw ID.
func (a *Adapter) DisplayName(_ context.Context, chatID int64) (string, error) {
	p, err := a.db.GetPeer(chatID)
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", fmt.Errorf("peer %d not in cache", chatID)
	}
	switch {
	case p.Username != "":
		return "@" + p.Username, nil
	case p.FirstName != "":
		return p.FirstName, nil
	default:
		return strconv.FormatInt(chatID, 10), nil
	}
}

// OwnMessageIDs scans the full history of a chat for messages sent by
// the account and returns their IDs. The scan pages backwards until the
// server returns an empty batch: a message gone from deep history must
// still show up as absent.
func (a *Adapter) OwnMessageIDs(ctx context.Context, chatID int64) (map[int64]struct{}, error) {
	peer, err := a.inputPeer(chatID)
	if err != nil {
		return nil, err
	}

	ids := make(map[int64]struct{})
	offsetID := 0
	for {
		req := &tg.MessagesSearchRequest{
			Peer:     peer,
			Filter:   &tg.InputMessagesFilterEmpty{},
			OffsetID: offsetID,
			Limit:    a.pageSize,
		}
		req.SetFromID(&tg.InputPeerSelf{})

		res, err := a.api.MessagesSearch(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("messages.search: %w", err)
		}

		var batch []tg.MessageClass
		switch m := res.(type) {
		case *tg.MessagesMessages:
			batch = m.Messages
		case *tg.MessagesMessagesSlice:
			batch = m.Messages
		case *tg.MessagesChannelMessages:
			batch = m.Messages
		default:
			return nil, fmt.Errorf("unexpected messages.search result %T", res)
		}
		if len(batch) == 0 {
			return ids, nil
		}

		for _, mc := range batch {
			id := mc.GetID()
			ids[int64(id)] = struct{}{}
			if offsetID == 0 || id < offsetID {
				offsetID = id
			}
		}
		if len(batch) < a.pageSize {
			return ids, nil
		}
	}
}

// SendAlert delivers the alert mirror: to LOG_CHAT_ID when configured
// and resolvable, otherwise to the account's own saved messages.
func (a *Adapter) SendAlert(ctx context.Context, text string) error {
	if a.alertTo != 0 {
		if peer, err := a.inputPeer(a.alertTo); err == nil {
			_, err = a.sender.To(peer).Text(ctx, text)
			return err
		}
		a.logger.Warn("alert chat not resolvable, falling back to saved messages",
			zap.Int64("chat_id", a.alertTo))
	}
	_, err := a.sender.Self().Text(ctx, text)
	return err
}

// inputPeer rebuilds an API input peer from the entity cache.
func (a *Adapter) inputPeer(chatID int64) (tg.InputPeerClass, error) {
	p, err := a.db.GetPeer(chatID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("peer %d not in cache", chatID)
	}
	switch p.Kind {
	case store.PeerUser:
		return &tg.InputPeerUser{UserID: p.ID, AccessHash: p.AccessHash}, nil
	case store.PeerChat:
		return &tg.InputPeerChat{ChatID: p.ID}, nil
	case store.PeerChannel:
		return &tg.InputPeerChannel{ChannelID: p.ID, AccessHash: p.AccessHash}, nil
	default:
		return nil, fmt.Errorf("peer %d has unknown kind %q", chatID, p.Kind)
	}
}
