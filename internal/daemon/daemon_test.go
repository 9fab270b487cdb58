package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"tgwatch/internal/bus"
	"tgwatch/internal/deletions"
	"tgwatch/internal/ingest"
	"tgwatch/internal/lock"
	"tgwatch/internal/notify"
	"tgwatch/internal/store"
	"tgwatch/internal/watchdog"
)

type fakeDM struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeDM) SendAlert(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeDM) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

type fakeTransport struct {
	remote map[int64]map[int64]struct{}
}

func (f *fakeTransport) PeerKind(_ context.Context, chatID int64) (string, error) {
	return store.PeerUser, nil
}

func (f *fakeTransport) OwnMessageIDs(_ context.Context, chatID int64) (map[int64]struct{}, error) {
	ids, ok := f.remote[chatID]
	if !ok {
		return nil, errors.New("unknown chat")
	}
	return ids, nil
}

func (f *fakeTransport) DisplayName(_ context.Context, chatID int64) (string, error) {
	return "@peer", nil
}

// TestPipelineEndToEnd runs the full detection pipeline against a real
// database and webhook receiver, with only the Telegram transport
// faked: ingest from the bus, explicit deletion from the bus, and a
// watchdog sweep catching a silent removal.
func TestPipelineEndToEnd(t *testing.T) {
	const ownID = int64(99)

	dir := t.TempDir()

	lk, err := lock.Acquire(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	db, err := store.Open(filepath.Join(dir, "tgwatch.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	var mu sync.Mutex
	var payloads []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p map[string]any
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("bad webhook body: %v", err)
		}
		mu.Lock()
		payloads = append(payloads, p)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	logger := zap.NewNop()
	b := bus.New()
	dm := &fakeDM{}
	notifier := notify.New(srv.URL, 2*time.Second, dm, logger)

	engine := ingest.NewEngine(db, b, logger)
	engine.Start(context.Background())
	defer engine.Stop()

	handler := deletions.NewHandler(db, b, nil, notifier, logger)
	handler.Start(context.Background())
	defer handler.Stop()

	// Two own messages in a private chat arrive over the bus.
	b.Emit("tg.message", &store.Message{ChatID: 10, MsgID: 1, FromID: ownID, Body: "first"})
	b.Emit("tg.message", &store.Message{ChatID: 10, MsgID: 2, FromID: ownID, Body: "second"})

	waitFor(t, func() bool {
		msg, _ := db.GetMessage(10, 2)
		return msg != nil
	}, "messages never ingested")

	// The account owner deletes message 1: explicit event path.
	b.Emit("tg.deleted", &store.DeletedBatch{MsgIDs: []int64{1}})

	waitFor(t, func() bool {
		msg, _ := db.GetMessage(10, 1)
		return msg != nil && msg.Deleted
	}, "explicit deletion never processed")

	// The other party silently removes message 2: only the watchdog
	// can see it, via the remote set that no longer contains the ID.
	tr := &fakeTransport{remote: map[int64]map[int64]struct{}{
		10: {},
	}}
	wd := watchdog.New(db, tr, notifier, ownID, time.Hour, logger)
	wd.Sweep(context.Background())

	msg, _ := db.GetMessage(10, 2)
	if msg == nil || !msg.Deleted {
		t.Fatal("watchdog missed the silent removal")
	}

	recs, err := db.ListDeletions(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d audit records, want 2: %+v", len(recs), recs)
	}
	reasons := map[int64]string{}
	for _, r := range recs {
		reasons[r.MsgID] = r.Reason
	}
	if reasons[1] != store.ReasonDeletedByOwner {
		t.Errorf("msg 1 reason = %q", reasons[1])
	}
	if reasons[2] != store.ReasonDeletedByOtherParty {
		t.Errorf("msg 2 reason = %q", reasons[2])
	}

	// Both detections fanned out to the webhook and the DM channel.
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(payloads) == 2
	}, "webhook deliveries missing")
	if dm.count() != 2 {
		t.Errorf("got %d alert DMs, want 2", dm.count())
	}

	mu.Lock()
	defer mu.Unlock()
	for _, p := range payloads {
		for _, key := range []string{"msg_id", "chat_id", "message", "deleted_at", "reason"} {
			if _, ok := p[key]; !ok {
				t.Errorf("webhook payload missing %q: %v", key, p)
			}
		}
	}
}

// TestSecondInstanceRefused covers the single-instance guarantee: two
// daemons over the same database would double-process deletions.
func TestSecondInstanceRefused(t *testing.T) {
	dir := t.TempDir()

	lk, err := lock.Acquire(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	if _, err := lock.Acquire(dir); err == nil {
		t.Fatal("second acquire should fail while lock is held")
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
