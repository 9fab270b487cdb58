package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeDM struct {
	texts []string
	err   error
}

func (f *fakeDM) SendAlert(_ context.Context, text string) error {
	if f.err != nil {
		return f.err
	}
	f.texts = append(f.texts, text)
	return nil
}

func testAlert() Alert {
	return Alert{
		MsgID:     42,
		ChatID:    1001,
		ChatLabel: "@alice",
		Body:      "hello",
		Reason:    "deleted_by_owner",
		DeletedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestWebhookPayload(t *testing.T) {
	var got map[string]any
	var deliveryID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deliveryID = r.Header.Get("X-Delivery-ID")
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
	}))
	defer srv.Close()

	n := New(srv.URL, time.Second, nil, zap.NewNop())
	n.Notify(context.Background(), testAlert())

	if got["msg_id"] != float64(42) || got["chat_id"] != float64(1001) {
		t.Errorf("ids = %v/%v", got["msg_id"], got["chat_id"])
	}
	if got["message"] != "hello" || got["reason"] != "deleted_by_owner" {
		t.Errorf("payload = %v", got)
	}
	if got["deleted_at"] != "2026-03-01T12:00:00Z" {
		t.Errorf("deleted_at = %v", got["deleted_at"])
	}
	if deliveryID == "" {
		t.Error("X-Delivery-ID header missing")
	}
}

func TestWebhookDisabled(t *testing.T) {
	dm := &fakeDM{}
	n := New("", time.Second, dm, zap.NewNop())

	// No webhook URL: only the DM goes out, and nothing panics.
	n.Notify(context.Background(), testAlert())

	if len(dm.texts) != 1 {
		t.Fatalf("got %d DMs, want 1", len(dm.texts))
	}
}

func TestWebhookFailureDoesNotBlockDM(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dm := &fakeDM{}
	n := New(srv.URL, time.Second, dm, zap.NewNop())
	n.Notify(context.Background(), testAlert())

	if len(dm.texts) != 1 {
		t.Fatalf("got %d DMs, want 1 despite webhook failure", len(dm.texts))
	}
}

func TestDMFailureSwallowed(t *testing.T) {
	dm := &fakeDM{err: errors.New("flood wait")}
	n := New("", time.Second, dm, zap.NewNop())

	// Must not panic or propagate.
	n.Notify(context.Background(), testAlert())
}

func TestDMTextIncludesLabelAndContent(t *testing.T) {
	dm := &fakeDM{}
	n := New("", time.Second, dm, zap.NewNop())
	n.Notify(context.Background(), testAlert())

	if len(dm.texts) != 1 {
		t.Fatal("no DM sent")
	}
	text := dm.texts[0]
	for _, want := range []string{"@alice", "42", "deleted_by_owner", "hello"} {
		if !strings.Contains(text, want) {
			t.Errorf("DM text missing %q: %q", want, text)
		}
	}
}
