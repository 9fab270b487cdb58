package tg

import (
	"testing"

	"github.com/gotd/td/tg"
)

func TestParseMessagePrivateIncoming(t *testing.T) {
	m := &tg.Message{
		ID:      42,
		PeerID:  &tg.PeerUser{UserID: 1000},
		Message: "hello",
	}

	got := ParseMessage(m, 99)
	if got.ChatID != 1000 {
		t.Errorf("ChatID = %d, want 1000", got.ChatID)
	}
	if got.MsgID != 42 {
		t.Errorf("MsgID = %d, want 42", got.MsgID)
	}
	// No FromID on an incoming private message: the author is the peer.
	if got.FromID != 1000 {
		t.Errorf("FromID = %d, want 1000", got.FromID)
	}
	if got.Body != "hello" {
		t.Errorf("Body = %q", got.Body)
	}
}

func TestParseMessagePrivateOutgoing(t *testing.T) {
	m := &tg.Message{
		ID:      43,
		Out:     true,
		PeerID:  &tg.PeerUser{UserID: 1000},
		Message: "mine",
	}

	got := ParseMessage(m, 99)
	if got.FromID != 99 {
		t.Errorf("FromID = %d, want own id 99", got.FromID)
	}
	if got.ChatID != 1000 {
		t.Errorf("ChatID = %d, want 1000", got.ChatID)
	}
}

func TestParseMessageGroupWithFromID(t *testing.T) {
	m := &tg.Message{
		ID:      7,
		PeerID:  &tg.PeerChat{ChatID: 555},
		Message: "group msg",
	}
	m.SetFromID(&tg.PeerUser{UserID: 1234})

	got := ParseMessage(m, 99)
	if got.ChatID != 555 {
		t.Errorf("ChatID = %d, want 555", got.ChatID)
	}
	if got.FromID != 1234 {
		t.Errorf("FromID = %d, want 1234", got.FromID)
	}
}

func TestParseMessageChannel(t *testing.T) {
	m := &tg.Message{
		ID:      8,
		PeerID:  &tg.PeerChannel{ChannelID: 777},
		Message: "broadcast",
	}

	got := ParseMessage(m, 99)
	if got.ChatID != 777 {
		t.Errorf("ChatID = %d, want 777", got.ChatID)
	}
	// Unattributable channel post.
	if got.FromID != 0 {
		t.Errorf("FromID = %d, want 0", got.FromID)
	}
}
