package progress

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func recvEvent(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case data, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return data
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestHubDeliversToChannelSubscribers(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(Channel("m1"))
	defer cancel()

	other, cancelOther := hub.Subscribe(Channel("m2"))
	defer cancelOther()

	err := hub.Publish(context.Background(), Channel("m1"), PresetComplete{
		Type:         TypePresetComplete,
		Preset:       "thumb_small",
		PresetIndex:  0,
		TotalPresets: 2,
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	var got PresetComplete
	if err := json.Unmarshal(recvEvent(t, ch), &got); err != nil {
		t.Fatal(err)
	}
	if got.Type != TypePresetComplete || got.Preset != "thumb_small" || got.TotalPresets != 2 {
		t.Errorf("got event %+v", got)
	}

	select {
	case data := <-other:
		t.Errorf("event leaked to another channel: %s", data)
	default:
	}
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(Channel("m1"))
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel still open after cancel")
	}

	// Publishing to a channel with no subscribers is fine.
	if err := hub.Publish(context.Background(), Channel("m1"), Complete{Type: TypeComplete}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
}

func TestHubDropsWhenSubscriberFull(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(Channel("m1"))
	defer cancel()

	for i := 0; i < subscriberBuffer+5; i++ {
		if err := hub.Publish(context.Background(), Channel("m1"), Complete{Type: TypeComplete, TotalVariants: i}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	if len(ch) != subscriberBuffer {
		t.Errorf("buffered = %d, want %d", len(ch), subscriberBuffer)
	}
}

func TestChannel(t *testing.T) {
	if got := Channel("abc"); got != "media/abc/variants" {
		t.Errorf("Channel() = %q", got)
	}
}
