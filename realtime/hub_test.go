package realtime

import (
	"encoding/json"
	"log/slog"
	"os"
	"record-sync/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(os.Stdout, nil)))
}

func receive(t *testing.T, sub *Subscriber) Event {
	t.Helper()
	select {
	case ev := <-sub.C:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, sub *Subscriber) {
	t.Helper()
	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected event %q", ev.Name)
	default:
	}
}

func TestPublishReachesAllUserConnections(t *testing.T) {
	hub := newTestHub()

	phone := hub.Subscribe("user-1")
	tablet := hub.Subscribe("user-1")
	defer hub.Unsubscribe(phone)
	defer hub.Unsubscribe(tablet)

	ev := Event{Name: EventCallUpdate, Payload: json.RawMessage(`{"id":"rec-1"}`)}
	hub.Publish("user-1", ev)

	assert.Equal(t, ev, receive(t, phone))
	assert.Equal(t, ev, receive(t, tablet))
}

func TestChannelIsolationBetweenUsers(t *testing.T) {
	hub := newTestHub()

	alice := hub.Subscribe("alice")
	bob := hub.Subscribe("bob")
	defer hub.Unsubscribe(alice)
	defer hub.Unsubscribe(bob)

	hub.Publish("alice", Event{Name: EventMessageUpdate, Payload: json.RawMessage(`{}`)})

	receive(t, alice)
	assertNoEvent(t, bob)
}

func TestUnsubscribeDiscardsEmptyChannel(t *testing.T) {
	hub := newTestHub()

	sub := hub.Subscribe("user-1")
	require.Equal(t, 1, hub.Connections("user-1"))

	hub.Unsubscribe(sub)
	assert.Equal(t, 0, hub.Connections("user-1"))

	select {
	case <-sub.Done():
	default:
		t.Fatal("done channel not closed on unsubscribe")
	}

	// A second unsubscribe of the same connection is a no-op.
	hub.Unsubscribe(sub)
}

func TestPublishToUnknownUserIsNoOp(t *testing.T) {
	hub := newTestHub()
	hub.Publish("nobody", Event{Name: EventCallUpdate})
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	hub := newTestHub()

	sub := hub.Subscribe("user-1")
	defer hub.Unsubscribe(sub)

	// Fill the buffer without draining, then publish one more.
	for i := 0; i < subscriberBuffer+1; i++ {
		hub.Publish("user-1", Event{Name: EventCallUpdate})
	}

	drained := 0
	for {
		select {
		case <-sub.C:
			drained++
			continue
		default:
		}
		break
	}

	assert.Equal(t, subscriberBuffer, drained)
}

func TestRecordEventNames(t *testing.T) {
	call := RecordEvent(&models.Record{ID: "rec-1", Kind: models.KindCall})
	assert.Equal(t, EventCallUpdate, call.Name)

	msg := RecordEvent(&models.Record{ID: "rec-2", Kind: models.KindMessage})
	assert.Equal(t, EventMessageUpdate, msg.Name)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "rec-2", payload["id"])
}
