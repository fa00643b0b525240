package services

import (
	"testing"
	"time"
)

func TestSSEHub_NewSSEHub(t *testing.T) {
	hub := NewSSEHub()
	if hub == nil {
		t.Fatal("NewSSEHub should not return nil")
	}
	if hub.clients == nil {
		t.Error("clients map should be initialized")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("new hub should have 0 clients, got %d", hub.ClientCount())
	}
}

func TestSSEHub_Subscribe(t *testing.T) {
	hub := NewSSEHub()

	if ch := hub.Subscribe("client1", 1); ch == nil {
		t.Error("Subscribe should return a channel")
	}
	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 client, got %d", hub.ClientCount())
	}

	// a second tab of the same user
	if ch := hub.Subscribe("client2", 1); ch == nil {
		t.Error("Subscribe should return a channel")
	}
	if hub.ClientCount() != 2 {
		t.Errorf("expected 2 clients, got %d", hub.ClientCount())
	}
}

func TestSSEHub_Unsubscribe(t *testing.T) {
	hub := NewSSEHub()

	ch := hub.Subscribe("client1", 1)
	hub.Subscribe("client2", 2)

	hub.Unsubscribe("client1")
	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 client after unsubscribe, got %d", hub.ClientCount())
	}
	if _, open := <-ch; open {
		t.Error("channel should be closed after unsubscribe")
	}

	hub.Unsubscribe("nonexistent")
	if hub.ClientCount() != 1 {
		t.Errorf("unsubscribing nonexistent should not affect count, got %d", hub.ClientCount())
	}
}

func TestSSEHub_PublishReachesOnlyRecipient(t *testing.T) {
	hub := NewSSEHub()

	alice := hub.Subscribe("a", 1)
	bob := hub.Subscribe("b", 2)

	hub.Publish(1, MeetingEvent{Type: TaskTypeMeetingInvited, MeetingID: 10, Title: "Kickoff"})

	select {
	case received := <-alice:
		if received.MeetingID != 10 || received.Type != TaskTypeMeetingInvited {
			t.Errorf("unexpected event %+v", received)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timed out waiting for event")
	}

	select {
	case received := <-bob:
		t.Errorf("user 2 should not receive user 1's event, got %+v", received)
	default:
	}
}

func TestSSEHub_PublishAllStreamsOfUser(t *testing.T) {
	hub := NewSSEHub()

	ch1 := hub.Subscribe("tab1", 5)
	ch2 := hub.Subscribe("tab2", 5)

	hub.Publish(5, MeetingEvent{MeetingID: 1})

	for i, ch := range []<-chan MeetingEvent{ch1, ch2} {
		select {
		case received := <-ch:
			if received.MeetingID != 1 {
				t.Errorf("tab%d: MeetingID = %d, expected 1", i+1, received.MeetingID)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("tab%d: timed out waiting for event", i+1)
		}
	}
}

func TestSSEHub_NonBlockingPublish(t *testing.T) {
	hub := NewSSEHub()

	hub.Subscribe("slow_client", 1)

	for i := 0; i < 200; i++ {
		hub.Publish(1, MeetingEvent{MeetingID: uint(i)})
	}
}
