package pubsub

import (
	"errors"
	"sync"
	"testing"
)

type fakeSub struct {
	id       uint64
	mu       sync.Mutex
	received []string
	fail     bool
}

func (f *fakeSub) ID() uint64 { return f.id }

func (f *fakeSub) SendMessage(channel, payload string) error {
	if f.fail {
		return errors.New("send failed")
	}
	f.mu.Lock()
	f.received = append(f.received, channel+":"+payload)
	f.mu.Unlock()
	return nil
}

func TestSubscribeCountsOnlyChannels(t *testing.T) {
	r := New()
	s := &fakeSub{id: 1}
	if n := r.Subscribe(s, "a"); n != 1 {
		t.Fatalf("Subscribe(a) count = %d; want 1", n)
	}
	if n := r.Subscribe(s, "a"); n != 1 {
		t.Fatalf("re-subscribing to the same channel should not change the count, got %d", n)
	}
	if n := r.Subscribe(s, "b"); n != 2 {
		t.Fatalf("Subscribe(b) count = %d; want 2", n)
	}
}

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	r := New()
	s1 := &fakeSub{id: 1}
	s2 := &fakeSub{id: 2}
	r.Subscribe(s1, "ch")
	r.Subscribe(s2, "ch")

	n := r.Publish("ch", "hi")
	if n != 2 {
		t.Fatalf("Publish returned %d; want 2", n)
	}
	if len(s1.received) != 1 || s1.received[0] != "ch:hi" {
		t.Fatalf("s1 received %v", s1.received)
	}
	if len(s2.received) != 1 || s2.received[0] != "ch:hi" {
		t.Fatalf("s2 received %v", s2.received)
	}
}

func TestPublishDropsFailedSubscriber(t *testing.T) {
	r := New()
	bad := &fakeSub{id: 1, fail: true}
	r.Subscribe(bad, "ch")

	n := r.Publish("ch", "hi")
	if n != 1 {
		t.Fatalf("Publish should still count the attempted delivery, got %d", n)
	}
	if r.SubscriptionCount(bad) != 0 {
		t.Fatalf("expected a failed subscriber to be cleaned up")
	}
}

func TestUnsubscribeAllAndCleanup(t *testing.T) {
	r := New()
	s := &fakeSub{id: 1}
	r.Subscribe(s, "a")
	r.Subscribe(s, "b")
	r.PSubscribe(s, "p*")

	channels := r.UnsubscribeAll(s)
	if len(channels) != 2 {
		t.Fatalf("UnsubscribeAll returned %v; want 2 channels", channels)
	}
	if r.SubscriptionCount(s) != 1 {
		t.Fatalf("expected the pattern subscription to survive UnsubscribeAll")
	}

	r.Cleanup(s)
	if r.SubscriptionCount(s) != 0 {
		t.Fatalf("expected Cleanup to remove pattern subscriptions too")
	}
}
