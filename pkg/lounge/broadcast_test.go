package lounge

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBroadcastDelivers(t *testing.T) {
	b := newBroadcaster(4, nil)
	a := b.subscribe()
	c := b.subscribe()

	b.publish(SessionEstablished{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, s := range []*Subscription{a, c} {
		e, err := s.Recv(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if e.Type() != EventSessionEstablished {
			t.Errorf("expected session established, got %s", e.Type())
		}
	}
}

func TestBroadcastDropOldest(t *testing.T) {
	b := newBroadcaster(2, nil)
	s := b.subscribe()

	b.publish(AutoplayUpNext{VideoID: "1"})
	b.publish(AutoplayUpNext{VideoID: "2"})
	b.publish(AutoplayUpNext{VideoID: "3"})
	b.publish(AutoplayUpNext{VideoID: "4"})

	ctx := context.Background()
	_, err := s.Recv(ctx)
	var lagged *LaggedError
	if !errors.As(err, &lagged) {
		t.Fatalf("expected LaggedError, got %v", err)
	}
	if lagged.Missed != 2 {
		t.Errorf("expected 2 missed, got %d", lagged.Missed)
	}

	for _, want := range []string{"3", "4"} {
		e, err := s.Recv(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if got := e.(AutoplayUpNext).VideoID.String(); got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	}
}

func TestBroadcastCloseDrainsThenEnds(t *testing.T) {
	b := newBroadcaster(4, nil)
	s := b.subscribe()
	b.publish(SessionEstablished{})
	b.close()

	ctx := context.Background()
	if _, err := s.Recv(ctx); err != nil {
		t.Fatalf("expected buffered event, got %v", err)
	}
	if _, err := s.Recv(ctx); !errors.Is(err, ErrSubscriptionClosed) {
		t.Errorf("expected ErrSubscriptionClosed, got %v", err)
	}

	late := b.subscribe()
	if _, err := late.Recv(ctx); !errors.Is(err, ErrSubscriptionClosed) {
		t.Errorf("expected closed subscription after broadcaster close, got %v", err)
	}
}

func TestSubscriptionCloseStopsDelivery(t *testing.T) {
	b := newBroadcaster(4, nil)
	s := b.subscribe()
	s.Close()
	b.publish(SessionEstablished{})

	if _, err := s.Recv(context.Background()); !errors.Is(err, ErrSubscriptionClosed) {
		t.Errorf("expected ErrSubscriptionClosed, got %v", err)
	}
}

func TestSubscriptionRecvHonoursContext(t *testing.T) {
	b := newBroadcaster(4, nil)
	s := b.subscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Recv(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestSubscriptionWakesOnPublish(t *testing.T) {
	b := newBroadcaster(4, nil)
	s := b.subscribe()

	go func() {
		time.Sleep(10 * time.Millisecond)
		b.publish(ScreenDisconnected{})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	e, err := s.Recv(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if e.Type() != EventScreenDisconnected {
		t.Errorf("expected screen disconnected, got %s", e.Type())
	}
}
