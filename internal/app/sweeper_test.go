package app

import (
	"context"
	"testing"
	"time"

	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/clock"
	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/domain"
	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/notify"
)

func TestSweeper_Run(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	clk := clock.NewManual(start)

	store := newFakeStore()
	store.addUser(domain.User{ID: 1}, domain.User{ID: 2})
	winStart := start.Add(time.Hour)
	winEnd := start.Add(2 * time.Hour)
	store.addOffer(domain.Offer{
		ID: 1, OwnerID: 1, Direction: domain.DirectionSell, Amount: 100, Rate: 100,
		Offices: []string{"A"}, WindowStart: &winStart, WindowEnd: &winEnd,
		Status: domain.OfferStatusActive, ExpiresAt: start.Add(24 * time.Hour),
	})
	store.addSlot(1, winStart)

	reservations := NewReservationService(store, store, notify.Noop{}, clk, testLogger())
	offers := NewOfferService(store, store, notify.Noop{}, clk, testLogger())

	res, err := reservations.Request(context.Background(), RequestInput{
		OfferID: 1, SlotTime: winStart, Office: "A", Requester: domain.RegisteredRequester(2),
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	sw := &Sweeper{
		Reservations: reservations,
		Offers:       offers,
		Clock:        clk,
		Interval:     5 * time.Millisecond,
		Log:          testLogger(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx) }()

	// Nothing is due yet; the reservation must survive a few passes.
	time.Sleep(25 * time.Millisecond)
	got, err := store.GetReservation(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("get reservation: %v", err)
	}
	if got.Status != domain.ReservationStatusPending {
		t.Fatalf("reservation expired too early: %s", got.Status)
	}

	// Push past the reservation deadline and wait for a pass to pick it up.
	clk.Advance(16 * time.Minute)
	deadline := time.After(2 * time.Second)
	for {
		got, err = store.GetReservation(context.Background(), res.ID)
		if err != nil {
			t.Fatalf("get reservation: %v", err)
		}
		if got.Status == domain.ReservationStatusExpired {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("sweeper never expired the reservation, status %s", got.Status)
		case <-time.After(5 * time.Millisecond):
		}
	}
	if store.slot(1, winStart).Reserved {
		t.Fatalf("expired reservation must release its slot")
	}

	// Push past the offer window end; the offer itself gets cleaned up.
	clk.Advance(3 * time.Hour)
	deadline = time.After(2 * time.Second)
	for store.offer(1).ID != 0 {
		select {
		case <-deadline:
			t.Fatalf("sweeper never removed the elapsed offer")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
