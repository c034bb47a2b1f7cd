package app

import (
	"context"
	"testing"
	"time"

	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/clock"
	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/domain"
	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/notify"
)

func TestOfferService_Create(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	makeSvc := func(store *fakeStore) *OfferService {
		return NewOfferService(store, store, notify.Noop{}, clock.NewFixed(now), testLogger())
	}

	t.Run("window offer materializes one slot per tick", func(t *testing.T) {
		store := newFakeStore()
		store.addUser(domain.User{ID: 1, Name: "Owner"})

		svc := makeSvc(store)
		offer, err := svc.Create(context.Background(), CreateOfferInput{
			OwnerID:     1,
			Direction:   domain.DirectionSell,
			Amount:      500,
			Rate:        100,
			City:        "Москва",
			Offices:     []string{"Тверская 1"},
			WindowStart: &start,
			WindowEnd:   &end,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if offer.Status != domain.OfferStatusActive {
			t.Fatalf("expected active offer, got %s", offer.Status)
		}

		avail, err := svc.AvailableSlots(context.Background(), offer.ID, "", now)
		if err != nil {
			t.Fatalf("available slots: %v", err)
		}
		if len(avail) != 4 {
			t.Fatalf("expected 4 slots for a one-hour window, got %d", len(avail))
		}
		if !avail[0].Equal(start) {
			t.Fatalf("expected first slot at %v, got %v", start, avail[0])
		}
	})

	t.Run("legacy meeting time yields a single slot", func(t *testing.T) {
		store := newFakeStore()
		store.addUser(domain.User{ID: 1})
		meeting := start

		svc := makeSvc(store)
		offer, err := svc.Create(context.Background(), CreateOfferInput{
			OwnerID:     1,
			Direction:   domain.DirectionBuy,
			Amount:      100,
			Rate:        99.5,
			City:        "Москва",
			Offices:     []string{"Арбат 10"},
			MeetingTime: &meeting,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		avail, err := svc.AvailableSlots(context.Background(), offer.ID, "", now)
		if err != nil {
			t.Fatalf("available slots: %v", err)
		}
		if len(avail) != 1 {
			t.Fatalf("expected 1 slot, got %d", len(avail))
		}
	})

	t.Run("rejects inverted window", func(t *testing.T) {
		store := newFakeStore()
		store.addUser(domain.User{ID: 1})

		svc := makeSvc(store)
		_, err := svc.Create(context.Background(), CreateOfferInput{
			OwnerID:     1,
			Direction:   domain.DirectionSell,
			Amount:      500,
			Rate:        100,
			WindowStart: &end,
			WindowEnd:   &start,
		})
		if err != domain.ErrInvalidWindow {
			t.Fatalf("expected ErrInvalidWindow, got %v", err)
		}
	})

	t.Run("rejects blocked owner", func(t *testing.T) {
		store := newFakeStore()
		store.addUser(domain.User{ID: 1, Blocked: true})

		svc := makeSvc(store)
		_, err := svc.Create(context.Background(), CreateOfferInput{
			OwnerID:     1,
			Direction:   domain.DirectionSell,
			Amount:      500,
			Rate:        100,
			WindowStart: &start,
			WindowEnd:   &end,
		})
		if err != domain.ErrUserBlocked {
			t.Fatalf("expected ErrUserBlocked, got %v", err)
		}
	})

	t.Run("rejects bad direction and amounts", func(t *testing.T) {
		store := newFakeStore()
		store.addUser(domain.User{ID: 1})
		svc := makeSvc(store)

		if _, err := svc.Create(context.Background(), CreateOfferInput{
			OwnerID: 1, Direction: "swap", Amount: 1, Rate: 1, WindowStart: &start, WindowEnd: &end,
		}); err != domain.ErrInvalidDirection {
			t.Fatalf("expected ErrInvalidDirection, got %v", err)
		}
		if _, err := svc.Create(context.Background(), CreateOfferInput{
			OwnerID: 1, Direction: domain.DirectionBuy, Amount: 0, Rate: 1, WindowStart: &start, WindowEnd: &end,
		}); err != domain.ErrInvalidAmount {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
	})
}

func TestOfferService_AvailableSlots(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	store := newFakeStore()
	store.addUser(domain.User{ID: 1}, domain.User{ID: 2})
	offers := NewOfferService(store, store, notify.Noop{}, clock.NewFixed(now), testLogger())
	reservations := NewReservationService(store, store, notify.Noop{}, clock.NewFixed(now), testLogger())

	offer, err := offers.Create(context.Background(), CreateOfferInput{
		OwnerID: 1, Direction: domain.DirectionSell, Amount: 100, Rate: 100,
		Offices: []string{"A"}, WindowStart: &start, WindowEnd: &end,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	t.Run("past slots are excluded", func(t *testing.T) {
		avail, err := offers.AvailableSlots(context.Background(), offer.ID, "A", start.Add(20*time.Minute))
		if err != nil {
			t.Fatalf("available slots: %v", err)
		}
		// 09:30 and 09:45 remain; 09:00 and 09:15 are not strictly after now.
		if len(avail) != 2 {
			t.Fatalf("expected 2 future slots, got %d", len(avail))
		}
	})

	t.Run("booked slot disappears and returns after reject", func(t *testing.T) {
		res, err := reservations.Request(context.Background(), RequestInput{
			OfferID: offer.ID, SlotTime: start, Office: "A", Requester: domain.RegisteredRequester(2),
		})
		if err != nil {
			t.Fatalf("request: %v", err)
		}

		avail, err := offers.AvailableSlots(context.Background(), offer.ID, "A", now)
		if err != nil {
			t.Fatalf("available slots: %v", err)
		}
		if len(avail) != 3 {
			t.Fatalf("expected 3 slots while booked, got %d", len(avail))
		}

		if _, err := reservations.Respond(context.Background(), res.ID, 1, DecisionReject); err != nil {
			t.Fatalf("reject: %v", err)
		}
		avail, err = offers.AvailableSlots(context.Background(), offer.ID, "A", now)
		if err != nil {
			t.Fatalf("available slots: %v", err)
		}
		if len(avail) != 4 {
			t.Fatalf("expected all 4 slots after reject, got %d", len(avail))
		}
	})

	t.Run("unknown offer", func(t *testing.T) {
		_, err := offers.AvailableSlots(context.Background(), 999, "A", now)
		if err != domain.ErrOfferNotFound {
			t.Fatalf("expected ErrOfferNotFound, got %v", err)
		}
	})
}

func TestOfferService_UpdateWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	store := newFakeStore()
	store.addUser(domain.User{ID: 1}, domain.User{ID: 2})
	offers := NewOfferService(store, store, notify.Noop{}, clock.NewFixed(now), testLogger())
	reservations := NewReservationService(store, store, notify.Noop{}, clock.NewFixed(now), testLogger())

	offer, err := offers.Create(context.Background(), CreateOfferInput{
		OwnerID: 1, Direction: domain.DirectionSell, Amount: 100, Rate: 100,
		Offices: []string{"A"}, WindowStart: &start, WindowEnd: &end,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Book 09:00 so the shrink below cannot prune it.
	if _, err := reservations.Request(context.Background(), RequestInput{
		OfferID: offer.ID, SlotTime: start, Office: "A", Requester: domain.RegisteredRequester(2),
	}); err != nil {
		t.Fatalf("request: %v", err)
	}

	newEnd := start.Add(30 * time.Minute)
	if _, err := offers.UpdateWindow(context.Background(), offer.ID, 1, start, newEnd); err != nil {
		t.Fatalf("update window: %v", err)
	}

	if got := store.slot(offer.ID, start); !got.Reserved {
		t.Fatalf("reserved slot must survive regeneration")
	}
	if got := store.slot(offer.ID, start.Add(45*time.Minute)); got.OfferID != 0 {
		t.Fatalf("slot outside the new window must be pruned")
	}

	// Regenerating the same window twice is a no-op.
	if _, err := offers.UpdateWindow(context.Background(), offer.ID, 1, start, newEnd); err != nil {
		t.Fatalf("second update window: %v", err)
	}

	t.Run("only the owner may edit", func(t *testing.T) {
		_, err := offers.UpdateWindow(context.Background(), offer.ID, 2, start, newEnd)
		if err != domain.ErrNotOfferOwner {
			t.Fatalf("expected ErrNotOfferOwner, got %v", err)
		}
	})
}

func TestOfferService_Delete(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	slotAt := now.Add(time.Hour)

	seed := func() *fakeStore {
		store := newFakeStore()
		store.addUser(domain.User{ID: 1, Name: "Owner"})
		store.addOffer(domain.Offer{ID: 7, OwnerID: 1, Status: domain.OfferStatusActive, ExpiresAt: now.Add(24 * time.Hour)})
		store.addSlot(7, slotAt)
		return store
	}

	t.Run("owner removes the offer and its slots", func(t *testing.T) {
		store := seed()
		svc := NewOfferService(store, store, notify.Noop{}, clock.NewFixed(now), testLogger())

		if err := svc.Delete(context.Background(), 7, 1); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if store.offer(7).ID != 0 {
			t.Fatalf("offer must be gone")
		}
		if store.slot(7, slotAt).ID != 0 {
			t.Fatalf("slots must be removed with the offer")
		}
	})

	t.Run("only the owner may delete", func(t *testing.T) {
		store := seed()
		svc := NewOfferService(store, store, notify.Noop{}, clock.NewFixed(now), testLogger())

		if err := svc.Delete(context.Background(), 7, 2); err != domain.ErrNotOfferOwner {
			t.Fatalf("expected ErrNotOfferOwner, got %v", err)
		}
		if store.offer(7).ID == 0 {
			t.Fatalf("offer must survive a stranger's delete")
		}
	})

	t.Run("unknown offer", func(t *testing.T) {
		store := seed()
		svc := NewOfferService(store, store, notify.Noop{}, clock.NewFixed(now), testLogger())

		if err := svc.Delete(context.Background(), 99, 1); err != domain.ErrOfferNotFound {
			t.Fatalf("expected ErrOfferNotFound, got %v", err)
		}
	})
}

func TestOfferService_CleanupElapsed(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	store := newFakeStore()
	past := now.Add(-2 * time.Hour)
	pastEnd := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	futureEnd := now.Add(2 * time.Hour)

	store.addOffer(domain.Offer{ID: 1, Status: domain.OfferStatusActive, WindowStart: &past, WindowEnd: &pastEnd, ExpiresAt: now.Add(20 * time.Hour)})
	store.addOffer(domain.Offer{ID: 2, Status: domain.OfferStatusActive, WindowStart: &future, WindowEnd: &futureEnd, ExpiresAt: now.Add(20 * time.Hour)})
	store.addOffer(domain.Offer{ID: 3, Status: domain.OfferStatusCompleted, WindowStart: &past, WindowEnd: &pastEnd, ExpiresAt: past})

	svc := NewOfferService(store, store, notify.Noop{}, clock.NewFixed(now), testLogger())
	removed, err := svc.CleanupElapsed(context.Background(), now)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed offer, got %d", removed)
	}
	if store.offer(1).ID != 0 {
		t.Fatalf("elapsed offer must be deleted")
	}
	if store.offer(2).ID == 0 {
		t.Fatalf("future offer must survive")
	}
	if store.offer(3).ID == 0 {
		t.Fatalf("completed offers are kept as history")
	}
}
