package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/domain"
)

// fakeStore is an in-memory stand-in for the postgres repositories. WithTx
// serializes whole transactions with a mutex, which models the row-level
// locking the real store provides: concurrent Request calls for one slot are
// forced through one at a time, exactly like FOR UPDATE on the slot row.
type fakeStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users        map[int64]domain.User
	offers       map[int64]domain.Offer
	slots        map[int64]map[int64]*domain.TimeSlot
	reservations map[int64]*domain.Reservation
	deals        []domain.Deal

	nextReservationID int64
	nextOfferID       int64
	nextUserID        int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:        make(map[int64]domain.User),
		offers:       make(map[int64]domain.Offer),
		slots:        make(map[int64]map[int64]*domain.TimeSlot),
		reservations: make(map[int64]*domain.Reservation),
	}
}

// seeding helpers

func (f *fakeStore) addUser(users ...domain.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range users {
		f.users[u.ID] = u
		if u.ID > f.nextUserID {
			f.nextUserID = u.ID
		}
	}
}

func (f *fakeStore) addOffer(o domain.Offer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offers[o.ID] = o
	if o.ID > f.nextOfferID {
		f.nextOfferID = o.ID
	}
}

func (f *fakeStore) addSlot(offerID int64, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertSlotLocked(offerID, at)
}

func (f *fakeStore) insertSlotLocked(offerID int64, at time.Time) {
	if f.slots[offerID] == nil {
		f.slots[offerID] = make(map[int64]*domain.TimeSlot)
	}
	key := at.Unix()
	if _, ok := f.slots[offerID][key]; ok {
		return
	}
	f.slots[offerID][key] = &domain.TimeSlot{
		ID:       int64(len(f.slots[offerID]))<<32 | offerID,
		OfferID:  offerID,
		SlotTime: at,
	}
}

func (f *fakeStore) slot(offerID int64, at time.Time) domain.TimeSlot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.slots[offerID][at.Unix()]; ok {
		return *s
	}
	return domain.TimeSlot{}
}

func (f *fakeStore) offer(id int64) domain.Offer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offers[id]
}

func (f *fakeStore) activeCount(offerID int64, at time.Time, office string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.reservations {
		if r.OfferID == offerID && r.SlotTime.Equal(at) && r.MeetingOffice == office && r.Status.Active() {
			n++
		}
	}
	return n
}

func (f *fakeStore) dealsFor(userID int64) []domain.Deal {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Deal
	for _, d := range f.deals {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out
}

// shared

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()
	return fn(ctx)
}

func (f *fakeStore) GetOffer(_ context.Context, offerID int64) (domain.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.offers[offerID]
	if !ok {
		return domain.Offer{}, domain.ErrOfferNotFound
	}
	return o, nil
}

func (f *fakeStore) SetOfferStatus(_ context.Context, offerID int64, status domain.OfferStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.offers[offerID]
	if !ok {
		return domain.ErrOfferNotFound
	}
	o.Status = status
	f.offers[offerID] = o
	return nil
}

// ReservationRepository

func (f *fakeStore) GetSlotForUpdate(_ context.Context, offerID int64, slotTime time.Time) (domain.TimeSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[offerID][slotTime.Unix()]
	if !ok {
		return domain.TimeSlot{}, domain.ErrSlotNotFound
	}
	return *s, nil
}

func (f *fakeStore) HasActiveReservation(_ context.Context, offerID int64, slotTime time.Time, office string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reservations {
		if r.OfferID == offerID && r.SlotTime.Equal(slotTime) && r.MeetingOffice == office && r.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateReservation(_ context.Context, res domain.Reservation) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// Backstop mirroring the partial unique index over active reservations.
	for _, r := range f.reservations {
		if r.OfferID == res.OfferID && r.SlotTime.Equal(res.SlotTime) && r.MeetingOffice == res.MeetingOffice && r.Status.Active() {
			return 0, domain.ErrSlotUnavailable
		}
	}
	f.nextReservationID++
	res.ID = f.nextReservationID
	f.reservations[res.ID] = &res
	return res.ID, nil
}

func (f *fakeStore) MarkSlotReserved(_ context.Context, slotID int64, reservedBy *int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, byTime := range f.slots {
		for _, s := range byTime {
			if s.ID == slotID {
				s.Reserved = true
				s.ReservedBy = reservedBy
				s.ReservedAt = &at
				return nil
			}
		}
	}
	return domain.ErrSlotNotFound
}

func (f *fakeStore) ReleaseSlot(_ context.Context, offerID int64, slotTime time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.slots[offerID][slotTime.Unix()]; ok {
		s.Reserved = false
		s.ReservedBy = nil
		s.ReservedAt = nil
	}
	return nil
}

func (f *fakeStore) GetReservation(_ context.Context, id int64) (domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return *r, nil
}

func (f *fakeStore) ResolveReservation(_ context.Context, id int64, to domain.ReservationStatus, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok {
		return false, domain.ErrReservationNotFound
	}
	if r.Status != domain.ReservationStatusPending {
		return false, nil
	}
	r.Status = to
	switch to {
	case domain.ReservationStatusConfirmed:
		t := at
		r.ConfirmedAt = &t
	case domain.ReservationStatusRejected:
		t := at
		r.RejectedAt = &t
	}
	return true, nil
}

func (f *fakeStore) FindPendingByRequester(_ context.Context, offerID int64, requester domain.Requester) (*domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reservations {
		if r.OfferID != offerID || r.Status != domain.ReservationStatusPending {
			continue
		}
		if requester.Anonymous() {
			if r.Requester.Anonymous() && r.Requester.Phone == requester.Phone {
				out := *r
				return &out, nil
			}
		} else if !r.Requester.Anonymous() && r.Requester.UserID == requester.UserID {
			out := *r
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ExpirePending(_ context.Context, now time.Time) ([]domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Reservation
	for _, r := range f.reservations {
		if r.Status == domain.ReservationStatusPending && now.After(r.ExpiresAt) {
			r.Status = domain.ReservationStatusExpired
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) ListPendingForOwner(_ context.Context, ownerID int64, now time.Time) ([]domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Reservation
	for _, r := range f.reservations {
		o, ok := f.offers[r.OfferID]
		if !ok || o.OwnerID != ownerID {
			continue
		}
		if r.Status == domain.ReservationStatusPending && !now.After(r.ExpiresAt) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// OfferRepository

func (f *fakeStore) CreateOffer(_ context.Context, offer domain.Offer) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextOfferID++
	offer.ID = f.nextOfferID
	f.offers[offer.ID] = offer
	return offer.ID, nil
}

func (f *fakeStore) UpdateOfferWindow(_ context.Context, offer domain.Offer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.offers[offer.ID]; !ok {
		return domain.ErrOfferNotFound
	}
	f.offers[offer.ID] = offer
	return nil
}

func (f *fakeStore) ListActiveOffers(_ context.Context, now time.Time) ([]domain.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Offer
	for _, o := range f.offers {
		if o.Status == domain.OfferStatusActive && o.ExpiresAt.After(now) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) InsertSlots(_ context.Context, offerID int64, times []time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, at := range times {
		f.insertSlotLocked(offerID, at)
	}
	return nil
}

func (f *fakeStore) PruneSlots(_ context.Context, offerID int64, keep []time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	keepSet := make(map[int64]bool, len(keep))
	for _, at := range keep {
		keepSet[at.Unix()] = true
	}
	for key, s := range f.slots[offerID] {
		if keepSet[key] || s.Reserved {
			continue
		}
		claimed := false
		for _, r := range f.reservations {
			if r.OfferID == offerID && r.SlotTime.Equal(s.SlotTime) && r.Status.Active() {
				claimed = true
				break
			}
		}
		if !claimed {
			delete(f.slots[offerID], key)
		}
	}
	return nil
}

func (f *fakeStore) ListAvailableSlots(_ context.Context, offerID int64, office string, now time.Time) ([]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []time.Time
	for _, s := range f.slots[offerID] {
		if !s.SlotTime.After(now) || s.Reserved {
			continue
		}
		taken := false
		for _, r := range f.reservations {
			if r.OfferID == offerID && r.SlotTime.Equal(s.SlotTime) && r.MeetingOffice == office && r.Status.Active() {
				taken = true
				break
			}
		}
		if !taken {
			out = append(out, s.SlotTime)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (f *fakeStore) DeleteOffer(_ context.Context, offerID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.offers[offerID]; !ok {
		return domain.ErrOfferNotFound
	}
	delete(f.offers, offerID)
	delete(f.slots, offerID)
	for id, r := range f.reservations {
		if r.OfferID == offerID {
			delete(f.reservations, id)
		}
	}
	return nil
}

func (f *fakeStore) DeleteElapsedOffers(_ context.Context, now time.Time) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for id, o := range f.offers {
		if o.Status == domain.OfferStatusCompleted {
			continue
		}
		deadline := o.ExpiresAt
		if o.WindowEnd != nil && o.WindowEnd.Before(deadline) {
			deadline = *o.WindowEnd
		}
		if o.MeetingTime != nil && o.MeetingTime.Before(deadline) {
			deadline = *o.MeetingTime
		}
		if deadline.Before(now) {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		delete(f.offers, id)
		delete(f.slots, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// DealRepository

func (f *fakeStore) GetOfferForUpdate(ctx context.Context, offerID int64) (domain.Offer, error) {
	return f.GetOffer(ctx, offerID)
}

func (f *fakeStore) GetConfirmedReservation(_ context.Context, offerID int64) (*domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reservations {
		if r.OfferID == offerID && r.Status == domain.ReservationStatusConfirmed {
			out := *r
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateDeal(_ context.Context, deal domain.Deal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	deal.ID = int64(len(f.deals) + 1)
	f.deals = append(f.deals, deal)
	return nil
}

func (f *fakeStore) ListDealsByUser(_ context.Context, userID int64) ([]domain.Deal, error) {
	return f.dealsFor(userID), nil
}

// UserRepository

func (f *fakeStore) GetUser(_ context.Context, id int64) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeStore) FindUserByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateUser(_ context.Context, user domain.User) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email {
			return 0, domain.ErrEmailTaken
		}
	}
	f.nextUserID++
	user.ID = f.nextUserID
	f.users[user.ID] = user
	return user.ID, nil
}

func (f *fakeStore) SetTelegramID(_ context.Context, userID, telegramID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.TelegramID = telegramID
	f.users[userID] = u
	return nil
}
