// Package memory is an in-process persistence collaborator. It backs the
// memory data backend and the engine's tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"trackify/internal/core"
)

type cycleKey struct {
	subscriptionID int64
	cycle          int
}

type Store struct {
	mu            sync.Mutex
	nextID        int64
	subscriptions []core.Subscription
	payments      []core.Payment
	categories    []core.Category
	cycles        map[cycleKey]int64
	reminders     map[string]time.Time
}

func New() *Store {
	return &Store{
		cycles:    make(map[cycleKey]int64),
		reminders: make(map[string]time.Time),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// CreateSubscription stores the subscription and returns its id.
func (s *Store) CreateSubscription(_ context.Context, sub core.Subscription) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.ID == 0 {
		sub.ID = s.id()
	} else if sub.ID > s.nextID {
		s.nextID = sub.ID
	}
	s.subscriptions = append(s.subscriptions, sub)
	return sub.ID, nil
}

func (s *Store) SetSubscriptionActive(_ context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.subscriptions {
		if s.subscriptions[i].ID == id {
			s.subscriptions[i].Active = active
			return nil
		}
	}
	return fmt.Errorf("subscription %d: %w", id, core.ErrNotFound)
}

func (s *Store) ListSubscriptions(_ context.Context) ([]core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.subscriptions), nil
}

func (s *Store) ListActiveSubscriptions(_ context.Context) ([]core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Subscription
	for _, sub := range s.subscriptions {
		if sub.Active {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.id()
	} else if c.ID > s.nextID {
		s.nextID = c.ID
	}
	s.categories = append(s.categories, c)
	return c.ID, nil
}

func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.categories), nil
}

// InsertPayment enforces one auto-generated payment per subscription cycle.
// The referenced subscription must exist.
func (s *Store) InsertPayment(_ context.Context, p core.Payment) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !slices.ContainsFunc(s.subscriptions, func(sub core.Subscription) bool { return sub.ID == p.SubscriptionID }) {
		return 0, fmt.Errorf("subscription %d: %w", p.SubscriptionID, core.ErrNotFound)
	}
	if p.AutoGenerated {
		key := cycleKey{subscriptionID: p.SubscriptionID, cycle: p.Cycle}
		if _, exists := s.cycles[key]; exists {
			return 0, core.ErrDuplicatePayment
		}
		p.ID = s.id()
		s.cycles[key] = p.ID
	} else {
		p.ID = s.id()
	}
	s.payments = append(s.payments, p)
	return p.ID, nil
}

func (s *Store) ConfirmPayment(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.payments {
		if s.payments[i].ID != id {
			continue
		}
		if s.payments[i].Status != core.StatusPending {
			return fmt.Errorf("payment %d is %s, only pending payments can be confirmed", id, s.payments[i].Status)
		}
		s.payments[i].Status = core.StatusConfirmed
		return nil
	}
	return fmt.Errorf("payment %d: %w", id, core.ErrNotFound)
}

func (s *Store) LastPaymentFor(_ context.Context, subscriptionID int64) (*core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last *core.Payment
	for i := range s.payments {
		p := s.payments[i]
		if p.SubscriptionID != subscriptionID {
			continue
		}
		if last == nil || p.Date.After(last.Date.Time) || (p.Date.Equal(last.Date.Time) && p.ID > last.ID) {
			last = &p
		}
	}
	return last, nil
}

func (s *Store) PaymentsInRange(_ context.Context, subscriptionID int64, from, to core.Date) ([]core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Payment
	for _, p := range s.payments {
		if p.SubscriptionID != subscriptionID {
			continue
		}
		if p.Date.Before(from.Time) || p.Date.After(to.Time) {
			continue
		}
		out = append(out, p)
	}
	sortPayments(out)
	return out, nil
}

func (s *Store) ListPayments(_ context.Context) ([]core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.payments)
	sortPayments(out)
	return out, nil
}

func (s *Store) MarkReminderSent(_ context.Context, key string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reminders[key]; ok {
		return false, nil
	}
	s.reminders[key] = at
	return true, nil
}

func (s *Store) ReminderSent(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.reminders[key]
	return ok, nil
}

func sortPayments(ps []core.Payment) {
	slices.SortFunc(ps, func(a, b core.Payment) int {
		if c := a.Date.Compare(b.Date.Time); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
