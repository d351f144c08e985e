package pos

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-pos/internal/obs"
)

// Session is one terminal's exclusive cart and payment state. All mutations
// are serialised through the session mutex; the submit flag rejects a second
// completion while one is in flight.
type Session struct {
	ID       uuid.UUID
	Cart     *Cart
	Payment  *PaymentState
	Customer *CustomerRef

	mu         sync.Mutex
	receipt    *Receipt
	submitting atomic.Bool
	lastActive time.Time
}

// Lock acquires the session for a batch of state reads or mutations.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session.
func (s *Session) Unlock() { s.mu.Unlock() }

// BeginSubmit marks a submission as in flight. It reports false when another
// submission already holds the flag.
func (s *Session) BeginSubmit() bool {
	return s.submitting.CompareAndSwap(false, true)
}

// EndSubmit clears the in-flight flag.
func (s *Session) EndSubmit() {
	s.submitting.Store(false)
}

// Submitting reports whether a completion call is currently in flight.
func (s *Session) Submitting() bool {
	return s.submitting.Load()
}

// SetReceipt stores the snapshot of the last completed sale, replacing the
// previous one. Caller must hold the session lock.
func (s *Session) SetReceipt(r Receipt) {
	s.receipt = &r
}

// LastReceipt returns the snapshot of the most recent completed sale.
// Caller must hold the session lock.
func (s *Session) LastReceipt() (Receipt, bool) {
	if s.receipt == nil {
		return Receipt{}, false
	}
	return *s.receipt, true
}

// Store is the in-process session registry. Sessions are process-local by
// design: a cart has exactly one owner and all mutations happen synchronously
// on it.
type Store struct {
	TTL time.Duration
	Now func() time.Time

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewStore creates a registry that expires sessions idle longer than ttl.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Store{
		TTL:      ttl,
		sessions: make(map[uuid.UUID]*Session),
	}
}

func (st *Store) now() time.Time {
	if st.Now != nil {
		return st.Now()
	}
	return time.Now()
}

// Create registers a fresh session with an empty cart and default payment
// state.
func (st *Store) Create() *Session {
	sess := &Session{
		ID:         uuid.New(),
		Cart:       NewCart(),
		Payment:    NewPaymentState(),
		lastActive: st.now(),
	}
	st.mu.Lock()
	st.sessions[sess.ID] = sess
	count := len(st.sessions)
	st.mu.Unlock()
	reportActiveSessions(count)
	return sess
}

// Get returns the session and refreshes its idle deadline.
func (st *Store) Get(id uuid.UUID) (*Session, error) {
	st.mu.RLock()
	sess, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.mu.Lock()
	sess.lastActive = st.now()
	sess.mu.Unlock()
	return sess, nil
}

// Delete closes a session. Unknown ids are ignored.
func (st *Store) Delete(id uuid.UUID) {
	st.mu.Lock()
	delete(st.sessions, id)
	count := len(st.sessions)
	st.mu.Unlock()
	reportActiveSessions(count)
}

// Len reports the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Run sweeps expired sessions until the context is cancelled.
func (st *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.sweepOnce(st.now())
		}
	}
}

func (st *Store) sweepOnce(now time.Time) int {
	cutoff := now.Add(-st.TTL)
	st.mu.Lock()
	defer st.mu.Unlock()
	removed := 0
	for id, sess := range st.sessions {
		sess.mu.Lock()
		idle := sess.lastActive.Before(cutoff)
		busy := sess.Submitting()
		sess.mu.Unlock()
		if idle && !busy {
			delete(st.sessions, id)
			removed++
		}
	}
	reportActiveSessions(len(st.sessions))
	return removed
}

func reportActiveSessions(count int) {
	if obs.ActiveSessions != nil {
		obs.ActiveSessions.Set(float64(count))
	}
}
