package notify

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/relayq/relayq/internal/domain"
)

// Common store errors.
var (
	// ErrInvalidRecord is returned when a record fails validation before
	// being appended.
	ErrInvalidRecord = errors.New("invalid notification record")
)

// maxRecordsPerTenant bounds the in-memory store so a tenant that never
// polls cannot grow it without limit. The durable store relies on the
// retention purge instead.
const maxRecordsPerTenant = 1000

// Store is the append-only notification record store. Sequence IDs are
// assigned at append time and are strictly increasing per tenant; the
// caller must uphold single-writer discipline per tenant.
type Store interface {
	// Append writes the record with the tenant's next sequence ID and
	// returns that ID.
	Append(ctx context.Context, tenantID string, rec domain.NotificationRecord) (int64, error)

	// Since returns all records with sequence ID greater than sinceID,
	// in sequence order.
	Since(ctx context.Context, tenantID string, sinceID int64) ([]domain.NotificationRecord, error)

	// Purge removes records created before the cutoff, returning how
	// many were removed.
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// MemoryStore is an in-memory Store for single-process deployments and
// tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string][]domain.NotificationRecord
	lastSeq map[string]int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string][]domain.NotificationRecord),
		lastSeq: make(map[string]int64),
	}
}

// Append assigns the next per-tenant sequence ID and stores the record.
func (s *MemoryStore) Append(
	ctx context.Context,
	tenantID string,
	rec domain.NotificationRecord,
) (int64, error) {
	if err := rec.Validate(); err != nil {
		return 0, errors.Join(ErrInvalidRecord, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSeq[tenantID]++
	rec.SequenceID = s.lastSeq[tenantID]
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	recs := append(s.records[tenantID], rec)
	if len(recs) > maxRecordsPerTenant {
		recs = recs[len(recs)-maxRecordsPerTenant:]
	}
	s.records[tenantID] = recs

	return rec.SequenceID, nil
}

// Since returns records newer than sinceID in sequence order.
func (s *MemoryStore) Since(
	ctx context.Context,
	tenantID string,
	sinceID int64,
) ([]domain.NotificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.records[tenantID]
	// Records are stored in sequence order; find the first one past the
	// cursor.
	idx := sort.Search(len(recs), func(i int) bool {
		return recs[i].SequenceID > sinceID
	})

	out := make([]domain.NotificationRecord, len(recs)-idx)
	copy(out, recs[idx:])
	return out, nil
}

// Purge drops records created before the cutoff. Sequence counters are
// untouched so IDs are never reused.
func (s *MemoryStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for tenantID, recs := range s.records {
		idx := sort.Search(len(recs), func(i int) bool {
			return !recs[i].CreatedAt.Before(cutoff)
		})
		if idx > 0 {
			purged += int64(idx)
			s.records[tenantID] = recs[idx:]
		}
	}
	return purged, nil
}

var _ Store = (*MemoryStore)(nil)
