package launchdb

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gitlab.com/atechtools/token-launcher/common"
)

// Memory is an in-process ledger with the same semantics as LaunchDB. It
// serves the CLI and setups running without Postgres.
type Memory struct {
	mu       sync.Mutex
	launches map[common.SolanaAddress]common.LaunchRecord
	order    map[common.SolanaAddress]int

	timeNow func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		launches: make(map[common.SolanaAddress]common.LaunchRecord),
		order:    make(map[common.SolanaAddress]int),
		timeNow:  time.Now,
	}
}

func (m *Memory) InsertLaunch(_ context.Context, record common.LaunchRecord) (common.LaunchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, has := m.launches[record.Mint]; has {
		return common.LaunchRecord{}, fmt.Errorf("%w: %s", ErrDuplicateLaunch, record.Mint)
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := m.timeNow().UTC()
	record.CreatedAt, record.UpdatedAt = now, now
	m.launches[record.Mint] = record
	m.order[record.Mint] = len(m.order)
	return record, nil
}

func (m *Memory) update(mint common.SolanaAddress, fn func(r *common.LaunchRecord)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, has := m.launches[mint]
	if !has {
		return fmt.Errorf("launch %s: %w", mint, common.ErrNotExists)
	}
	fn(&record)
	record.UpdatedAt = m.timeNow().UTC()
	m.launches[mint] = record
	return nil
}

func (m *Memory) MarkSubmitted(_ context.Context, mint common.SolanaAddress, signature string) error {
	return m.update(mint, func(r *common.LaunchRecord) {
		r.Status = common.Submitted
		r.Signature = signature
	})
}

func (m *Memory) SetStatus(_ context.Context, mint common.SolanaAddress, status common.LaunchStatus, errorKind string) error {
	return m.update(mint, func(r *common.LaunchRecord) {
		r.Status = status
		r.ErrorKind = errorKind
	})
}

func (m *Memory) MarkRegistered(_ context.Context, mint common.SolanaAddress) (bool, error) {
	var marked bool
	err := m.update(mint, func(r *common.LaunchRecord) {
		marked = !r.Registered
		r.Registered = true
	})
	return marked, err
}

func (m *Memory) Launch(_ context.Context, mint common.SolanaAddress) (common.LaunchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, has := m.launches[mint]
	if !has {
		return common.LaunchRecord{}, fmt.Errorf("launch %s: %w", mint, common.ErrNotExists)
	}
	return record, nil
}

func (m *Memory) History(_ context.Context, creator common.SolanaAddress, limit int) ([]common.LaunchRecord, error) {
	records := m.filter(func(r common.LaunchRecord) bool { return r.Creator == creator })
	sort.Slice(records, func(i, j int) bool {
		return m.before(records[j], records[i])
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (m *Memory) Pending(_ context.Context) ([]common.LaunchRecord, error) {
	records := m.filter(func(r common.LaunchRecord) bool { return r.Status.Pending() })
	sort.Slice(records, func(i, j int) bool {
		return m.before(records[i], records[j])
	})
	return records, nil
}

// before orders by creation time, then by insertion.
func (m *Memory) before(a, b common.LaunchRecord) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order[a.Mint] < m.order[b.Mint]
}

func (m *Memory) filter(keep func(common.LaunchRecord) bool) []common.LaunchRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var records []common.LaunchRecord
	for _, r := range m.launches {
		if keep(r) {
			records = append(records, r)
		}
	}
	return records
}
