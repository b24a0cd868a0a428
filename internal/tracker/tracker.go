// Package tracker holds per-item processing status for the current batch run.
//
// Statuses live in a sync.Map so readers never wait on writers, and the
// completed counter is a single atomic. A Tracker is reset at the start of
// every run; callers that need run isolation must serialize runs themselves.
package tracker

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kursadbilgin/item-processor/internal/domain"
)

const defaultMirrorTimeout = 2 * time.Second

// Mirror receives a copy of every tracker write so status can be observed
// outside this process. Mirror failures never affect the in-memory state.
type Mirror interface {
	Reset(ctx context.Context) error
	SetStatuses(ctx context.Context, status domain.ProcessingStatus, ids ...int64) error
	IncrCompleted(ctx context.Context) error
}

type Tracker struct {
	statuses  sync.Map // int64 -> domain.ProcessingStatus
	completed atomic.Int64

	mirror        Mirror
	mirrorTimeout time.Duration
	onMirrorError func(op string, err error)
}

func New() *Tracker {
	return &Tracker{mirrorTimeout: defaultMirrorTimeout}
}

// SetMirror attaches a mirror. It must be called before the tracker is shared.
func (t *Tracker) SetMirror(mirror Mirror, onError func(op string, err error)) {
	if t == nil {
		return
	}
	t.mirror = mirror
	t.onMirrorError = onError
}

// Reset clears every status entry and zeroes the completed counter.
func (t *Tracker) Reset() {
	t.statuses.Clear()
	t.completed.Store(0)

	t.mirrorWrite("reset", func(ctx context.Context) error {
		return t.mirror.Reset(ctx)
	})
}

// Register marks every id as PENDING.
func (t *Tracker) Register(ids []int64) {
	for _, id := range ids {
		t.statuses.Store(id, domain.ProcessingPending)
	}
	if len(ids) == 0 {
		return
	}

	t.mirrorWrite("register", func(ctx context.Context) error {
		return t.mirror.SetStatuses(ctx, domain.ProcessingPending, ids...)
	})
}

// SetStatus overwrites the entry for id.
func (t *Tracker) SetStatus(id int64, status domain.ProcessingStatus) {
	t.statuses.Store(id, status)

	t.mirrorWrite("set_status", func(ctx context.Context) error {
		return t.mirror.SetStatuses(ctx, status, id)
	})
}

// Status returns the entry for id, or UNKNOWN if id is not part of the run.
func (t *Tracker) Status(id int64) domain.ProcessingStatus {
	value, ok := t.statuses.Load(id)
	if !ok {
		return domain.ProcessingUnknown
	}
	return value.(domain.ProcessingStatus)
}

// IncrementCompleted atomically bumps the completed counter and returns the new value.
func (t *Tracker) IncrementCompleted() int64 {
	n := t.completed.Add(1)

	t.mirrorWrite("incr_completed", func(ctx context.Context) error {
		return t.mirror.IncrCompleted(ctx)
	})
	return n
}

func (t *Tracker) CompletedCount() int64 {
	return t.completed.Load()
}

// Entry is a single id/status pair from a Snapshot.
type Entry struct {
	ID     int64
	Status domain.ProcessingStatus
}

// Snapshot returns the current entries ordered by id. Entries written while
// the snapshot is taken may or may not be included.
func (t *Tracker) Snapshot() []Entry {
	entries := make([]Entry, 0)
	t.statuses.Range(func(key, value any) bool {
		entries = append(entries, Entry{ID: key.(int64), Status: value.(domain.ProcessingStatus)})
		return true
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

func (t *Tracker) mirrorWrite(op string, write func(ctx context.Context) error) {
	if t.mirror == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.mirrorTimeout)
	defer cancel()

	if err := write(ctx); err != nil && t.onMirrorError != nil {
		t.onMirrorError(op, err)
	}
}
