package core

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrTooManyImports is returned when every import slot stays taken for the
// limiter's wait time. Clients should retry after a short delay.
var ErrTooManyImports = errors.New("too many concurrent imports, please try again later")

const (
	// DefaultMaxConcurrentImports bounds parallel imports when none is configured.
	DefaultMaxConcurrentImports = 5
	// DefaultMaxWaitTime is how long an import queues for a slot.
	DefaultMaxWaitTime = 30 * time.Second
)

// ActiveImport describes an import holding a slot.
type ActiveImport struct {
	ID      int64     `json:"id"`
	Target  string    `json:"target"`
	Source  string    `json:"source,omitempty"`
	Started time.Time `json:"started"`
}

// ImportLimiter bounds the import batches running at once and tracks what
// each one is importing, so shutdown can wait for them and operators can see
// them.
type ImportLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu      sync.Mutex
	nextID  int64
	running map[int64]ActiveImport
	drained chan struct{} // closed while nothing runs
}

// NewImportLimiter creates a limiter admitting maxConcurrent imports.
func NewImportLimiter(maxConcurrent int, maxWait time.Duration) *ImportLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentImports
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	drained := make(chan struct{})
	close(drained)
	return &ImportLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
		running: make(map[int64]ActiveImport),
		drained: drained,
	}
}

// Acquire waits for a slot for an import into target from source. The
// returned release frees the slot; calling it more than once is harmless.
func (l *ImportLimiter) Acquire(ctx context.Context, target, source string) (release func(), err error) {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrTooManyImports
	}

	l.mu.Lock()
	l.nextID++
	id := l.nextID
	if len(l.running) == 0 {
		l.drained = make(chan struct{})
	}
	l.running[id] = ActiveImport{ID: id, Target: target, Source: source, Started: time.Now()}
	l.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { l.release(id) }) }, nil
}

func (l *ImportLimiter) release(id int64) {
	l.mu.Lock()
	delete(l.running, id)
	if len(l.running) == 0 {
		close(l.drained)
	}
	l.mu.Unlock()
	<-l.slots
}

// WaitForDrain blocks until no import holds a slot or ctx is done.
func (l *ImportLimiter) WaitForDrain(ctx context.Context) error {
	for {
		l.mu.Lock()
		idle := len(l.running) == 0
		drained := l.drained
		l.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-drained:
		}
	}
}

// ImportLimiterStatus is a snapshot of the limiter.
type ImportLimiterStatus struct {
	Active        int            `json:"active"`
	Available     int            `json:"available"`
	MaxConcurrent int            `json:"max_concurrent"`
	Imports       []ActiveImport `json:"imports"`
}

// Status lists the running imports, oldest first.
func (l *ImportLimiter) Status() ImportLimiterStatus {
	l.mu.Lock()
	imports := make([]ActiveImport, 0, len(l.running))
	for _, a := range l.running {
		imports = append(imports, a)
	}
	l.mu.Unlock()
	sort.Slice(imports, func(i, j int) bool { return imports[i].ID < imports[j].ID })

	return ImportLimiterStatus{
		Active:        len(imports),
		Available:     cap(l.slots) - len(imports),
		MaxConcurrent: cap(l.slots),
		Imports:       imports,
	}
}
