package clockmock

import (
	"sync"
	"time"

	"collateral-loans/pkg/clock"
)

var _ clock.Clock = (*Fake)(nil)

// Fake is a settable clock.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

func New(at time.Time) *Fake { return &Fake{now: at} }

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Set(at time.Time) {
	f.mu.Lock()
	f.now = at
	f.mu.Unlock()
}

func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
