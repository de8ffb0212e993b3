package sim

import (
	"fmt"
	"sort"
	"sync"
)

// Ledger counts acquisitions and releases of simulated vendor objects.
type Ledger struct {
	mu       sync.Mutex
	acquired map[string]int
	released map[string]int
	doubles  []string
	order    []string
	live     map[int64]string
	next     int64
}

func newLedger() *Ledger {
	return &Ledger{
		acquired: make(map[string]int),
		released: make(map[string]int),
		live:     make(map[int64]string),
	}
}

// token is one live acquisition. Releasing it twice is recorded as a double
// release.
type token struct {
	ledger *Ledger
	id     int64
	kind   string
}

func (l *Ledger) acquire(kind string) *token {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	l.acquired[kind]++
	l.live[l.next] = kind
	return &token{ledger: l, id: l.next, kind: kind}
}

func (t *token) release() {
	if t == nil {
		return
	}
	l := t.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.live[t.id]; !ok {
		l.doubles = append(l.doubles, t.kind)
		return
	}
	delete(l.live, t.id)
	l.released[t.kind]++
	l.order = append(l.order, t.kind)
}

// Acquired returns how many objects of kind were acquired.
func (l *Ledger) Acquired(kind string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acquired[kind]
}

// Released returns how many objects of kind were released.
func (l *Ledger) Released(kind string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.released[kind]
}

// Outstanding returns the number of objects acquired and not yet released.
func (l *Ledger) Outstanding() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.live)
}

// Live lists the kinds still held, sorted.
func (l *Ledger) Live() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.live))
	for _, k := range l.live {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DoubleReleases lists kinds that were released more than once.
func (l *Ledger) DoubleReleases() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.doubles...)
}

// ReleaseOrder returns the kinds in the order they were released.
func (l *Ledger) ReleaseOrder() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.order...)
}

// Reset forgets the release order, keeping live objects.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.order = nil
	l.doubles = nil
}

func (l *Ledger) String() string {
	return fmt.Sprintf("ledger{outstanding=%d live=%v doubles=%v}", l.Outstanding(), l.Live(), l.DoubleReleases())
}
