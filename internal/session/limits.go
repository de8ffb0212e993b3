package session

import (
	"os"
	"strconv"
	"sync"
)

// MaxSessionsEnv overrides the per-adapter encode session limit.
const MaxSessionsEnv = "HWCODEC_MAX_SESSIONS"

// Tracker counts live sessions per adapter and enforces optional limits.
// Decode limits are twice the encode limit. A limit of 0 means unlimited.
type Tracker struct {
	mu sync.RWMutex

	encodeSessions map[int64]int
	decodeSessions map[int64]int

	defaultMax int
	maxEncode  map[int64]int
}

// NewTracker returns a tracker whose default per-adapter encode limit is
// maxPerAdapter, unless HWCODEC_MAX_SESSIONS is set.
func NewTracker(maxPerAdapter int) *Tracker {
	if env := envMaxSessions(); env > 0 {
		maxPerAdapter = env
	}
	if maxPerAdapter < 0 {
		maxPerAdapter = 0
	}
	return &Tracker{
		encodeSessions: make(map[int64]int),
		decodeSessions: make(map[int64]int),
		defaultMax:     maxPerAdapter,
		maxEncode:      make(map[int64]int),
	}
}

// envMaxSessions returns 0 if the variable is unset or invalid.
func envMaxSessions() int {
	val := os.Getenv(MaxSessionsEnv)
	if val == "" {
		return 0
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// SetLimit sets the encode limit for one adapter.
func (t *Tracker) SetLimit(luid int64, maxEncode int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maxEncode[luid] = maxEncode
}

func (t *Tracker) limits(luid int64) (encode, decode int) {
	encode, ok := t.maxEncode[luid]
	if !ok {
		encode = t.defaultMax
	}
	return encode, encode * 2
}

// AcquireEncode reserves an encode session on luid. It reports false when
// the adapter is at its limit.
func (t *Tracker) AcquireEncode(luid int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	maxSessions, _ := t.limits(luid)
	if maxSessions > 0 && t.encodeSessions[luid] >= maxSessions {
		return false
	}
	t.encodeSessions[luid]++
	return true
}

// ReleaseEncode returns an encode session on luid.
func (t *Tracker) ReleaseEncode(luid int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.encodeSessions[luid] > 0 {
		t.encodeSessions[luid]--
	}
}

// AcquireDecode reserves a decode session on luid.
func (t *Tracker) AcquireDecode(luid int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, maxSessions := t.limits(luid)
	if maxSessions > 0 && t.decodeSessions[luid] >= maxSessions {
		return false
	}
	t.decodeSessions[luid]++
	return true
}

// ReleaseDecode returns a decode session on luid.
func (t *Tracker) ReleaseDecode(luid int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.decodeSessions[luid] > 0 {
		t.decodeSessions[luid]--
	}
}

// Counts returns the live sessions and limits for luid.
func (t *Tracker) Counts(luid int64) (activeEncode, maxEncode, activeDecode, maxDecode int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	maxEncode, maxDecode = t.limits(luid)
	return t.encodeSessions[luid], maxEncode, t.decodeSessions[luid], maxDecode
}
