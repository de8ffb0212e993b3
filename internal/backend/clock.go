package backend

import "time"

// Clock is the time source used by bounded retry loops.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time { return time.Now() }

// Sleep calls time.Sleep.
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

// Retry calls fn until it reports done, returns an error, or attempts run
// out. It sleeps interval between attempts, never after the last one. The
// boolean result is false when the budget was exhausted.
func Retry(clock Clock, attempts int, interval time.Duration, fn func(attempt int) (bool, error)) (bool, error) {
	for i := 0; i < attempts; i++ {
		done, err := fn(i)
		if err != nil {
			return false, err
		}
		if done {
			return true, nil
		}
		if i+1 < attempts && interval > 0 {
			clock.Sleep(interval)
		}
	}
	return false, nil
}
