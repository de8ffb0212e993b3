package backend

import (
	"fmt"
	"time"

	"github.com/jmylchreest/hwcodec/internal/codec"
)

// SelfTestOptions bound a self-test.
type SelfTestOptions struct {
	// Budget is the wall-clock limit for producing the first keyframe.
	Budget time.Duration
	// Attempts caps how many times the frame is submitted while the encoder
	// asks for more input.
	Attempts int
	// FrameInterval is the timestamp step between submissions, in ms.
	FrameInterval int64
	Clock         Clock
}

// DefaultSelfTestBudget is the wall-clock budget for the first keyframe.
const DefaultSelfTestBudget = 500 * time.Millisecond

const defaultSelfTestAttempts = 4

// SelfTestReport describes a finished self-test.
type SelfTestReport struct {
	Keyframe   bool
	Submitted  int
	PacketSize int
	Elapsed    time.Duration
}

// SelfTest encodes tex through the normal Encode path and reports whether the
// first packet produced was a keyframe within the budget.
func SelfTest(enc Encoder, tex Texture, opts SelfTestOptions) (SelfTestReport, error) {
	if opts.Budget <= 0 {
		opts.Budget = DefaultSelfTestBudget
	}
	if opts.Attempts <= 0 {
		opts.Attempts = defaultSelfTestAttempts
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}

	var report SelfTestReport
	start := opts.Clock.Now()
	for i := 0; i < opts.Attempts; i++ {
		pkt, err := enc.Encode(tex, int64(i)*opts.FrameInterval)
		report.Submitted++
		report.Elapsed = opts.Clock.Now().Sub(start)
		if report.Elapsed > opts.Budget {
			return report, fmt.Errorf("self-test exceeded %s budget: %w", opts.Budget, codec.ErrFatal)
		}
		if codec.IsRetry(err) {
			continue
		}
		if err != nil {
			return report, fmt.Errorf("self-test encode: %w", err)
		}
		report.Keyframe = pkt.Keyframe
		report.PacketSize = pkt.Size()
		return report, nil
	}
	return report, fmt.Errorf("self-test produced no packet after %d submissions: %w", report.Submitted, codec.ErrFatal)
}
