package sim

import (
	"context"
	"time"

	"github.com/banshee-data/trackcorr/internal/monitoring"
	"github.com/banshee-data/trackcorr/internal/timeutil"
)

// Processor runs one frame pass. *tracks.Manager satisfies it.
type Processor interface {
	Process(dt time.Duration)
}

// Runner calls Process once per tick with the time elapsed since the
// previous tick.
type Runner struct {
	clock    timeutil.Clock
	proc     Processor
	interval time.Duration

	// OnFrame, if set, is called after every Process with the frame's dt.
	OnFrame func(dt time.Duration)
}

// NewRunner returns a Runner ticking every interval.
func NewRunner(clock timeutil.Clock, proc Processor, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Runner{clock: clock, proc: proc, interval: interval}
}

// Run ticks until ctx is done. The first frame's dt is measured from the
// moment Run started.
func (r *Runner) Run(ctx context.Context) error {
	last := r.clock.Now()
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	frames := 0
	monitoring.Logf("[sim] frame runner started, interval=%v", r.interval)
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("[sim] frame runner stopped after %d frames", frames)
			return nil
		case now := <-ticker.C():
			dt := now.Sub(last)
			last = now
			r.proc.Process(dt)
			frames++
			if r.OnFrame != nil {
				r.OnFrame(dt)
			}
		}
	}
}
