package record

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mklimuk/accellog/accel"
)

type Stats struct {
	Rows    int
	Dropped uint64
	Elapsed time.Duration
}

// Capture runs the poller for the given duration and writes every sample it
// relays to w. The poller is stopped when the duration elapses and the
// samples still buffered are written before returning. Cancelling ctx ends the
// capture early without an error.
func Capture(ctx context.Context, p *accel.Poller, w *CSVWriter, duration time.Duration) (Stats, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- p.Run(runCtx)
	}()

	timer := time.NewTimer(duration)
	defer timer.Stop()
	deadline := timer.C
	in := p.Samples()
	var writeErr error
loop:
	for {
		select {
		case s, ok := <-in:
			if !ok {
				break loop
			}
			if writeErr != nil {
				continue
			}
			writeErr = w.Write(s)
			if writeErr != nil {
				// keep draining until the poller exits
				cancel()
			}
		case <-deadline:
			p.Stop()
			deadline = nil
		}
	}
	runErr := <-done
	stats := Stats{Rows: w.Rows(), Dropped: p.Dropped(), Elapsed: time.Since(start)}
	slog.Debug("capture finished", "rows", stats.Rows, "dropped", stats.Dropped, "elapsed", stats.Elapsed)

	flushErr := w.Flush()
	switch {
	case writeErr != nil:
		return stats, writeErr
	case runErr != nil && ctx.Err() == nil:
		return stats, fmt.Errorf("polling failed: %w", runErr)
	case flushErr != nil:
		return stats, fmt.Errorf("could not flush records: %w", flushErr)
	}
	return stats, nil
}
