package accel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Command is a control message accepted by a running Poller.
// The set is closed: Stop is the only command.
type Command interface {
	command()
}

type stopCommand struct{}

func (stopCommand) command() {}

// Stop ends the polling loop.
var Stop Command = stopCommand{}

var ErrPollerStarted = errors.New("poller already started")

// SampleSource is the part of the driver the Poller needs.
type SampleSource interface {
	IsDataReady(ctx context.Context) (bool, error)
	ReadAccelerationAndStatus(ctx context.Context) (Sample, error)
	DataRate() DataRate
}

// TimedSample is a sample stamped with the time it was read.
type TimedSample struct {
	Time   time.Time
	Sample Sample
}

type PollerOpts struct {
	// Buffer is the capacity of the sample channel.
	Buffer int
	// Oversampling is the number of polls per device sample period.
	Oversampling int
	Now          func() time.Time
}

type PollerOpt func(*PollerOpts)

func WithBuffer(size int) PollerOpt {
	return func(o *PollerOpts) {
		o.Buffer = size
	}
}

func WithOversampling(n int) PollerOpt {
	return func(o *PollerOpts) {
		o.Oversampling = n
	}
}

func WithPollerClock(now func() time.Time) PollerOpt {
	return func(o *PollerOpts) {
		o.Now = now
	}
}

// Poller polls a sample source for new data and relays timestamped samples on
// a channel. Once Run is called the Poller owns the source; nothing else may
// call it until Run returns.
//
// The sample channel is buffered. When the consumer falls behind and the
// buffer is full new samples are dropped (see Dropped) so that the polling
// cadence never depends on the consumer.
type Poller struct {
	config   PollerOpts
	source   SampleSource
	samples  chan TimedSample
	commands chan Command
	started  atomic.Bool
	dropped  atomic.Uint64
}

func NewPoller(source SampleSource, opts ...PollerOpt) *Poller {
	config := PollerOpts{
		Buffer:       1024,
		Oversampling: 5,
		Now:          time.Now,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Oversampling < 1 {
		config.Oversampling = 1
	}
	return &Poller{
		config:   config,
		source:   source,
		samples:  make(chan TimedSample, config.Buffer),
		commands: make(chan Command, 1),
	}
}

// Samples returns the sample channel. It is closed when Run returns.
func (p *Poller) Samples() <-chan TimedSample {
	return p.samples
}

// Commands returns the control channel.
func (p *Poller) Commands() chan<- Command {
	return p.commands
}

// Stop requests the polling loop to end. It does not wait for it.
func (p *Poller) Stop() {
	select {
	case p.commands <- Stop:
	default:
		// a command is already pending
	}
}

// Dropped returns the number of samples discarded because the channel was full.
func (p *Poller) Dropped() uint64 {
	return p.dropped.Load()
}

// Interval returns the pause between two polls.
func (p *Poller) Interval() time.Duration {
	return p.source.DataRate().Period() / time.Duration(p.config.Oversampling)
}

// Run polls until Stop is received, ctx is done or the source fails.
// A stop request is honored within one poll interval. Source errors are
// returned, never retried. Run may be called only once.
func (p *Poller) Run(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return ErrPollerStarted
	}
	defer close(p.samples)
	interval := p.Interval()
	slog.Debug("poller started", "interval", interval)
	for {
		ready, err := p.source.IsDataReady(ctx)
		if err != nil {
			return fmt.Errorf("could not poll data status: %w", err)
		}
		if ready {
			ts := p.config.Now()
			sample, err := p.source.ReadAccelerationAndStatus(ctx)
			if err != nil {
				return fmt.Errorf("could not read sample: %w", err)
			}
			p.emit(TimedSample{Time: ts, Sample: sample})
		}
		select {
		case cmd := <-p.commands:
			switch cmd.(type) {
			case stopCommand:
				slog.Debug("poller stopped", "dropped", p.dropped.Load())
				return nil
			}
		default:
		}
		err = sleep(ctx, interval)
		if err != nil {
			return err
		}
	}
}

func (p *Poller) emit(s TimedSample) {
	select {
	case p.samples <- s:
	default:
		n := p.dropped.Add(1)
		slog.Warn("sample channel full, dropping sample", "dropped", n)
	}
}
