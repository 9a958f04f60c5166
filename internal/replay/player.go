package replay

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/tldetector/internal/coordinator"
	"github.com/banshee-data/tldetector/internal/timeutil"
)

// EventSource yields timestamped events until io.EOF.
type EventSource interface {
	Next() (coordinator.Event, time.Time, error)
}

// Sink receives replayed events, typically Coordinator.Submit.
type Sink func(ctx context.Context, ev coordinator.Event) error

// Player feeds a recording into a sink.
type Player struct {
	// Rate scales playback speed against recorded time. Zero or negative
	// replays as fast as the sink accepts events.
	Rate  float64
	Clock timeutil.Clock
}

// Stats summarises a finished playback.
type Stats struct {
	Events int
	Frames int
	Span   time.Duration // recorded time covered
}

// Play reads src to the end and submits every event to sink in order.
func (p Player) Play(ctx context.Context, src EventSource, sink Sink) (Stats, error) {
	clock := p.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	var (
		stats     Stats
		started   bool
		first     time.Time
		lastEvent time.Time
		lastWall  time.Time
	)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		ev, at, err := src.Next()
		if err == io.EOF {
			diagf("replay complete: %d events, %d frames, %v recorded", stats.Events, stats.Frames, stats.Span)
			return stats, nil
		}
		if err != nil {
			return stats, err
		}

		// Rate control: wait until the recorded gap has elapsed.
		if p.Rate > 0 && started {
			gap := time.Duration(float64(at.Sub(lastEvent)) / p.Rate)
			if wait := gap - clock.Since(lastWall); wait > 0 {
				if err := sleep(ctx, clock, wait); err != nil {
					return stats, err
				}
			}
		}
		lastEvent, lastWall = at, clock.Now()

		if err := sink(ctx, ev); err != nil {
			return stats, fmt.Errorf("submit event %d: %w", stats.Events+1, err)
		}
		if !started {
			started, first = true, at
		}
		stats.Events++
		stats.Span = at.Sub(first)
		if _, ok := ev.(coordinator.FrameEvent); ok {
			stats.Frames++
		}
	}
}

func sleep(ctx context.Context, clock timeutil.Clock, d time.Duration) error {
	timer := clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C():
		return nil
	}
}
