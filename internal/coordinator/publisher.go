package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/banshee-data/tldetector/internal/geometry"
	"github.com/banshee-data/tldetector/internal/perception"
)

// Decision is what the detector publishes for one camera frame.
type Decision struct {
	Seq         uint64           `json:"seq"`
	At          time.Time        `json:"at"`
	Waypoint    int              `json:"waypoint"` // stop waypoint, or -1
	RawWaypoint int              `json:"raw_waypoint"`
	RawColor    perception.Color `json:"raw_color"`
	CameraColor perception.Color `json:"camera_color"`
	Confirmed   perception.Color `json:"confirmed_color"`
	LightID     int              `json:"light_id"`
	Pixel       *geometry.Pixel  `json:"pixel,omitempty"`
	Throttled   bool             `json:"throttled,omitempty"`
	Reason      string           `json:"reason,omitempty"`
}

// Publisher receives every decision in frame order.
type Publisher interface {
	Publish(ctx context.Context, d Decision) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, d Decision) error

// Publish implements Publisher.
func (f PublisherFunc) Publish(ctx context.Context, d Decision) error { return f(ctx, d) }

// FanOut publishes to every member and joins their errors. A failing
// member does not stop the others.
type FanOut []Publisher

// Publish implements Publisher.
func (f FanOut) Publish(ctx context.Context, d Decision) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// JSONLinesPublisher writes one JSON object per decision to w.
type JSONLinesPublisher struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLinesPublisher returns a publisher writing to w.
func NewJSONLinesPublisher(w io.Writer) *JSONLinesPublisher {
	return &JSONLinesPublisher{enc: json.NewEncoder(w)}
}

// Publish implements Publisher.
func (p *JSONLinesPublisher) Publish(_ context.Context, d Decision) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enc.Encode(d)
}
