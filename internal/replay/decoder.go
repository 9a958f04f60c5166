package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/tldetector/internal/coordinator"
	"github.com/banshee-data/tldetector/internal/geometry"
	"github.com/banshee-data/tldetector/internal/perception"
	"github.com/banshee-data/tldetector/internal/security"
)

// maxLineBytes bounds one record; dense routes make long lines.
const maxLineBytes = 16 * 1024 * 1024

// Options control how records become events.
type Options struct {
	// Base is the wall time of t=0.
	Base time.Time
	// Dir resolves relative image paths; images outside it are refused.
	// Defaults to the recording's directory when opened with Open, else
	// the working directory.
	Dir string
	// Intrinsics applies to frames without their own camera_info.
	Intrinsics geometry.Intrinsics
	// SkipImages drops image paths so frames run the ground-truth path
	// only.
	SkipImages bool
}

// Decoder reads events from a recording.
type Decoder struct {
	scan *bufio.Scanner
	opts Options
	line int
}

// NewDecoder returns a decoder reading records from r.
func NewDecoder(r io.Reader, opts Options) *Decoder {
	scan := bufio.NewScanner(r)
	scan.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &Decoder{scan: scan, opts: opts}
}

// Line returns the line number of the last record read.
func (d *Decoder) Line() int { return d.line }

// ReadRecord returns the next record, or io.EOF at the end of input.
func (d *Decoder) ReadRecord() (Record, error) {
	for d.scan.Scan() {
		d.line++
		text := bytes.TrimSpace(d.scan.Bytes())
		if len(text) == 0 || text[0] == '#' {
			continue
		}
		var rec Record
		if err := json.Unmarshal(text, &rec); err != nil {
			return Record{}, fmt.Errorf("line %d: %w", d.line, err)
		}
		if err := rec.validate(); err != nil {
			return Record{}, fmt.Errorf("line %d: %w", d.line, err)
		}
		return rec, nil
	}
	if err := d.scan.Err(); err != nil {
		return Record{}, fmt.Errorf("line %d: %w", d.line+1, err)
	}
	return Record{}, io.EOF
}

// Next returns the next event, or io.EOF at the end of input. Frame
// images are decoded here.
func (d *Decoder) Next() (coordinator.Event, time.Time, error) {
	rec, err := d.ReadRecord()
	if err != nil {
		return nil, time.Time{}, err
	}
	at := rec.Time(d.opts.Base)
	if rec.Type != TypeFrame {
		ev, err := rec.event(d.opts.Base)
		return ev, at, err
	}

	frame := perception.CameraFrame{Intrinsics: d.opts.Intrinsics, Timestamp: at}
	if rec.CameraInfo != nil {
		frame.Intrinsics = *rec.CameraInfo
	}
	if rec.Image != "" && !d.opts.SkipImages {
		dir := d.opts.Dir
		if dir == "" {
			dir = "."
		}
		path, err := security.ResolveWithin(dir, rec.Image)
		if err != nil {
			return nil, at, fmt.Errorf("line %d: %w", d.line, err)
		}
		img, err := LoadImage(path)
		if err != nil {
			return nil, at, fmt.Errorf("line %d: %w", d.line, err)
		}
		frame.Image = img
	}
	return coordinator.FrameEvent{Frame: frame}, at, nil
}

// File is a recording opened from disk.
type File struct {
	*Decoder
	f *os.File
}

// Open opens the recording at path. Relative image paths resolve against
// the recording's directory unless opts.Dir is set.
func Open(path string, opts Options) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording: %w", err)
	}
	if opts.Dir == "" {
		opts.Dir = filepath.Dir(path)
	}
	diagf("opened recording %s", path)
	return &File{Decoder: NewDecoder(f, opts), f: f}, nil
}

// Close closes the underlying file.
func (f *File) Close() error { return f.f.Close() }

// ReadAll decodes every event of r.
func ReadAll(r io.Reader, opts Options) ([]coordinator.Event, error) {
	dec := NewDecoder(r, opts)
	var events []coordinator.Event
	for {
		ev, _, err := dec.Next()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}
