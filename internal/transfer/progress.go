// Package transfer tracks the progress of uploads and downloads while
// their bytes stream through the file system.
package transfer

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

type Direction string

const (
	Upload   Direction = "upload"
	Download Direction = "download"
)

// Tracker holds the transfers in flight.
type Tracker struct {
	transfers map[string]*Progress
	mu        sync.RWMutex
}

// Progress counts the bytes of a single transfer. It is safe to read a
// Snapshot while the transfer is running.
type Progress struct {
	tracker   *Tracker
	id        string
	name      string
	direction Direction
	total     int64
	start     time.Time

	mu    sync.RWMutex
	bytes int64
	last  time.Time
}

// Snapshot is a point in time view of a transfer.
type Snapshot struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Direction     Direction     `json:"direction"`
	Bytes         int64         `json:"bytes"`
	TotalBytes    int64         `json:"total_bytes,omitempty"`
	StartTime     time.Time     `json:"start_time"`
	Speed         float64       `json:"speed"` // bytes per second
	EstimatedTime time.Duration `json:"eta,omitempty"`
}

func NewTracker() *Tracker {
	return &Tracker{
		transfers: make(map[string]*Progress),
	}
}

// Start begins tracking a transfer of total bytes, or of unknown size when
// total is not positive.
func (t *Tracker) Start(name string, direction Direction, total int64) *Progress {
	now := time.Now()
	p := &Progress{
		tracker:   t,
		id:        uuid.New().String(),
		name:      name,
		direction: direction,
		total:     total,
		start:     now,
		last:      now,
	}
	t.mu.Lock()
	t.transfers[p.id] = p
	t.mu.Unlock()
	return p
}

// Get returns the transfer with the given id.
func (t *Tracker) Get(id string) (*Progress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.transfers[id]
	return p, ok
}

// List returns snapshots of every transfer in flight, oldest first.
func (t *Tracker) List() []Snapshot {
	t.mu.RLock()
	out := make([]Snapshot, 0, len(t.transfers))
	for _, p := range t.transfers {
		out = append(out, p.Snapshot())
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

func (p *Progress) ID() string {
	return p.id
}

// Add records n more bytes.
func (p *Progress) Add(n int64) {
	if n <= 0 {
		return
	}
	p.mu.Lock()
	p.bytes += n
	p.last = time.Now()
	p.mu.Unlock()
}

// Finish stops tracking the transfer and returns its final snapshot.
func (p *Progress) Finish() Snapshot {
	s := p.Snapshot()
	p.tracker.mu.Lock()
	delete(p.tracker.transfers, p.id)
	p.tracker.mu.Unlock()
	return s
}

func (p *Progress) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Snapshot{
		ID:         p.id,
		Name:       p.name,
		Direction:  p.direction,
		Bytes:      p.bytes,
		TotalBytes: p.total,
		StartTime:  p.start,
	}
	if elapsed := p.last.Sub(p.start).Seconds(); elapsed > 0 {
		s.Speed = float64(p.bytes) / elapsed
	}
	if s.Speed > 0 && p.total > p.bytes {
		s.EstimatedTime = time.Duration(float64(p.total-p.bytes) / s.Speed * float64(time.Second))
	}
	return s
}

// Reader counts everything read from r.
func (p *Progress) Reader(r io.Reader) io.Reader {
	return &countingReader{r: r, p: p}
}

// Writer counts everything written to w.
func (p *Progress) Writer(w io.Writer) io.Writer {
	return &countingWriter{w: w, p: p}
}

type countingReader struct {
	r io.Reader
	p *Progress
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	c.p.Add(int64(n))
	return n, err
}

type countingWriter struct {
	w io.Writer
	p *Progress
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	c.p.Add(int64(n))
	return n, err
}

func (s Snapshot) String() string {
	out := fmt.Sprintf("%s %s: %s", s.Direction, s.Name, FormatBytes(s.Bytes))
	if s.TotalBytes > 0 {
		out += fmt.Sprintf("/%s (%.1f%%)", FormatBytes(s.TotalBytes), float64(s.Bytes)/float64(s.TotalBytes)*100)
	}
	if s.Speed > 0 {
		out += fmt.Sprintf(" at %s/s", FormatBytes(int64(s.Speed)))
	}
	return out
}

// FormatBytes formats bytes into human-readable format
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		return "-" + humanize.IBytes(uint64(-bytes))
	}
	return humanize.IBytes(uint64(bytes))
}
