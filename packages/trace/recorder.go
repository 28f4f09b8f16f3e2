package trace

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultCreator is the HAR creator name written when none is configured.
const DefaultCreator = "livespec"

// Recorder accumulates entries in the order they are added. It is safe for
// concurrent use so a recording proxy can share one with its handlers.
type Recorder struct {
	mu      sync.Mutex
	runID   uuid.UUID
	creator Creator
	entries []Entry
}

// Option is a functional option for Recorder
type Option func(*Recorder)

// WithCreator sets the HAR creator block.
func WithCreator(name, version string) Option {
	return func(r *Recorder) {
		r.creator = Creator{Name: name, Version: version}
	}
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id uuid.UUID) Option {
	return func(r *Recorder) {
		r.runID = id
	}
}

func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		runID:   uuid.New(),
		creator: Creator{Name: DefaultCreator, Version: "dev"},
		entries: make([]Entry, 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunID identifies this recording; it is written as the HAR log comment.
func (r *Recorder) RunID() uuid.UUID {
	return r.runID
}

func (r *Recorder) Add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Entries returns a copy of the recorded entries.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// HAR snapshots the recording as a HAR document.
func (r *Recorder) HAR() *HAR {
	return &HAR{
		Log: Log{
			Version: HARVersion,
			Creator: r.creator,
			Entries: r.Entries(),
			Comment: "run " + r.runID.String(),
		},
	}
}
