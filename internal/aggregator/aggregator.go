package aggregator

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrDuplicateSegment = errors.New("segment already committed")
	ErrInvalidSequence  = errors.New("segment sequence must start at 1")
	ErrClosed           = errors.New("aggregator closed")
)

// Separator joins consecutive segments in the aggregated texts.
const Separator = "\n"

type UpdateKind string

const (
	SourceAppended    UpdateKind = "source"
	TargetAppended    UpdateKind = "target"
	TargetUnavailable UpdateKind = "unavailable"
)

const subscriberCapacity = 64

// Update is published on every append. Delivery is best-effort; Snapshot is
// authoritative.
type Update struct {
	Kind UpdateKind `json:"kind"`
	Seq  uint64     `json:"seq"`
	Text string     `json:"text,omitempty"`
}

// Snapshot is a consistent view of the aggregated state.
type Snapshot struct {
	Source   string    `json:"source"`
	Target   string    `json:"target"`
	Segments []Segment `json:"segments"`
}

// Aggregator re-serializes committed segments and their translations by
// sequence number. Both texts only ever grow, in sequence order.
type Aggregator struct {
	mu sync.Mutex

	segments   map[uint64]*Segment
	waiting    map[uint64]Segment
	early      map[uint64]TranslationResult
	earlyLost  map[uint64]bool
	nextCommit uint64
	nextTarget uint64

	source      strings.Builder
	target      strings.Builder
	targetParts int

	subs   map[int]chan Update
	nextID int
	closed bool
}

func New() *Aggregator {
	return &Aggregator{
		segments:   make(map[uint64]*Segment),
		waiting:    make(map[uint64]Segment),
		early:      make(map[uint64]TranslationResult),
		earlyLost:  make(map[uint64]bool),
		nextCommit: 1,
		nextTarget: 1,
		subs:       make(map[int]chan Update),
	}
}

// CommitSegment appends seg.Text to the source text once all lower sequences
// have been committed. Re-committing a sequence fails with
// ErrDuplicateSegment.
func (a *Aggregator) CommitSegment(seg Segment) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if seg.Seq == 0 {
		return ErrInvalidSequence
	}
	if _, ok := a.waiting[seg.Seq]; ok || seg.Seq < a.nextCommit {
		return fmt.Errorf("%w: seq %d", ErrDuplicateSegment, seg.Seq)
	}

	seg.Status = Pending
	seg.Translation = ""
	seg.Target = ""
	a.waiting[seg.Seq] = seg

	for {
		next, ok := a.waiting[a.nextCommit]
		if !ok {
			break
		}
		delete(a.waiting, a.nextCommit)
		a.commitLocked(next)
		a.nextCommit++
	}

	a.advanceTargetLocked()
	return nil
}

func (a *Aggregator) commitLocked(seg Segment) {
	stored := seg
	a.segments[seg.Seq] = &stored

	if a.source.Len() > 0 {
		a.source.WriteString(Separator)
	}
	a.source.WriteString(seg.Text)
	a.publishLocked(Update{Kind: SourceAppended, Seq: seg.Seq, Text: seg.Text})

	if r, ok := a.early[seg.Seq]; ok {
		delete(a.early, seg.Seq)
		stored.Status = Applied
		stored.Translation = r.Text
		stored.Target = r.Target
	} else if a.earlyLost[seg.Seq] {
		delete(a.earlyLost, seg.Seq)
		stored.Status = Unavailable
	}
}

// ApplyTranslation resolves a Pending segment. It reports false when the
// sequence was already resolved, so duplicate deliveries are no-ops.
// Results for sequences not committed yet are held until they are.
func (a *Aggregator) ApplyTranslation(r TranslationResult) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || r.Seq == 0 {
		return false
	}

	seg, ok := a.segments[r.Seq]
	if !ok {
		if _, held := a.early[r.Seq]; held || a.earlyLost[r.Seq] {
			return false
		}
		a.early[r.Seq] = r
		return true
	}
	if seg.Status != Pending {
		return false
	}

	seg.Status = Applied
	seg.Translation = r.Text
	seg.Target = r.Target
	a.advanceTargetLocked()
	return true
}

// MarkUnavailable seals a Pending segment whose translation failed for
// good. The target text skips it.
func (a *Aggregator) MarkUnavailable(seq uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || seq == 0 {
		return false
	}

	seg, ok := a.segments[seq]
	if !ok {
		if _, held := a.early[seq]; held || a.earlyLost[seq] {
			return false
		}
		a.earlyLost[seq] = true
		return true
	}
	if seg.Status != Pending {
		return false
	}

	seg.Status = Unavailable
	a.advanceTargetLocked()
	return true
}

// advanceTargetLocked appends resolved translations in sequence order and
// stops at the first Pending segment.
func (a *Aggregator) advanceTargetLocked() {
	for a.nextTarget < a.nextCommit {
		seg := a.segments[a.nextTarget]
		switch seg.Status {
		case Pending:
			return
		case Applied:
			if seg.Translation != "" {
				if a.targetParts > 0 {
					a.target.WriteString(Separator)
				}
				a.target.WriteString(seg.Translation)
				a.targetParts++
			}
			a.publishLocked(Update{Kind: TargetAppended, Seq: seg.Seq, Text: seg.Translation})
		case Unavailable:
			a.publishLocked(Update{Kind: TargetUnavailable, Seq: seg.Seq})
		}
		a.nextTarget++
	}
}

func (a *Aggregator) publishLocked(u Update) {
	for _, ch := range a.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

// Subscribe returns a channel of updates and a func to stop receiving.
// The channel is closed on unsubscribe or Close.
func (a *Aggregator) Subscribe() (<-chan Update, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ch := make(chan Update, subscriberCapacity)
	if a.closed {
		close(ch)
		return ch, func() {}
	}

	id := a.nextID
	a.nextID++
	a.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			if c, ok := a.subs[id]; ok {
				delete(a.subs, id)
				close(c)
			}
		})
	}
}

// Close freezes the aggregator: later commits and results are rejected and
// subscribers are released. The accumulated texts remain readable.
func (a *Aggregator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}
	a.closed = true
	for id, ch := range a.subs {
		delete(a.subs, id)
		close(ch)
	}
}

func (a *Aggregator) Source() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.source.String()
}

func (a *Aggregator) Target() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.target.String()
}

// Segment returns a copy of the committed segment seq.
func (a *Aggregator) Segment(seq uint64) (Segment, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	seg, ok := a.segments[seq]
	if !ok {
		return Segment{}, false
	}
	return *seg, true
}

// Segments returns committed segments in sequence order.
func (a *Aggregator) Segments() []Segment {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.segmentsLocked()
}

func (a *Aggregator) segmentsLocked() []Segment {
	out := make([]Segment, 0, a.nextCommit-1)
	for seq := uint64(1); seq < a.nextCommit; seq++ {
		out = append(out, *a.segments[seq])
	}
	return out
}

// Pending counts committed segments whose translation is unresolved.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, seg := range a.segments {
		if seg.Status == Pending {
			n++
		}
	}
	return n
}

func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{
		Source:   a.source.String(),
		Target:   a.target.String(),
		Segments: a.segmentsLocked(),
	}
}
