package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leonardotrapani/interpret/internal/aggregator"
	"github.com/leonardotrapani/interpret/internal/translator"
)

type translatorFunc func(ctx context.Context, text, src, dst string) (string, error)

func (f translatorFunc) Translate(ctx context.Context, text, src, dst string) (string, error) {
	return f(ctx, text, src, dst)
}

func commit(t *testing.T, agg *aggregator.Aggregator, texts ...string) []aggregator.Segment {
	t.Helper()
	segs := make([]aggregator.Segment, len(texts))
	for i, text := range texts {
		segs[i] = aggregator.Segment{Seq: uint64(i + 1), Text: text, IsFinal: true, Language: "en"}
		if err := agg.CommitSegment(segs[i]); err != nil {
			t.Fatalf("CommitSegment(%d) error = %v", i+1, err)
		}
	}
	return segs
}

func TestDispatcher_DoubleFailureMarksUnavailable(t *testing.T) {
	agg := aggregator.New()
	tr := translator.NewScriptedTranslator()
	tr.FailNext("b", 2)

	d := New(context.Background(), tr, agg, nil)
	for _, seg := range commit(t, agg, "a", "b", "c") {
		d.Dispatch(seg, "zh")
	}
	d.Wait()

	if got, want := agg.Target(), "[zh] a\n[zh] c"; got != want {
		t.Errorf("Target() = %q, want %q", got, want)
	}
	seg, _ := agg.Segment(2)
	if seg.Status != aggregator.Unavailable {
		t.Errorf("segment 2 status = %v, want unavailable", seg.Status)
	}
	if tr.Calls() != 4 {
		t.Errorf("Calls() = %d, want 4 (one retry for b)", tr.Calls())
	}
}

func TestDispatcher_RetrySucceeds(t *testing.T) {
	agg := aggregator.New()
	tr := translator.NewScriptedTranslator()
	tr.FailNext("Hello", 1)

	d := New(context.Background(), tr, agg, nil)
	seg := commit(t, agg, "Hello")[0]
	d.Dispatch(seg, "zh")
	d.Wait()

	if agg.Target() != "你好" {
		t.Errorf("Target() = %q, want 你好", agg.Target())
	}
}

func TestDispatcher_OrderIndependentOfCompletion(t *testing.T) {
	agg := aggregator.New()
	const n = 5
	tr := translatorFunc(func(ctx context.Context, text, src, dst string) (string, error) {
		var seq int
		fmt.Sscanf(text, "s%d", &seq)
		time.Sleep(time.Duration(n-seq) * 10 * time.Millisecond)
		return "t" + text[1:], nil
	})

	d := New(context.Background(), tr, agg, nil)
	var texts []string
	for i := 1; i <= n; i++ {
		texts = append(texts, fmt.Sprintf("s%d", i))
	}
	for _, seg := range commit(t, agg, texts...) {
		d.Dispatch(seg, "zh")
	}
	d.Wait()

	if got, want := agg.Target(), "t1\nt2\nt3\nt4\nt5"; got != want {
		t.Errorf("Target() = %q, want %q", got, want)
	}
}

func TestDispatcher_CancelIsTotal(t *testing.T) {
	agg := aggregator.New()
	release := make(chan struct{})
	var started atomic.Int32
	tr := translatorFunc(func(ctx context.Context, text, src, dst string) (string, error) {
		started.Add(1)
		// ignores ctx on purpose: results still come back after Cancel
		<-release
		return "late " + text, nil
	})

	d := New(context.Background(), tr, agg, nil)
	for _, seg := range commit(t, agg, "a", "b", "c") {
		d.Dispatch(seg, "zh")
	}
	for started.Load() < 3 {
		time.Sleep(time.Millisecond)
	}

	d.Cancel()
	close(release)
	d.Wait()

	if agg.Target() != "" {
		t.Errorf("Target() = %q, want nothing after cancel", agg.Target())
	}
	if agg.Pending() != 3 {
		t.Errorf("Pending() = %d, want 3", agg.Pending())
	}
	if d.Dispatch(aggregator.Segment{Seq: 4, Text: "d"}, "zh") {
		t.Error("Dispatch after Cancel = true")
	}
	if d.Deliver(aggregator.TranslationResult{Seq: 1, Text: "x"}) {
		t.Error("Deliver after Cancel = true")
	}
	if d.MarkUnavailable(1) {
		t.Error("MarkUnavailable after Cancel = true")
	}
	if d.InFlight() != 0 {
		t.Errorf("InFlight() = %d, want 0", d.InFlight())
	}
}

func TestDispatcher_CancelStopsRetries(t *testing.T) {
	agg := aggregator.New()
	var calls atomic.Int32
	tr := translatorFunc(func(ctx context.Context, text, src, dst string) (string, error) {
		calls.Add(1)
		<-ctx.Done()
		return "", ctx.Err()
	})

	d := New(context.Background(), tr, agg, nil)
	d.Dispatch(commit(t, agg, "a")[0], "zh")
	for calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	d.Cancel()
	d.Wait()

	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	seg, _ := agg.Segment(1)
	if seg.Status != aggregator.Pending {
		t.Errorf("status = %v, want pending", seg.Status)
	}
}

func TestDispatcher_TargetSnapshot(t *testing.T) {
	agg := aggregator.New()
	tr := translatorFunc(func(ctx context.Context, text, src, dst string) (string, error) {
		return dst + ":" + text, nil
	})

	d := New(context.Background(), tr, agg, nil)
	segs := commit(t, agg, "a", "b")
	segs[1].Language = "zh"
	d.Dispatch(segs[0], "zh")
	d.Dispatch(segs[1], "en")
	d.Wait()

	for seq, want := range map[uint64]string{1: "zh", 2: "en"} {
		seg, _ := agg.Segment(seq)
		if seg.Target != want {
			t.Errorf("segment %d target = %q, want %q", seq, seg.Target, want)
		}
	}
}

func TestDispatcher_SameLanguageGoesThroughTranslator(t *testing.T) {
	agg := aggregator.New()
	var mu sync.Mutex
	var calls []string
	tr := translatorFunc(func(ctx context.Context, text, src, dst string) (string, error) {
		mu.Lock()
		calls = append(calls, src+">"+dst)
		mu.Unlock()
		return "Hello!", nil
	})

	d := New(context.Background(), tr, agg, nil)
	seg := commit(t, agg, "Hello")[0]
	seg.Language = "en-US"
	d.Dispatch(seg, "en")
	d.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 || calls[0] != "en>en" {
		t.Errorf("translator calls = %v, want [en>en]", calls)
	}
	if agg.Target() != "Hello!" {
		t.Errorf("Target() = %q, want Hello!", agg.Target())
	}
}
