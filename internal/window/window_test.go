package window

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	id     string
	min    int
	window time.Duration
}

func (f *fakeSource) ID() string                   { return f.id }
func (f *fakeSource) MinFailures() int             { return f.min }
func (f *fakeSource) FailureWindow() time.Duration { return f.window }

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return t0.Add(time.Duration(sec) * time.Second) }

func TestEvaluate_Threshold(t *testing.T) {
	src := &fakeSource{id: "dns-1", min: 3, window: 60 * time.Second}
	w := New()

	w.Report(src, "timeout", at(0))
	w.Report(src, "timeout", at(10))
	require.Empty(t, w.Evaluate(at(10)), "two failures are below the threshold")

	w.Report(src, "timeout", at(20))
	got := w.Evaluate(at(20))
	require.Len(t, got, 1)
	require.Equal(t, "timeout", got[0].Reason)
	require.Equal(t, 3, got[0].Count)
	require.Same(t, src, got[0].Source)
	require.Equal(t, 60*time.Second, got[0].Window)
}

func TestEvaluate_SingleFailureDefault(t *testing.T) {
	src := &fakeSource{id: "tcp-1", min: 1, window: 120 * time.Second}
	w := New()
	w.Report(src, "TCP port open on 192.0.2.1:22", at(0))
	require.Len(t, w.Evaluate(at(0)), 1)
}

func TestEvaluate_WindowBoundary(t *testing.T) {
	src := &fakeSource{id: "ping-1", min: 3, window: 60 * time.Second}
	w := New()
	for _, s := range []int{0, 30, 61} {
		w.Report(src, "no reply", at(s))
	}
	// at t=61 the failure at t=0 is 61s old and falls out
	require.Empty(t, w.Evaluate(at(61)))
	require.Equal(t, 1, w.Len())
}

func TestEvaluate_InclusiveLowerBound(t *testing.T) {
	src := &fakeSource{id: "ping-1", min: 2, window: 60 * time.Second}
	w := New()
	w.Report(src, "no reply", at(0))
	w.Report(src, "no reply", at(30))
	require.Len(t, w.Evaluate(at(60)), 1, "a failure exactly window old still counts")
}

func TestEvaluate_EndToEndAging(t *testing.T) {
	src := &fakeSource{id: "https-1", min: 3, window: 60 * time.Second}
	w := New()
	for _, s := range []int{10, 40, 70} {
		w.Report(src, "500", at(s))
	}

	got := w.Evaluate(at(70))
	require.Len(t, got, 1)
	require.Equal(t, 3, got[0].Count)

	require.Empty(t, w.Evaluate(at(145)))
	require.Zero(t, w.Len(), "aged out pairs are dropped")
}

func TestEvaluate_ReasonsCountedSeparately(t *testing.T) {
	src := &fakeSource{id: "dns-1", min: 2, window: time.Minute}
	w := New()
	w.Report(src, "timeout", at(0))
	w.Report(src, "SERVFAIL", at(1))
	require.Empty(t, w.Evaluate(at(2)))

	w.Report(src, "timeout", at(3))
	got := w.Evaluate(at(3))
	require.Len(t, got, 1)
	require.Equal(t, "timeout", got[0].Reason)
}

func TestEvaluate_PerProbeWindow(t *testing.T) {
	short := &fakeSource{id: "a", min: 1, window: 10 * time.Second}
	long := &fakeSource{id: "b", min: 1, window: 100 * time.Second}
	w := New()
	w.Report(short, "x", at(0))
	w.Report(long, "x", at(0))

	got := w.Evaluate(at(50))
	require.Len(t, got, 1)
	require.Equal(t, "b", got[0].Source.ID())
}

func TestEvaluate_SameTimestampCountsTwice(t *testing.T) {
	src := &fakeSource{id: "a", min: 2, window: time.Minute}
	w := New()
	w.Report(src, "x", at(5))
	w.Report(src, "x", at(5))
	require.Len(t, w.Evaluate(at(5)), 1)
}

func TestReport_Concurrent(t *testing.T) {
	const probes, perProbe = 32, 50
	w := New()
	srcs := make([]*fakeSource, probes)
	for i := range srcs {
		srcs[i] = &fakeSource{id: fmt.Sprintf("p%02d", i), min: perProbe, window: time.Hour}
	}

	var wg sync.WaitGroup
	for _, src := range srcs {
		wg.Add(1)
		go func(src *fakeSource) {
			defer wg.Done()
			for j := 0; j < perProbe; j++ {
				w.Report(src, "down", at(j))
			}
		}(src)
	}
	// evaluations racing with reports must not corrupt anything
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			_ = w.Evaluate(at(0))
		}
	}()
	wg.Wait()
	<-done

	got := w.Evaluate(at(perProbe))
	require.Len(t, got, probes)
	for i, e := range got {
		require.Equal(t, srcs[i].id, e.Source.ID())
		require.Equal(t, perProbe, e.Count)
	}
}
