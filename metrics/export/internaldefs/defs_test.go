package internaldefs

import (
	"testing"

	"github.com/huigrowth/careauth"
)

type staticSource struct {
	snapshot careauth.MetricsSnapshot
	dropped  uint64
}

func (s staticSource) MetricsSnapshot() careauth.MetricsSnapshot { return s.snapshot }
func (s staticSource) NotificationsDropped() uint64              { return s.dropped }

func TestBucketLabels(t *testing.T) {
	want := []string{"0.025", "0.05", "0.1", "0.25", "0.5", "1", "2.5", "+Inf"}
	got := BucketLabels()
	if len(got) != len(want) {
		t.Fatalf("expected %d labels, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("label %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestReadLaysOutDefinitions(t *testing.T) {
	r := Read(staticSource{
		snapshot: careauth.MetricsSnapshot{
			Counters: map[careauth.MetricID]uint64{
				careauth.MetricLogout: 4,
			},
			Histograms: map[careauth.MetricID][]uint64{
				careauth.MetricRemoteLatency: {1, 2, 3},
			},
		},
	})

	if r.Empty() {
		t.Fatalf("reading must not be empty")
	}
	for i, def := range CounterDefs {
		want := uint64(0)
		if def.ID == careauth.MetricLogout {
			want = 4
		}
		if r.Counters[i] != want {
			t.Fatalf("%s: expected %d, got %d", def.Name, want, r.Counters[i])
		}
	}

	h := r.Histograms[0]
	if !h.Present {
		t.Fatalf("expected latency histogram present")
	}
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if h.Cumulative != want || h.Count() != 6 {
		t.Fatalf("unexpected cumulative buckets %v", h.Cumulative)
	}
}

func TestReadEmptyWhenMetricsDisabled(t *testing.T) {
	r := Read(staticSource{snapshot: careauth.MetricsSnapshot{}})
	if !r.Empty() {
		t.Fatalf("expected empty reading")
	}
	if r.Histograms[0].Present {
		t.Fatalf("absent histogram must not be present")
	}

	if Read(staticSource{dropped: 1}).Empty() {
		t.Fatalf("dropped notifications make a reading non-empty")
	}
}
