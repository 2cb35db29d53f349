package internaldefs

import (
	"strconv"

	"github.com/huigrowth/careauth"
)

// CounterDef names one store counter for exporters.
type CounterDef struct {
	ID   careauth.MetricID
	Name string
	Help string
}

// HistogramDef names one store histogram for exporters.
type HistogramDef struct {
	ID   careauth.MetricID
	Name string
	Help string
}

// NotificationsDroppedName is the counter for notifications lost to a full
// dispatcher queue.
const NotificationsDroppedName = "careauth_notifications_dropped_total"

var CounterDefs = []CounterDef{
	{ID: careauth.MetricLoginSuccess, Name: "careauth_login_success_total", Help: "Successful logins."},
	{ID: careauth.MetricLoginFailure, Name: "careauth_login_failure_total", Help: "Failed logins."},
	{ID: careauth.MetricRegisterSuccess, Name: "careauth_register_success_total", Help: "Successful registrations."},
	{ID: careauth.MetricRegisterFailure, Name: "careauth_register_failure_total", Help: "Failed registrations."},
	{ID: careauth.MetricLogout, Name: "careauth_logout_total", Help: "Logout calls."},
	{ID: careauth.MetricUnauthorized, Name: "careauth_unauthorized_total", Help: "Sessions ended by a backend 401."},
	{ID: careauth.MetricRefreshSuccess, Name: "careauth_refresh_success_total", Help: "Successful token refreshes."},
	{ID: careauth.MetricRefreshFailure, Name: "careauth_refresh_failure_total", Help: "Failed token refreshes."},
	{ID: careauth.MetricProfileUpdate, Name: "careauth_profile_update_total", Help: "Profile updates saved to the backend."},
	{ID: careauth.MetricPasswordChange, Name: "careauth_password_change_total", Help: "Password changes."},
	{ID: careauth.MetricStaleDiscarded, Name: "careauth_stale_response_discarded_total", Help: "Responses dropped because a newer attempt or logout superseded them."},
	{ID: careauth.MetricPersistWrite, Name: "careauth_persist_write_total", Help: "Successful writes and deletes of the persisted session."},
	{ID: careauth.MetricPersistFailure, Name: "careauth_persist_failure_total", Help: "Failed writes and deletes of the persisted session."},
	{ID: careauth.MetricHydrateSuccess, Name: "careauth_hydrate_success_total", Help: "Sessions restored at startup."},
	{ID: careauth.MetricHydrateFailure, Name: "careauth_hydrate_failure_total", Help: "Persisted sessions rejected at startup."},
}

var HistogramDefs = []HistogramDef{
	{ID: careauth.MetricRemoteLatency, Name: "careauth_remote_latency_seconds", Help: "Backend call latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The last
// store bucket is +Inf.
var HistogramUpperBounds = []float64{
	0.025,
	0.05,
	0.1,
	0.25,
	0.5,
	1,
	2.5,
}

// BucketLabels returns the le label of each cumulative bucket, "+Inf" last.
func BucketLabels() []string {
	out := make([]string, 0, len(HistogramUpperBounds)+1)
	for _, b := range HistogramUpperBounds {
		out = append(out, strconv.FormatFloat(b, 'g', -1, 64))
	}
	return append(out, "+Inf")
}

// Source is what the exporters read. *careauth.Store satisfies it.
type Source interface {
	MetricsSnapshot() careauth.MetricsSnapshot
	NotificationsDropped() uint64
}

// Reading is one collection from a Source, laid out in definition order:
// Counters[i] belongs to CounterDefs[i] and Histograms[i] to
// HistogramDefs[i].
type Reading struct {
	Counters   []uint64
	Histograms []HistogramReading
	Dropped    uint64

	empty bool
}

// HistogramReading holds cumulative bucket counts. Present is false when
// the store recorded no histogram for the definition.
type HistogramReading struct {
	Present    bool
	Cumulative [8]uint64
}

// Count is the total number of samples.
func (h HistogramReading) Count() uint64 {
	return h.Cumulative[len(h.Cumulative)-1]
}

// Empty reports whether the source has metrics disabled.
func (r Reading) Empty() bool {
	return r.empty
}

// Read takes one snapshot of src.
func Read(src Source) Reading {
	snapshot := src.MetricsSnapshot()
	r := Reading{
		Counters:   make([]uint64, len(CounterDefs)),
		Histograms: make([]HistogramReading, len(HistogramDefs)),
		Dropped:    src.NotificationsDropped(),
	}
	r.empty = len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && r.Dropped == 0

	for i, def := range CounterDefs {
		r.Counters[i] = snapshot.Counters[def.ID]
	}
	for i, def := range HistogramDefs {
		raw, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		r.Histograms[i] = HistogramReading{
			Present:    true,
			Cumulative: cumulativeBuckets(normalizeBuckets(raw)),
		}
	}
	return r
}

// normalizeBuckets pads or truncates raw to the store's eight buckets.
func normalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func cumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
