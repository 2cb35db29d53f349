package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/huigrowth/careauth"
	"github.com/huigrowth/careauth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// latencyInstruments observes one store histogram as a cumulative bucket
// gauge keyed by an le attribute plus a sample count gauge.
type latencyInstruments struct {
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// OTelExporter publishes store metrics through observable instruments. Its
// slices are index-aligned with the internaldefs definitions.
type OTelExporter struct {
	source       internaldefs.Source
	registration metric.Registration
	counters     []metric.Int64ObservableCounter
	latencies    []latencyInstruments
	dropped      metric.Int64ObservableCounter
	bucketAttrs  []metric.ObserveOption
}

// NewOTelExporter registers instruments on meter reading from store.
func NewOTelExporter(meter metric.Meter, store *careauth.Store) (*OTelExporter, error) {
	if store == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, store)
}

func NewOTelExporterFromSource(meter metric.Meter, source internaldefs.Source) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	for _, le := range internaldefs.BucketLabels() {
		e.bucketAttrs = append(e.bucketAttrs, metric.WithAttributes(attribute.String("le", le)))
	}

	var observables []metric.Observable
	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, ins)
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count per le bound."))
		if err != nil {
			return nil, fmt.Errorf("bucket gauge %s: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count",
			metric.WithDescription(def.Help+" Total samples."))
		if err != nil {
			return nil, fmt.Errorf("count gauge %s: %w", def.Name, err)
		}
		e.latencies = append(e.latencies, latencyInstruments{buckets: buckets, count: count})
		observables = append(observables, buckets, count)
	}

	dropped, err := meter.Int64ObservableCounter(
		internaldefs.NotificationsDroppedName,
		metric.WithDescription("Notifications dropped due to dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", internaldefs.NotificationsDroppedName, err)
	}
	e.dropped = dropped
	observables = append(observables, dropped)

	registration, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

// observe reports nothing while the store has metrics disabled.
func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	r := internaldefs.Read(e.source)
	if r.Empty() {
		return nil
	}

	for i, ins := range e.counters {
		o.ObserveInt64(ins, int64(r.Counters[i]))
	}
	for i, ins := range e.latencies {
		h := r.Histograms[i]
		if !h.Present {
			continue
		}
		for j, opt := range e.bucketAttrs {
			o.ObserveInt64(ins.buckets, int64(h.Cumulative[j]), opt)
		}
		o.ObserveInt64(ins.count, int64(h.Count()))
	}
	o.ObserveInt64(e.dropped, int64(r.Dropped))
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
