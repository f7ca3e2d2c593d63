package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/vrental/gatewayauth"
	"github.com/vrental/gatewayauth/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

const auditDroppedName = "gatewayauth_audit_dropped_total"

type metricsSource interface {
	MetricsSnapshot() gatewayauth.MetricsSnapshot
	AuditDropped() uint64
}

// latencyInstruments exports one histogram as a cumulative bucket gauge
// keyed by the "le" attribute plus a sample count gauge.
type latencyInstruments struct {
	id      gatewayauth.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
	bounds  []attribute.Set
}

// OTelExporter publishes Authenticator metrics through observable
// instruments read on every collection.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
	counters     map[gatewayauth.MetricID]metric.Int64ObservableCounter
	latency      []latencyInstruments
	auditDropped metric.Int64ObservableCounter
}

// NewOTelExporter registers observable instruments for every gateway auth
// metric on meter.
func NewOTelExporter(meter metric.Meter, auth *gatewayauth.Authenticator) (*OTelExporter, error) {
	if auth == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, auth)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{
		source:   source,
		counters: make(map[gatewayauth.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
	}
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		c, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters[def.ID] = c
		observables = append(observables, c)
	}

	for _, def := range internaldefs.HistogramDefs {
		li := latencyInstruments{id: def.ID}
		var err error
		if li.buckets, err = meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count per upper bound."),
		); err != nil {
			return nil, fmt.Errorf("histogram %s buckets: %w", def.Name, err)
		}
		if li.count, err = meter.Int64ObservableGauge(def.Name+"_count",
			metric.WithDescription(def.Help+" Sample count."),
		); err != nil {
			return nil, fmt.Errorf("histogram %s count: %w", def.Name, err)
		}
		for _, suffix := range internaldefs.HistogramBoundSuffix {
			li.bounds = append(li.bounds, attribute.NewSet(attribute.String("le", suffix)))
		}
		e.latency = append(e.latency, li)
		observables = append(observables, li.buckets, li.count)
	}

	dropped, err := meter.Int64ObservableCounter(auditDroppedName,
		metric.WithDescription("Audit events dropped by the dispatcher."),
	)
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", auditDroppedName, err)
	}
	e.auditDropped = dropped
	observables = append(observables, dropped)

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for id, c := range e.counters {
		o.ObserveInt64(c, int64(snap.Counters[id]))
	}
	for _, li := range e.latency {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[li.id]))
		for i, set := range li.bounds {
			o.ObserveInt64(li.buckets, int64(cumulative[i]), metric.WithAttributeSet(set))
		}
		o.ObserveInt64(li.count, int64(cumulative[len(cumulative)-1]))
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
