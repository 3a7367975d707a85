package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/identityauth"
	"github.com/MrEthical07/identityauth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() identityauth.MetricsSnapshot
	AuditDropped() uint64
}

// histogramGauges mirrors one engine histogram as flat gauges: one per
// cumulative bucket plus count and sum.
type histogramGauges struct {
	def     internaldefs.Def
	buckets []metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
	sum     metric.Float64ObservableGauge
}

// OTelExporter publishes engine metrics as observable instruments on a
// caller-supplied meter. Every collection reads a single snapshot.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration

	counterDefs  []internaldefs.Def
	counters     []metric.Int64ObservableCounter
	histograms   []histogramGauges
	auditDropped metric.Int64ObservableCounter
}

func NewOTelExporter(meter metric.Meter, engine *identityauth.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source, counterDefs: internaldefs.CounterDefs}
	var observables []metric.Observable

	for _, def := range e.counterDefs {
		c, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, c)
		observables = append(observables, c)
	}

	buckets := internaldefs.Buckets()
	for _, def := range internaldefs.HistogramDefs {
		hg := histogramGauges{def: def}
		for _, b := range buckets {
			g, err := meter.Int64ObservableGauge(def.Name+"_bucket_le_"+b.Suffix,
				metric.WithDescription(def.Help+" Cumulative bucket le "+b.Label+"."))
			if err != nil {
				return nil, fmt.Errorf("bucket gauge %s le %s: %w", def.Name, b.Label, err)
			}
			hg.buckets = append(hg.buckets, g)
			observables = append(observables, g)
		}

		var err error
		if hg.count, err = meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription(def.Help+" Sample count.")); err != nil {
			return nil, fmt.Errorf("count gauge %s: %w", def.Name, err)
		}
		if hg.sum, err = meter.Float64ObservableGauge(def.Name+"_sum", metric.WithDescription(def.Help+" Sum in seconds."), metric.WithUnit("s")); err != nil {
			return nil, fmt.Errorf("sum gauge %s: %w", def.Name, err)
		}
		observables = append(observables, hg.count, hg.sum)
		e.histograms = append(e.histograms, hg)
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDropped.Name, metric.WithDescription(internaldefs.AuditDropped.Help))
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", internaldefs.AuditDropped.Name, err)
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
	for i, def := range e.counterDefs {
		o.ObserveInt64(e.counters[i], int64(snap.Counters[def.ID]))
	}
	for _, hg := range e.histograms {
		cumulative := internaldefs.Cumulative(snap.Histograms[hg.def.ID])
		for i, g := range hg.buckets {
			o.ObserveInt64(g, int64(cumulative[i]))
		}
		o.ObserveInt64(hg.count, int64(cumulative[len(cumulative)-1]))
		o.ObserveFloat64(hg.sum, snap.HistogramSums[hg.def.ID].Seconds())
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
