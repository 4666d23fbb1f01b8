package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lpfarm"

// Recorder exports runtime call metrics to Prometheus.
type Recorder struct {
	CallsTotal   *prometheus.CounterVec
	RevertsTotal *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
	Stakers      prometheus.Gauge
	Events       prometheus.Gauge
}

// NewRecorder builds the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		CallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Runtime calls by operation.",
		}, []string{"op"}),
		RevertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reverts_total",
			Help:      "Reverted runtime calls by operation.",
		}, []string{"op"}),
		CallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Runtime call latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"op"}),
		Stakers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stakers",
			Help:      "Accounts with an open stake.",
		}),
		Events: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "journal_events",
			Help:      "Ledger events journaled so far.",
		}),
	}
	if reg == nil {
		return r, nil
	}
	for _, c := range []prometheus.Collector{r.CallsTotal, r.RevertsTotal, r.CallDuration, r.Stakers, r.Events} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return nil, err
		}
	}
	return r, nil
}

// ObserveCall implements the runtime recorder hook.
func (r *Recorder) ObserveCall(op string, elapsed time.Duration, err error) {
	r.CallsTotal.WithLabelValues(op).Inc()
	r.CallDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	if err != nil {
		r.RevertsTotal.WithLabelValues(op).Inc()
	}
}

// ObserveState sets the gauges that track pool and journal size.
func (r *Recorder) ObserveState(stakers int, events uint64) {
	r.Stakers.Set(float64(stakers))
	r.Events.Set(float64(events))
}
