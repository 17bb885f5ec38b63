package event

import (
	"iter"
	"time"
	"unsafe"
)

// MetricKind tells whether a metric value is a delta or a running total.
type MetricKind uint8

const (
	// MetricKindAbsolute values replace the previous value of the series.
	MetricKindAbsolute MetricKind = iota
	// MetricKindIncremental values add to the previous value of the series.
	MetricKindIncremental
)

// String returns the lowercase kind name.
func (k MetricKind) String() string {
	if k == MetricKindIncremental {
		return "incremental"
	}
	return "absolute"
}

// MetricSeries identifies one time series.
// Params: metric name, optional namespace, and tag set.
// Returns: series identity.
type MetricSeries struct {
	Name      string
	Namespace string
	Tags      map[string]string
}

// MetricValue is the sealed set of metric payloads.
type MetricValue interface {
	ByteSizer
	// Type returns the lowercase value type name, e.g. "counter".
	Type() string
	metricValue()
}

// Counter is a monotonically increasing value.
type Counter struct {
	Value float64
}

// Gauge is a value that can go up and down.
type Gauge struct {
	Value float64
}

// Quantile is one pre-computed summary quantile.
type Quantile struct {
	Quantile float64
	Value    float64
}

// Bucket is one cumulative histogram bucket.
type Bucket struct {
	UpperLimit float64
	Count      uint64
}

// AggregatedSummary is a client-side summary with pre-computed quantiles.
type AggregatedSummary struct {
	Quantiles []Quantile
	Count     uint64
	Sum       float64
}

// AggregatedHistogram is a client-side histogram with cumulative buckets.
type AggregatedHistogram struct {
	Buckets []Bucket
	Count   uint64
	Sum     float64
}

func (Counter) metricValue()             {}
func (Gauge) metricValue()               {}
func (AggregatedSummary) metricValue()   {}
func (AggregatedHistogram) metricValue() {}

func (Counter) Type() string             { return "counter" }
func (Gauge) Type() string               { return "gauge" }
func (AggregatedSummary) Type() string   { return "summary" }
func (AggregatedHistogram) Type() string { return "histogram" }

func (Counter) AllocatedBytes() int { return 0 }
func (Gauge) AllocatedBytes() int   { return 0 }

func (s AggregatedSummary) AllocatedBytes() int {
	return cap(s.Quantiles) * int(unsafe.Sizeof(Quantile{}))
}

func (h AggregatedHistogram) AllocatedBytes() int {
	return cap(h.Buckets) * int(unsafe.Sizeof(Bucket{}))
}

// Metric is a structured numeric observation.
type Metric struct {
	Series    MetricSeries
	Timestamp *time.Time
	Kind      MetricKind
	Value     MetricValue
}

// NewMetric creates a metric without tags or timestamp.
// Params: name series name; kind absolute/incremental; v payload.
// Returns: metric event.
func NewMetric(name string, kind MetricKind, v MetricValue) *Metric {
	return &Metric{
		Series: MetricSeries{Name: name},
		Kind:   kind,
		Value:  v,
	}
}

// WithNamespace sets the series namespace and returns the metric.
func (m *Metric) WithNamespace(namespace string) *Metric {
	m.Series.Namespace = namespace
	return m
}

// WithTags sets the series tags and returns the metric.
func (m *Metric) WithTags(tags map[string]string) *Metric {
	m.Series.Tags = tags
	return m
}

// WithTimestamp sets the observation time and returns the metric.
func (m *Metric) WithTimestamp(ts time.Time) *Metric {
	m.Timestamp = &ts
	return m
}

func (m *Metric) container() {}
func (m *Metric) event()     {}

// IntoEvents yields the metric itself, once.
func (m *Metric) IntoEvents() iter.Seq[Event] {
	return once(m)
}

// AllocatedBytes reports heap bytes held by series strings, tags, timestamp, and payload.
func (m *Metric) AllocatedBytes() int {
	total := len(m.Series.Name) + len(m.Series.Namespace)
	for key, val := range m.Series.Tags {
		total += 2*int(unsafe.Sizeof("")) + len(key) + len(val)
	}
	if m.Timestamp != nil {
		total += int(unsafe.Sizeof(time.Time{}))
	}
	if m.Value != nil {
		total += m.Value.AllocatedBytes()
	}
	return total
}
