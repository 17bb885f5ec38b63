package promtext

import (
	"time"

	"pipecore/internal/event"
)

// Metrics parses data into metric events, one per sample.
//
// Counters become absolute counters, gauges and untyped samples become
// gauges, summaries and histograms become their aggregated forms. Labels
// become tags and sample timestamps become event timestamps.
//
// Params: data raw exposition bytes.
// Returns: metric batch or *ParseError and an empty batch.
func (d *Decoder) Metrics(data []byte) (event.MetricArray, error) {
	groups, err := d.parse(data)
	if err != nil {
		return event.MetricArray{}, err
	}

	var out event.MetricArray
	for _, group := range groups {
		for _, sample := range group.Samples {
			out.Push(metric(group, sample))
		}
	}
	return out, nil
}

func metric(group Group, sample Sample) *event.Metric {
	var payload event.MetricValue
	switch group.Kind {
	case GroupCounter:
		payload = event.Counter{Value: sample.Value}
	case GroupSummary:
		quantiles := make([]event.Quantile, 0, len(sample.Quantiles))
		for _, quantile := range sample.Quantiles {
			quantiles = append(quantiles, event.Quantile{Quantile: quantile.Quantile, Value: quantile.Value})
		}
		payload = event.AggregatedSummary{Quantiles: quantiles, Count: sample.Count, Sum: sample.Sum}
	case GroupHistogram:
		buckets := make([]event.Bucket, 0, len(sample.Buckets))
		for _, bucket := range sample.Buckets {
			buckets = append(buckets, event.Bucket{UpperLimit: bucket.UpperBound, Count: bucket.Count})
		}
		payload = event.AggregatedHistogram{Buckets: buckets, Count: sample.Count, Sum: sample.Sum}
	default:
		payload = event.Gauge{Value: sample.Value}
	}

	out := event.NewMetric(group.Name, event.MetricKindAbsolute, payload)
	if len(sample.Key.Labels) > 0 {
		tags := make(map[string]string, len(sample.Key.Labels))
		for _, label := range sample.Key.Labels {
			tags[label.Name] = label.Value
		}
		out.WithTags(tags)
	}
	if sample.Key.Timestamp != nil {
		out.WithTimestamp(time.UnixMilli(*sample.Key.Timestamp).UTC())
	}
	return out
}
