// Package promtext decodes the Prometheus text exposition format into
// structured records and metric events, and declares the static kind of the
// records for the type checker.
package promtext

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// GroupKind is the metric type declared for a group.
type GroupKind uint8

const (
	GroupUntyped GroupKind = iota
	GroupCounter
	GroupGauge
	GroupSummary
	GroupHistogram
)

// String returns the lowercase kind name used in decoded records.
func (k GroupKind) String() string {
	switch k {
	case GroupCounter:
		return "counter"
	case GroupGauge:
		return "gauge"
	case GroupSummary:
		return "summary"
	case GroupHistogram:
		return "histogram"
	default:
		return "untyped"
	}
}

// Label is one label pair of a group key.
type Label struct {
	Name  string
	Value string
}

// GroupKey identifies one data point inside a group: its label set and
// optional sample timestamp in milliseconds.
type GroupKey struct {
	Labels    []Label
	Timestamp *int64
}

// Quantile is one summary quantile.
type Quantile struct {
	Quantile float64
	Value    float64
}

// Bucket is one cumulative histogram bucket.
type Bucket struct {
	UpperBound float64
	Count      uint64
}

// Sample is one data point of a group. Which fields are meaningful depends on
// the group kind: Value for counters, gauges and untyped metrics; Quantiles,
// Sum and Count for summaries; Buckets, Sum and Count for histograms.
type Sample struct {
	Key       GroupKey
	Value     float64
	Quantiles []Quantile
	Buckets   []Bucket
	Sum       float64
	Count     uint64
}

// Group is all samples sharing one metric name and kind.
type Group struct {
	Name    string
	Kind    GroupKind
	Samples []Sample
}

// Parser turns exposition text into metric groups.
// Params: text full exposition payload.
// Returns: groups in exposition order or the grammar error.
type Parser interface {
	Parse(text string) ([]Group, error)
}

// TextParser implements Parser with the reference exposition parser.
//
// Groups are ordered by the first line that mentions them; samples keep the
// parser's order within a group.
type TextParser struct{}

// Parse parses text into ordered groups.
// Params: text full exposition payload.
// Returns: groups or the parser's error; no groups are returned on error.
func (TextParser) Parse(text string) ([]Group, error) {
	// The reference parser rejects a final sample without a line terminator.
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(strings.NewReader(text))
	if err != nil {
		return nil, err
	}

	if err := splitByTimestamp(text, families); err != nil {
		return nil, err
	}
	for _, family := range families {
		if err := checkAggregates(family); err != nil {
			return nil, err
		}
	}

	order := familyOrder(text, families)
	groups := make([]Group, 0, len(order))
	for _, name := range order {
		groups = append(groups, convertFamily(families[name]))
	}
	return groups, nil
}

// timedLines holds the sample lines of one aggregate family keyed by their
// timestamp token, in order of first appearance.
type timedLines struct {
	order []string
	lines map[string][]string
}

// splitByTimestamp re-parses summary and histogram families whose samples
// carry more than one timestamp, one timestamp at a time.
//
// The reference parser merges aggregate samples by label set only, so two
// observations of one series at different timestamps would otherwise become a
// single metric with repeated quantiles or buckets.
//
// Params: text exposition payload already accepted by the parser; families
// parsed families, updated in place.
// Returns: parser error of a partition, or nil.
func splitByTimestamp(text string, families map[string]*dto.MetricFamily) error {
	byFamily := make(map[string]*timedLines)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimLeft(line, " \t")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name := resolveFamily(lineMetricName(line), families)
		if name == "" || !isAggregate(families[name]) {
			continue
		}

		timed, ok := byFamily[name]
		if !ok {
			timed = &timedLines{lines: make(map[string][]string)}
			byFamily[name] = timed
		}
		ts := sampleTimestamp(line)
		if _, seen := timed.lines[ts]; !seen {
			timed.order = append(timed.order, ts)
		}
		timed.lines[ts] = append(timed.lines[ts], line)
	}

	for name, timed := range byFamily {
		if len(timed.order) < 2 {
			continue
		}
		family := families[name]
		header := fmt.Sprintf("# TYPE %s %s\n", name, strings.ToLower(family.GetType().String()))

		var metrics []*dto.Metric
		for _, ts := range timed.order {
			partition := header + strings.Join(timed.lines[ts], "\n") + "\n"
			var parser expfmt.TextParser
			parsed, err := parser.TextToMetricFamilies(strings.NewReader(partition))
			if err != nil {
				return err
			}
			metrics = append(metrics, parsed[name].GetMetric()...)
		}
		family.Metric = metrics
	}
	return nil
}

// checkAggregates rejects summaries and histograms that repeat a quantile or
// bucket bound within one series, which happens when a sample line is
// duplicated.
func checkAggregates(family *dto.MetricFamily) error {
	for _, metric := range family.GetMetric() {
		seen := make(map[float64]struct{})
		switch family.GetType() {
		case dto.MetricType_SUMMARY:
			for _, quantile := range metric.GetSummary().GetQuantile() {
				if _, dup := seen[quantile.GetQuantile()]; dup {
					return expfmt.ParseError{Msg: fmt.Sprintf("duplicate quantile %v for metric %s", quantile.GetQuantile(), family.GetName())}
				}
				seen[quantile.GetQuantile()] = struct{}{}
			}
		case dto.MetricType_HISTOGRAM:
			for _, bucket := range metric.GetHistogram().GetBucket() {
				if _, dup := seen[bucket.GetUpperBound()]; dup {
					return expfmt.ParseError{Msg: fmt.Sprintf("duplicate bucket %v for metric %s", bucket.GetUpperBound(), family.GetName())}
				}
				seen[bucket.GetUpperBound()] = struct{}{}
			}
		}
	}
	return nil
}

func isAggregate(family *dto.MetricFamily) bool {
	switch family.GetType() {
	case dto.MetricType_SUMMARY, dto.MetricType_HISTOGRAM:
		return true
	default:
		return false
	}
}

// sampleTimestamp returns the normalized timestamp token of a sample line,
// or "" when the sample has none.
func sampleTimestamp(line string) string {
	start := strings.IndexAny(line, "{ \t")
	if start < 0 {
		return ""
	}
	rest := line[start:]
	if rest[0] == '{' {
		rest = rest[labelBlockEnd(rest)+1:]
	}
	fields := strings.Fields(rest)
	if len(fields) < 2 {
		return ""
	}
	if ms, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
		return strconv.FormatInt(ms, 10)
	}
	return fields[1]
}

// labelBlockEnd returns the index of the brace closing the label block that
// starts s, skipping quoted label values.
func labelBlockEnd(s string) int {
	quoted := false
	for idx := 1; idx < len(s); idx++ {
		switch c := s[idx]; {
		case quoted && c == '\\':
			idx++
		case c == '"':
			quoted = !quoted
		case !quoted && c == '}':
			return idx
		}
	}
	return len(s) - 1
}

// familyOrder returns family names in order of first mention in text.
// Params: text exposition payload; families parsed families keyed by name.
// Returns: every family name exactly once.
func familyOrder(text string, families map[string]*dto.MetricFamily) []string {
	order := make([]string, 0, len(families))
	seen := make(map[string]struct{}, len(families))

	for _, line := range strings.Split(text, "\n") {
		if len(order) == len(families) {
			break
		}
		family := resolveFamily(lineMetricName(line), families)
		if family == "" {
			continue
		}
		if _, ok := seen[family]; ok {
			continue
		}
		seen[family] = struct{}{}
		order = append(order, family)
	}

	if len(order) < len(families) {
		var rest []string
		for name := range families {
			if _, ok := seen[name]; !ok {
				rest = append(rest, name)
			}
		}
		sort.Strings(rest)
		order = append(order, rest...)
	}

	return order
}

// lineMetricName extracts the metric name from a sample, TYPE or HELP line.
func lineMetricName(line string) string {
	line = strings.TrimLeft(line, " \t")
	if strings.HasPrefix(line, "#") {
		fields := strings.Fields(line[1:])
		if len(fields) >= 2 && (fields[0] == "TYPE" || fields[0] == "HELP") {
			return fields[1]
		}
		return ""
	}

	end := strings.IndexAny(line, "{ \t")
	if end < 0 {
		return strings.TrimSpace(line)
	}
	return line[:end]
}

// resolveFamily maps a sample name to its family, folding summary and
// histogram suffixes into the base name.
func resolveFamily(name string, families map[string]*dto.MetricFamily) string {
	if name == "" {
		return ""
	}
	if _, ok := families[name]; ok {
		return name
	}
	for _, suffix := range []string{"_bucket", "_count", "_sum"} {
		base, ok := strings.CutSuffix(name, suffix)
		if !ok {
			continue
		}
		family, ok := families[base]
		if !ok {
			continue
		}
		switch family.GetType() {
		case dto.MetricType_SUMMARY, dto.MetricType_HISTOGRAM:
			return base
		}
	}
	return ""
}

func convertFamily(family *dto.MetricFamily) Group {
	group := Group{
		Name:    family.GetName(),
		Kind:    groupKind(family.GetType()),
		Samples: make([]Sample, 0, len(family.GetMetric())),
	}

	for _, metric := range family.GetMetric() {
		sample := Sample{Key: groupKey(metric)}

		switch group.Kind {
		case GroupCounter:
			sample.Value = metric.GetCounter().GetValue()
		case GroupGauge:
			sample.Value = metric.GetGauge().GetValue()
		case GroupUntyped:
			sample.Value = metric.GetUntyped().GetValue()
		case GroupSummary:
			summary := metric.GetSummary()
			sample.Sum = summary.GetSampleSum()
			sample.Count = summary.GetSampleCount()
			sample.Quantiles = make([]Quantile, 0, len(summary.GetQuantile()))
			for _, quantile := range summary.GetQuantile() {
				sample.Quantiles = append(sample.Quantiles, Quantile{
					Quantile: quantile.GetQuantile(),
					Value:    quantile.GetValue(),
				})
			}
		case GroupHistogram:
			histogram := metric.GetHistogram()
			sample.Sum = histogram.GetSampleSum()
			sample.Count = histogram.GetSampleCount()
			sample.Buckets = make([]Bucket, 0, len(histogram.GetBucket()))
			for _, bucket := range histogram.GetBucket() {
				sample.Buckets = append(sample.Buckets, Bucket{
					UpperBound: bucket.GetUpperBound(),
					Count:      bucket.GetCumulativeCount(),
				})
			}
		}

		group.Samples = append(group.Samples, sample)
	}

	return group
}

func groupKind(metricType dto.MetricType) GroupKind {
	switch metricType {
	case dto.MetricType_COUNTER:
		return GroupCounter
	case dto.MetricType_GAUGE:
		return GroupGauge
	case dto.MetricType_SUMMARY:
		return GroupSummary
	case dto.MetricType_HISTOGRAM:
		return GroupHistogram
	default:
		return GroupUntyped
	}
}

func groupKey(metric *dto.Metric) GroupKey {
	key := GroupKey{Labels: make([]Label, 0, len(metric.GetLabel()))}
	for _, pair := range metric.GetLabel() {
		key.Labels = append(key.Labels, Label{Name: pair.GetName(), Value: pair.GetValue()})
	}
	if metric.TimestampMs != nil {
		ts := *metric.TimestampMs
		key.Timestamp = &ts
	}
	return key
}
