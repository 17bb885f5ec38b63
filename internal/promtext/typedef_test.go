package promtext

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"pipecore/internal/event"
	"pipecore/internal/function"
	"pipecore/internal/value"
)

const mixedExposition = `# TYPE requests_total counter
requests_total{code="200"} 10 1642734998000
# TYPE rpc_duration_seconds summary
rpc_duration_seconds{quantile="0.5"} 0.05
rpc_duration_seconds_sum 17
rpc_duration_seconds_count 4
# TYPE latency histogram
latency_bucket{le="1"} 2
latency_bucket{le="+Inf"} 3
latency_sum 2.5
latency_count 3
up 1
`

// TestPreciseKind_CoversEveryRecord verifies the precise declaration accepts all record shapes.
// Params: testing.T for assertions.
// Returns: none.
func TestPreciseKind_CoversEveryRecord(t *testing.T) {
	records, err := NewDecoder(nil).Decode([]byte(mixedExposition))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}

	precise := PreciseKind()
	if !precise.IsSuperset(records.Kind()) {
		t.Fatalf("precise kind %s does not cover %s", precise, records.Kind())
	}
	coarse := CoarseKind()
	if coarse.IsSuperset(records.Kind()) {
		t.Fatalf("coarse kind unexpectedly covers decoded records")
	}
	if !precise.IsSuperset(value.Array{}.Kind()) {
		t.Fatalf("precise kind rejects an empty result")
	}
}

// TestCoarseKind_Shape verifies the default declaration of the record fields.
// Params: testing.T for assertions.
// Returns: none.
func TestCoarseKind_Shape(t *testing.T) {
	elem, ok := CoarseKind().ArrayElement()
	if !ok {
		t.Fatalf("coarse kind is not an array")
	}
	fields, open, ok := elem.ObjectFields()
	if !ok || open {
		t.Fatalf("coarse element must be a closed object: %s", elem)
	}
	if !fields["name"].Equal(value.BytesKind()) {
		t.Fatalf("name kind = %s", fields["name"])
	}
	if !fields["timestamp"].ContainsNull() || !fields["timestamp"].ContainsTimestamp() {
		t.Fatalf("timestamp kind = %s", fields["timestamp"])
	}
	if _, labelsOpen, ok := fields["labels"].ObjectFields(); !ok || !labelsOpen {
		t.Fatalf("labels kind = %s", fields["labels"])
	}
}

// TestParsePrometheusText_Call verifies the function through the registry.
// Params: testing.T for assertions.
// Returns: none.
func TestParsePrometheusText_Call(t *testing.T) {
	registry, err := function.NewRegistry(NewParsePrometheusText(nil, false))
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}

	fn, ok := registry.Lookup(FunctionName)
	if !ok {
		t.Fatalf("%s not registered", FunctionName)
	}
	if typeDef := fn.TypeDef(); !typeDef.Fallible || !typeDef.Kind.Equal(CoarseKind()) {
		t.Fatalf("unexpected type def: %+v", typeDef)
	}
	if params := fn.Parameters(); len(params) != 1 || params[0].Keyword != "value" || !params[0].Required {
		t.Fatalf("unexpected parameters: %+v", params)
	}

	out, err := registry.Call(FunctionName, function.Arguments{"value": value.Bytes("up 1")})
	if err != nil {
		t.Fatalf("Call() error: %v", err)
	}
	records, ok := out.(value.Array)
	if !ok || len(records) != 1 {
		t.Fatalf("unexpected result: %v", out)
	}

	_, err = registry.Call(FunctionName, function.Arguments{"value": value.Bytes("up")})
	var callErr *function.Error
	var parseErr *ParseError
	if !errors.As(err, &callErr) || !errors.As(err, &parseErr) {
		t.Fatalf("expected *function.Error wrapping *ParseError, got %v", err)
	}

	if _, err := registry.Call(FunctionName, function.Arguments{"value": value.Integer(1)}); !errors.Is(err, function.ErrArgumentKind) {
		t.Fatalf("expected ErrArgumentKind, got %v", err)
	}

	precise := NewParsePrometheusText(nil, true)
	if !precise.TypeDef().Kind.Equal(PreciseKind()) {
		t.Fatalf("precise function declares %s", precise.TypeDef().Kind)
	}
}

// TestMetrics_Conversion verifies groups become metric events.
// Params: testing.T for assertions.
// Returns: none.
func TestMetrics_Conversion(t *testing.T) {
	metrics, err := NewDecoder(nil).Metrics([]byte(mixedExposition))
	if err != nil {
		t.Fatalf("Metrics() error: %v", err)
	}
	if metrics.Len() != 4 {
		t.Fatalf("expected 4 metrics, got %d", metrics.Len())
	}

	counter := metrics.At(0)
	if counter.Series.Name != "requests_total" || counter.Series.Tags["code"] != "200" {
		t.Fatalf("unexpected counter series: %+v", counter.Series)
	}
	if counter.Value != (event.Counter{Value: 10}) || counter.Kind != event.MetricKindAbsolute {
		t.Fatalf("unexpected counter payload: %+v", counter.Value)
	}
	if counter.Timestamp == nil || !counter.Timestamp.Equal(time.UnixMilli(1642734998000)) {
		t.Fatalf("unexpected counter timestamp: %v", counter.Timestamp)
	}

	summary, ok := metrics.At(1).Value.(event.AggregatedSummary)
	if !ok || summary.Count != 4 || summary.Sum != 17 || len(summary.Quantiles) != 1 {
		t.Fatalf("unexpected summary: %+v", metrics.At(1).Value)
	}
	histogram, ok := metrics.At(2).Value.(event.AggregatedHistogram)
	if !ok || histogram.Count != 3 || len(histogram.Buckets) != 2 {
		t.Fatalf("unexpected histogram: %+v", metrics.At(2).Value)
	}
	if gauge, ok := metrics.At(3).Value.(event.Gauge); !ok || gauge.Value != 1 {
		t.Fatalf("untyped sample should become a gauge: %+v", metrics.At(3).Value)
	}

	if _, err := NewDecoder(nil).Metrics([]byte("broken{")); err == nil {
		t.Fatalf("expected error for malformed input")
	}
}

// TestDecode_RegistryRoundTrip decodes text written by a client registry.
// Params: testing.T for assertions.
// Returns: none.
func TestDecode_RegistryRoundTrip(t *testing.T) {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "app_requests_total",
		Help: "Requests handled.",
	}, []string{"code"})
	inflight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "app_inflight",
		Help: "Requests in flight.",
	})
	registry.MustRegister(requests, inflight)
	requests.WithLabelValues("200").Add(3)
	inflight.Set(2)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	var buf bytes.Buffer
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, family); err != nil {
			t.Fatalf("MetricFamilyToText() error: %v", err)
		}
	}

	records, err := NewDecoder(nil).Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode() error: %v\n%s", err, buf.String())
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	byName := map[string]value.Object{}
	for _, record := range records {
		object := record.(value.Object)
		byName[string(object["name"].(value.Bytes))] = object
	}
	counter := byName["app_requests_total"]
	if counter["type"] != value.Bytes("counter") || counter["value"] != value.Float(3) {
		t.Fatalf("unexpected counter record: %v", counter)
	}
	if counter["labels"].(value.Object)["code"] != value.Bytes("200") {
		t.Fatalf("unexpected counter labels: %v", counter["labels"])
	}
	if gauge := byName["app_inflight"]; gauge["type"] != value.Bytes("gauge") || gauge["value"] != value.Float(2) {
		t.Fatalf("unexpected gauge record: %v", gauge)
	}
	if !strings.Contains(buf.String(), "# HELP app_inflight") {
		t.Fatalf("exposition text lacks HELP lines:\n%s", buf.String())
	}
}
