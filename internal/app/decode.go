package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"pipecore/internal/event"
	"pipecore/internal/function"
	"pipecore/internal/promtext"
	"pipecore/internal/schema"
	"pipecore/internal/value"
)

// decodeStats are the decoder counters exported through the runtime registry.
type decodeStats struct {
	records  *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration prometheus.Histogram
}

func newDecodeStats(registerer prometheus.Registerer) (*decodeStats, error) {
	stats := &decodeStats{
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipecore_decoded_records_total",
			Help: "Records decoded from exposition inputs.",
		}, []string{"input"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipecore_decode_failures_total",
			Help: "Inputs that failed to decode.",
		}, []string{"input"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pipecore_decode_duration_seconds",
			Help:    "Time spent decoding one input.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}
	for _, collector := range []prometheus.Collector{stats.records, stats.failures, stats.duration} {
		if err := registerer.Register(collector); err != nil {
			return nil, fmt.Errorf("register decode metrics: %w", err)
		}
	}
	return stats, nil
}

// decodeResult is the outcome of one input.
type decodeResult struct {
	input   string
	batches []event.EventArray
	records int
	err     error
}

// decodeWorker runs the decode function over inputs and packs records into batches.
type decodeWorker struct {
	functions *function.Registry
	output    *schema.Output
	batchSize int
	workers   int
	open      func(string) (io.ReadCloser, error)
	stats     *decodeStats
	logger    *slog.Logger
}

// decodeAll decodes every input with at most d.workers running at once.
//
// A failing input does not stop the others; its error is kept in its result.
// Only context cancellation aborts the run.
//
// Params: ctx for cancellation; inputs in output order.
// Returns: one result per input in input order, or the context error.
func (d *decodeWorker) decodeAll(ctx context.Context, inputs []string) ([]decodeResult, error) {
	results := make([]decodeResult, len(inputs))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(d.workers)
	for idx, input := range inputs {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			results[idx] = d.decodeInput(input)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// decodeInput reads one input and turns its records into log batches.
// Params: input path or "-".
// Returns: result carrying batches or the read/decode error.
func (d *decodeWorker) decodeInput(input string) decodeResult {
	result := decodeResult{input: input}
	started := time.Now()
	defer func() {
		d.stats.duration.Observe(time.Since(started).Seconds())
	}()

	data, err := d.read(input)
	if err != nil {
		result.err = err
		d.stats.failures.WithLabelValues(input).Inc()
		return result
	}

	out, err := d.functions.Call(promtext.FunctionName, function.Arguments{"value": value.Bytes(data)})
	if err != nil {
		result.err = fmt.Errorf("decode %s: %w", input, err)
		d.stats.failures.WithLabelValues(input).Inc()
		return result
	}

	records, ok := out.(value.Array)
	if !ok {
		result.err = fmt.Errorf("decode %s: unexpected result kind %s", input, out.Kind())
		d.stats.failures.WithLabelValues(input).Inc()
		return result
	}

	result.records = len(records)
	result.batches = d.pack(input, records)
	d.stats.records.WithLabelValues(input).Add(float64(len(records)))
	d.logger.Debug("input decoded",
		slog.String("input", input),
		slog.Int("records", len(records)),
		slog.Int("batches", len(result.batches)),
	)
	return result
}

func (d *decodeWorker) read(input string) ([]byte, error) {
	reader, err := d.open(input)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", input, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", input, err)
	}
	return data, nil
}

// pack splits records into log batches of at most d.batchSize events.
// Params: input used as the events' source id; records decoded objects.
// Returns: batches in record order.
func (d *decodeWorker) pack(input string, records value.Array) []event.EventArray {
	if len(records) == 0 {
		return nil
	}

	metadata := event.Metadata{SourceID: input, Schema: d.output}
	batches := make([]event.EventArray, 0, (len(records)+d.batchSize-1)/d.batchSize)

	var current event.LogArray
	for _, record := range records {
		fields, ok := record.(value.Object)
		if !ok {
			fields = value.Object{"message": record}
		}
		current.Push(event.NewLogEvent(fields).WithMetadata(metadata))
		if current.Len() == d.batchSize {
			batches = append(batches, event.FromLogs(current))
			current = event.LogArray{}
		}
	}
	if current.Len() > 0 {
		batches = append(batches, event.FromLogs(current))
	}
	return batches
}
