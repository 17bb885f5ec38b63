package source

import (
	"bytes"
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"

	"pipecore/internal/event"
	"pipecore/internal/promtext"
)

// RegistrySource exposes a Prometheus gatherer as metric events by rendering
// it in the text exposition format and decoding the result.
type RegistrySource struct {
	gatherer prometheus.Gatherer
	decoder  *promtext.Decoder
}

// NewRegistrySource creates a source over gatherer.
// Params: gatherer metric families to export; decoder shared decoder, nil selects the default.
// Returns: source.
func NewRegistrySource(gatherer prometheus.Gatherer, decoder *promtext.Decoder) *RegistrySource {
	if decoder == nil {
		decoder = promtext.NewDecoder(nil)
	}
	return &RegistrySource{gatherer: gatherer, decoder: decoder}
}

// NewRuntimeRegistry returns a registry with the Go runtime and process collectors.
func NewRuntimeRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// Name returns "registry".
func (s *RegistrySource) Name() string { return "registry" }

// Collect gathers, renders, and decodes all metric families.
// Params: ctx for cancellation.
// Returns: metric batch or gather/decode error.
func (s *RegistrySource) Collect(ctx context.Context) (event.EventArray, error) {
	if err := ctx.Err(); err != nil {
		return event.FromMetrics(event.MetricArray{}), err
	}

	text, err := s.Exposition()
	if err != nil {
		return event.FromMetrics(event.MetricArray{}), err
	}

	metrics, err := s.decoder.Metrics(text)
	if err != nil {
		return event.FromMetrics(event.MetricArray{}), fmt.Errorf("decode registry exposition: %w", err)
	}
	return event.FromMetrics(metrics), nil
}

// Exposition renders the gatherer in the text exposition format.
func (s *RegistrySource) Exposition() ([]byte, error) {
	families, err := s.gatherer.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	var buf bytes.Buffer
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, family); err != nil {
			return nil, fmt.Errorf("render %s: %w", family.GetName(), err)
		}
	}
	return buf.Bytes(), nil
}
