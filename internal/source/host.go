package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"pipecore/internal/event"
)

// HostNamespace is the namespace of every host metric.
const HostNamespace = "host"

// Scraper reads one host subsystem.
// Params: context for cancellation.
// Returns: gauge metrics or scrape error.
type Scraper interface {
	Name() string
	Scrape(ctx context.Context) ([]*event.Metric, error)
}

// CPUScraper reads total and per-core CPU utilization.
type CPUScraper struct{}

// Name returns "cpu".
func (CPUScraper) Name() string { return "cpu" }

// Scrape reads CPU utilization for total and each core.
// Params: ctx for cancellation.
// Returns: one gauge per core plus `total`, tagged by `cpu`.
func (CPUScraper) Scrape(ctx context.Context) ([]*event.Metric, error) {
	total, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, fmt.Errorf("read total CPU percent: %w", err)
	}

	perCore, err := cpu.PercentWithContext(ctx, 0, true)
	if err != nil {
		return nil, fmt.Errorf("read per-core CPU percent: %w", err)
	}

	out := make([]*event.Metric, 0, len(perCore)+1)
	if len(total) > 0 {
		out = append(out, hostGauge("cpu_utilization_percent", total[0], map[string]string{"cpu": "total"}))
	}
	for idx, util := range perCore {
		out = append(out, hostGauge("cpu_utilization_percent", util, map[string]string{"cpu": fmt.Sprintf("core%d", idx)}))
	}
	return out, nil
}

// RAMScraper reads virtual memory totals.
type RAMScraper struct{}

// Name returns "ram".
func (RAMScraper) Name() string { return "ram" }

// Scrape reads RAM state from the kernel.
// Params: ctx for cancellation.
// Returns: total/used/available bytes and utilization gauges.
func (RAMScraper) Scrape(ctx context.Context) ([]*event.Metric, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("read virtual memory: %w", err)
	}

	return []*event.Metric{
		hostGauge("memory_total_bytes", float64(vm.Total), nil),
		hostGauge("memory_used_bytes", float64(vm.Used), nil),
		hostGauge("memory_available_bytes", float64(vm.Available), nil),
		hostGauge("memory_utilization_percent", percent(vm.Used, vm.Total), nil),
	}, nil
}

// SwapScraper reads swap totals.
type SwapScraper struct{}

// Name returns "swap".
func (SwapScraper) Name() string { return "swap" }

// Scrape reads swap state from the kernel.
// Params: ctx for cancellation.
// Returns: total/used bytes and utilization gauges.
func (SwapScraper) Scrape(ctx context.Context) ([]*event.Metric, error) {
	sm, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("read swap memory: %w", err)
	}

	return []*event.Metric{
		hostGauge("swap_total_bytes", float64(sm.Total), nil),
		hostGauge("swap_used_bytes", float64(sm.Used), nil),
		hostGauge("swap_utilization_percent", percent(sm.Used, sm.Total), nil),
	}, nil
}

func percent(used, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return (float64(used) / float64(total)) * 100
}

func hostGauge(name string, v float64, tags map[string]string) *event.Metric {
	out := event.NewMetric(name, event.MetricKindAbsolute, event.Gauge{Value: v}).WithNamespace(HostNamespace)
	if tags != nil {
		out.WithTags(tags)
	}
	return out
}

// HostSource runs a fixed set of scrapers, stamps their metrics and tags
// them with the host name.
type HostSource struct {
	host     string
	scrapers []Scraper
	now      func() time.Time
}

// NewHostSource creates a host source.
// Params: host value of the `host` tag, empty leaves metrics untagged; scrapers subsystems to read, in output order.
// Returns: source.
func NewHostSource(host string, scrapers ...Scraper) *HostSource {
	return &HostSource{host: host, scrapers: scrapers, now: time.Now}
}

// Name returns "host".
func (s *HostSource) Name() string { return HostNamespace }

// Collect runs every scraper once.
//
// A failing scraper does not drop the others: their metrics are returned
// together with the joined scrape errors.
//
// Params: ctx for cancellation.
// Returns: metric batch and joined scraper errors.
func (s *HostSource) Collect(ctx context.Context) (event.EventArray, error) {
	var (
		batch event.MetricArray
		errs  []error
	)
	now := s.now().UTC()

	for _, scraper := range s.scrapers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		metrics, err := scraper.Scrape(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", scraper.Name(), err))
			continue
		}
		for _, metric := range metrics {
			if metric.Timestamp == nil {
				metric.WithTimestamp(now)
			}
			if s.host != "" {
				if metric.Series.Tags == nil {
					metric.Series.Tags = make(map[string]string, 1)
				}
				metric.Series.Tags["host"] = s.host
			}
			batch.Push(metric)
		}
	}

	return event.FromMetrics(batch), errors.Join(errs...)
}
