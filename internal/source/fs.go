package source

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/grafana/regexp"
	"github.com/shirou/gopsutil/v4/disk"

	"pipecore/internal/event"
)

// FSScraper reads usage of every mounted filesystem.
type FSScraper struct {
	exclude    []*regexp.Regexp
	partitions func(context.Context, bool) ([]disk.PartitionStat, error)
	usage      func(context.Context, string) (*disk.UsageStat, error)
}

// NewFSScraper creates a filesystem scraper.
// Params: exclude mountpoint regular expressions to skip.
// Returns: scraper or error for an invalid expression.
func NewFSScraper(exclude []string) (*FSScraper, error) {
	compiled := make([]*regexp.Regexp, 0, len(exclude))
	for _, pattern := range exclude {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("fs exclude %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return &FSScraper{
		exclude:    compiled,
		partitions: disk.PartitionsWithContext,
		usage:      disk.UsageWithContext,
	}, nil
}

// Name returns "fs".
func (s *FSScraper) Name() string { return "fs" }

// Scrape reads mounted filesystems and their usage.
// Params: ctx for cancellation.
// Returns: gauges tagged by `mountpoint` and `fstype`, or error when every usage read failed.
func (s *FSScraper) Scrape(ctx context.Context) ([]*event.Metric, error) {
	partitions, err := s.partitions(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("read partitions: %w", err)
	}

	var (
		out  []*event.Metric
		errs []error
	)
	for _, part := range partitions {
		mountpoint := strings.TrimSpace(part.Mountpoint)
		if mountpoint == "" || s.excluded(mountpoint) {
			continue
		}

		usage, err := s.usage(ctx, mountpoint)
		if err != nil {
			errs = append(errs, fmt.Errorf("usage %s: %w", mountpoint, err))
			continue
		}

		inodesUtil := usage.InodesUsedPercent
		if math.IsNaN(inodesUtil) || math.IsInf(inodesUtil, 0) {
			inodesUtil = 0
		}
		tags := func() map[string]string {
			return map[string]string{"mountpoint": mountpoint, "fstype": part.Fstype}
		}

		out = append(out,
			hostGauge("filesystem_total_bytes", float64(usage.Total), tags()),
			hostGauge("filesystem_used_bytes", float64(usage.Used), tags()),
			hostGauge("filesystem_free_bytes", float64(usage.Free), tags()),
			hostGauge("filesystem_utilization_percent", usage.UsedPercent, tags()),
			hostGauge("filesystem_inodes_utilization_percent", inodesUtil, tags()),
			hostGauge("filesystem_readonly", readonly(part.Opts), tags()),
		)
	}

	if len(out) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("all filesystem usage reads failed: %w", errors.Join(errs...))
	}
	return out, nil
}

func (s *FSScraper) excluded(mountpoint string) bool {
	for _, re := range s.exclude {
		if re.MatchString(mountpoint) {
			return true
		}
	}
	return false
}

// readonly maps mount options to 1 for read-only mounts, 0 otherwise.
func readonly(opts []string) float64 {
	for _, option := range opts {
		if strings.EqualFold(strings.TrimSpace(option), "ro") {
			return 1
		}
	}
	return 0
}
