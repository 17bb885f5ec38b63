package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"

	"pipecore/internal/codec"
	"pipecore/internal/config"
	"pipecore/internal/event"
	"pipecore/internal/function"
	"pipecore/internal/logging"
	"pipecore/internal/promtext"
	"pipecore/internal/schema"
	"pipecore/internal/source"
	"pipecore/internal/value"
)

const stdinInput = "-"

// Runtime defines runtime inputs required to run one decode pass.
// Params: ConfigPath points to the TOML configuration (empty uses defaults);
// Inputs lists exposition files, "-" for stdin (empty reads stdin).
// Returns: Runtime value used by Run.
type Runtime struct {
	ConfigPath string
	Inputs     []string
	Stdin      io.Reader
	Stdout     io.Writer
}

type runDeps struct {
	loadConfig func(string) (*config.Config, error)
	newLogger  func(config.LogConfig) (*slog.Logger, func(), error)
	openFile   func(string) (io.ReadCloser, error)
	newSources func(*config.Config, prometheus.Gatherer, *promtext.Decoder) ([]source.Source, error)
}

// Run loads configuration, decodes every input, and writes the resulting events.
// Params: ctx controls lifecycle; rt provides config path, inputs and stdio.
// Returns: error on setup failure, cancellation, or when any input failed to decode.
func Run(ctx context.Context, rt Runtime) error {
	return runWithDeps(ctx, rt, defaultRunDeps())
}

// defaultRunDeps provides production runtime dependencies.
// Params: none.
// Returns: dependency set used by Run.
func defaultRunDeps() runDeps {
	return runDeps{
		loadConfig: config.Load,
		newLogger:  logging.New,
		openFile: func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		},
		newSources: buildSources,
	}
}

// runWithDeps executes one decode pass using injectable dependencies.
// Params: ctx lifecycle; rt runtime inputs; deps dependency set.
// Returns: run error or nil.
func runWithDeps(ctx context.Context, rt Runtime, deps runDeps) error {
	cfg, err := loadConfig(rt.ConfigPath, deps)
	if err != nil {
		return err
	}

	logger, closeLogger, err := deps.newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer closeLogger()

	inputs, err := normalizeInputs(rt.Inputs)
	if err != nil {
		return err
	}

	decoder := promtext.NewDecoder(nil)
	parseFn := promtext.NewParsePrometheusText(decoder, cfg.Decode.PreciseTypes)
	functions, err := function.NewRegistry(parseFn)
	if err != nil {
		return fmt.Errorf("register functions: %w", err)
	}

	output, err := mergeOutputs(decoderOutput(parseFn.TypeDef()), cfg.Schema, logger)
	if err != nil {
		return fmt.Errorf("build schema: %w", err)
	}
	logger.Info("schema ready",
		slog.Int("components", len(cfg.Schema.Components)+1),
		slog.String("kind", output.Kind().String()),
	)

	registry := source.NewRuntimeRegistry()
	stats, err := newDecodeStats(registry)
	if err != nil {
		return err
	}

	worker := &decodeWorker{
		functions: functions,
		output:    &output,
		batchSize: cfg.Decode.BatchSize,
		workers:   cfg.Decode.Workers,
		open:      inputOpener(rt.Stdin, deps.openFile),
		stats:     stats,
		logger:    logger,
	}

	started := time.Now()
	results, err := worker.decodeAll(ctx, inputs)
	if err != nil {
		return fmt.Errorf("decode inputs: %w", err)
	}

	sources, err := deps.newSources(cfg, registry, decoder)
	if err != nil {
		return fmt.Errorf("build sources: %w", err)
	}

	dst, closeOutput, err := openOutput(cfg.Decode.Output, rt.Stdout)
	if err != nil {
		return err
	}
	buffered := bufio.NewWriter(dst)
	encoder, err := codec.NewEncoder(cfg.Decode.Format, buffered)
	if err != nil {
		closeOutput()
		return err
	}

	summary := runSummary{}
	var failed []error
	for _, result := range results {
		if result.err != nil {
			logger.Error("input failed", slog.String("input", result.input), slog.String("error", result.err.Error()))
			failed = append(failed, result.err)
			continue
		}
		summary.inputs++
		summary.records += result.records
		for idx := range result.batches {
			if err := summary.write(encoder, &result.batches[idx]); err != nil {
				closeOutput()
				return err
			}
		}
	}

	for _, src := range sources {
		batch, err := collect(ctx, src, cfg.Sources.Timeout.Duration)
		if err != nil {
			logger.Warn("source collection incomplete", slog.String("source", src.Name()), slog.String("error", err.Error()))
		}
		if err := summary.write(encoder, &batch); err != nil {
			closeOutput()
			return err
		}
	}

	if err := buffered.Flush(); err != nil {
		closeOutput()
		return fmt.Errorf("flush output: %w", err)
	}
	closeOutput()

	summary.log(logger, len(failed), time.Since(started))
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d inputs failed: %w", len(failed), len(inputs), errors.Join(failed...))
	}
	return nil
}

func loadConfig(path string, deps runDeps) (*config.Config, error) {
	if strings.TrimSpace(path) == "" {
		cfg, err := config.Default()
		if err != nil {
			return nil, fmt.Errorf("default config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := deps.loadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// normalizeInputs defaults to stdin and rejects reading stdin twice.
func normalizeInputs(inputs []string) ([]string, error) {
	if len(inputs) == 0 {
		return []string{stdinInput}, nil
	}
	stdin := 0
	for _, input := range inputs {
		if strings.TrimSpace(input) == "" {
			return nil, fmt.Errorf("empty input path")
		}
		if input == stdinInput {
			stdin++
		}
	}
	if stdin > 1 {
		return nil, fmt.Errorf("stdin %q given more than once", stdinInput)
	}
	return inputs, nil
}

func inputOpener(stdin io.Reader, openFile func(string) (io.ReadCloser, error)) func(string) (io.ReadCloser, error) {
	if stdin == nil {
		stdin = os.Stdin
	}
	return func(input string) (io.ReadCloser, error) {
		if input == stdinInput {
			return io.NopCloser(stdin), nil
		}
		return openFile(input)
	}
}

// openOutput resolves the output destination.
// Params: path configured output, "-" for stdout; stdout override.
// Returns: writer, close function, or error.
func openOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" || path == stdinInput {
		if stdout == nil {
			stdout = os.Stdout
		}
		return stdout, func() {}, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open output %q: %w", path, err)
	}
	return file, func() { _ = file.Close() }, nil
}

// buildSources creates the sources enabled in cfg.
// Params: cfg config; gatherer runtime registry; decoder shared decoder.
// Returns: sources in output order or error for an invalid fs exclude pattern.
func buildSources(cfg *config.Config, gatherer prometheus.Gatherer, decoder *promtext.Decoder) ([]source.Source, error) {
	var out []source.Source
	if host := cfg.Sources.Host; host.Enabled {
		var scrapers []source.Scraper
		if host.CPU {
			scrapers = append(scrapers, source.CPUScraper{})
		}
		if host.RAM {
			scrapers = append(scrapers, source.RAMScraper{})
		}
		if host.Swap {
			scrapers = append(scrapers, source.SwapScraper{})
		}
		if host.FS {
			fs, err := source.NewFSScraper(host.FSExclude)
			if err != nil {
				return nil, err
			}
			scrapers = append(scrapers, fs)
		}
		out = append(out, source.NewHostSource(cfg.Global.Host, scrapers...))
	}
	if cfg.Sources.Registry.Enabled {
		out = append(out, source.NewRegistrySource(gatherer, decoder))
	}
	return out, nil
}

// collect runs one source under the configured timeout.
func collect(ctx context.Context, src source.Source, timeout time.Duration) (event.EventArray, error) {
	collectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return src.Collect(collectCtx)
}

// runSummary accumulates totals for the final log line.
type runSummary struct {
	inputs    int
	records   int
	events    int
	allocated int
	newest    time.Time
}

// write records batch totals and hands the batch to the encoder.
func (s *runSummary) write(encoder codec.Encoder, batch *event.EventArray) error {
	s.allocated += batch.AllocatedBytes()
	if logs, ok := batch.Logs(); ok {
		for _, log := range logs.All() {
			s.observe(log)
		}
	}

	written, err := encoder.Encode(batch)
	s.events += written
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// observe tracks the newest sample timestamp through the schema purpose.
func (s *runSummary) observe(log *event.LogEvent) {
	raw, ok := log.GetByPurpose(schema.PurposeTimestamp)
	if !ok {
		return
	}
	var ts time.Time
	switch typed := raw.(type) {
	case value.Integer:
		ts = time.UnixMilli(int64(typed))
	case value.Timestamp:
		ts = typed.Time
	default:
		return
	}
	if ts.After(s.newest) {
		s.newest = ts
	}
}

func (s *runSummary) log(logger *slog.Logger, failed int, elapsed time.Duration) {
	attrs := []any{
		slog.Int("inputs", s.inputs),
		slog.Int("failed", failed),
		slog.String("records", humanize.Comma(int64(s.records))),
		slog.String("events", humanize.Comma(int64(s.events))),
		slog.String("allocated", humanize.Bytes(uint64(s.allocated))),
		slog.Duration("elapsed", elapsed),
	}
	if !s.newest.IsZero() {
		attrs = append(attrs, slog.String("newest_sample", humanize.Time(s.newest)))
	}
	logger.Info("decode finished", attrs...)
}
