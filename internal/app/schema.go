package app

import (
	"fmt"
	"log/slog"

	"pipecore/internal/config"
	"pipecore/internal/function"
	"pipecore/internal/schema"
	"pipecore/internal/value"
)

// decoderComponent names the decoder's own output in schema logs.
const decoderComponent = "parse_prometheus_text"

// decoderOutput derives the per-event schema of decoded records from the
// function's declared type.
// Params: typeDef declared result of the decode function.
// Returns: output describing one record, with `timestamp` bound to its purpose.
func decoderOutput(typeDef function.TypeDef) schema.Output {
	record, ok := typeDef.Kind.ArrayElement()
	if !ok {
		record = value.ObjectOf(nil, true)
	}
	return schema.FromParts(record, map[schema.Purpose]value.Path{
		schema.PurposeTimestamp: value.NewPath("timestamp"),
	})
}

// componentOutput builds the output declared by one configured component.
// Params: component config, validated by config.Load.
// Returns: output or error for unparsable paths/kinds.
func componentOutput(component config.ComponentConfig) (schema.Output, error) {
	out := schema.Empty()
	for idx, field := range component.Fields {
		path, err := value.ParsePath(field.Path)
		if err != nil {
			return schema.Output{}, fmt.Errorf("component %q field %d: %w", component.Name, idx, err)
		}
		kind, err := value.ParseKind(field.Kind)
		if err != nil {
			return schema.Output{}, fmt.Errorf("component %q field %d: %w", component.Name, idx, err)
		}
		out.DefineField(path, kind, schema.Purpose(field.Purpose))
	}
	return out, nil
}

// mergeOutputs merges the decoder output with every configured component in
// configuration order, later components winning purpose collisions.
//
// In strict mode the first collision aborts; otherwise collisions are logged.
//
// Params: base decoder output; cfg schema section; logger for conflict warnings.
// Returns: merged output or conflict/config error.
func mergeOutputs(base schema.Output, cfg config.SchemaConfig, logger *slog.Logger) (schema.Output, error) {
	merged := base.Clone()
	for _, component := range cfg.Components {
		out, err := componentOutput(component)
		if err != nil {
			return schema.Output{}, err
		}

		if cfg.StrictPurposes {
			if err := merged.MergeStrict(out); err != nil {
				return schema.Output{}, fmt.Errorf("merge component %q: %w", component.Name, err)
			}
			continue
		}

		for _, conflict := range merged.Merge(out) {
			logger.Warn("schema purpose overridden",
				slog.String("component", component.Name),
				slog.String("purpose", string(conflict.Purpose)),
				slog.String("previous", conflict.Existing.String()),
				slog.String("path", conflict.Incoming.String()),
			)
		}
	}
	return merged, nil
}
