package loader

import (
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/leapstack-labs/dagforge/pkg/core"
)

// keyDelim never occurs in record keys, so keys such as "email.on_failure"
// inside default_args are not split into nested maps.
const keyDelim = "\x1f"

func readJSON(path string) (map[string]any, error) {
	return readKoanf(path, json.Parser())
}

func readYAML(path string) (map[string]any, error) {
	return readKoanf(path, yaml.Parser())
}

func readKoanf(path string, parser koanf.Parser) (map[string]any, error) {
	k := koanf.NewWithConf(koanf.Conf{Delim: keyDelim})
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}
	return k.Raw(), nil
}

// Decode maps a parsed record onto PipelineConfig. Unknown keys are errors.
func Decode(raw map[string]any) (*core.PipelineConfig, error) {
	var cfg core.PipelineConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "koanf",
		ErrorUnused: true,
		Result:      &cfg,
		DecodeHook:  dateToString,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode: %w", err)
	}
	if cfg.DefaultArgs == nil {
		cfg.DefaultArgs = map[string]any{}
	} else {
		cfg.DefaultArgs = normalizeNumbers(cfg.DefaultArgs).(map[string]any)
	}
	return &cfg, nil
}

// dateToString accepts YAML timestamps for start_date.
func dateToString(from, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.String {
		return data, nil
	}
	if t, ok := data.(time.Time); ok {
		return t.Format(core.StartDateLayout), nil
	}
	return data, nil
}

// normalizeNumbers turns whole floats into int64 so that passed-through
// values such as retries render as 1 rather than 1.0.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return int64(t)
		}
		return t
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeNumbers(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeNumbers(val)
		}
		return out
	default:
		return v
	}
}
