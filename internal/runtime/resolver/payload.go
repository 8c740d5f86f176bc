package resolver

import (
	"fmt"
	"math"

	jsoncodec "github.com/bluesky/docrelay/internal/runtime/jsoncodec"
)

// Parameter names understood by the built-in resolvers.
const (
	ParamIndex  = "index"
	ParamKey    = "key"
	ParamBucket = "bucket"
	ParamObject = "object"

	ParamContainer = "container"
	ParamBlob      = "blob"
)

// decodePayload parses a JSON payload and narrows it by the optional index
// (array element) and key (object field) parameters.
func decodePayload(data []byte, params map[string]any) (any, error) {
	var value any
	if err := jsoncodec.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return selectValue(value, params)
}

func selectValue(value any, params map[string]any) (any, error) {
	if raw, ok := params[ParamIndex]; ok {
		idx, err := intParam(ParamIndex, raw)
		if err != nil {
			return nil, err
		}
		list, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("index %d requested on non-array payload", idx)
		}
		if idx < 0 || idx >= len(list) {
			return nil, fmt.Errorf("index %d out of range [0,%d)", idx, len(list))
		}
		value = list[idx]
	}
	if raw, ok := params[ParamKey]; ok {
		key, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("key parameter must be a string, got %T", raw)
		}
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("key %q requested on non-object payload", key)
		}
		v, ok := obj[key]
		if !ok {
			return nil, fmt.Errorf("key %q not present in payload", key)
		}
		value = v
	}
	return value, nil
}

func intParam(name string, raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%s parameter must be whole, got %v", name, v)
		}
		return int(v), nil
	}
	return 0, fmt.Errorf("%s parameter must be a number, got %T", name, raw)
}

func stringParam(params map[string]any, name, fallback string) string {
	if s, ok := params[name].(string); ok && s != "" {
		return s
	}
	return fallback
}
