package strategy

import "github.com/yanun0323/errors"

// Settings maps survive a JSON round-trip through the settings store,
// so numbers may come back as float64 regardless of how they went in.

func floatSetting(settings map[string]any, key string, out *float64) error {
	v, ok := settings[key]
	if !ok {
		return nil
	}
	switch n := v.(type) {
	case float64:
		*out = n
	case float32:
		*out = float64(n)
	case int:
		*out = float64(n)
	case int64:
		*out = float64(n)
	default:
		return errors.Errorf("setting %s: expected number, got %T", key, v)
	}
	return nil
}

func intSetting(settings map[string]any, key string, out *int) error {
	v, ok := settings[key]
	if !ok {
		return nil
	}
	switch n := v.(type) {
	case int:
		*out = n
	case int64:
		*out = int(n)
	case float64:
		*out = int(n)
	default:
		return errors.Errorf("setting %s: expected number, got %T", key, v)
	}
	return nil
}
