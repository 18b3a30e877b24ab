package settings

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// fieldRule validates one update key. apply returns the value to merge and
// whether it was valid; on invalid input apply already returns the fallback.
type fieldRule struct {
	name  string
	apply func(s *Store, raw interface{}, next *Settings) (valid bool, reason string)
}

// fieldRules lists update keys in application order. device precedes half so
// half is checked against the device resolved by the same update.
var fieldRules = []fieldRule{
	{name: "model", apply: applyModel},
	{name: "device", apply: applyDevice},
	{name: "confidence", apply: unitInterval(func(s *Settings) *float64 { return &s.Confidence }, FallbackConfidence)},
	{name: "iou_threshold", apply: unitInterval(func(s *Settings) *float64 { return &s.IOUThreshold }, FallbackIOUThreshold)},
	{name: "max_det", apply: applyMaxDetections},
	{name: "verbose", apply: boolField(func(s *Settings) *bool { return &s.Verbose })},
	{name: "agnostic_nms", apply: boolField(func(s *Settings) *bool { return &s.ClassAgnosticNMS })},
	{name: "dnn", apply: boolField(func(s *Settings) *bool { return &s.UseAlternateBackend })},
	{name: "half", apply: applyHalf},
}

func knownField(name string) bool {
	for _, r := range fieldRules {
		if r.name == name {
			return true
		}
	}
	return false
}

func applyModel(s *Store, raw interface{}, next *Settings) (bool, string) {
	id, ok := raw.(string)
	if !ok {
		next.Model = s.reg.RecommendedModel()
		return false, fmt.Sprintf("model must be a string, got %T", raw)
	}
	if valid, reason := s.reg.ValidateModel(id); !valid {
		next.Model = s.reg.RecommendedModel()
		return false, reason
	}
	next.Model = id
	return true, ""
}

func applyDevice(s *Store, raw interface{}, next *Settings) (bool, string) {
	id, ok := raw.(string)
	if !ok {
		next.Device = s.reg.RecommendedDevice()
		return false, fmt.Sprintf("device must be a string, got %T", raw)
	}
	if valid, reason := s.reg.ValidateDevice(id); !valid {
		next.Device = s.reg.RecommendedDevice()
		return false, reason
	}
	next.Device = id
	return true, ""
}

func unitInterval(field func(*Settings) *float64, fallback float64) func(*Store, interface{}, *Settings) (bool, string) {
	return func(_ *Store, raw interface{}, next *Settings) (bool, string) {
		v, ok := toFloat(raw)
		if !ok || math.IsNaN(v) || v < 0 || v > 1 {
			*field(next) = fallback
			return false, fmt.Sprintf("%v is not a number in [0,1]", raw)
		}
		*field(next) = v
		return true, ""
	}
}

func applyMaxDetections(_ *Store, raw interface{}, next *Settings) (bool, string) {
	v, ok := toFloat(raw)
	if !ok || v != math.Trunc(v) || v < MinMaxDetections || v > MaxMaxDetections {
		next.MaxDetections = FallbackMaxDetections
		return false, fmt.Sprintf("%v is not an integer in [%d,%d]", raw, MinMaxDetections, MaxMaxDetections)
	}
	next.MaxDetections = int(v)
	return true, ""
}

func boolField(field func(*Settings) *bool) func(*Store, interface{}, *Settings) (bool, string) {
	return func(_ *Store, raw interface{}, next *Settings) (bool, string) {
		v, ok := toBool(raw)
		if !ok {
			*field(next) = false
			return false, fmt.Sprintf("%v is not a boolean", raw)
		}
		*field(next) = v
		return true, ""
	}
}

// applyHalf ignores half=true when the resolved device cannot honour it.
func applyHalf(s *Store, raw interface{}, next *Settings) (bool, string) {
	v, ok := toBool(raw)
	if !ok {
		next.HalfPrecision = false
		return false, fmt.Sprintf("%v is not a boolean", raw)
	}
	if v && !s.deviceSupportsHalf(next.Device) {
		s.logger.WarnTag(logTag, "half precision not supported on %s, keeping half=%v", next.Device, next.HalfPrecision)
		return true, ""
	}
	next.HalfPrecision = v
	return true, ""
}

func toFloat(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toBool(raw interface{}) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	default:
		if f, ok := toFloat(raw); ok {
			return f != 0, true
		}
		return false, false
	}
}
