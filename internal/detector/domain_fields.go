package detector

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cast"
)

// Entity types whose snapshots tocguard itself defines
const (
	EntityBuffer   = "buffer"
	EntityResource = "resource"
)

var (
	bufferNumberFields = []string{
		"current_level", "level_percent", "consumption_rate", "penetration_into_red",
		"target_size", "red_zone_percent", "yellow_zone_percent",
	}
	bufferTextFields = []string{
		"current_zone", "alert_status", "buffer_type", "buffer_category", "uom", "name",
	}

	resourceNumberFields = []string{
		"operation_count", "avg_duration", "total_duration", "bottleneck_score",
	}
	resourceTextFields = []string{"name", "drum_type", "drum_designation_method"}
)

// NewDomainFieldRegistry registers typed extractors for buffer and resource
// snapshots and limits each of the strict entity types to its registered
// fields. Other entity types keep dotted-path access.
func NewDomainFieldRegistry(strict []string) *FieldRegistry {
	r := NewFieldRegistry()

	for _, f := range bufferNumberFields {
		r.Register(EntityBuffer, f, numberField(f))
	}
	for _, f := range bufferTextFields {
		r.Register(EntityBuffer, f, textField(f))
	}
	r.Register(EntityBuffer, "is_active", boolField("is_active"))

	for _, f := range resourceNumberFields {
		r.Register(EntityResource, f, numberField(f))
	}
	for _, f := range resourceTextFields {
		r.Register(EntityResource, f, textField(f))
	}
	r.Register(EntityResource, "is_drum", boolField("is_drum"))

	for _, entityType := range strict {
		if entityType = strings.TrimSpace(entityType); entityType != "" {
			r.Strict(entityType)
		}
	}
	return r
}

// numberField reads a numeric attribute, accepting numeric text. Values that
// are not numbers are passed through for the predicate to reject.
func numberField(key string) Extractor {
	return func(data map[string]interface{}) (interface{}, bool) {
		v, ok := data[key]
		if !ok || v == nil {
			return nil, false
		}
		switch n := v.(type) {
		case json.Number, string:
			if f, err := cast.ToFloat64E(trimText(n)); err == nil {
				return f, true
			}
		}
		return v, true
	}
}

func textField(key string) Extractor {
	return func(data map[string]interface{}) (interface{}, bool) {
		v, ok := data[key]
		if !ok || v == nil {
			return nil, false
		}
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s), true
		}
		return v, true
	}
}

func boolField(key string) Extractor {
	return func(data map[string]interface{}) (interface{}, bool) {
		v, ok := data[key]
		if !ok || v == nil {
			return nil, false
		}
		if s, ok := v.(string); ok {
			if b, err := cast.ToBoolE(strings.TrimSpace(s)); err == nil {
				return b, true
			}
		}
		return v, true
	}
}

func trimText(v interface{}) interface{} {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return v
}
