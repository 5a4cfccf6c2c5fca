package detector

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/pratik-mahalle/tocguard/internal/pkg/errors"
)

// Extractor pulls one attribute out of an entity snapshot. The boolean is
// false when the attribute is absent.
type Extractor func(data map[string]interface{}) (interface{}, bool)

// FieldRegistry maps (entityType, field) to an extractor. Entity types
// marked strict only accept registered fields; every other type falls back
// to dotted-path extraction.
type FieldRegistry struct {
	mu     sync.RWMutex
	fields map[string]map[string]Extractor
	strict map[string]bool
}

// NewFieldRegistry creates an empty registry
func NewFieldRegistry() *FieldRegistry {
	return &FieldRegistry{
		fields: make(map[string]map[string]Extractor),
		strict: make(map[string]bool),
	}
}

// Register adds or overrides the extractor for a field of an entity type
func (r *FieldRegistry) Register(entityType, field string, fn Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fields[entityType] == nil {
		r.fields[entityType] = make(map[string]Extractor)
	}
	r.fields[entityType][field] = fn
}

// Strict limits an entity type to its registered fields
func (r *FieldRegistry) Strict(entityType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strict[entityType] = true
}

// Excludes reports whether a strict entity type cannot carry the field
func (r *FieldRegistry) Excludes(entityType, field string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.strict[entityType] {
		return false
	}
	_, ok := r.fields[entityType][field]
	return !ok
}

// Resolve returns the extractor for a field, or an InvalidConfiguration
// error when the field cannot be read from that entity type
func (r *FieldRegistry) Resolve(entityType, field string) (Extractor, error) {
	if strings.TrimSpace(field) == "" {
		return nil, errors.InvalidConfiguration("rule field is required")
	}

	r.mu.RLock()
	fn, ok := r.fields[entityType][field]
	strict := r.strict[entityType]
	r.mu.RUnlock()

	if ok {
		return fn, nil
	}
	if strict {
		return nil, errors.InvalidConfiguration(fmt.Sprintf("field %q is not defined for entity type %q", field, entityType))
	}
	return PathExtractor(field)
}

// PathExtractor builds an extractor for a dotted path such as
// "resource.capacity". Numeric segments index into lists.
func PathExtractor(path string) (Extractor, error) {
	segments := strings.Split(path, ".")
	for _, s := range segments {
		if s == "" {
			return nil, errors.InvalidConfiguration(fmt.Sprintf("malformed field path %q", path))
		}
	}

	return func(data map[string]interface{}) (interface{}, bool) {
		return lookupPath(data, segments)
	}, nil
}

func lookupPath(data map[string]interface{}, segments []string) (interface{}, bool) {
	var current interface{} = data

	for _, segment := range segments {
		switch node := current.(type) {
		case map[string]interface{}:
			next, exists := node[segment]
			if !exists {
				return nil, false
			}
			current = next
		case nil:
			return nil, false
		default:
			next, ok := indexValue(node, segment)
			if !ok {
				return nil, false
			}
			current = next
		}
	}

	return current, true
}

// indexValue handles lists and maps of other concrete types, e.g. the
// map[string]string or []string values produced by typed callers
func indexValue(node interface{}, segment string) (interface{}, bool) {
	v := reflect.ValueOf(node)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		idx, err := strconv.Atoi(segment)
		if err != nil || idx < 0 || idx >= v.Len() {
			return nil, false
		}
		return v.Index(idx).Interface(), true
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		item := v.MapIndex(reflect.ValueOf(segment).Convert(v.Type().Key()))
		if !item.IsValid() {
			return nil, false
		}
		return item.Interface(), true
	default:
		return nil, false
	}
}
