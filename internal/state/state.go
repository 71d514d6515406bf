// Package state models the per-session trip planning state and the
// process-wide snapshot store used to restore it.
//
// A State is a mapping from a closed set of keys to values of a fixed kind.
// Values are validated when they enter the mapping (Set, FromMap, JSON) and
// are deep-copied whenever they leave it, so callers never alias the
// internal storage.
package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ashureev/trip-planner/internal/domain"
	"github.com/samber/lo"
)

var (
	// ErrUnknownKey is returned for keys outside the recognized set.
	ErrUnknownKey = errors.New("unknown state key")
	// ErrKindMismatch is returned when a value does not match its key's kind.
	ErrKindMismatch = errors.New("state value has wrong type")
)

// State is the mutable key/value blob threaded through every turn.
// It is not safe for concurrent use.
type State struct {
	values map[Key]any
}

// New returns an empty state.
func New() *State {
	return &State{values: make(map[Key]any)}
}

// FromMap builds a state from a decoded JSON or YAML object.
// Null values are treated as absent.
func FromMap(m map[string]any) (*State, error) {
	s := New()
	for name, raw := range m {
		if raw == nil {
			continue
		}
		k, err := ParseKey(name)
		if err != nil {
			return nil, err
		}
		v, err := normalize(k, raw)
		if err != nil {
			return nil, err
		}
		s.values[k] = v
	}
	return s, nil
}

// Set stores v under k after validating it against the key's kind.
func (s *State) Set(k Key, v any) error {
	if !k.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownKey, k)
	}
	nv, err := normalize(k, v)
	if err != nil {
		return err
	}
	s.values[k] = nv
	return nil
}

// Get returns a copy of the value stored under k.
func (s *State) Get(k Key) (any, bool) {
	v, ok := s.values[k]
	if !ok {
		return nil, false
	}
	return cloneValue(v), true
}

// Has reports whether k is present.
func (s *State) Has(k Key) bool {
	_, ok := s.values[k]
	return ok
}

// String returns the string under k, or "" when absent.
func (s *State) String(k Key) string {
	v, _ := s.values[k].(string)
	return v
}

// Strings returns a copy of the list under k, or nil when absent.
func (s *State) Strings(k Key) []string {
	v, ok := s.values[k].([]string)
	if !ok {
		return nil
	}
	return append([]string{}, v...)
}

// Bool returns the flag under k, or false when absent.
func (s *State) Bool(k Key) bool {
	v, _ := s.values[k].(bool)
	return v
}

// Itinerary returns a copy of the itinerary under k.
func (s *State) Itinerary(k Key) (domain.Itinerary, bool) {
	v, ok := s.values[k].(domain.Itinerary)
	if !ok {
		return domain.Itinerary{}, false
	}
	return v.Clone(), true
}

// Delete removes k and reports whether it was present.
func (s *State) Delete(k Key) bool {
	if _, ok := s.values[k]; !ok {
		return false
	}
	delete(s.values, k)
	return true
}

// SetDefaults copies every entry of src whose key is missing from s.
// Existing keys are never overwritten. Returns the number of keys added.
func (s *State) SetDefaults(src *State) int {
	added := 0
	for k, v := range src.values {
		if _, ok := s.values[k]; ok {
			continue
		}
		s.values[k] = cloneValue(v)
		added++
	}
	return added
}

// Update copies every entry of src into s, overwriting existing keys.
func (s *State) Update(src *State) {
	for k, v := range src.values {
		s.values[k] = cloneValue(v)
	}
}

// AppendUnique appends the values not already present in the list under k
// and returns how many were added. A missing list is created.
func (s *State) AppendUnique(k Key, values []string) (int, error) {
	if k.Kind() != KindStringList {
		return 0, kindError(k, values)
	}
	list := s.Strings(k)
	if list == nil {
		list = []string{}
	}
	added := 0
	for _, v := range values {
		if lo.Contains(list, v) {
			continue
		}
		list = append(list, v)
		added++
	}
	s.values[k] = list
	return added, nil
}

// Append adds value to the end of the list under k.
func (s *State) Append(k Key, value string) error {
	if k.Kind() != KindStringList {
		return kindError(k, value)
	}
	list, _ := s.values[k].([]string)
	s.values[k] = append(list, value)
	return nil
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	out := &State{values: make(map[Key]any, len(s.values))}
	for k, v := range s.values {
		out.values[k] = cloneValue(v)
	}
	return out
}

// Keys returns the present keys in lexical order.
func (s *State) Keys() []Key {
	keys := lo.Keys(s.values)
	sortKeys(keys)
	return keys
}

// Len returns the number of present keys.
func (s *State) Len() int {
	return len(s.values)
}

// ToMap returns a deep copy of the state keyed by plain strings.
func (s *State) ToMap() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[string(k)] = cloneValue(v)
	}
	return out
}

// MarshalJSON encodes the state as a flat JSON object.
func (s *State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.ToMap())
}

// UnmarshalJSON replaces the contents of s with a validated JSON object.
func (s *State) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	decoded, err := FromMap(raw)
	if err != nil {
		return err
	}
	s.values = decoded.values
	return nil
}

func normalize(k Key, v any) (any, error) {
	switch k.Kind() {
	case KindString:
		if str, ok := v.(string); ok {
			return str, nil
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindStringList:
		switch list := v.(type) {
		case []string:
			return append([]string{}, list...), nil
		case []any:
			out := make([]string, 0, len(list))
			for _, item := range list {
				str, ok := item.(string)
				if !ok {
					return nil, kindError(k, v)
				}
				out = append(out, str)
			}
			return out, nil
		}
	case KindItinerary:
		switch it := v.(type) {
		case domain.Itinerary:
			return it.Clone(), nil
		case *domain.Itinerary:
			if it != nil {
				return it.Clone(), nil
			}
		case map[string]any:
			return decodeItinerary(k, it)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, k)
	}
	return nil, kindError(k, v)
}

func decodeItinerary(k Key, m map[string]any) (domain.Itinerary, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return domain.Itinerary{}, fmt.Errorf("%w: %s: %v", ErrKindMismatch, k, err)
	}
	var it domain.Itinerary
	if err := json.Unmarshal(data, &it); err != nil {
		return domain.Itinerary{}, fmt.Errorf("%w: %s: %v", ErrKindMismatch, k, err)
	}
	return it, nil
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case []string:
		return append([]string{}, val...)
	case domain.Itinerary:
		return val.Clone()
	default:
		return v
	}
}

func kindError(k Key, v any) error {
	return fmt.Errorf("%w: %s wants %s, got %T", ErrKindMismatch, k, k.Kind(), v)
}
