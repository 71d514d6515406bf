// Package itinerary validates and exports structured trip itineraries.
package itinerary

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/ashureev/trip-planner/internal/domain"
	"github.com/go-playground/validator/v10"
)

// FieldError is one failed constraint, addressed by its JSON path.
type FieldError struct {
	Field string
	Rule  string
}

func (e FieldError) String() string {
	return e.Field + ": " + e.Rule
}

// ValidationError lists every failed constraint of a candidate itinerary.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.String())
	}
	return "invalid itinerary: " + strings.Join(parts, "; ")
}

// Validator checks candidate itineraries against the itinerary schema.
type Validator struct {
	v *validator.Validate
}

// NewValidator creates a validator that reports fields by their JSON names.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Validate applies defaults to it and checks it. The returned error is a
// *ValidationError when constraints fail.
func (val *Validator) Validate(it *domain.Itinerary) error {
	applyDefaults(it)

	err := val.v.Struct(it)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate itinerary: %w", err)
	}

	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field: trimRoot(fe.Namespace()),
			Rule:  describe(fe),
		})
	}
	return out
}

// Decode parses a raw candidate and validates it.
func (val *Validator) Decode(raw []byte) (domain.Itinerary, error) {
	var it domain.Itinerary
	if err := json.Unmarshal(raw, &it); err != nil {
		return domain.Itinerary{}, fmt.Errorf("decode itinerary: %w", err)
	}
	if err := val.Validate(&it); err != nil {
		return domain.Itinerary{}, err
	}
	return it, nil
}

func applyDefaults(it *domain.Itinerary) {
	for d := range it.Days {
		if it.Days[d].Events == nil {
			it.Days[d].Events = []domain.Event{}
		}
		for e := range it.Days[d].Events {
			if it.Days[d].Events[e].EventType == "" {
				it.Days[d].Events[e].EventType = domain.DefaultEventType
			}
		}
	}
	if it.Days == nil {
		it.Days = []domain.Day{}
	}
}

func trimRoot(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "gte":
		return "must be at least " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
