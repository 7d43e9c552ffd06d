package evidence

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/bioeq-design-server/internal/domain"
)

// Candidate is an extraction candidate that passed validation.
type Candidate struct {
	Value     float64
	Unit      string
	Converted bool
}

// Validate checks a raw candidate and converts it into the typed shape used downstream.
// It rejects nil candidates, falsy found flags and values that are not finite numbers.
// Plausibility is not judged here.
func Validate(raw *domain.RawCandidate) (Candidate, bool) {
	if raw == nil || !truthy(raw.Found) {
		return Candidate{}, false
	}
	value, ok := ParseFloat(raw.Value)
	if !ok {
		return Candidate{}, false
	}
	c := Candidate{Value: value, Converted: raw.Converted}
	if raw.Unit != nil {
		c.Unit = strings.TrimSpace(*raw.Unit)
	}
	return c, true
}

// IsValid reports whether raw would be accepted by Validate.
func IsValid(raw *domain.RawCandidate) bool {
	_, ok := Validate(raw)
	return ok
}

// Observation builds an observation for name from an accepted candidate.
func (c Candidate) Observation(name string, article domain.Article) domain.ParameterObservation {
	return domain.ParameterObservation{
		Name:        name,
		Value:       c.Value,
		Unit:        c.Unit,
		SourceID:    article.ID,
		SourceTitle: article.Title,
		IsReliable:  true,
	}
}

// ParseFloat converts a loosely typed JSON value into a finite float64.
func ParseFloat(v interface{}) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// truthy interprets a model supplied found flag. Strings spelling a negative are false.
func truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	case json.Number:
		f, err := val.Float64()
		return err == nil && f != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "", "false", "no", "0", "null", "none":
			return false
		}
		return true
	default:
		return true
	}
}
