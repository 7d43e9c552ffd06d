// Package repository persists projects and their parameter observations.
package repository

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// toJSON encodes an optional document column; nil stays NULL.
func toJSON[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding column: %w", err)
	}
	return data, nil
}

// fromJSON decodes an optional document column.
func fromJSON[T any](data []byte) (*T, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decoding column: %w", err)
	}
	return &v, nil
}

func encodeSubstances(substances []string) ([]byte, error) {
	if substances == nil {
		substances = []string{}
	}
	return json.Marshal(substances)
}

func decodeSubstances(data []byte) ([]string, error) {
	var out []string
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding additional substances: %w", err)
	}
	return out, nil
}

// formatValue stores observation values as text without losing precision.
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseValue(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
