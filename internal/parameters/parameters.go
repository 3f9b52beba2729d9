// Package parameters handles generic configuration Params, a map[string]string that the
// user can set with a string like "nmpn,depth=4,radial_mu=1;2;3".
package parameters

import (
	"slices"
	"strconv"
	"strings"

	"github.com/janpfeifer/molgnn/internal/generics"
	"github.com/pkg/errors"
)

// Params represent generic configuration parameters.
type Params map[string]string

// NewFromConfigString create params from user's configuration string.
// See GetParamOr and PopParamOr to parse values from this map.
func NewFromConfigString(config string) Params {
	params := make(Params)
	parts := strings.Split(config, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		subParts := strings.SplitN(part, "=", 2) // Split into up to 2 parts to handle '=' in values
		if len(subParts) == 1 {
			params[subParts[0]] = ""
		} else if len(subParts) == 2 {
			params[subParts[0]] = subParts[1]
		}
	}
	return params
}

// PopParamOr is like GetParamOr, but it also deletes from the params map the retrieved parameter.
func PopParamOr[T interface {
	bool | int | float32 | float64 | string
}](params Params, key string, defaultValue T) (T, error) {
	value, err := GetParamOr(params, key, defaultValue)
	if err != nil {
		return value, err
	}
	delete(params, key)
	return value, nil
}

// GetParamOr attempts to parse a parameter to the given type if the key is present, or returns the defaultValue
// if not.
//
// For bool types, a key without a value is interpreted as true.
func GetParamOr[T interface {
	bool | int | float32 | float64 | string
}](params Params, key string, defaultValue T) (T, error) {
	vAny := (any)(defaultValue)
	var t T
	toT := func(v any) T { return v.(T) }
	switch vAny.(type) {
	case string:
		if value, exists := params[key]; exists {
			return toT(value), nil
		}
	case int:
		if value, exists := params[key]; exists && value != "" {
			parsedValue, err := strconv.Atoi(value)
			if err != nil {
				return t, errors.Wrapf(err, "failed to parse configuration %s=%q to int", key, value)
			}
			return toT(parsedValue), nil
		}
	case float32:
		if value, exists := params[key]; exists && value != "" {
			parsedValue, err := strconv.ParseFloat(value, 32)
			if err != nil {
				return t, errors.Wrapf(err, "failed to parse configuration %s=%q to float", key, value)
			}
			return toT(float32(parsedValue)), nil
		}
	case float64:
		if value, exists := params[key]; exists && value != "" {
			parsedValue, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return t, errors.Wrapf(err, "failed to parse configuration %s=%q to float", key, value)
			}
			return toT(parsedValue), nil
		}
	case bool:
		if value, exists := params[key]; exists {
			if value == "" || strings.ToLower(value) == "true" || value == "1" { // Empty value is considered "true"
				return toT(true), nil
			}
			if strings.ToLower(value) == "false" || value == "0" {
				return toT(false), nil
			}
			return defaultValue, errors.Errorf("failed to parse configuration %s=%q to bool", key, value)
		}
	}
	return defaultValue, nil
}

// ListSeparator separates the values of list parameters, since "," separates the parameters.
const ListSeparator = ";"

// PopFloatListOr parses a ListSeparator separated list of floats, and deletes the key from params.
// It returns defaultValue if the key is not present or if its value is empty.
func PopFloatListOr(params Params, key string, defaultValue []float32) ([]float32, error) {
	return popListOr(params, key, defaultValue, func(value string) (float32, error) {
		v, err := strconv.ParseFloat(value, 32)
		return float32(v), err
	})
}

// PopIntListOr parses a ListSeparator separated list of ints, and deletes the key from params.
// It returns defaultValue if the key is not present or if its value is empty.
func PopIntListOr(params Params, key string, defaultValue []int) ([]int, error) {
	return popListOr(params, key, defaultValue, strconv.Atoi)
}

func popListOr[T any](params Params, key string, defaultValue []T, parse func(string) (T, error)) ([]T, error) {
	value, exists := params[key]
	if !exists || value == "" {
		delete(params, key)
		return slices.Clone(defaultValue), nil
	}
	parts := strings.Split(value, ListSeparator)
	list := make([]T, 0, len(parts))
	for ii, part := range parts {
		v, err := parse(strings.TrimSpace(part))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse element #%d of configuration %s=%q", ii, key, value)
		}
		list = append(list, v)
	}
	delete(params, key)
	return list, nil
}

// CheckAllUsed returns an error listing the keys left in params, if any.
// Use it after popping all known parameters.
func CheckAllUsed(params Params) error {
	if len(params) == 0 {
		return nil
	}
	return errors.Errorf("unknown configuration parameters: %q", slices.Collect(generics.SortedKeys(params)))
}
