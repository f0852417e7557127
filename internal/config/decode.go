/*******************************************************************************
* Copyright 2024 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package config

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"
)

// StringSet is an unordered set of strings. Sorted() gives deterministic
// iteration for attribute emission.
type StringSet map[string]struct{}

// Has reports set membership.
func (s StringSet) Has(v string) bool {
	_, exists := s[v]
	return exists
}

// Sorted returns the members in lexicographic order.
func (s StringSet) Sorted() []string {
	result := make([]string, 0, len(s))
	for v := range s {
		result = append(result, v)
	}
	sort.Strings(result)
	return result
}

// The decode helpers below convert the untyped values that the TOML decoder
// hands to UnmarshalTOML. List-typed fields accept either a scalar or a list.

func asTable(v any) (map[string]any, error) {
	table, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a table, got %T", v)
	}
	return table, nil
}

func decodeScalar(v any) (string, error) {
	switch value := v.(type) {
	case string:
		return value, nil
	case int64:
		return strconv.FormatInt(value, 10), nil
	case float64:
		return strconv.FormatFloat(value, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(value), nil
	default:
		return "", fmt.Errorf("expected a scalar, got %T", v)
	}
}

func decodeString(v any) (string, error) {
	value, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected a string, got %T", v)
	}
	return value, nil
}

func decodeStringList(v any) ([]string, error) {
	if list, ok := v.([]any); ok {
		result := make([]string, 0, len(list))
		for _, item := range list {
			value, err := decodeScalar(item)
			if err != nil {
				return nil, err
			}
			result = append(result, value)
		}
		return result, nil
	}
	value, err := decodeScalar(v)
	if err != nil {
		return nil, err
	}
	return []string{value}, nil
}

func decodeStringSet(v any) (StringSet, error) {
	list, err := decodeStringList(v)
	if err != nil {
		return nil, err
	}
	result := make(StringSet, len(list))
	for _, value := range list {
		result[value] = struct{}{}
	}
	return result, nil
}

func decodeError(kind, key string, err error) error {
	return fmt.Errorf("%s field %q: %w", kind, key, err)
}

func decodeUUID(v any) (uuid.UUID, error) {
	value, err := decodeString(v)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(value)
}
