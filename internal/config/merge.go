/*******************************************************************************
* Copyright 2024 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package config

import (
	"github.com/google/uuid"
)

// Scalar and collection merge rules shared by all entity types: strings keep
// the existing value if non-empty, lists append unseen items in order, sets
// and maps union.

func mergeString(dst *string, other string) {
	if *dst == "" {
		*dst = other
	}
}

func mergeStringList(dst *[]string, other []string) {
	for _, item := range other {
		present := false
		for _, existing := range *dst {
			if existing == item {
				present = true
				break
			}
		}
		if !present {
			*dst = append(*dst, item)
		}
	}
}

func mergeStringSet(dst *StringSet, other StringSet) {
	if len(other) == 0 {
		return
	}
	if *dst == nil {
		*dst = make(StringSet, len(other))
	}
	for item := range other {
		(*dst)[item] = struct{}{}
	}
}

func mergeUUID(dst *uuid.UUID, other uuid.UUID) {
	if *dst == uuid.Nil {
		*dst = other
	}
}

func mergeAttributeMap(dst *map[string][]string, other map[string][]string) {
	if len(other) == 0 {
		return
	}
	if *dst == nil {
		*dst = make(map[string][]string, len(other))
	}
	for name, values := range other {
		existing := (*dst)[name]
		mergeStringList(&existing, values)
		(*dst)[name] = existing
	}
}
