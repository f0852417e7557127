/*******************************************************************************
* Copyright 2024 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package database

import (
	"github.com/majewsky/femtoldap/internal/core"
)

// EntrySet is a set of entry references. Each DN maps to exactly one Entry
// allocation per snapshot, so pointer identity coincides with DN identity.
// Iteration order is unspecified.
type EntrySet map[*core.Entry]struct{}

// Add inserts an entry into the set.
func (s EntrySet) Add(entry *core.Entry) {
	s[entry] = struct{}{}
}

// AddSet inserts all entries of the other set.
func (s EntrySet) AddSet(other EntrySet) {
	for entry := range other {
		s[entry] = struct{}{}
	}
}

// Contains reports set membership.
func (s EntrySet) Contains(entry *core.Entry) bool {
	_, exists := s[entry]
	return exists
}

// Clone returns a shallow copy.
func (s EntrySet) Clone() EntrySet {
	result := make(EntrySet, len(s))
	result.AddSet(s)
	return result
}

// Intersection returns a new set with the entries present in both sets.
func (s EntrySet) Intersection(other EntrySet) EntrySet {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	result := make(EntrySet)
	for entry := range small {
		if large.Contains(entry) {
			result.Add(entry)
		}
	}
	return result
}

// Difference returns a new set with the entries of s that are not in other.
func (s EntrySet) Difference(other EntrySet) EntrySet {
	result := make(EntrySet)
	for entry := range s {
		if !other.Contains(entry) {
			result.Add(entry)
		}
	}
	return result
}

// Filtered returns a new set with the entries for which keep returns true.
func (s EntrySet) Filtered(keep func(*core.Entry) bool) EntrySet {
	result := make(EntrySet)
	for entry := range s {
		if keep(entry) {
			result.Add(entry)
		}
	}
	return result
}
