/*******************************************************************************
* Copyright 2024 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package core

import (
	"bytes"
)

// Attribute is a named list of values. The name compares case-insensitively,
// but keeps the spelling of its first occurrence for display. Values are
// opaque byte strings and may contain non-UTF-8 data.
type Attribute struct {
	Name   string
	Values [][]byte
}

// IsEmpty reports whether this attribute has no values.
func (a *Attribute) IsEmpty() bool {
	return len(a.Values) == 0
}

// HasValue reports whether the given value appears in this attribute,
// compared byte for byte.
func (a *Attribute) HasValue(value []byte) bool {
	for _, v := range a.Values {
		if bytes.Equal(v, value) {
			return true
		}
	}
	return false
}

// addValue appends the value unless an equal value is already present.
func (a *Attribute) addValue(value []byte) {
	if !a.HasValue(value) {
		a.Values = append(a.Values, value)
	}
}

// AttributeSet maps case-insensitive attribute names to attributes.
// Iteration order is unspecified.
type AttributeSet struct {
	attrs map[string]*Attribute // keyed by folded name
}

// Add appends a value to the named attribute, creating the attribute if it
// does not exist yet. Duplicate values are dropped. The spelling of the name
// is preserved from its first occurrence.
func (s *AttributeSet) Add(name string, value []byte) {
	if s.attrs == nil {
		s.attrs = make(map[string]*Attribute)
	}
	key := FoldCase(name)
	attr, exists := s.attrs[key]
	if !exists {
		attr = &Attribute{Name: name}
		s.attrs[key] = attr
	}
	attr.addValue(value)
}

// AddString is Add for text values.
func (s *AttributeSet) AddString(name, value string) {
	s.Add(name, []byte(value))
}

// Get returns the attribute with the given name (case-insensitive), or nil.
func (s AttributeSet) Get(name string) *Attribute {
	return s.attrs[FoldCase(name)]
}

// Has reports whether an attribute with the given name exists.
func (s AttributeSet) Has(name string) bool {
	return s.Get(name) != nil
}

// Len returns the number of attributes in this set.
func (s AttributeSet) Len() int {
	return len(s.attrs)
}

// All returns all attributes in unspecified order.
func (s AttributeSet) All() []*Attribute {
	result := make([]*Attribute, 0, len(s.attrs))
	for _, attr := range s.attrs {
		result = append(result, attr)
	}
	return result
}

// CheckPassword reports whether any userPassword value equals the given
// password byte for byte (the CLEAR scheme).
func (s AttributeSet) CheckPassword(password []byte) bool {
	attr := s.Get("userPassword")
	return attr != nil && attr.HasValue(password)
}

// Merge folds all attributes of the other set into this one, skipping values
// that are already present.
func (s *AttributeSet) Merge(other AttributeSet) {
	for _, attr := range other.attrs {
		for _, value := range attr.Values {
			s.Add(attr.Name, value)
		}
	}
}

// Tidy discards attributes without values.
func (s *AttributeSet) Tidy() {
	for key, attr := range s.attrs {
		if attr.IsEmpty() {
			delete(s.attrs, key)
		}
	}
}
