/*******************************************************************************
* Copyright 2024 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package core

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// FilterKind enumerates the supported filter node types.
type FilterKind int

const (
	// FilterAnd is true iff all children are true. The empty conjunction is true.
	FilterAnd FilterKind = iota
	// FilterOr is true iff any child is true. The empty disjunction is false.
	FilterOr
	// FilterNot negates its single child.
	FilterNot
	// FilterEquality matches entries whose named attribute contains the exact value.
	FilterEquality
	// FilterPresent matches entries that have the named attribute.
	FilterPresent
	// FilterSubstrings matches attribute values against an initial/any/final pattern.
	FilterSubstrings
	// FilterUnsupported stands in for any filter type this server does not
	// implement. It never matches.
	FilterUnsupported
)

// Filter is one node of a search filter tree.
type Filter struct {
	Kind     FilterKind
	Children []Filter // And, Or; exactly one element for Not
	Attr     string   // Equality, Present, Substrings
	Value    []byte   // Equality
	Initial  string   // Substrings; "" means absent
	Any      []string // Substrings
	Final    string   // Substrings; "" means absent
}

// String renders the filter in the style of RFC 4515, for logging.
func (f Filter) String() string {
	var sb strings.Builder
	f.render(&sb)
	return sb.String()
}

func (f Filter) render(sb *strings.Builder) {
	switch f.Kind {
	case FilterAnd, FilterOr, FilterNot:
		sb.WriteByte('(')
		switch f.Kind {
		case FilterAnd:
			sb.WriteByte('&')
		case FilterOr:
			sb.WriteByte('|')
		case FilterNot:
			sb.WriteByte('!')
		}
		for _, child := range f.Children {
			child.render(sb)
		}
		sb.WriteByte(')')
	case FilterEquality:
		sb.WriteByte('(')
		sb.WriteString(f.Attr)
		sb.WriteByte('=')
		sb.Write(f.Value)
		sb.WriteByte(')')
	case FilterPresent:
		sb.WriteByte('(')
		sb.WriteString(f.Attr)
		sb.WriteString("=*)")
	case FilterSubstrings:
		sb.WriteByte('(')
		sb.WriteString(f.Attr)
		sb.WriteByte('=')
		sb.WriteString(f.Initial)
		sb.WriteByte('*')
		for _, fragment := range f.Any {
			sb.WriteString(fragment)
			sb.WriteByte('*')
		}
		sb.WriteString(f.Final)
		sb.WriteByte(')')
	default:
		sb.WriteString("(?unsupported?)")
	}
}

// MatchesFilter evaluates the filter tree against this single entry.
// Unsupported nodes evaluate to false and log a warning.
func (e *Entry) MatchesFilter(f Filter) bool {
	switch f.Kind {
	case FilterAnd:
		for _, child := range f.Children {
			if !e.MatchesFilter(child) {
				return false
			}
		}
		return true
	case FilterOr:
		for _, child := range f.Children {
			if e.MatchesFilter(child) {
				return true
			}
		}
		return false
	case FilterNot:
		if len(f.Children) != 1 {
			log.Warn().Stringer("filter", f).Msg("Unsupported filter")
			return false
		}
		return !e.MatchesFilter(f.Children[0])
	case FilterEquality:
		attr := e.Attributes.Get(f.Attr)
		return attr != nil && attr.HasValue(f.Value)
	case FilterPresent:
		return e.Attributes.Has(f.Attr)
	case FilterSubstrings:
		attr := e.Attributes.Get(f.Attr)
		if attr == nil {
			return false
		}
		re, err := f.substringsRegexp()
		if err != nil {
			log.Warn().Stringer("filter", f).Err(err).Msg("Cannot compile substring filter")
			return false
		}
		for _, value := range attr.Values {
			if re.Match(value) {
				return true
			}
		}
		return false
	default:
		log.Warn().Stringer("filter", f).Msg("Unsupported filter")
		return false
	}
}

// substringsRegexp assembles the pattern `^initial (.*any.*)* final$` with all
// fragments quoted literally.
func (f Filter) substringsRegexp() (*regexp.Regexp, error) {
	var sb strings.Builder
	if f.Initial != "" {
		sb.WriteByte('^')
		sb.WriteString(regexp.QuoteMeta(f.Initial))
	}
	for _, fragment := range f.Any {
		sb.WriteString(".*")
		sb.WriteString(regexp.QuoteMeta(fragment))
		sb.WriteString(".*")
	}
	if f.Final != "" {
		sb.WriteString(regexp.QuoteMeta(f.Final))
		sb.WriteByte('$')
	}
	return regexp.Compile(sb.String())
}
