/*******************************************************************************
* Copyright 2024 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

// Package database holds the read-only in-memory directory snapshot. A
// Database is built once from a list of entries and never mutated afterwards;
// reload replaces the whole snapshot.
package database

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/majewsky/femtoldap/internal/core"
)

// IndexedAttributes is the fixed set of attribute names that get an equality
// and a presence index.
var IndexedAttributes = []string{
	"cn",
	"mail",
	"mailAlias",
	"memberOf",
	"objectClass",
	"uid",
	"uniqueMember",
}

type eqIndexKey struct {
	name  string // folded
	value string // raw bytes
}

// Database is an immutable, fully indexed snapshot of the directory.
type Database struct {
	// all entries, by the string form of their DN
	entries map[string]*core.Entry
	// the subset of entries that can be used to authenticate
	loginEntries map[string]*core.Entry

	// attribute indexes, only for names from IndexedAttributes that actually occur
	indexedAttrNames map[string]struct{}
	eqIndex          map[eqIndexKey]EntrySet
	presenceIndex    map[string]EntrySet

	// every proper DN suffix of every entry, mapped to the entries below it
	suffixIndex map[string]EntrySet
}

// FromEntries builds a snapshot from the given entries. Entries are tidied on
// the way in. A duplicate DN is a bug in the assembler and panics.
func FromEntries(entries []*core.Entry) *Database {
	d := &Database{
		entries:          make(map[string]*core.Entry, len(entries)),
		loginEntries:     make(map[string]*core.Entry),
		indexedAttrNames: make(map[string]struct{}),
		eqIndex:          make(map[eqIndexKey]EntrySet),
		presenceIndex:    make(map[string]EntrySet),
		suffixIndex:      make(map[string]EntrySet),
	}
	for _, entry := range entries {
		entry.Tidy()
		d.addEntry(entry)
	}
	return d
}

func (d *Database) addEntry(entry *core.Entry) {
	dnStr := entry.DN.String()
	if _, exists := d.entries[dnStr]; exists {
		panic(fmt.Sprintf("entry already exists: %s", entry.DN.Display()))
	}
	d.entries[dnStr] = entry

	if entry.CanPerformBind() {
		d.loginEntries[dnStr] = entry
	}

	for _, name := range IndexedAttributes {
		attr := entry.Attributes.Get(name)
		if attr == nil {
			continue
		}
		folded := core.FoldCase(name)
		d.indexedAttrNames[folded] = struct{}{}
		for _, value := range attr.Values {
			key := eqIndexKey{name: folded, value: string(value)}
			if d.eqIndex[key] == nil {
				d.eqIndex[key] = make(EntrySet)
			}
			d.eqIndex[key].Add(entry)
			if d.presenceIndex[folded] == nil {
				d.presenceIndex[folded] = make(EntrySet)
			}
			d.presenceIndex[folded].Add(entry)
		}
	}

	// register every proper suffix, from the empty DN up to (but not
	// including) the entry's own DN
	for suffixLen := 0; suffixLen < len(entry.DN); suffixLen++ {
		suffix := entry.DN.Suffix(suffixLen).String()
		if d.suffixIndex[suffix] == nil {
			d.suffixIndex[suffix] = make(EntrySet)
		}
		d.suffixIndex[suffix].Add(entry)
	}
}

// Bind returns the entry at the given DN iff it is bind-capable and one of
// its userPassword values equals the password byte for byte.
func (d *Database) Bind(dn core.DN, password []byte) *core.Entry {
	entry := d.loginEntries[dn.String()]
	if entry != nil && entry.Attributes.CheckPassword(password) {
		return entry
	}
	return nil
}

// Search returns the set of entries at or below baseDN that match the filter.
// If baseDN names an entry exactly, only that entry is considered (base-object
// semantics); otherwise the whole subtree below baseDN is searched.
func (d *Database) Search(baseDN core.DN, filter core.Filter) EntrySet {
	if entry, exists := d.entries[baseDN.String()]; exists {
		result := make(EntrySet)
		if entry.MatchesFilter(filter) {
			result.Add(entry)
		}
		return result
	}

	scope, exists := d.suffixIndex[baseDN.String()]
	if !exists {
		return make(EntrySet)
	}

	switch filter.Kind {
	case core.FilterNot:
		if len(filter.Children) != 1 {
			log.Warn().Stringer("filter", filter).Msg("Unsupported filter")
			return make(EntrySet)
		}
		return scope.Difference(d.Search(baseDN, filter.Children[0]))
	case core.FilterAnd:
		if len(filter.Children) == 0 {
			return make(EntrySet)
		}
		result := scope.Clone()
		for _, child := range filter.Children {
			result = result.Intersection(d.Search(baseDN, child))
			if len(result) == 0 {
				break
			}
		}
		return result
	case core.FilterOr:
		result := make(EntrySet)
		for _, child := range filter.Children {
			result.AddSet(d.Search(baseDN, child))
		}
		return result
	case core.FilterEquality:
		folded := core.FoldCase(filter.Attr)
		if _, indexed := d.indexedAttrNames[folded]; indexed {
			indexedSet, exists := d.eqIndex[eqIndexKey{name: folded, value: string(filter.Value)}]
			if !exists {
				return make(EntrySet)
			}
			return scope.Intersection(indexedSet)
		}
		return scope.Filtered(func(entry *core.Entry) bool {
			attr := entry.Attributes.Get(filter.Attr)
			return attr != nil && attr.HasValue(filter.Value)
		})
	case core.FilterPresent:
		folded := core.FoldCase(filter.Attr)
		if _, indexed := d.indexedAttrNames[folded]; indexed {
			indexedSet, exists := d.presenceIndex[folded]
			if !exists {
				return make(EntrySet)
			}
			return scope.Intersection(indexedSet)
		}
		return scope.Filtered(func(entry *core.Entry) bool {
			return entry.Attributes.Has(filter.Attr)
		})
	case core.FilterSubstrings:
		return scope.Filtered(func(entry *core.Entry) bool {
			return entry.MatchesFilter(filter)
		})
	default:
		log.Warn().Stringer("filter", filter).Msg("Unsupported filter")
		return make(EntrySet)
	}
}

// Stats describes the size of a snapshot, for the debug log after (re)build.
type Stats struct {
	Entries         int
	BindCapable     int
	EqIndexKeys     int
	PresenceKeys    int
	SuffixIndexKeys int
}

// Stats returns size information about this snapshot.
func (d *Database) Stats() Stats {
	return Stats{
		Entries:         len(d.entries),
		BindCapable:     len(d.loginEntries),
		EqIndexKeys:     len(d.eqIndex),
		PresenceKeys:    len(d.presenceIndex),
		SuffixIndexKeys: len(d.suffixIndex),
	}
}
