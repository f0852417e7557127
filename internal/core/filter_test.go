/*******************************************************************************
* Copyright 2024 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testEntry() *Entry {
	entry := &Entry{DN: MustParseDN("uid=alice,ou=users,dc=example,dc=org")}
	entry.Attributes.AddString("objectClass", "inetOrgPerson")
	entry.Attributes.AddString("uid", "alice")
	entry.Attributes.AddString("mail", "alice@example.org")
	return entry
}

func eq(attr, value string) Filter {
	return Filter{Kind: FilterEquality, Attr: attr, Value: []byte(value)}
}

func TestMatchesFilterEquality(t *testing.T) {
	entry := testEntry()
	assert.True(t, entry.MatchesFilter(eq("uid", "alice")))
	// attribute names fold, values do not
	assert.True(t, entry.MatchesFilter(eq("UID", "alice")))
	assert.False(t, entry.MatchesFilter(eq("uid", "Alice")))
	assert.False(t, entry.MatchesFilter(eq("cn", "alice")))
}

func TestMatchesFilterPresent(t *testing.T) {
	entry := testEntry()
	assert.True(t, entry.MatchesFilter(Filter{Kind: FilterPresent, Attr: "mail"}))
	assert.False(t, entry.MatchesFilter(Filter{Kind: FilterPresent, Attr: "telephoneNumber"}))
}

func TestMatchesFilterBoolean(t *testing.T) {
	entry := testEntry()

	assert.True(t, entry.MatchesFilter(Filter{Kind: FilterAnd, Children: []Filter{
		eq("uid", "alice"), eq("objectClass", "inetOrgPerson"),
	}}))
	assert.False(t, entry.MatchesFilter(Filter{Kind: FilterAnd, Children: []Filter{
		eq("uid", "alice"), eq("uid", "bob"),
	}}))
	assert.True(t, entry.MatchesFilter(Filter{Kind: FilterOr, Children: []Filter{
		eq("uid", "bob"), eq("uid", "alice"),
	}}))
	assert.True(t, entry.MatchesFilter(Filter{Kind: FilterNot, Children: []Filter{
		eq("uid", "bob"),
	}}))

	// per X.511: the empty conjunction is true, the empty disjunction is false
	assert.True(t, entry.MatchesFilter(Filter{Kind: FilterAnd}))
	assert.False(t, entry.MatchesFilter(Filter{Kind: FilterOr}))

	// a Not without exactly one child is malformed and matches nothing
	assert.False(t, entry.MatchesFilter(Filter{Kind: FilterNot}))
	assert.False(t, entry.MatchesFilter(Filter{Kind: FilterUnsupported}))
}

func TestMatchesFilterSubstrings(t *testing.T) {
	entry := testEntry()
	substr := func(initial string, anys []string, final string) Filter {
		return Filter{Kind: FilterSubstrings, Attr: "mail", Initial: initial, Any: anys, Final: final}
	}

	assert.True(t, entry.MatchesFilter(substr("alice", nil, "")))
	assert.False(t, entry.MatchesFilter(substr("lice", nil, "")))
	assert.True(t, entry.MatchesFilter(substr("", nil, "example.org")))
	assert.False(t, entry.MatchesFilter(substr("", nil, "example")))
	assert.True(t, entry.MatchesFilter(substr("", []string{"@"}, "")))
	assert.True(t, entry.MatchesFilter(substr("alice", []string{"example"}, "org")))
	assert.False(t, entry.MatchesFilter(substr("alice", []string{"nope"}, "org")))

	// regex metacharacters in fragments match literally
	assert.True(t, entry.MatchesFilter(substr("", []string{"alice@example.org"}, "")))
	assert.False(t, entry.MatchesFilter(substr("", []string{"alice.example:org"}, "")))
}

func TestMatchesFilterSubstringsAdjacency(t *testing.T) {
	// without any middle fragments, initial and final concatenate directly:
	// the final must immediately follow the initial in the value
	filter := Filter{Kind: FilterSubstrings, Attr: "mail", Initial: "alice@", Final: ".org"}

	assert.False(t, testEntry().MatchesFilter(filter))

	adjacent := &Entry{DN: MustParseDN("uid=short,ou=users,dc=example,dc=org")}
	adjacent.Attributes.AddString("mail", "alice@.org")
	assert.True(t, adjacent.MatchesFilter(filter))

	// an empty middle fragment restores the gap
	gapped := filter
	gapped.Any = []string{""}
	assert.True(t, testEntry().MatchesFilter(gapped))
}

func TestFilterString(t *testing.T) {
	filter := Filter{Kind: FilterAnd, Children: []Filter{
		eq("objectClass", "posixAccount"),
		{Kind: FilterNot, Children: []Filter{{Kind: FilterPresent, Attr: "mail"}}},
		{Kind: FilterSubstrings, Attr: "uid", Initial: "al", Any: []string{"ic"}, Final: "e"},
	}}
	assert.Equal(t, "(&(objectClass=posixAccount)(!(mail=*))(uid=al*ic*e))", filter.String())
}
