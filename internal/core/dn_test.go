/*******************************************************************************
* Copyright 2024 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDN(t *testing.T) {
	dn, err := ParseDN("uid=alice,ou=users,dc=example,dc=org")
	require.NoError(t, err)
	assert.Equal(t, DN{
		{Type: "uid", Value: "alice"},
		{Type: "ou", Value: "users"},
		{Type: "dc", Value: "example"},
		{Type: "dc", Value: "org"},
	}, dn)
	assert.Equal(t, "uid=alice,ou=users,dc=example,dc=org", dn.String())
}

func TestParseDNEmpty(t *testing.T) {
	dn, err := ParseDN("")
	require.NoError(t, err)
	assert.True(t, dn.IsEmpty())
	assert.Equal(t, "", dn.String())
	assert.Equal(t, "<root DSE>", dn.Display())
}

func TestParseDNSkipsEmptyComponents(t *testing.T) {
	dn, err := ParseDN("uid=alice,,dc=example,")
	require.NoError(t, err)
	assert.Equal(t, "uid=alice,dc=example", dn.String())
}

func TestParseDNMalformed(t *testing.T) {
	for _, input := range []string{
		"uid=alice,users,dc=example",
		"=alice,dc=example",
		"uid=,dc=example",
	} {
		_, err := ParseDN(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestDNMatchesSuffix(t *testing.T) {
	dn := MustParseDN("uid=alice,ou=users,dc=example,dc=org")

	assert.True(t, dn.MatchesSuffix(nil)) // the empty DN is a suffix of everything
	assert.True(t, dn.MatchesSuffix(MustParseDN("dc=org")))
	assert.True(t, dn.MatchesSuffix(MustParseDN("dc=example,dc=org")))
	assert.True(t, dn.MatchesSuffix(dn))

	assert.False(t, dn.MatchesSuffix(MustParseDN("dc=example")))
	assert.False(t, dn.MatchesSuffix(MustParseDN("ou=users")))
	assert.False(t, dn.MatchesSuffix(MustParseDN("uid=bob,uid=alice,ou=users,dc=example,dc=org")))
	// DN comparison is case-sensitive
	assert.False(t, dn.MatchesSuffix(MustParseDN("DC=example,DC=org")))
}

func TestDNWithPrefix(t *testing.T) {
	base := MustParseDN("dc=example,dc=org")
	dn := base.WithPrefix("ou", "users").WithPrefix("uid", "alice")
	assert.Equal(t, "uid=alice,ou=users,dc=example,dc=org", dn.String())
	// the base is not aliased by the prefix operation
	assert.Equal(t, "dc=example,dc=org", base.String())
}

func TestDNSuffix(t *testing.T) {
	dn := MustParseDN("uid=alice,ou=users,dc=example,dc=org")
	assert.Equal(t, "", dn.Suffix(0).String())
	assert.Equal(t, "dc=org", dn.Suffix(1).String())
	assert.Equal(t, "ou=users,dc=example,dc=org", dn.Suffix(3).String())
}

func TestDNUUID(t *testing.T) {
	dn := MustParseDN("uid=alice,ou=users,dc=example,dc=org")
	// deterministic: same DN yields same UUID, different DN a different one
	assert.Equal(t, dn.UUID(), MustParseDN(dn.String()).UUID())
	assert.NotEqual(t, dn.UUID(), MustParseDN("uid=bob,ou=users,dc=example,dc=org").UUID())
	assert.NotEqual(t, dn.UUID(), DN(nil).UUID())
}

func TestDNUnmarshalText(t *testing.T) {
	var dn DN
	require.NoError(t, dn.UnmarshalText([]byte("dc=example,dc=org")))
	assert.Equal(t, MustParseDN("dc=example,dc=org"), dn)
	assert.Error(t, dn.UnmarshalText([]byte("no-equals-sign")))
}
