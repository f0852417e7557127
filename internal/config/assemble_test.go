/*******************************************************************************
* Copyright 2024 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majewsky/femtoldap/internal/core"
)

const assembleTestConfig = `
	base_dn = "dc=example,dc=org"

	[[apps]]
	uid = "portal"
	password = "portal-secret"
	description = "The intranet portal"

	[[groups]]
	name = "admins"

	[[groups]]
	name = "ghosts"

	[[mail_aliases]]
	mail = "all@example.org"
	aliases = ["archive@example.org"]

	[[users]]
	uid = "alice"
	password = "alice-secret"
	name = "Alice"
	surname = "Adams"
	initials = "AA"
	mail = "alice@example.org"
	groups = ["admins"]
	mail_aliases = ["all@example.org"]

	[[users]]
	uid = "bob"
	mail_aliases = ["all@example.org"]
`

func assembleTestEntries(t *testing.T) map[string]*core.Entry {
	t.Helper()
	cfg := parseConfig(t, assembleTestConfig)
	entries := make(map[string]*core.Entry)
	for _, entry := range cfg.AssembleEntries() {
		require.NotContains(t, entries, entry.DN.String())
		entries[entry.DN.String()] = entry
	}
	return entries
}

func attrValues(t *testing.T, entry *core.Entry, name string) []string {
	t.Helper()
	attr := entry.Attributes.Get(name)
	if attr == nil {
		return nil
	}
	result := make([]string, len(attr.Values))
	for i, value := range attr.Values {
		result[i] = string(value)
	}
	return result
}

func TestAssembleRootDSE(t *testing.T) {
	entries := assembleTestEntries(t)
	root := entries[""]
	require.NotNil(t, root)

	assert.Contains(t, attrValues(t, root, "objectClass"), "femtoLDAPRoot")
	assert.Equal(t, []string{"dc=example,dc=org"}, attrValues(t, root, "namingContexts"))
	assert.Equal(t, []string{"3"}, attrValues(t, root, "supportedLDAPVersion"))
	assert.Equal(t, []string{"CLEAR"}, attrValues(t, root, "supportedAuthPasswordSchemes"))
	assert.Equal(t, []string{"femtoldap"}, attrValues(t, root, "vendorName"))
	assert.Equal(t, []string{""}, attrValues(t, root, "entryDN"))
	assert.NotEmpty(t, attrValues(t, root, "entryUUID"))
}

func TestAssembleUser(t *testing.T) {
	entries := assembleTestEntries(t)
	alice := entries["uid=alice,ou=users,dc=example,dc=org"]
	require.NotNil(t, alice)

	classes := attrValues(t, alice, "objectClass")
	assert.Contains(t, classes, "inetOrgPerson")
	assert.Contains(t, classes, "simpleSecurityObject")
	assert.Contains(t, classes, "posixAccount")

	assert.Equal(t, []string{"Alice"}, attrValues(t, alice, "givenName"))
	assert.Equal(t, []string{"Adams"}, attrValues(t, alice, "sn"))
	// displayName is synthesized from name and surname when not given
	assert.Equal(t, []string{"Alice Adams"}, attrValues(t, alice, "displayName"))
	assert.Equal(t, []string{"AA"}, attrValues(t, alice, "initials"))
	// homeDirectory defaults to /home/<uid>
	assert.Equal(t, []string{"/home/alice"}, attrValues(t, alice, "homeDirectory"))
	assert.Equal(t, []string{"cn=admins,ou=groups,dc=example,dc=org"}, attrValues(t, alice, "memberOf"))
	assert.Equal(t, []string{"all@example.org"}, attrValues(t, alice, "mailAlias"))

	// users can only read their own entry
	assert.True(t, alice.ACL.CanAccessSelf)
	assert.Empty(t, alice.ACL.CanAccessSuffixes)
}

func TestAssembleGroup(t *testing.T) {
	entries := assembleTestEntries(t)

	admins := entries["cn=admins,ou=groups,dc=example,dc=org"]
	require.NotNil(t, admins)
	assert.Contains(t, attrValues(t, admins, "objectClass"), "groupOfUniqueNames")
	assert.Equal(t, []string{"uid=alice,ou=users,dc=example,dc=org"}, attrValues(t, admins, "uniqueMember"))

	// a group without a single member is dropped entirely
	assert.NotContains(t, entries, "cn=ghosts,ou=groups,dc=example,dc=org")
}

func TestAssembleMailAlias(t *testing.T) {
	entries := assembleTestEntries(t)
	alias := entries["cn=all@example.org,ou=aliases,ou=mail,dc=example,dc=org"]
	require.NotNil(t, alias)

	assert.Contains(t, attrValues(t, alias, "objectClass"), "nisMailAlias")
	// declared alias targets plus the mail addresses of subscribed users;
	// bob subscribes too but has no mail address, so only alice contributes
	assert.ElementsMatch(t, []string{
		"archive@example.org",
		"alice@example.org",
	}, attrValues(t, alias, "rfc822mailMember"))
}

func TestAssembleAppAccount(t *testing.T) {
	entries := assembleTestEntries(t)
	portal := entries["uid=portal,ou=apps,dc=example,dc=org"]
	require.NotNil(t, portal)

	classes := attrValues(t, portal, "objectClass")
	assert.Contains(t, classes, "account")
	assert.Contains(t, classes, "simpleSecurityObject")
	assert.Equal(t, []string{"The intranet portal"}, attrValues(t, portal, "description"))

	// apps read the whole tree except other apps
	base := core.MustParseDN("dc=example,dc=org")
	assert.True(t, portal.ACL.CanAccessDN(portal.DN, core.MustParseDN("uid=alice,ou=users,dc=example,dc=org")))
	assert.False(t, portal.ACL.CanAccessDN(portal.DN, core.MustParseDN("uid=other,ou=apps,dc=example,dc=org")))
	assert.True(t, portal.ACL.CanAccessDN(portal.DN, portal.DN))
	assert.True(t, portal.ACL.CanAccessDN(portal.DN, base))
}

func TestAssembleOperationalAttributes(t *testing.T) {
	entries := assembleTestEntries(t)
	alice := entries["uid=alice,ou=users,dc=example,dc=org"]
	require.NotNil(t, alice)

	assert.Equal(t, []string{alice.DN.String()}, attrValues(t, alice, "entryDN"))
	assert.Equal(t, []string{alice.DN.UUID().String()}, attrValues(t, alice, "entryUUID"))
}

func TestAssembleForcedUUIDWins(t *testing.T) {
	cfg := parseConfig(t, `
		base_dn = "dc=example,dc=org"

		[[users]]
		uid = "alice"
		uuid = "5e9bc83a-1b29-4a92-86cb-2dc8b0a0b664"
	`)
	for _, entry := range cfg.AssembleEntries() {
		if entry.DN.String() == "uid=alice,ou=users,dc=example,dc=org" {
			assert.Equal(t, []string{"5e9bc83a-1b29-4a92-86cb-2dc8b0a0b664"}, attrValues(t, entry, "entryUUID"))
			return
		}
	}
	t.Fatal("alice not found")
}

func TestAssembleSkipsEntitiesWithoutIdentity(t *testing.T) {
	cfg := parseConfig(t, `
		base_dn = "dc=example,dc=org"

		[[users]]
		name = "No UID"

		[[mail_aliases]]
		aliases = ["somewhere@example.org"]
	`)
	entries := cfg.AssembleEntries()
	// only the Root DSE remains
	require.Len(t, entries, 1)
	assert.True(t, entries[0].DN.IsEmpty())
}
