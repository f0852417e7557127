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

func TestACLSelfAccess(t *testing.T) {
	self := MustParseDN("uid=alice,ou=users,dc=example,dc=org")
	acl := ACL{CanAccessSelf: true}

	assert.True(t, acl.CanAccessDN(self, self))
	assert.False(t, acl.CanAccessDN(self, MustParseDN("uid=bob,ou=users,dc=example,dc=org")))
	assert.False(t, acl.CanAccessDN(self, MustParseDN("dc=example,dc=org")))
}

func TestACLSuffixAccess(t *testing.T) {
	self := MustParseDN("uid=portal,ou=apps,dc=example,dc=org")
	acl := ACL{
		CanAccessSuffixes: []DN{MustParseDN("ou=users,dc=example,dc=org")},
	}

	assert.True(t, acl.CanAccessDN(self, MustParseDN("uid=alice,ou=users,dc=example,dc=org")))
	assert.True(t, acl.CanAccessDN(self, MustParseDN("ou=users,dc=example,dc=org")))
	assert.False(t, acl.CanAccessDN(self, MustParseDN("dc=example,dc=org")))
	// without CanAccessSelf, not even the own entry is readable unless a suffix covers it
	assert.False(t, acl.CanAccessDN(self, self))
}

func TestACLDeniedSubtree(t *testing.T) {
	base := MustParseDN("dc=example,dc=org")
	self := MustParseDN("uid=portal,ou=apps,dc=example,dc=org")
	acl := ACL{
		CanAccessSelf:      true,
		CanAccessSuffixes:  []DN{base},
		CantAccessSuffixes: []DN{base.WithPrefix("ou", "apps")},
	}

	// the deny rule carves ou=apps out of the allowed base...
	assert.False(t, acl.CanAccessDN(self, MustParseDN("uid=wiki,ou=apps,dc=example,dc=org")))
	assert.False(t, acl.CanAccessDN(self, MustParseDN("ou=apps,dc=example,dc=org")))
	// ...but self-access wins over the deny rule
	assert.True(t, acl.CanAccessDN(self, self))

	assert.True(t, acl.CanAccessDN(self, MustParseDN("uid=alice,ou=users,dc=example,dc=org")))
	assert.True(t, acl.CanAccessDN(self, base))
}

func TestEntryCanPerformBind(t *testing.T) {
	dn := MustParseDN("uid=alice,ou=users,dc=example,dc=org")

	entry := &Entry{DN: dn, ACL: ACL{CanAccessSelf: true}}
	assert.False(t, entry.CanPerformBind(), "no password")

	entry.Attributes.AddString("userPassword", "secret")
	assert.True(t, entry.CanPerformBind())

	// with an empty ACL, the credential alone is not enough
	entry.ACL = ACL{}
	assert.False(t, entry.CanPerformBind())
}
