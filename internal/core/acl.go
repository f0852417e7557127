/*******************************************************************************
* Copyright 2024 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package core

// ACL is the access policy attached to an entry. There are no per-attribute
// rules and no wildcards: an entry may read itself, and it may read whole
// subtrees minus denied subtrees.
type ACL struct {
	CanAccessSelf      bool
	CanAccessSuffixes  []DN
	CantAccessSuffixes []DN
}

// CanAccessDN reports whether a principal with this ACL and the given own DN
// may access the target DN: either the target is the principal itself and
// self-access is granted, or the target lies under an allowed suffix and
// under no denied suffix.
func (a ACL) CanAccessDN(principal DN, target DN) bool {
	if a.CanAccessSelf && principal.Equal(target) {
		return true
	}
	allowed := false
	for _, suffix := range a.CanAccessSuffixes {
		if target.MatchesSuffix(suffix) {
			allowed = true
			break
		}
	}
	if !allowed {
		return false
	}
	for _, suffix := range a.CantAccessSuffixes {
		if target.MatchesSuffix(suffix) {
			return false
		}
	}
	return true
}
