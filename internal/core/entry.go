/*******************************************************************************
* Copyright 2024 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package core

// Entry is a fully assembled directory entry. Entries are identified by their
// DN alone; once handed to the database, they are never mutated again.
type Entry struct {
	DN         DN
	Attributes AttributeSet
	ACL        ACL
}

// CanPerformBind reports whether this entry can be used to authenticate:
// it must have at least one accessible scope, and it must carry credentials.
func (e *Entry) CanPerformBind() bool {
	aclValid := e.ACL.CanAccessSelf || len(e.ACL.CanAccessSuffixes) > 0
	return aclValid && e.Attributes.Has("userPassword")
}

// Tidy discards empty attributes ahead of indexing.
func (e *Entry) Tidy() {
	e.Attributes.Tidy()
}
