/*******************************************************************************
* Copyright 2024 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package core

// CIString is a case-insensitive string. It remembers the spelling it was
// created with, but equality, hashing and ordering go through the folded form.
// Two CIStrings are equal iff their folded forms are equal.
type CIString struct {
	raw    string
	folded string
}

// NewCIString wraps the given string, preserving it verbatim for display.
func NewCIString(s string) CIString {
	return CIString{raw: s, folded: FoldCase(s)}
}

// FoldCase lowercases ASCII letters only. LDAP attribute names never differ
// in anything but ASCII case, so Unicode-aware folding is not needed here.
func FoldCase(s string) string {
	hasUpper := false
	for i := 0; i < len(s); i++ {
		if 'A' <= s[i] && s[i] <= 'Z' {
			hasUpper = true
			break
		}
	}
	if !hasUpper {
		return s
	}
	buf := []byte(s)
	for i, c := range buf {
		if 'A' <= c && c <= 'Z' {
			buf[i] = c + ('a' - 'A')
		}
	}
	return string(buf)
}

// Fold returns the folded form, suitable as a map key.
func (c CIString) Fold() string {
	return c.folded
}

// String returns the original spelling.
func (c CIString) String() string {
	return c.raw
}

// Equal compares two CIStrings without regard to case.
func (c CIString) Equal(other CIString) bool {
	return c.folded == other.folded
}

// Less orders CIStrings by their folded form.
func (c CIString) Less(other CIString) bool {
	return c.folded < other.folded
}
