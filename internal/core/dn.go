/*******************************************************************************
* Copyright 2024 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// RDN is a single relative distinguished name component.
type RDN struct {
	Type  string
	Value string
}

// DN is a distinguished name: an ordered list of components from most-specific
// to least-specific. The empty DN names the Root DSE.
//
// DN comparison is case-sensitive; config authors are expected to spell DNs
// consistently.
type DN []RDN

// ParseDN parses the string form "k1=v1,k2=v2,...". The empty string yields
// the empty DN. Empty components (from consecutive commas) are skipped; any
// other malformed component is an error.
func ParseDN(s string) (DN, error) {
	var dn DN
	for _, component := range strings.Split(s, ",") {
		if component == "" {
			continue
		}
		key, value, ok := strings.Cut(component, "=")
		if !ok {
			return nil, fmt.Errorf("DN component %q is malformed", component)
		}
		if key == "" {
			return nil, fmt.Errorf("DN component %q is malformed (key is empty)", component)
		}
		if value == "" {
			return nil, fmt.Errorf("DN component %q is malformed (value is empty)", component)
		}
		dn = append(dn, RDN{Type: key, Value: value})
	}
	return dn, nil
}

// MustParseDN is like ParseDN, but panics on error. For use in tests and for
// DN literals that are known to be well-formed.
func MustParseDN(s string) DN {
	dn, err := ParseDN(s)
	if err != nil {
		panic(err)
	}
	return dn
}

// IsEmpty reports whether this is the Root DSE DN.
func (dn DN) IsEmpty() bool {
	return len(dn) == 0
}

// String returns the wire form "k1=v1,k2=v2,...". The empty DN renders as "".
func (dn DN) String() string {
	if len(dn) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, rdn := range dn {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(rdn.Type)
		sb.WriteByte('=')
		sb.WriteString(rdn.Value)
	}
	return sb.String()
}

// Display returns a human-readable form: like String(), except that the empty
// DN renders as "<root DSE>".
func (dn DN) Display() string {
	if len(dn) == 0 {
		return "<root DSE>"
	}
	return dn.String()
}

// WithPrefix returns a copy of this DN with one more component prepended,
// i.e. one level deeper in the tree.
func (dn DN) WithPrefix(typ, value string) DN {
	result := make(DN, 0, len(dn)+1)
	result = append(result, RDN{Type: typ, Value: value})
	return append(result, dn...)
}

// Equal reports whether both DNs consist of the same components.
func (dn DN) Equal(other DN) bool {
	if len(dn) != len(other) {
		return false
	}
	for i, rdn := range dn {
		if rdn != other[i] {
			return false
		}
	}
	return true
}

// MatchesSuffix reports whether `suffix` is a suffix of this DN, i.e. whether
// this DN is at or below the subtree that `suffix` names. The empty DN is a
// suffix of every DN.
func (dn DN) MatchesSuffix(suffix DN) bool {
	if len(dn) < len(suffix) {
		return false
	}
	offset := len(dn) - len(suffix)
	for i, rdn := range suffix {
		if dn[offset+i] != rdn {
			return false
		}
	}
	return true
}

// Suffix returns the trailing n components of this DN as a copy.
func (dn DN) Suffix(n int) DN {
	result := make(DN, n)
	copy(result, dn[len(dn)-n:])
	return result
}

// UUID derives the deterministic UUIDv5 of this DN from its canonical string
// form, using the X.500 namespace.
func (dn DN) UUID() uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceX500, []byte(dn.String()))
}

// UnmarshalText implements encoding.TextUnmarshaler, so that DNs can appear
// directly in configuration files.
func (dn *DN) UnmarshalText(buf []byte) error {
	parsed, err := ParseDN(string(buf))
	if err != nil {
		return err
	}
	*dn = parsed
	return nil
}
