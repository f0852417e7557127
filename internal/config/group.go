/*******************************************************************************
* Copyright 2024 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package config

import (
	"github.com/rs/zerolog/log"

	"github.com/majewsky/femtoldap/internal/core"
)

// Group is a groupOfUniqueNames below ou=groups,<base> (RFC 4519). Membership
// is declared on the users, not on the group; groups that end up without any
// uniqueMember are dropped during assembly.
type Group struct {
	ExtraProperties

	// Name identifies the group; without it the entity is skipped.
	Name string

	Description string
}

// UnmarshalTOML implements toml.Unmarshaler.
func (g *Group) UnmarshalTOML(v any) error {
	table, err := asTable(v)
	if err != nil {
		return err
	}
	for key, value := range table {
		if consumed, err := g.ExtraProperties.decodeField(key, value); consumed {
			if err != nil {
				return decodeError("group", key, err)
			}
			continue
		}

		var err error
		switch key {
		case "name":
			g.Name, err = decodeString(value)
		case "description":
			g.Description, err = decodeString(value)
		default:
			var values []string
			values, err = decodeStringList(value)
			if err == nil {
				g.addExtraAttribute(key, values)
			}
		}
		if err != nil {
			return decodeError("group", key, err)
		}
	}
	return nil
}

func (g *Group) dnFor(base core.DN) (core.DN, bool) {
	if g.Name == "" {
		return nil, false
	}
	return base.WithPrefix("ou", "groups").WithPrefix("cn", g.Name), true
}

func (g *Group) attributes() core.AttributeSet {
	var attrs core.AttributeSet
	attrs.AddString(objectClass, "groupOfUniqueNames")
	if g.Description != "" {
		attrs.AddString("description", g.Description)
	}
	g.ExtraProperties.addAttributes(&attrs)
	if g.Name != "" {
		attrs.AddString("cn", g.Name)
	}
	return attrs
}

func (g *Group) entry(cfg *Config) *core.Entry {
	if g.Name == "" {
		log.Warn().Msg("Entry skipped: missing name")
		return nil
	}
	dn, _ := g.dnFor(cfg.BaseDN)
	entry := &core.Entry{DN: dn, Attributes: g.attributes()}

	for _, user := range cfg.Users {
		if !user.GroupNames.Has(g.Name) {
			continue
		}
		userDN, ok := user.dnFor(cfg.BaseDN)
		if !ok {
			log.Warn().Msg("Empty DN")
			continue
		}
		entry.Attributes.AddString("uniqueMember", userDN.String())
	}

	if !entry.Attributes.Has("uniqueMember") {
		return nil
	}
	return entry
}

func (g *Group) merge(other *Group) {
	mergeString(&g.Description, other.Description)
	g.ExtraProperties.merge(other.ExtraProperties)
	mergeString(&g.Name, other.Name)
}
