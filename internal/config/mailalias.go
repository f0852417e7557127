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

// MailAlias is a nisMailAlias below ou=aliases,ou=mail,<base>. Besides its
// declared alias targets, it collects the mail addresses of all users that
// list it in their mail_aliases.
type MailAlias struct {
	ExtraProperties

	// Mail identifies the alias; without it the entity is skipped.
	Mail string

	Aliases StringSet
}

// UnmarshalTOML implements toml.Unmarshaler.
func (m *MailAlias) UnmarshalTOML(v any) error {
	table, err := asTable(v)
	if err != nil {
		return err
	}
	for key, value := range table {
		if consumed, err := m.ExtraProperties.decodeField(key, value); consumed {
			if err != nil {
				return decodeError("mail alias", key, err)
			}
			continue
		}

		var err error
		switch key {
		case "mail":
			m.Mail, err = decodeString(value)
		case "aliases":
			m.Aliases, err = decodeStringSet(value)
		default:
			var values []string
			values, err = decodeStringList(value)
			if err == nil {
				m.addExtraAttribute(key, values)
			}
		}
		if err != nil {
			return decodeError("mail alias", key, err)
		}
	}
	return nil
}

func (m *MailAlias) dnFor(base core.DN) (core.DN, bool) {
	if m.Mail == "" {
		return nil, false
	}
	return base.WithPrefix("ou", "mail").WithPrefix("ou", "aliases").WithPrefix("cn", m.Mail), true
}

func (m *MailAlias) attributes() core.AttributeSet {
	var attrs core.AttributeSet
	attrs.AddString(objectClass, "nisMailAlias")
	if m.Mail != "" {
		attrs.AddString("cn", m.Mail)
	}
	for _, alias := range m.Aliases.Sorted() {
		attrs.AddString("rfc822mailMember", alias)
	}
	m.ExtraProperties.addAttributes(&attrs)
	return attrs
}

func (m *MailAlias) entry(cfg *Config) *core.Entry {
	if m.Mail == "" {
		log.Warn().Msg("Entry skipped: missing email")
		return nil
	}
	dn, _ := m.dnFor(cfg.BaseDN)
	entry := &core.Entry{DN: dn, Attributes: m.attributes()}

	for _, user := range cfg.Users {
		if !user.MailAliases.Has(m.Mail) {
			continue
		}
		if user.Mail == "" {
			log.Warn().Str("uid", user.UID).Msg("No mail address specified")
			continue
		}
		entry.Attributes.AddString("rfc822mailMember", user.Mail)
	}

	return entry
}

func (m *MailAlias) merge(other *MailAlias) {
	mergeStringSet(&m.Aliases, other.Aliases)
	mergeString(&m.Mail, other.Mail)
	m.ExtraProperties.merge(other.ExtraProperties)
}
