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

// AppAccount is a service account below ou=apps,<base> (RFC 4524 "account").
// Apps may read the whole directory except other apps, so that a compromised
// app cannot harvest its neighbors' credentials.
type AppAccount struct {
	LoginProperties
	ExtraProperties

	// UID identifies the app account; without it the entity is skipped.
	UID string

	Description string
}

// UnmarshalTOML implements toml.Unmarshaler.
func (a *AppAccount) UnmarshalTOML(v any) error {
	table, err := asTable(v)
	if err != nil {
		return err
	}
	for key, value := range table {
		if consumed, err := a.LoginProperties.decodeField(key, value); consumed {
			if err != nil {
				return decodeError("app", key, err)
			}
			continue
		}
		if consumed, err := a.ExtraProperties.decodeField(key, value); consumed {
			if err != nil {
				return decodeError("app", key, err)
			}
			continue
		}

		var err error
		switch key {
		case "uid":
			a.UID, err = decodeString(value)
		case "description":
			a.Description, err = decodeString(value)
		default:
			var values []string
			values, err = decodeStringList(value)
			if err == nil {
				a.addExtraAttribute(key, values)
			}
		}
		if err != nil {
			return decodeError("app", key, err)
		}
	}
	return nil
}

func (a *AppAccount) dnFor(base core.DN) (core.DN, bool) {
	if a.UID == "" {
		return nil, false
	}
	return base.WithPrefix("ou", "apps").WithPrefix("uid", a.UID), true
}

func (a *AppAccount) attributes() core.AttributeSet {
	var attrs core.AttributeSet
	attrs.AddString(objectClass, "account")
	a.LoginProperties.addAttributes(&attrs)
	if a.Description != "" {
		attrs.AddString("description", a.Description)
	}
	a.ExtraProperties.addAttributes(&attrs)
	if a.UID != "" {
		attrs.AddString("uid", a.UID)
	}
	return attrs
}

func (a *AppAccount) entry(cfg *Config) *core.Entry {
	if a.UID == "" {
		log.Warn().Msg("Entry skipped: missing uid")
		return nil
	}
	dn, _ := a.dnFor(cfg.BaseDN)
	return &core.Entry{
		DN:         dn,
		Attributes: a.attributes(),
		ACL: core.ACL{
			CanAccessSelf:      true,
			CanAccessSuffixes:  []core.DN{cfg.BaseDN},
			CantAccessSuffixes: []core.DN{cfg.BaseDN.WithPrefix("ou", "apps")},
		},
	}
}

func (a *AppAccount) merge(other *AppAccount) {
	a.LoginProperties.merge(other.LoginProperties)
	mergeString(&a.Description, other.Description)
	a.ExtraProperties.merge(other.ExtraProperties)
	mergeString(&a.UID, other.UID)
}
