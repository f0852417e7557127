/*******************************************************************************
* Copyright 2024 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package config

import (
	"github.com/google/uuid"

	"github.com/majewsky/femtoldap/internal/core"
)

// VendorVersion is reported in the Root DSE. The main package overrides this
// with the build version.
var VendorVersion = "whatever"

// AssembleEntries derives the full list of directory entries from this
// config. The pipeline order is load-bearing: groups resolve user DNs, mail
// aliases resolve user mail addresses, and users resolve group DNs, so all
// cross-references must be computed against the same merged config.
func (c *Config) AssembleEntries() []*core.Entry {
	entries := []*core.Entry{c.rootDSE()}

	for _, app := range c.Apps {
		if entry := app.entry(c); entry != nil {
			entries = append(entries, entry)
		}
	}
	for _, group := range c.Groups {
		if entry := group.entry(c); entry != nil {
			entries = append(entries, entry)
		}
	}
	for _, alias := range c.MailAliases {
		if entry := alias.entry(c); entry != nil {
			entries = append(entries, entry)
		}
	}
	for _, user := range c.Users {
		if entry := user.entry(c); entry != nil {
			entries = append(entries, entry)
		}
	}

	// operational attributes for everything except the Root DSE (which
	// carries its own)
	for _, entry := range entries {
		if entry.DN.IsEmpty() {
			continue
		}
		if !entry.Attributes.Has("entryDN") {
			entry.Attributes.AddString("entryDN", entry.DN.String())
		}
		if !entry.Attributes.Has("entryUUID") {
			entry.Attributes.AddString("entryUUID", entry.DN.UUID().String())
		}
	}

	return entries
}

func (c *Config) rootDSE() *core.Entry {
	entry := &core.Entry{DN: nil}
	entry.Attributes.AddString(objectClass, "femtoLDAPRoot")
	entry.Attributes.AddString(objectClass, "extensibleObject")
	entry.Attributes.AddString("dsaName", "femtoLDAP")
	entry.Attributes.AddString("namingContexts", c.BaseDN.String())
	entry.Attributes.AddString("supportedAuthPasswordSchemes", "CLEAR")
	entry.Attributes.AddString("supportedLDAPVersion", "3")
	entry.Attributes.AddString("vendorName", "femtoldap")
	entry.Attributes.AddString("vendorVersion", VendorVersion)
	entry.Attributes.AddString("entryDN", "")
	entry.Attributes.AddString("entryUUID", uuid.NewSHA1(uuid.NameSpaceX500, nil).String())
	return entry
}
