/*******************************************************************************
* Copyright 2024 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package config

import (
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"

	"github.com/majewsky/femtoldap/internal/core"
)

// User is a human account below ou=users,<base>.
type User struct {
	LoginProperties
	ExtraProperties

	// UID identifies the user; without it the entity is skipped.
	UID string

	Name              []string
	Surname           []string
	DisplayName       string
	Initials          string
	PreferredLanguage string
	MobileNumber      []string
	TelephoneNumber   []string
	Mail              string
	SSHPublicKey      StringSet
	LoginShell        string
	HomeDirectory     string
	UIDNumber         string
	GIDNumber         string

	// GroupNames and MailAliases drive cross-references during assembly.
	GroupNames  StringSet
	MailAliases StringSet
}

// UnmarshalTOML implements toml.Unmarshaler. Unclaimed keys become extra
// attributes.
func (u *User) UnmarshalTOML(v any) error {
	table, err := asTable(v)
	if err != nil {
		return err
	}
	for key, value := range table {
		if consumed, err := u.LoginProperties.decodeField(key, value); consumed {
			if err != nil {
				return decodeError("user", key, err)
			}
			continue
		}
		if consumed, err := u.ExtraProperties.decodeField(key, value); consumed {
			if err != nil {
				return decodeError("user", key, err)
			}
			continue
		}

		var err error
		switch key {
		case "uid":
			u.UID, err = decodeString(value)
		case "name":
			u.Name, err = decodeStringList(value)
		case "surname":
			u.Surname, err = decodeStringList(value)
		case "display_name":
			u.DisplayName, err = decodeString(value)
		case "initials":
			u.Initials, err = decodeString(value)
		case "preferred_language":
			u.PreferredLanguage, err = decodeString(value)
		case "mobile_number":
			u.MobileNumber, err = decodeStringList(value)
		case "telephone_number":
			u.TelephoneNumber, err = decodeStringList(value)
		case "mail":
			u.Mail, err = decodeString(value)
		case "ssh_public_key":
			u.SSHPublicKey, err = decodeStringSet(value)
		case "login_shell":
			u.LoginShell, err = decodeString(value)
		case "home_directory":
			u.HomeDirectory, err = decodeString(value)
		case "uid_number":
			u.UIDNumber, err = decodeScalar(value)
		case "gid_number":
			u.GIDNumber, err = decodeScalar(value)
		case "group_names", "groups":
			u.GroupNames, err = decodeStringSet(value)
		case "mail_aliases":
			u.MailAliases, err = decodeStringSet(value)
		default:
			var values []string
			values, err = decodeStringList(value)
			if err == nil {
				u.addExtraAttribute(key, values)
			}
		}
		if err != nil {
			return decodeError("user", key, err)
		}
	}
	return nil
}

func (u *User) dnFor(base core.DN) (core.DN, bool) {
	if u.UID == "" {
		return nil, false
	}
	return base.WithPrefix("ou", "users").WithPrefix("uid", u.UID), true
}

func (u *User) attributes() core.AttributeSet {
	var attrs core.AttributeSet
	u.LoginProperties.addAttributes(&attrs)
	u.ExtraProperties.addAttributes(&attrs)

	attrs.AddString(objectClass, "inetOrgPerson")
	if u.UID != "" {
		attrs.AddString("uid", u.UID)
	}

	for _, name := range u.Name {
		attrs.AddString("givenName", name)
	}
	for _, surname := range u.Surname {
		attrs.AddString("sn", surname)
	}
	if u.DisplayName != "" {
		attrs.AddString("displayName", u.DisplayName)
	} else if len(u.Name) > 0 && len(u.Surname) > 0 {
		parts := append(append([]string(nil), u.Name...), u.Surname...)
		attrs.AddString("displayName", strings.Join(parts, " "))
	}

	if u.Initials != "" {
		attrs.AddString("initials", u.Initials)
	}
	if u.PreferredLanguage != "" {
		attrs.AddString("preferredLanguage", u.PreferredLanguage)
	}
	for _, mobile := range u.MobileNumber {
		attrs.AddString("mobile", mobile)
	}
	for _, telephone := range u.TelephoneNumber {
		attrs.AddString("telephoneNumber", telephone)
	}

	if u.Mail != "" {
		attrs.AddString("mail", u.Mail)
	}
	for _, alias := range u.MailAliases.Sorted() {
		attrs.AddString("mailAlias", alias)
	}

	for _, key := range u.SSHPublicKey.Sorted() {
		if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key)); err != nil {
			log.Warn().Str("uid", u.UID).Err(err).Msg("ssh_public_key value does not parse as an OpenSSH public key")
		}
		attrs.AddString("sshPublicKey", key)
	}

	if u.HomeDirectory != "" {
		attrs.AddString(objectClass, "posixAccount")
		attrs.AddString("homeDirectory", u.HomeDirectory)
	} else if u.UID != "" {
		attrs.AddString(objectClass, "posixAccount")
		attrs.AddString("homeDirectory", "/home/"+u.UID)
	}
	if u.LoginShell != "" {
		attrs.AddString(objectClass, "posixAccount")
		attrs.AddString("loginShell", u.LoginShell)
	}
	if u.UIDNumber != "" {
		attrs.AddString(objectClass, "posixAccount")
		attrs.AddString("uidNumber", u.UIDNumber)
	}
	if u.GIDNumber != "" {
		attrs.AddString(objectClass, "posixAccount")
		attrs.AddString("gidNumber", u.GIDNumber)
	}

	return attrs
}

func (u *User) entry(cfg *Config) *core.Entry {
	if u.UID == "" {
		log.Warn().Msg("Entry skipped: missing uid")
		return nil
	}
	dn, _ := u.dnFor(cfg.BaseDN)
	entry := &core.Entry{
		DN:         dn,
		Attributes: u.attributes(),
		ACL:        core.ACL{CanAccessSelf: true},
	}

	for _, groupName := range u.GroupNames.Sorted() {
		group := cfg.findGroup(groupName)
		if group == nil {
			log.Warn().Str("group_name", groupName).Msg("Group not found")
			continue
		}
		groupDN, ok := group.dnFor(cfg.BaseDN)
		if !ok {
			log.Warn().Str("group_name", groupName).Msg("Empty DN")
			continue
		}
		entry.Attributes.AddString("memberOf", groupDN.String())
	}

	return entry
}

func (u *User) merge(other *User) {
	u.LoginProperties.merge(other.LoginProperties)
	u.ExtraProperties.merge(other.ExtraProperties)
	mergeString(&u.UID, other.UID)
	mergeStringList(&u.Name, other.Name)
	mergeStringList(&u.Surname, other.Surname)
	mergeString(&u.DisplayName, other.DisplayName)
	mergeString(&u.Initials, other.Initials)
	mergeString(&u.PreferredLanguage, other.PreferredLanguage)
	mergeStringList(&u.MobileNumber, other.MobileNumber)
	mergeStringList(&u.TelephoneNumber, other.TelephoneNumber)
	mergeString(&u.Mail, other.Mail)
	mergeStringSet(&u.SSHPublicKey, other.SSHPublicKey)
	mergeString(&u.LoginShell, other.LoginShell)
	mergeString(&u.HomeDirectory, other.HomeDirectory)
	mergeString(&u.UIDNumber, other.UIDNumber)
	mergeString(&u.GIDNumber, other.GIDNumber)
	mergeStringSet(&u.GroupNames, other.GroupNames)
	mergeStringSet(&u.MailAliases, other.MailAliases)
}
