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

const objectClass = "objectClass"

// LoginProperties is the part of an entity that enables authentication.
type LoginProperties struct {
	// Password is the cleartext credential (config key "password" or
	// "userPassword"). Empty means the entity cannot bind.
	Password string
}

func (p LoginProperties) addAttributes(attrs *core.AttributeSet) {
	attrs.AddString(objectClass, "simpleSecurityObject")
	if p.Password != "" {
		attrs.AddString("userPassword", p.Password)
	}
}

func (p *LoginProperties) merge(other LoginProperties) {
	mergeString(&p.Password, other.Password)
}

// decodeField handles the config keys belonging to LoginProperties. It
// reports whether the key was consumed.
func (p *LoginProperties) decodeField(key string, value any) (bool, error) {
	switch key {
	case "password", "userPassword":
		decoded, err := decodeString(value)
		if err != nil {
			return true, err
		}
		p.Password = decoded
		return true, nil
	}
	return false, nil
}

// ExtraProperties lets config authors attach arbitrary attributes and object
// classes to any entity, and force a fixed entryUUID.
type ExtraProperties struct {
	UUID               uuid.UUID
	ExtraAttributes    map[string][]string
	ExtraObjectClasses StringSet
}

func (p ExtraProperties) addAttributes(attrs *core.AttributeSet) {
	if p.UUID != uuid.Nil {
		attrs.AddString("entryUUID", p.UUID.String())
	}
	if len(p.ExtraAttributes) > 0 {
		attrs.AddString(objectClass, "extensibleObject")
	}
	for name, values := range p.ExtraAttributes {
		for _, value := range values {
			attrs.AddString(name, value)
		}
	}
	for _, class := range p.ExtraObjectClasses.Sorted() {
		attrs.AddString(objectClass, class)
	}
}

func (p *ExtraProperties) merge(other ExtraProperties) {
	mergeAttributeMap(&p.ExtraAttributes, other.ExtraAttributes)
	mergeStringSet(&p.ExtraObjectClasses, other.ExtraObjectClasses)
	mergeUUID(&p.UUID, other.UUID)
}

func (p *ExtraProperties) decodeField(key string, value any) (bool, error) {
	switch key {
	case "uuid":
		decoded, err := decodeUUID(value)
		if err != nil {
			return true, err
		}
		p.UUID = decoded
		return true, nil
	case "extra_object_classes":
		decoded, err := decodeStringSet(value)
		if err != nil {
			return true, err
		}
		p.ExtraObjectClasses = decoded
		return true, nil
	}
	return false, nil
}

// addExtraAttribute records a config key that no entity field claimed.
func (p *ExtraProperties) addExtraAttribute(name string, values []string) {
	if p.ExtraAttributes == nil {
		p.ExtraAttributes = make(map[string][]string)
	}
	existing := p.ExtraAttributes[name]
	mergeStringList(&existing, values)
	p.ExtraAttributes[name] = existing
}
