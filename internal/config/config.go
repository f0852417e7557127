/*******************************************************************************
* Copyright 2024 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

// Package config contains the declarative description of the directory
// contents, as read from one or more TOML files, and the assembly of that
// description into LDAP entries.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"

	"github.com/majewsky/femtoldap/internal/core"
)

// Config is the merged contents of all configuration files.
type Config struct {
	// BaseDN is the suffix under which all entities live.
	BaseDN core.DN `toml:"base_dn"`

	Apps        []*AppAccount `toml:"apps"`
	Groups      []*Group      `toml:"groups"`
	MailAliases []*MailAlias  `toml:"mail_aliases"`
	Users       []*User       `toml:"users"`
}

// Load reads the main config file and, if configDir is set, merges every
// *.toml file in that directory (except the main config file itself).
func Load(configFile, configDir string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(configFile, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", configFile, err)
	}

	if configDir != "" {
		dirEntries, err := os.ReadDir(configDir)
		if err != nil {
			return nil, fmt.Errorf("cannot read config directory: %w", err)
		}
		mainPath := filepath.Clean(configFile)
		for _, dirEntry := range dirEntries {
			if dirEntry.IsDir() || !strings.HasSuffix(dirEntry.Name(), ".toml") {
				continue
			}
			path := filepath.Join(configDir, dirEntry.Name())
			if filepath.Clean(path) == mainPath {
				continue
			}
			var extra Config
			if _, err := toml.DecodeFile(path, &extra); err != nil {
				return nil, fmt.Errorf("cannot read %s: %w", path, err)
			}
			cfg.Merge(&extra)
			log.Debug().Str("name", path).Msg("Loaded extra config file")
		}
	}

	return &cfg, nil
}

// Merge folds the other config into this one. The base DN keeps the existing
// value if already set. Entities merge by their derived DN: an incoming entity
// whose DN matches an existing one is merged field-wise, any other is
// appended.
func (c *Config) Merge(other *Config) {
	if c.BaseDN.IsEmpty() {
		c.BaseDN = other.BaseDN
	}
	mergeEntityList(&c.Apps, other.Apps)
	mergeEntityList(&c.Groups, other.Groups)
	mergeEntityList(&c.MailAliases, other.MailAliases)
	mergeEntityList(&c.Users, other.Users)
}

// entity is satisfied by all four config entity types.
type entity[T any] interface {
	// dnFor derives the DN of this entity under the given base DN. The second
	// return value is false when the entity lacks its identifying field.
	dnFor(base core.DN) (core.DN, bool)
	merge(other T)
}

func mergeEntityList[T entity[T]](existing *[]T, incoming []T) {
	// the empty base DN serves as a stable identity for matching entities
	// across config files, independent of the (possibly still unmerged) base_dn
	for _, in := range incoming {
		dn, ok := in.dnFor(nil)
		if !ok {
			log.Warn().Msg("Could not create entity DN, entity dropped")
			continue
		}
		merged := false
		for _, ex := range *existing {
			exDN, ok := ex.dnFor(nil)
			if ok && exDN.Equal(dn) {
				log.Debug().Str("dn", dn.Display()).Msg("Merging entity")
				ex.merge(in)
				merged = true
				break
			}
		}
		if !merged {
			*existing = append(*existing, in)
		}
	}
}

func (c *Config) findGroup(name string) *Group {
	for _, group := range c.Groups {
		if group.Name == name {
			return group
		}
	}
	return nil
}
