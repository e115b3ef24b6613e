/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package lookup provides typed access to a configuration backend.
package lookup

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// ConfigProvider provides config backend.
type ConfigProvider func() (ConfigBackend, error)

// ConfigBackend backend for all config types.
type ConfigBackend interface {
	Lookup(key string) (interface{}, bool)
}

// New providers lookup wrapper around given backend.
func New(backends ConfigBackend) *ConfigLookup {
	return &ConfigLookup{backend: backends}
}

// ConfigLookup is wrapper for ConfigBackend which performs key lookup and unmarshalling.
type ConfigLookup struct {
	backend ConfigBackend
}

// Lookup returns value for given key.
func (c *ConfigLookup) Lookup(key string) (interface{}, bool) {
	if c.backend == nil {
		return nil, false
	}

	val, ok := c.backend.Lookup(key)
	if ok {
		return val, true
	}

	return nil, false
}

// GetBool returns bool value for given key.
func (c *ConfigLookup) GetBool(key string) bool {
	value, ok := c.Lookup(key)
	if !ok {
		return false
	}

	return cast.ToBool(value)
}

// GetString returns string value for given key.
func (c *ConfigLookup) GetString(key string) string {
	value, ok := c.Lookup(key)
	if !ok {
		return ""
	}

	return cast.ToString(value)
}

// MustGetString returns the string value for given key, or an error when it is not set.
func (c *ConfigLookup) MustGetString(key string) (string, error) {
	value := c.GetString(key)
	if value == "" {
		return "", fmt.Errorf("config key '%s' is not set", key)
	}

	return value, nil
}

// GetStringSlice returns []string value for given key. A string value is split on commas (environment variables).
func (c *ConfigLookup) GetStringSlice(key string) []string {
	value, ok := c.Lookup(key)
	if !ok {
		return nil
	}

	if s, isString := value.(string); isString {
		if s == "" {
			return nil
		}

		parts := strings.Split(s, ",")

		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		return parts
	}

	return cast.ToStringSlice(value)
}

// GetInt returns int value for given key.
func (c *ConfigLookup) GetInt(key string) int {
	value, ok := c.Lookup(key)
	if !ok {
		return 0
	}

	return cast.ToInt(value)
}

// GetDuration returns time.Duration value for given key.
func (c *ConfigLookup) GetDuration(key string) time.Duration {
	value, ok := c.Lookup(key)
	if !ok {
		return 0
	}

	return cast.ToDuration(value)
}
