/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package metadata keeps the per module log level registry.
package metadata

import (
	"errors"
	"strings"
	"sync"

	"github.com/emotionlink/sdjwt/spi/log"
)

const (
	defaultLogLevel   = log.INFO
	defaultModuleName = ""
)

//nolint:gochecknoglobals
var levels = newModuledLevels()

func newModuledLevels() *moduleLevels {
	return &moduleLevels{levels: make(map[string]log.Level)}
}

// moduleLevels maintains log levels based on modules.
type moduleLevels struct {
	mu     sync.RWMutex
	levels map[string]log.Level
}

// GetLevel returns the log level for given module.
// A module without its own entry falls back to the default module, then to INFO.
func (l *moduleLevels) GetLevel(module string) log.Level {
	l.mu.RLock()
	defer l.mu.RUnlock()

	level, exists := l.levels[module]
	if !exists {
		level, exists = l.levels[defaultModuleName]
		if !exists {
			return defaultLogLevel
		}
	}

	return level
}

// SetLevel sets the log level for given module.
func (l *moduleLevels) SetLevel(module string, level log.Level) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.levels[module] = level
}

// IsEnabledFor will return true if logging is enabled for given module and level.
func (l *moduleLevels) IsEnabledFor(module string, level log.Level) bool {
	return level <= l.GetLevel(module)
}

// SetLevel sets the log level for given module. An empty module sets the default level.
func SetLevel(module string, level log.Level) {
	levels.SetLevel(module, level)
}

// GetLevel returns the log level for given module.
func GetLevel(module string) log.Level {
	return levels.GetLevel(module)
}

// IsEnabledFor returns true if given level is enabled for given module.
func IsEnabledFor(module string, level log.Level) bool {
	return levels.IsEnabledFor(module, level)
}

// ParseLevel returns the log level from a string representation.
func ParseLevel(level string) (log.Level, error) {
	for l := log.CRITICAL; l <= log.DEBUG; l++ {
		if strings.EqualFold(l.String(), level) {
			return l, nil
		}
	}

	// "warn" is accepted as well since logrus names the level that way.
	if strings.EqualFold(level, "warn") {
		return log.WARNING, nil
	}

	return log.ERROR, errors.New("logger: invalid log level")
}
