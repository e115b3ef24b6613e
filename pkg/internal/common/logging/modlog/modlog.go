/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package modlog provides a moduled wrapper for any underlying log.Logger implementation.
package modlog

import (
	"github.com/emotionlink/sdjwt/pkg/internal/common/logging/metadata"
	"github.com/emotionlink/sdjwt/spi/log"
)

// NewModLog returns new moduled logger instance based on given logger implementation and module.
func NewModLog(logger log.Logger, module string) *ModLog {
	return &ModLog{logger: logger, module: module}
}

// ModLog is a moduled wrapper for any underlying 'log.Logger' implementation.
// Each module can have a different logging level (default is INFO).
type ModLog struct {
	logger log.Logger
	module string
}

// Fatalf calls underlying logger.Fatalf.
func (m *ModLog) Fatalf(format string, args ...interface{}) {
	m.logger.Fatalf(format, args...)
}

// Panicf calls underlying logger.Panicf.
func (m *ModLog) Panicf(format string, args ...interface{}) {
	m.logger.Panicf(format, args...)
}

// Debugf calls underlying logger.Debugf if DEBUG level is enabled.
func (m *ModLog) Debugf(format string, args ...interface{}) {
	if !metadata.IsEnabledFor(m.module, log.DEBUG) {
		return
	}

	m.logger.Debugf(format, args...)
}

// Infof calls underlying logger.Infof if INFO level is enabled.
func (m *ModLog) Infof(format string, args ...interface{}) {
	if !metadata.IsEnabledFor(m.module, log.INFO) {
		return
	}

	m.logger.Infof(format, args...)
}

// Warnf calls underlying logger.Warnf if WARNING level is enabled.
func (m *ModLog) Warnf(format string, args ...interface{}) {
	if !metadata.IsEnabledFor(m.module, log.WARNING) {
		return
	}

	m.logger.Warnf(format, args...)
}

// Errorf calls underlying logger.Errorf if ERROR level is enabled.
func (m *ModLog) Errorf(format string, args ...interface{}) {
	if !metadata.IsEnabledFor(m.module, log.ERROR) {
		return
	}

	m.logger.Errorf(format, args...)
}
