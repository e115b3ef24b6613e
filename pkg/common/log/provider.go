/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package log

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/emotionlink/sdjwt/pkg/internal/common/logging/modlog"
	"github.com/emotionlink/sdjwt/spi/log"
)

//nolint:gochecknoglobals
var providers = newRegistry()

// registry hands out level gated loggers. Until a custom provider is installed every module
// logs through one shared logrus logger.
type registry struct {
	once   sync.Once
	custom log.LoggerProvider
	std    *logrus.Logger
}

func newRegistry() *registry {
	return &registry{std: modlog.NewLogrus()}
}

// install sets the custom provider unless a logger was already handed out.
func (r *registry) install(custom log.LoggerProvider) bool {
	installed := false

	r.once.Do(func() {
		r.custom = custom
		installed = true
	})

	return installed
}

func (r *registry) GetLogger(module string) log.Logger {
	if r.install(nil) {
		r.GetLogger(loggerModule).Debugf(loggerNotInitializedMsg)
	}

	if r.custom != nil {
		return modlog.NewModLog(r.custom.GetLogger(module), module)
	}

	return modlog.NewModLog(modlog.NewDefLogWith(r.std, module), module)
}

// Initialize sets new custom logging provider which takes over logging operations.
// It has no effect once any logger has written a line.
func Initialize(l log.LoggerProvider) {
	if providers.install(l) {
		providers.GetLogger(loggerModule).Debugf("Logger provider initialized")
	}
}

// SetOutput redirects the built-in logger of every module, including loggers already in use.
// Custom providers manage their own output.
func SetOutput(w io.Writer) {
	providers.std.SetOutput(w)
}

func loggerProvider() log.LoggerProvider {
	return providers
}
