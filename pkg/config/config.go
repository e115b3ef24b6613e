/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package config loads the sdjwt command configuration from files, readers and the environment.
// Keys are dotted ("issuer.key_file") and can be overridden by environment variables
// with the prefix, dots replaced by underscores (SDJWT_ISSUER_KEY_FILE).
package config

import (
	"io"

	"github.com/pkg/errors"

	"github.com/emotionlink/sdjwt/pkg/config/lookup"
)

type options struct {
	envPrefix string
}

const (
	cmdRoot = "SDJWT"
)

// Option configures the package.
type Option func(opts *options)

// FromReader loads configuration from in.
// configType can be "json" or "yaml".
func FromReader(in io.Reader, configType string, opts ...Option) lookup.ConfigProvider {
	return func() (lookup.ConfigBackend, error) {
		return initFromReader(in, configType, opts...)
	}
}

// FromFile reads from named config file, the type is taken from the file extension.
func FromFile(name string, opts ...Option) lookup.ConfigProvider {
	return func() (lookup.ConfigBackend, error) {
		backend := newBackend(opts...)

		if name == "" {
			return nil, errors.New("filename is required")
		}

		backend.v.SetConfigFile(name)

		err := backend.v.MergeInConfig()
		if err != nil {
			return nil, errors.Wrap(err, "loading config file failed")
		}

		return backend, nil
	}
}

// FromEnv reads configuration from the environment only.
func FromEnv(opts ...Option) lookup.ConfigProvider {
	return func() (lookup.ConfigBackend, error) {
		return newBackend(opts...), nil
	}
}

func initFromReader(in io.Reader, configType string, opts ...Option) (lookup.ConfigBackend, error) {
	backend := newBackend(opts...)

	if configType == "" {
		return nil, errors.New("empty config type")
	}

	// read config from bytes array, but must set ConfigType
	// for viper to properly unmarshal the bytes array
	backend.v.SetConfigType(configType)

	err := backend.v.MergeConfig(in)
	if err != nil {
		return nil, errors.Wrap(err, "viper MergeConfig failed")
	}

	return backend, nil
}

// WithEnvPrefix defines the prefix for environment variable overrides.
func WithEnvPrefix(prefix string) Option {
	return func(opts *options) {
		opts.envPrefix = prefix
	}
}

func newBackend(opts ...Option) *viperBackend {
	o := options{
		envPrefix: cmdRoot,
	}

	for _, option := range opts {
		option(&o)
	}

	return newViperBackend(o.envPrefix)
}
