/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"strings"

	"github.com/spf13/viper"
)

// viperBackend serves config lookups from viper, environment first, then the merged file content.
type viperBackend struct {
	v *viper.Viper
}

func newViperBackend(envPrefix string) *viperBackend {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return &viperBackend{v: v}
}

// Lookup gets the config item value by key. Blank strings count as unset, so an empty
// "audience: ''" entry does not satisfy a required value.
func (b *viperBackend) Lookup(key string) (interface{}, bool) {
	switch value := b.v.Get(key).(type) {
	case nil:
		return nil, false
	case string:
		if strings.TrimSpace(value) == "" {
			return nil, false
		}

		return value, true
	default:
		return value, true
	}
}
