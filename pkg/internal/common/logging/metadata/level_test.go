/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package metadata

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emotionlink/sdjwt/spi/log"
)

func TestModuleLevels(t *testing.T) {
	r := require.New(t)

	ml := newModuledLevels()

	r.Equal(log.INFO, ml.GetLevel("unknown"))

	ml.SetLevel("", log.WARNING)
	r.Equal(log.WARNING, ml.GetLevel("unknown"))

	ml.SetLevel("sdjwt/issuer", log.DEBUG)
	r.Equal(log.DEBUG, ml.GetLevel("sdjwt/issuer"))
	r.True(ml.IsEnabledFor("sdjwt/issuer", log.DEBUG))
	r.False(ml.IsEnabledFor("unknown", log.INFO))
	r.True(ml.IsEnabledFor("unknown", log.ERROR))
}

func TestParseLevel(t *testing.T) {
	t.Run("success - all level names", func(t *testing.T) {
		expected := []log.Level{log.CRITICAL, log.ERROR, log.WARNING, log.INFO, log.DEBUG}

		for i, name := range []string{"critical", "ERROR", "Warning", "info", "debug"} {
			l, err := ParseLevel(name)
			require.NoError(t, err)
			require.Equal(t, expected[i], l)
		}

		l, err := ParseLevel("warn")
		require.NoError(t, err)
		require.Equal(t, log.WARNING, l)
	})

	t.Run("error - unknown level", func(t *testing.T) {
		l, err := ParseLevel("verbose")
		require.Error(t, err)
		require.Equal(t, log.ERROR, l)
	})
}
