/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package main is the sdjwt command: it issues, presents and verifies SD-JWT credentials.
package main

import (
	"github.com/emotionlink/sdjwt/cmd/sdjwt/sdjwtcmd"
	"github.com/emotionlink/sdjwt/pkg/common/log"
)

func main() {
	logger := log.New("sdjwt/cmd")

	rootCmd := sdjwtcmd.Cmd()

	if err := rootCmd.Execute(); err != nil {
		logger.Fatalf("Failed to run sdjwt: %s", err)
	}
}
