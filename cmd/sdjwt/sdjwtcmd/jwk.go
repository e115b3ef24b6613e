/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sdjwtcmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/emotionlink/sdjwt/pkg/doc/util/jwkkid"
)

const (
	keyFlagName      = "key"
	keyFlagShorthand = "k"
	keyFlagUsage     = "PEM or JWK file with a private or public key."
)

func jwkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jwk",
		Short: "Print the public JWK of a key",
		Long:  "Print the public JSON Web Key of a key, with its thumbprint as kid",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initCommand(cmd)
			if err != nil {
				return err
			}

			keyFile, err := getUserSetVar(cmd, cfg, keyFlagName, "", false)
			if err != nil {
				return err
			}

			pub, err := loadPublicJWK(keyFile)
			if err != nil {
				return err
			}

			if pub.KeyID == "" {
				pub.KeyID, err = jwkkid.CreateKID(pub)
				if err != nil {
					return err
				}
			}

			out, err := json.MarshalIndent(pub, "", "  ")
			if err != nil {
				return err
			}

			return writeOutput(cmd, append(out, '\n'))
		},
	}

	cmd.Flags().StringP(keyFlagName, keyFlagShorthand, "", keyFlagUsage)
	cmd.Flags().StringP(outFlagName, outFlagShorthand, "", outFlagUsage)

	return cmd
}
