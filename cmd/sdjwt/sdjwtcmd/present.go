/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sdjwtcmd

import (
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/spf13/cobra"

	"github.com/emotionlink/sdjwt/pkg/config/lookup"
	afgjwt "github.com/emotionlink/sdjwt/pkg/doc/jwt"
	"github.com/emotionlink/sdjwt/pkg/doc/sdjwt/holder"
)

const (
	presentInFlagUsage = "File with the issued SD-JWT in the combined format."

	issuerPublicKeyFlagName  = "issuer-public-key"
	issuerPublicKeyConfigKey = "verifier.issuer_key_file"
	issuerPublicKeyFlagUsage = "PEM or JWK file with the issuer public key." +
		" Alternatively, this can be set with the following environment variable: SDJWT_VERIFIER_ISSUER_KEY_FILE"

	holderKeyFlagName  = "holder-key"
	holderKeyConfigKey = "holder.key_file"
	holderKeyFlagUsage = "PEM file with the holder private key. A key binding JWT is added when set." +
		" Alternatively, this can be set with the following environment variable: SDJWT_HOLDER_KEY_FILE"

	discloseFlagName  = "disclose"
	discloseConfigKey = "holder.disclose"
	discloseFlagUsage = "Name or JSON pointer of a claim to disclose. This flag can be repeated." +
		" Alternatively, this can be set with the following environment variable (in CSV format): " +
		"SDJWT_HOLDER_DISCLOSE"

	nonceFlagName         = "nonce"
	presentNonceConfigKey = "presentation.nonce"
	presentNonceFlagUsage = "Verifier nonce for the key binding JWT." +
		" Alternatively, this can be set with the following environment variable: SDJWT_PRESENTATION_NONCE"

	audienceFlagName         = "audience"
	presentAudienceConfigKey = "presentation.audience"
	presentAudienceFlagUsage = "Verifier identifier for the key binding JWT." +
		" Alternatively, this can be set with the following environment variable: SDJWT_PRESENTATION_AUDIENCE"

	expiresInFlagName         = "expires-in"
	presentExpiresInConfigKey = "presentation.expires_in"
	presentExpiresInFlagUsage = "Key binding JWT lifetime, e.g. 5m (optional)." +
		" Alternatively, this can be set with the following environment variable: SDJWT_PRESENTATION_EXPIRES_IN"
)

func presentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "present",
		Short: "Create an SD-JWT presentation",
		Long:  "Select disclosures of an issued SD-JWT and optionally bind the presentation to the holder key",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initCommand(cmd)
			if err != nil {
				return err
			}

			presentation, err := present(cmd, cfg)
			if err != nil {
				return err
			}

			return writeOutput(cmd, []byte(presentation+"\n"))
		},
	}

	cmd.Flags().StringP(inFlagName, inFlagShorthand, "", presentInFlagUsage)
	cmd.Flags().StringP(issuerPublicKeyFlagName, "", "", issuerPublicKeyFlagUsage)
	cmd.Flags().StringP(holderKeyFlagName, "", "", holderKeyFlagUsage)
	cmd.Flags().StringSliceP(discloseFlagName, "d", []string{}, discloseFlagUsage)
	cmd.Flags().StringP(nonceFlagName, "", "", presentNonceFlagUsage)
	cmd.Flags().StringP(audienceFlagName, "", "", presentAudienceFlagUsage)
	cmd.Flags().StringP(expiresInFlagName, "", "", presentExpiresInFlagUsage)
	cmd.Flags().StringP(outFlagName, outFlagShorthand, "", outFlagUsage)

	return cmd
}

func present(cmd *cobra.Command, cfg *lookup.ConfigLookup) (string, error) { //nolint:funlen
	combinedFormatForIssuance, err := readInput(cmd, cfg)
	if err != nil {
		return "", err
	}

	issuerKeyFile, err := getUserSetVar(cmd, cfg, issuerPublicKeyFlagName, issuerPublicKeyConfigKey, false)
	if err != nil {
		return "", err
	}

	issuerKey, err := loadPublicJWK(issuerKeyFile)
	if err != nil {
		return "", err
	}

	verifier, err := afgjwt.NewVerifierFromJWK(issuerKey)
	if err != nil {
		return "", err
	}

	claims, err := holder.Parse(combinedFormatForIssuance, holder.WithSignatureVerifier(verifier))
	if err != nil {
		return "", fmt.Errorf("failed to parse SD-JWT: %w", err)
	}

	names, err := getUserSetVars(cmd, cfg, discloseFlagName, discloseConfigKey)
	if err != nil {
		return "", err
	}

	disclosures, err := holder.SelectDisclosures(claims, names)
	if err != nil {
		return "", err
	}

	var opts []holder.Option

	holderKeyFile, err := getUserSetVar(cmd, cfg, holderKeyFlagName, holderKeyConfigKey, true)
	if err != nil {
		return "", err
	}

	if holderKeyFile != "" {
		info, e := bindingInfo(cmd, cfg, holderKeyFile)
		if e != nil {
			return "", e
		}

		opts = append(opts, holder.WithHolderBinding(info))
	}

	logger.Debugf("presenting %d of %d disclosures", len(disclosures), len(claims))

	return holder.CreatePresentation(combinedFormatForIssuance, disclosures, opts...)
}

func bindingInfo(cmd *cobra.Command, cfg *lookup.ConfigLookup, holderKeyFile string) (*holder.BindingInfo, error) {
	privKey, err := loadPrivateKey(holderKeyFile)
	if err != nil {
		return nil, err
	}

	signer, err := afgjwt.NewSignerFromKey(privKey, nil)
	if err != nil {
		return nil, err
	}

	nonce, err := getUserSetVar(cmd, cfg, nonceFlagName, presentNonceConfigKey, false)
	if err != nil {
		return nil, err
	}

	audience, err := getUserSetVar(cmd, cfg, audienceFlagName, presentAudienceConfigKey, false)
	if err != nil {
		return nil, err
	}

	expiresIn, err := getDuration(cmd, cfg, expiresInFlagName, presentExpiresInConfigKey)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	payload := holder.BindingPayload{
		Nonce:    nonce,
		Audience: audience,
		IssuedAt: jwt.NewNumericDate(now),
	}

	if expiresIn > 0 {
		payload.Expiry = jwt.NewNumericDate(now.Add(expiresIn))
	}

	return &holder.BindingInfo{
		Payload: payload,
		Signer:  signer,
	}, nil
}
