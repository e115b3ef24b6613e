/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sdjwtcmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/emotionlink/sdjwt/pkg/config/lookup"
	"github.com/emotionlink/sdjwt/pkg/doc/jose"
	"github.com/emotionlink/sdjwt/pkg/doc/jose/jwk"
	afgjwt "github.com/emotionlink/sdjwt/pkg/doc/jwt"
	"github.com/emotionlink/sdjwt/pkg/doc/sdjwt/issuer"
	"github.com/emotionlink/sdjwt/pkg/doc/util/jwkkid"
)

const (
	claimsFileFlagName      = "claims-file"
	claimsFileFlagShorthand = "c"
	claimsFileFlagUsage     = "Credential profile (YAML or JSON) with claims, conceal and decoys entries."

	issuerKeyFlagName  = "issuer-key"
	issuerKeyConfigKey = "issuer.key_file"
	issuerKeyFlagUsage = "PEM file with the issuer private key (PKCS#8, SEC1 or PKCS#1)." +
		" Alternatively, this can be set with the following environment variable: SDJWT_ISSUER_KEY_FILE"

	holderPublicKeyFlagName  = "holder-public-key"
	holderPublicKeyConfigKey = "holder.public_key_file"
	holderPublicKeyFlagUsage = "PEM or JWK file with the holder public key, added as cnf.jwk (optional)." +
		" Alternatively, this can be set with the following environment variable: SDJWT_HOLDER_PUBLIC_KEY_FILE"

	issuerIDFlagName  = "issuer"
	issuerIDConfigKey = "issuer.id"
	issuerIDFlagUsage = "Issuer identifier, the iss claim." +
		" Alternatively, this can be set with the following environment variable: SDJWT_ISSUER_ID"

	vctFlagName  = "vct"
	vctConfigKey = "issuer.vct"
	vctFlagUsage = "Verifiable credential type, the vct claim (optional)." +
		" Alternatively, this can be set with the following environment variable: SDJWT_ISSUER_VCT"

	issuerAudienceFlagName  = "audience"
	issuerAudienceConfigKey = "issuer.audience"
	issuerAudienceFlagUsage = "Credential audience, the aud claim (optional)." +
		" Alternatively, this can be set with the following environment variable: SDJWT_ISSUER_AUDIENCE"

	issuerExpiresInFlagName  = "expires-in"
	issuerExpiresInConfigKey = "issuer.expires_in"
	issuerExpiresInFlagUsage = "Credential lifetime, e.g. 24h (optional)." +
		" Alternatively, this can be set with the following environment variable: SDJWT_ISSUER_EXPIRES_IN"

	keyIDFlagName  = "key-id"
	keyIDConfigKey = "issuer.key_id"
	keyIDFlagUsage = "kid header. Defaults to the JWK thumbprint of the issuer key." +
		" Alternatively, this can be set with the following environment variable: SDJWT_ISSUER_KEY_ID"

	concealFlagName  = "conceal"
	concealFlagUsage = "JSON pointer of a claim to make selectively disclosable. This flag can be repeated." +
		" Overrides the conceal list of the credential profile." +
		" Defaults to every top level claim."

	decoysFlagName  = "decoys"
	decoysConfigKey = "issuer.decoys"
	decoysFlagUsage = "Number of decoy digests added to every object with disclosures (optional)." +
		" Alternatively, this can be set with the following environment variable: SDJWT_ISSUER_DECOYS"

	hashAlgFlagName  = "hash-alg"
	hashAlgConfigKey = "issuer.hash_alg"
	hashAlgFlagUsage = "Disclosure digest algorithm. Possible values [sha-256] [sha-384] [sha-512] [sha3-256]" +
		" [sha3-512]. Defaults to sha-256." +
		" Alternatively, this can be set with the following environment variable: SDJWT_ISSUER_HASH_ALG"
)

func issueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue an SD-JWT credential",
		Long:  "Issue an SD-JWT credential in the combined format <jwt>~<disclosure>~...~",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initCommand(cmd)
			if err != nil {
				return err
			}

			combinedFormat, err := issue(cmd, cfg)
			if err != nil {
				return err
			}

			return writeOutput(cmd, []byte(combinedFormat+"\n"))
		},
	}

	cmd.Flags().StringP(claimsFileFlagName, claimsFileFlagShorthand, "", claimsFileFlagUsage)
	cmd.Flags().StringP(issuerKeyFlagName, "", "", issuerKeyFlagUsage)
	cmd.Flags().StringP(holderPublicKeyFlagName, "", "", holderPublicKeyFlagUsage)
	cmd.Flags().StringP(issuerIDFlagName, "", "", issuerIDFlagUsage)
	cmd.Flags().StringP(vctFlagName, "", "", vctFlagUsage)
	cmd.Flags().StringP(issuerAudienceFlagName, "", "", issuerAudienceFlagUsage)
	cmd.Flags().StringP(issuerExpiresInFlagName, "", "", issuerExpiresInFlagUsage)
	cmd.Flags().StringP(keyIDFlagName, "", "", keyIDFlagUsage)
	cmd.Flags().StringSliceP(concealFlagName, "", []string{}, concealFlagUsage)
	cmd.Flags().StringP(decoysFlagName, "", "", decoysFlagUsage)
	cmd.Flags().StringP(hashAlgFlagName, "", "", hashAlgFlagUsage)
	cmd.Flags().StringP(outFlagName, outFlagShorthand, "", outFlagUsage)

	return cmd
}

func issue(cmd *cobra.Command, cfg *lookup.ConfigLookup) (string, error) { //nolint:funlen,gocyclo
	profileFile, err := getUserSetVar(cmd, cfg, claimsFileFlagName, "", false)
	if err != nil {
		return "", err
	}

	profile, err := loadProfile(profileFile)
	if err != nil {
		return "", err
	}

	issuerID, err := getUserSetVar(cmd, cfg, issuerIDFlagName, issuerIDConfigKey, false)
	if err != nil {
		return "", err
	}

	keyFile, err := getUserSetVar(cmd, cfg, issuerKeyFlagName, issuerKeyConfigKey, false)
	if err != nil {
		return "", err
	}

	privKey, err := loadPrivateKey(keyFile)
	if err != nil {
		return "", err
	}

	kid, err := getUserSetVar(cmd, cfg, keyIDFlagName, keyIDConfigKey, true)
	if err != nil {
		return "", err
	}

	if kid == "" {
		kid, err = defaultKeyID(privKey)
		if err != nil {
			return "", err
		}
	}

	signer, err := afgjwt.NewSignerFromKey(privKey, nil)
	if err != nil {
		return "", err
	}

	now := time.Now()

	opts := []issuer.NewOpt{
		issuer.WithIssuedAt(jwt.NewNumericDate(now)),
		issuer.WithJTI(uuid.NewString()),
	}

	stringOpts := []struct {
		flagName, configKey string
		opt                 func(string) issuer.NewOpt
	}{
		{vctFlagName, vctConfigKey, issuer.WithVCT},
		{issuerAudienceFlagName, issuerAudienceConfigKey, issuer.WithAudience},
		{hashAlgFlagName, hashAlgConfigKey, issuer.WithHashAlgorithm},
	}

	for _, so := range stringOpts {
		value, e := getUserSetVar(cmd, cfg, so.flagName, so.configKey, true)
		if e != nil {
			return "", e
		}

		if value != "" {
			opts = append(opts, so.opt(value))
		}
	}

	expiresIn, err := getDuration(cmd, cfg, issuerExpiresInFlagName, issuerExpiresInConfigKey)
	if err != nil {
		return "", err
	}

	if expiresIn > 0 {
		opts = append(opts, issuer.WithExpiry(jwt.NewNumericDate(now.Add(expiresIn))))
	}

	holderKeyFile, err := getUserSetVar(cmd, cfg, holderPublicKeyFlagName, holderPublicKeyConfigKey, true)
	if err != nil {
		return "", err
	}

	if holderKeyFile != "" {
		holderKey, e := loadPublicJWK(holderKeyFile)
		if e != nil {
			return "", e
		}

		opts = append(opts, issuer.WithHolderPublicKey(holderKey))
	}

	decoys, err := getDecoys(cmd, cfg, profile)
	if err != nil {
		return "", err
	}

	opts = append(opts, issuer.WithDecoyDigests(decoys))

	conceal, err := getUserSetVars(cmd, cfg, concealFlagName, "")
	if err != nil {
		return "", err
	}

	if len(conceal) == 0 {
		conceal = profile.Conceal
	}

	if len(conceal) > 0 {
		opts = append(opts, issuer.WithSelectiveClaims(conceal...))
	}

	claims, err := profile.claimsJSON()
	if err != nil {
		return "", err
	}

	token, err := issuer.New(issuerID, claims, jose.Headers{jose.HeaderKeyID: kid}, signer, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to issue SD-JWT: %w", err)
	}

	logger.Debugf("issued SD-JWT with %d disclosures", len(token.Disclosures))

	return token.Serialize()
}

func defaultKeyID(privKey interface{}) (string, error) {
	key, err := jwk.JWKFromKey(privKey)
	if err != nil {
		return "", err
	}

	return jwkkid.CreateKID(key)
}

func getDecoys(cmd *cobra.Command, cfg *lookup.ConfigLookup, profile *credentialProfile) (int, error) {
	value, err := getUserSetVar(cmd, cfg, decoysFlagName, decoysConfigKey, true)
	if err != nil {
		return 0, err
	}

	if value == "" {
		if profile.Decoys != nil {
			return *profile.Decoys, nil
		}

		return 0, nil
	}

	decoys, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value '%s': %w", decoysFlagName, value, err)
	}

	return decoys, nil
}

func getDuration(cmd *cobra.Command, cfg *lookup.ConfigLookup, flagName, configKey string) (time.Duration, error) {
	value, err := getUserSetVar(cmd, cfg, flagName, configKey, true)
	if err != nil {
		return 0, err
	}

	if value == "" {
		return 0, nil
	}

	return parseDuration(flagName, value)
}

func parseDuration(flagName, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value '%s': %w", flagName, value, err)
	}

	return d, nil
}
