/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sdjwtcmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/PaesslerAG/gval"
	"github.com/PaesslerAG/jsonpath"
	"github.com/spf13/cobra"

	"github.com/emotionlink/sdjwt/pkg/config/lookup"
	afgjwt "github.com/emotionlink/sdjwt/pkg/doc/jwt"
	"github.com/emotionlink/sdjwt/pkg/doc/sdjwt/common"
	"github.com/emotionlink/sdjwt/pkg/doc/sdjwt/verifier"
)

const (
	verifyInFlagUsage = "File with the SD-JWT presentation."

	verifyAudienceConfigKey = "verifier.audience"
	verifyAudienceFlagUsage = "Expected aud of the key binding JWT." +
		" Alternatively, this can be set with the following environment variable: SDJWT_VERIFIER_AUDIENCE"

	verifyNonceConfigKey = "verifier.nonce"
	verifyNonceFlagUsage = "Expected nonce of the key binding JWT (optional)." +
		" Alternatively, this can be set with the following environment variable: SDJWT_VERIFIER_NONCE"

	typFlagName  = "typ"
	typConfigKey = "verifier.typ"
	typFlagUsage = "Expected typ header of the issuer JWT. An empty value disables the check." +
		" Alternatively, this can be set with the following environment variable: SDJWT_VERIFIER_TYP"

	leewayFlagName  = "leeway"
	leewayConfigKey = "verifier.leeway"
	leewayFlagUsage = "Clock skew allowed in time claim checks, e.g. 30s (optional)." +
		" Alternatively, this can be set with the following environment variable: SDJWT_VERIFIER_LEEWAY"

	queryFlagName  = "query"
	queryConfigKey = "verifier.query"
	queryFlagUsage = "JSONPath expression applied to the verified claims, e.g. $.address.country (optional)." +
		" Only the selected value is printed." +
		" Alternatively, this can be set with the following environment variable: SDJWT_VERIFIER_QUERY"
)

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify an SD-JWT presentation",
		Long:  "Verify an SD-JWT presentation with key binding and print the disclosed claims",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initCommand(cmd)
			if err != nil {
				return err
			}

			result, err := verify(cmd, cfg)
			if err != nil {
				return err
			}

			query, err := getUserSetVar(cmd, cfg, queryFlagName, queryConfigKey, true)
			if err != nil {
				return err
			}

			selected, err := selectClaims(result.Claims, query)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(selected, "", "  ")
			if err != nil {
				return err
			}

			return writeOutput(cmd, append(out, '\n'))
		},
	}

	cmd.Flags().StringP(inFlagName, inFlagShorthand, "", verifyInFlagUsage)
	cmd.Flags().StringP(issuerPublicKeyFlagName, "", "", issuerPublicKeyFlagUsage)
	cmd.Flags().StringP(audienceFlagName, "", "", verifyAudienceFlagUsage)
	cmd.Flags().StringP(nonceFlagName, "", "", verifyNonceFlagUsage)
	cmd.Flags().StringP(typFlagName, "", common.MediaTypeSDJWT, typFlagUsage)
	cmd.Flags().StringP(leewayFlagName, "", "", leewayFlagUsage)
	cmd.Flags().StringP(queryFlagName, "q", "", queryFlagUsage)
	cmd.Flags().StringP(outFlagName, outFlagShorthand, "", outFlagUsage)

	return cmd
}

func verify(cmd *cobra.Command, cfg *lookup.ConfigLookup) (*verifier.VerificationResult, error) {
	presentation, err := readInput(cmd, cfg)
	if err != nil {
		return nil, err
	}

	issuerKeyFile, err := getUserSetVar(cmd, cfg, issuerPublicKeyFlagName, issuerPublicKeyConfigKey, false)
	if err != nil {
		return nil, err
	}

	issuerKey, err := loadPublicJWK(issuerKeyFile)
	if err != nil {
		return nil, err
	}

	sigVerifier, err := afgjwt.NewVerifierFromJWK(issuerKey)
	if err != nil {
		return nil, err
	}

	audience, err := getUserSetVar(cmd, cfg, audienceFlagName, verifyAudienceConfigKey, false)
	if err != nil {
		return nil, err
	}

	nonce, err := getUserSetVar(cmd, cfg, nonceFlagName, verifyNonceConfigKey, true)
	if err != nil {
		return nil, err
	}

	typ, err := getUserSetVar(cmd, cfg, typFlagName, typConfigKey, true)
	if err != nil {
		return nil, err
	}

	leewayValue, err := getUserSetVar(cmd, cfg, leewayFlagName, leewayConfigKey, true)
	if err != nil {
		return nil, err
	}

	opts := []verifier.ParseOpt{
		verifier.WithSignatureVerifier(sigVerifier),
		verifier.WithExpectedAudience(audience),
		verifier.WithExpectedTypHeader(typ),
	}

	// unset keeps the verifier's default leeway
	if leewayValue != "" {
		leeway, e := parseDuration(leewayFlagName, leewayValue)
		if e != nil {
			return nil, e
		}

		opts = append(opts, verifier.WithLeeway(leeway))
	}

	if nonce != "" {
		opts = append(opts, verifier.WithExpectedNonce(nonce))
	}

	result, err := verifier.Parse(presentation, opts...)
	if err != nil {
		return nil, fmt.Errorf("presentation rejected: %w", err)
	}

	return result, nil
}

func selectClaims(claims map[string]interface{}, query string) (interface{}, error) {
	if query == "" {
		return claims, nil
	}

	builder := gval.Full(jsonpath.PlaceholderExtension())

	path, err := builder.NewEvaluable(query)
	if err != nil {
		return nil, fmt.Errorf("failed to build new json path evaluator: %w", err)
	}

	selected, err := path(context.TODO(), claims)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate json path %s: %w", query, err)
	}

	return selected, nil
}
