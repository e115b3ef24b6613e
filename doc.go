/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package sdjwt issues, presents and verifies Selective Disclosure JWTs (SD-JWT).
//
// Packages for end developer usage
//
// pkg/doc/sdjwt/issuer: Creates SD-JWTs. Claims selected by JSON pointer are replaced by digests of their
// disclosures, decoy digests can be added to every object holding disclosures.
//
// pkg/doc/sdjwt/holder: Parses an issued SD-JWT, selects the disclosures to release and binds the
// presentation to the holder key with a key binding JWT.
//
// pkg/doc/sdjwt/verifier: Verifies a presentation with key binding in a fixed order of steps and returns
// the disclosed claims.
//
// cmd/sdjwt: Command line front end for the three roles.
//
// Basic workflow
//
//	1) The issuer signs claims with issuer.New and hands token.Serialize() to the holder.
//	2) The holder verifies it with holder.Parse and picks claims with holder.SelectDisclosures.
//	3) The holder creates the presentation with holder.CreatePresentation and holder.WithHolderBinding.
//	4) The verifier calls verifier.Parse with the issuer key, the expected audience and nonce.
package sdjwt
