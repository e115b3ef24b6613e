/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sdjwtcmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// credentialProfile describes a credential to issue. JSON files are read as YAML.
//
//	claims:
//	  account_name: acme
//	conceal:
//	  - /account_name
//	decoys: 1
type credentialProfile struct {
	Claims  map[string]interface{} `yaml:"claims"`
	Conceal []string               `yaml:"conceal"`
	Decoys  *int                   `yaml:"decoys"`
}

func loadProfile(path string) (*credentialProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credential profile: %w", err)
	}

	profile := &credentialProfile{}

	if err = yaml.Unmarshal(data, profile); err != nil {
		return nil, fmt.Errorf("parse credential profile %s: %w", path, err)
	}

	if len(profile.Claims) == 0 {
		return nil, errors.New("credential profile has no claims")
	}

	return profile, nil
}

// claimsJSON returns the profile claims as JSON so that numbers are decoded the same way as JWT payloads.
func (p *credentialProfile) claimsJSON() ([]byte, error) {
	data, err := json.Marshal(p.Claims)
	if err != nil {
		return nil, fmt.Errorf("credential profile claims: %w", err)
	}

	return data, nil
}
