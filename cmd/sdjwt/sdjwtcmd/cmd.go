/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package sdjwtcmd implements the sdjwt cobra commands.
//
// Every value can be given as a command line flag, as a key of the --config file or as an
// environment variable (SDJWT_ prefix, dots replaced by underscores). Flags win over the environment,
// the environment wins over the config file.
package sdjwtcmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/emotionlink/sdjwt/pkg/common/log"
	"github.com/emotionlink/sdjwt/pkg/config"
	"github.com/emotionlink/sdjwt/pkg/config/lookup"
)

var logger = log.New("sdjwt/cmd")

const (
	// config file flag.
	configFileFlagName  = "config"
	configFileFlagUsage = "Path to a YAML or JSON config file (optional)." +
		" Keys can be overridden with environment variables prefixed with SDJWT_."

	// log level.
	logLevelFlagName  = "log-level"
	logLevelConfigKey = "log.level"
	logLevelFlagUsage = "Log level." +
		" Possible values [INFO] [DEBUG] [ERROR] [WARNING] [CRITICAL] . Defaults to INFO if not set." +
		" Alternatively, this can be set with the following environment variable: SDJWT_LOG_LEVEL"

	// output file flag.
	outFlagName      = "out"
	outFlagShorthand = "o"
	outFlagUsage     = "Output file. Defaults to standard output."

	// input file flag.
	inFlagName      = "in"
	inFlagShorthand = "i"
)

// Cmd returns the sdjwt root command with all subcommands.
func Cmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "sdjwt",
		Short:        "Issue, present and verify SD-JWT credentials",
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	rootCmd.PersistentFlags().StringP(configFileFlagName, "", "", configFileFlagUsage)
	rootCmd.PersistentFlags().StringP(logLevelFlagName, "", "", logLevelFlagUsage)

	rootCmd.AddCommand(issueCmd(), presentCmd(), verifyCmd(), jwkCmd())

	return rootCmd
}

// initCommand loads the configuration and applies the log level. It runs first in every subcommand.
func initCommand(cmd *cobra.Command) (*lookup.ConfigLookup, error) {
	provider := config.FromEnv()

	configFile, err := cmd.Flags().GetString(configFileFlagName)
	if err == nil && configFile != "" {
		provider = config.FromFile(configFile)
	}

	backend, err := provider()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log.SetOutput(cmd.ErrOrStderr())

	cfg := lookup.New(backend)

	logLevel, err := getUserSetVar(cmd, cfg, logLevelFlagName, logLevelConfigKey, true)
	if err != nil {
		return nil, err
	}

	if err = setLogLevel(logLevel); err != nil {
		return nil, err
	}

	return cfg, nil
}

// getUserSetVar returns the flag value when the flag was set, otherwise the value of configKey.
// Optional values fall back to the flag default.
func getUserSetVar(cmd *cobra.Command, cfg *lookup.ConfigLookup, flagName, configKey string,
	isOptional bool) (string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetString(flagName)
		if err != nil {
			return "", fmt.Errorf(flagName+" flag not found: %s", err)
		}

		return value, nil
	}

	if configKey != "" {
		if _, isSet := cfg.Lookup(configKey); isSet {
			return cfg.GetString(configKey), nil
		}
	}

	if isOptional {
		value, err := cmd.Flags().GetString(flagName)
		if err != nil {
			return "", fmt.Errorf(flagName+" flag not found: %s", err)
		}

		return value, nil
	}

	if configKey == "" {
		return "", errors.New("--" + flagName + " (command line flag) has not been set.")
	}

	return "", errors.New("Neither --" + flagName + " (command line flag) nor " + configKey +
		" (config key or " + envKey(configKey) + " environment variable) have been set.")
}

func getUserSetVars(cmd *cobra.Command, cfg *lookup.ConfigLookup, flagName, configKey string) ([]string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetStringSlice(flagName)
		if err != nil {
			return nil, fmt.Errorf(flagName+" flag not found: %s", err)
		}

		return value, nil
	}

	if configKey == "" {
		return nil, nil
	}

	return cfg.GetStringSlice(configKey), nil
}

func envKey(configKey string) string {
	return strings.ToUpper(strings.NewReplacer(".", "_").Replace("SDJWT_" + configKey))
}

func setLogLevel(logLevel string) error {
	if logLevel != "" {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("failed to parse log level '%s' : %w", logLevel, err)
		}

		log.SetLevel("", level)

		logger.Debugf("logger level set to %s", logLevel)
	}

	return nil
}

// writeOutput writes data to the --out file, or to the command output when no file is given.
func writeOutput(cmd *cobra.Command, data []byte) error {
	outFile, err := cmd.Flags().GetString(outFlagName)
	if err != nil || outFile == "" {
		_, err = cmd.OutOrStdout().Write(data)

		return err
	}

	if err = os.WriteFile(outFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", outFile, err)
	}

	return nil
}

func readInput(cmd *cobra.Command, cfg *lookup.ConfigLookup) (string, error) {
	inFile, err := getUserSetVar(cmd, cfg, inFlagName, "", false)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(inFile)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", inFile, err)
	}

	return strings.TrimSpace(string(data)), nil
}
