// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The mdsbridge authors

package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// HID connection flags
	hidVendorID  uint16
	hidProductID uint16

	// WebSocket tunnel flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Serial bridge flags
	serialPortName string
	serialBaudRate int

	// Global flags
	settingsPath string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "mdsbridge",
	Short: "MDS-over-HID diagnostic data bridge",
	Long: `mdsbridge - Bridge Memfault Diagnostic Service data from HID devices to the cloud.

Devices expose the MDS protocol through vendor HID reports: feature reports
for identity, upload destination, and authorization; an output report for
stream control; and input reports carrying diagnostic chunks. mdsbridge
reads that protocol and forwards the chunks to the ingestion endpoint the
device advertises.

Connection modes:
  HID:       --vid 0x2FE3 --pid 0x0100
  WebSocket: --url ws://host/path [--username user]
  Serial:    --port /dev/ttyACM0 [--baud 115200]

For WebSocket authentication, the password is read from the MDSBRIDGE_PASSWORD
environment variable, or prompted interactively when a username is given and
the variable is unset.`,
	Version: "1.0.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

		if settingsPath != "" {
			settings, err := loadSettings(settingsPath)
			if err != nil {
				return err
			}
			applySettings(cmd, settings)
		}

		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}
		zerolog.SetGlobalLevel(level)
		return nil
	},
}

func init() {
	// HID connection flags
	rootCmd.PersistentFlags().Uint16Var(&hidVendorID, "vid", 0, "USB vendor ID filter (0 for any)")
	rootCmd.PersistentFlags().Uint16Var(&hidProductID, "pid", 0, "USB product ID filter (0 for any)")

	// WebSocket tunnel flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket tunnel URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Serial bridge flags
	rootCmd.PersistentFlags().StringVarP(&serialPortName, "port", "p", "", "Serial bridge device")
	rootCmd.PersistentFlags().IntVarP(&serialBaudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&settingsPath, "config", "c", "", "Settings file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
