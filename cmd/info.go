// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The mdsbridge authors

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openmds/mdsbridge/pkg/mds"
)

var infoShowAuth bool

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Read and display the device's diagnostic service configuration",
	Long: `Read the MDS feature reports from the device and print them.

The authorization header value is redacted by default; pass --show-auth to
print it in full.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ch, desc, err := openChannel()
		if err != nil {
			return err
		}
		defer ch.Close()

		session := mds.NewSession(ch)
		config, err := session.ReadDeviceConfig()
		if err != nil {
			return fmt.Errorf("read device config: %w", err)
		}

		auth := config.Authorization
		if !infoShowAuth {
			if name, _, ok := strings.Cut(auth, ":"); ok {
				auth = name + ": ***"
			} else if auth != "" {
				auth = "***"
			}
		}

		fmt.Printf("Connection:          %s\n", desc)
		fmt.Printf("Supported features:  0x%08X\n", config.SupportedFeatures)
		fmt.Printf("Device identifier:   %s\n", config.DeviceIdentifier)
		fmt.Printf("Data URI:            %s\n", config.DataURI)
		fmt.Printf("Authorization:       %s\n", auth)
		return nil
	},
}

func init() {
	infoCmd.Flags().BoolVar(&infoShowAuth, "show-auth", false, "Print the authorization header unredacted")
	rootCmd.AddCommand(infoCmd)
}
