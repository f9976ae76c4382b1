// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The mdsbridge authors

package cmd

import (
	"fmt"

	"github.com/KarpelesLab/hid"
	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List attached USB HID devices",
	Long: `Walk the USB bus and list HID devices, optionally filtered by --vid/--pid.

Use this to find the vendor and product IDs to pass to other commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		count := 0
		hid.UsbWalk(func(device hid.Device) {
			info := device.Info()
			if hidVendorID != 0 && info.Vendor != hidVendorID {
				return
			}
			if hidProductID != 0 && info.Product != hidProductID {
				return
			}
			count++
			fmt.Printf("%04X:%04X  bus %d device %d  interface %d  rev %04X\n",
				info.Vendor, info.Product, info.Bus, info.Device, info.Interface, info.Revision)
		})

		if count == 0 {
			fmt.Println("No HID devices found")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}
