// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The mdsbridge authors
//
// mdsbridge - Memfault Diagnostic Service bridge
//
// Reads diagnostic chunks from MDS-capable HID devices and forwards them
// to the ingestion endpoint the device advertises.

package main

import (
	"os"

	"github.com/openmds/mdsbridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
