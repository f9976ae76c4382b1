// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The mdsbridge authors

// Package mds implements the Memfault Diagnostic Service (MDS) protocol
// carried over Human Interface Device (HID) reports.
//
// MDS exposes device identity, upload destination, and authorization through
// vendor feature reports, a stream-control output report for enabling chunk
// delivery, and a stream-data input report carrying diagnostic chunks with a
// 5-bit sequence counter. This package provides the wire codec, sequence
// tracking, and the session state machine; the raw HID transport and the
// HTTP upload mechanism are consumed through the ReportChannel and ChunkSink
// interfaces.
package mds

// Report IDs, fixed by the protocol
const (
	ReportIDSupportedFeatures = 0x01 // Feature: 32-bit features bitmask
	ReportIDDeviceIdentifier  = 0x02 // Feature: device identifier string
	ReportIDDataURI           = 0x03 // Feature: chunk upload URI
	ReportIDAuthorization     = 0x04 // Feature: authorization header
	ReportIDStreamControl     = 0x05 // Output: stream enable/disable
	ReportIDStreamData        = 0x06 // Input: sequence byte + chunk data
)

// Payload size limits
const (
	MaxDeviceIDLen  = 64  // Device identifier capacity, including terminator slot
	MaxURILen       = 128 // Data URI capacity, including terminator slot
	MaxAuthLen      = 128 // Authorization capacity, including terminator slot
	MaxChunkDataLen = 63  // Chunk bytes per packet after the sequence byte
)

// Stream control modes
const (
	StreamModeDisabled = 0x00
	StreamModeEnabled  = 0x01
)

// Sequence counter parameters. The counter occupies the low 5 bits of the
// first stream-data byte and wraps from 31 back to 0.
const (
	SequenceMask = 0x1F
	SequenceMax  = 31
)
