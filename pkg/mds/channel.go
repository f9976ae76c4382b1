// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The mdsbridge authors

package mds

import "time"

// Timeout convention for channel reads and writes: a negative duration
// blocks indefinitely, zero polls without blocking, and a positive duration
// bounds the wait.

// ReportChannel is the transport capability a Session consumes. The
// implementation owns device discovery, report-ID filtering, and low-level
// report I/O; payloads cross this interface without the report-ID prefix
// byte except where the method signature carries it explicitly.
type ReportChannel interface {
	// ReadFeature issues a host-initiated feature report read.
	ReadFeature(reportID uint8) ([]byte, error)

	// WriteOutput sends an output report and returns the payload bytes
	// written.
	WriteOutput(reportID uint8, data []byte, timeout time.Duration) (int, error)

	// ReadInput waits for the next input report and returns its report
	// identifier and payload.
	ReadInput(timeout time.Duration) (reportID uint8, data []byte, err error)
}

// ChunkSink is the upload capability a Session dispatches decoded chunks
// to. Implementations POST the chunk to the device-provided URI; the
// protocol layer performs no retries.
type ChunkSink interface {
	Upload(uri, authHeader string, chunk []byte) error
}

// ChunkSinkFunc adapts a function to the ChunkSink interface.
type ChunkSinkFunc func(uri, authHeader string, chunk []byte) error

// Upload calls f.
func (f ChunkSinkFunc) Upload(uri, authHeader string, chunk []byte) error {
	return f(uri, authHeader, chunk)
}
