// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The mdsbridge authors

package mds

import "errors"

var (
	// ErrInvalidArgument reports caller input that can never succeed:
	// nil channel, zero capacity, missing configuration.
	ErrInvalidArgument = errors.New("mds: invalid argument")

	// ErrMalformedReport reports wire data shorter than a mandatory field.
	ErrMalformedReport = errors.New("mds: malformed report")

	// ErrTimeout reports that no data arrived within the timeout bound.
	ErrTimeout = errors.New("mds: timeout")

	// ErrProtocolMismatch reports an input report with an unexpected
	// report identifier.
	ErrProtocolMismatch = errors.New("mds: unexpected report identifier")

	// ErrChannel wraps failures of the underlying report channel.
	ErrChannel = errors.New("mds: report channel failure")

	// ErrSink wraps failures surfaced by the registered chunk sink.
	ErrSink = errors.New("mds: chunk sink failure")
)
