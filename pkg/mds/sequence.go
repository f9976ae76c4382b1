// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The mdsbridge authors

package mds

import "fmt"

// SequenceResult classifies an observed sequence counter against the
// previously accepted one.
type SequenceResult int

const (
	// SequenceExpected means the counter is the immediate successor of
	// the last accepted value.
	SequenceExpected SequenceResult = iota

	// SequenceDuplicate means the counter repeats the last accepted value.
	SequenceDuplicate

	// SequenceGap means one or more packets were missed, or the session
	// resumed after a reconnect.
	SequenceGap
)

// String returns the classification name.
func (r SequenceResult) String() string {
	switch r {
	case SequenceExpected:
		return "expected"
	case SequenceDuplicate:
		return "duplicate"
	case SequenceGap:
		return "gap"
	default:
		return fmt.Sprintf("SequenceResult(%d)", int(r))
	}
}

// ExpectedNext returns the successor of prev in the 5-bit counter space.
func ExpectedNext(prev uint8) uint8 {
	return (prev + 1) & SequenceMask
}

// ValidateSequence reports whether new is the immediate successor of prev.
// It answers only that question: the tracker keeps no window, so reordering
// beyond one step and loss counts are not recoverable.
func ValidateSequence(prev, new uint8) bool {
	return new == ExpectedNext(prev)
}

// SequenceTracker detects dropped or duplicated stream packets using the
// 5-bit modular counter. Anomalies are a diagnostic signal, not an error:
// the HID transport is assumed reliable and in-order, so the counter mostly
// reveals session gaps such as reconnects.
type SequenceTracker struct {
	last uint8
}

// NewSequenceTracker returns a tracker primed with the sentinel value 31,
// so the first legitimate packet (sequence 0) validates as expected without
// a separate "no prior packet" state.
func NewSequenceTracker() *SequenceTracker {
	return &SequenceTracker{last: SequenceMax}
}

// Observe classifies seq against the last accepted value and then advances
// the baseline unconditionally, so a legitimate resumed stream validates on
// the very next packet after an anomaly.
func (t *SequenceTracker) Observe(seq uint8) SequenceResult {
	seq &= SequenceMask
	result := SequenceExpected
	switch {
	case seq == ExpectedNext(t.last):
	case seq == t.last:
		result = SequenceDuplicate
	default:
		result = SequenceGap
	}
	t.last = seq
	return result
}

// Last returns the most recently observed sequence value.
func (t *SequenceTracker) Last() uint8 {
	return t.last
}

// SetLast overrides the baseline. Callers driving the codec directly use
// this to keep tracking consistent with externally processed packets.
func (t *SequenceTracker) SetLast(seq uint8) {
	t.last = seq & SequenceMask
}
