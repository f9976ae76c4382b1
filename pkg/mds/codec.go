// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The mdsbridge authors

package mds

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// The codec is deliberately asymmetric about sizing: decoders never fail on
// surplus bytes (newer firmware may send longer reports, so surplus is
// truncated or clamped), but always fail on missing mandatory bytes.

// DecodeFeatures interprets a supported-features feature report as a
// little-endian 32-bit bitmask. Any bit pattern is a legal features value.
func DecodeFeatures(buf []byte) (uint32, error) {
	if len(buf) < 4 {
		return 0, fmt.Errorf("%w: features report is %d bytes, need 4", ErrMalformedReport, len(buf))
	}
	return binary.LittleEndian.Uint32(buf[:4]), nil
}

// DecodeIdentifier extracts the device identifier string from a feature
// report. Input longer than the protocol capacity is silently truncated.
func DecodeIdentifier(buf []byte) (string, error) {
	return decodeBoundedString(buf, MaxDeviceIDLen)
}

// DecodeURI extracts the chunk upload URI from a feature report.
func DecodeURI(buf []byte) (string, error) {
	return decodeBoundedString(buf, MaxURILen)
}

// DecodeAuthorization extracts the authorization header from a feature
// report. By convention the value is "HeaderName:HeaderValue", but the
// content is passed through uninterpreted.
func DecodeAuthorization(buf []byte) (string, error) {
	return decodeBoundedString(buf, MaxAuthLen)
}

// decodeBoundedString copies at most capacity-1 bytes and cuts at the first
// NUL, matching the zero-padded fixed-size reports devices send. Embedded
// binary content is not validated as UTF-8; the protocol does not require it.
func decodeBoundedString(buf []byte, capacity int) (string, error) {
	if capacity <= 0 {
		return "", fmt.Errorf("%w: zero string capacity", ErrInvalidArgument)
	}
	n := len(buf)
	if n > capacity-1 {
		n = capacity - 1
	}
	if i := bytes.IndexByte(buf[:n], 0); i >= 0 {
		n = i
	}
	return string(buf[:n]), nil
}

// EncodeStreamControl builds the one-byte stream-control output report
// payload: 0x01 to enable streaming, 0x00 to disable.
func EncodeStreamControl(enable bool) []byte {
	if enable {
		return []byte{StreamModeEnabled}
	}
	return []byte{StreamModeDisabled}
}

// DecodeStreamPacket parses a stream-data input report. The first byte
// carries the sequence counter in its low 5 bits (high bits are reserved and
// ignored); the remainder is chunk data, clamped to MaxChunkDataLen because
// the wire format is a fixed 64-byte report with one byte spent on the
// sequence counter.
func DecodeStreamPacket(buf []byte) (*StreamPacket, error) {
	if len(buf) < 1 {
		return nil, fmt.Errorf("%w: stream packet has no sequence byte", ErrMalformedReport)
	}

	n := len(buf) - 1
	if n > MaxChunkDataLen {
		n = MaxChunkDataLen
	}

	pkt := &StreamPacket{
		Sequence: buf[0] & SequenceMask,
		Data:     make([]byte, n),
	}
	copy(pkt.Data, buf[1:1+n])
	return pkt, nil
}
