// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The mdsbridge authors

package cmd

import (
	"bufio"
	"bytes"
	"io"
	"testing"
)

// ============================================================================
// CRC-16-CCITT
// ============================================================================

func TestCalculateCRC_CheckValue(t *testing.T) {
	// Standard CRC-16/CCITT-FALSE check value for "123456789".
	crc := calculateCRC([]byte("123456789"))
	if crc != 0x29B1 {
		t.Errorf("CRC = 0x%04X, want 0x29B1", crc)
	}
}

func TestCalculateCRC_Empty(t *testing.T) {
	if crc := calculateCRC(nil); crc != crcInitial {
		t.Errorf("CRC of empty data = 0x%04X, want 0x%04X", crc, crcInitial)
	}
}

// ============================================================================
// WebSocket frames
// ============================================================================

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		f    frame
	}{
		{"feature request", frame{Kind: frameFeatureRequest, ReportID: 0x02}},
		{"output with payload", frame{Kind: frameOutput, ReportID: 0x05, Payload: []byte{0x01}}},
		{"input chunk", frame{Kind: frameInput, ReportID: 0x06, Payload: []byte{0x00, 0xDE, 0xAD, 0xBE, 0xEF}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := encodeFrame(tt.f)
			got, err := decodeFrame(buf)
			if err != nil {
				t.Fatalf("decodeFrame: %v", err)
			}
			if got.Kind != tt.f.Kind || got.ReportID != tt.f.ReportID {
				t.Errorf("header = (0x%02X, 0x%02X), want (0x%02X, 0x%02X)",
					got.Kind, got.ReportID, tt.f.Kind, tt.f.ReportID)
			}
			if !bytes.Equal(got.Payload, tt.f.Payload) {
				t.Errorf("payload = %x, want %x", got.Payload, tt.f.Payload)
			}
		})
	}
}

func TestDecodeFrame_TooShort(t *testing.T) {
	for _, n := range []int{0, 1, 2, 3} {
		if _, err := decodeFrame(make([]byte, n)); err == nil {
			t.Errorf("decodeFrame(%d bytes): expected error", n)
		}
	}
}

func TestDecodeFrame_Truncated(t *testing.T) {
	// Header claims 10 payload bytes but only 2 follow.
	buf := []byte{frameInput, 0x06, 10, 0, 0xAA, 0xBB}
	if _, err := decodeFrame(buf); err == nil {
		t.Error("expected error for truncated frame")
	}
}

func TestDecodeFrame_OversizedLength(t *testing.T) {
	buf := []byte{frameInput, 0x06, 0xFF, 0xFF}
	if _, err := decodeFrame(buf); err == nil {
		t.Error("expected error for oversized length field")
	}
}

// ============================================================================
// Serial frames
// ============================================================================

func TestSerialFrameRoundTrip(t *testing.T) {
	f := frame{Kind: frameInput, ReportID: 0x06, Payload: []byte{0x1F, 0x01, 0x02, 0x03}}
	wire := encodeSerialFrame(f)

	got, err := readSerialFrame(bufio.NewReader(bytes.NewReader(wire)))
	if err != nil {
		t.Fatalf("readSerialFrame: %v", err)
	}
	if got.Kind != f.Kind || got.ReportID != f.ReportID || !bytes.Equal(got.Payload, f.Payload) {
		t.Errorf("got %+v, want %+v", got, f)
	}
}

func TestReadSerialFrame_SkipsGarbage(t *testing.T) {
	f := frame{Kind: frameFeatureResponse, ReportID: 0x02, Payload: []byte("DEV")}
	var stream bytes.Buffer
	stream.Write([]byte{0x00, 0x13, 0x37}) // noise before the frame
	stream.Write(encodeSerialFrame(f))

	got, err := readSerialFrame(bufio.NewReader(&stream))
	if err != nil {
		t.Fatalf("readSerialFrame: %v", err)
	}
	if !bytes.Equal(got.Payload, f.Payload) {
		t.Errorf("payload = %x, want %x", got.Payload, f.Payload)
	}
}

func TestReadSerialFrame_BadChecksum(t *testing.T) {
	good := frame{Kind: frameInput, ReportID: 0x06, Payload: []byte{0x00, 0xAA}}
	bad := encodeSerialFrame(good)
	bad[len(bad)-1] ^= 0xFF // corrupt the CRC

	var stream bytes.Buffer
	stream.Write(bad)
	stream.Write(encodeSerialFrame(good))

	got, err := readSerialFrame(bufio.NewReader(&stream))
	if err != nil {
		t.Fatalf("readSerialFrame: %v", err)
	}
	if !bytes.Equal(got.Payload, good.Payload) {
		t.Errorf("payload = %x, want %x", got.Payload, good.Payload)
	}
}

func TestReadSerialFrame_EOF(t *testing.T) {
	_, err := readSerialFrame(bufio.NewReader(bytes.NewReader(nil)))
	if err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
}
