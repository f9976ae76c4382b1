// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The mdsbridge authors

package cmd

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Frame kinds for the report tunnel. A remote agent sitting next to the
// physical HID device forwards reports over a byte stream; each frame
// carries one report operation.
const (
	frameFeatureRequest  = 0x01 // host -> agent: fetch feature report
	frameFeatureResponse = 0x02 // agent -> host: feature report contents
	frameOutput          = 0x03 // host -> agent: output report
	frameInput           = 0x04 // agent -> host: input report
)

// frameMagic prefixes every serial frame so the reader can resynchronize
// after line noise. WebSocket frames omit it; message boundaries are
// preserved by the transport.
const frameMagic = 0xA5

const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// maxFramePayload bounds payload length on the wire. Feature reports top
// out well below this; the bound rejects corrupt length fields before a
// large allocation.
const maxFramePayload = 1024

// frame is one report operation on the tunnel.
type frame struct {
	Kind     uint8
	ReportID uint8
	Payload  []byte
}

// calculateCRC computes the CRC-16-CCITT checksum for the given data
func calculateCRC(data []byte) uint16 {
	crc := uint16(crcInitial)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// encodeFrame serializes a frame without magic or checksum, the form used
// for WebSocket messages: [kind][reportID][len LE16][payload].
func encodeFrame(f frame) []byte {
	buf := make([]byte, 4+len(f.Payload))
	buf[0] = f.Kind
	buf[1] = f.ReportID
	binary.LittleEndian.PutUint16(buf[2:4], uint16(len(f.Payload)))
	copy(buf[4:], f.Payload)
	return buf
}

// decodeFrame parses a WebSocket tunnel message back into a frame.
func decodeFrame(buf []byte) (frame, error) {
	if len(buf) < 4 {
		return frame{}, fmt.Errorf("frame too short: %d bytes", len(buf))
	}
	length := int(binary.LittleEndian.Uint16(buf[2:4]))
	if length > maxFramePayload {
		return frame{}, fmt.Errorf("frame payload too large: %d bytes", length)
	}
	if len(buf) < 4+length {
		return frame{}, fmt.Errorf("frame truncated: have %d payload bytes, want %d", len(buf)-4, length)
	}
	f := frame{Kind: buf[0], ReportID: buf[1]}
	if length > 0 {
		f.Payload = make([]byte, length)
		copy(f.Payload, buf[4:4+length])
	}
	return f, nil
}

// encodeSerialFrame serializes a frame for the serial bridge:
// [magic][kind][reportID][len LE16][payload][crc LE16]. The checksum
// covers everything after the magic byte.
func encodeSerialFrame(f frame) []byte {
	body := encodeFrame(f)
	buf := make([]byte, 0, 1+len(body)+2)
	buf = append(buf, frameMagic)
	buf = append(buf, body...)
	crc := calculateCRC(body)
	buf = binary.LittleEndian.AppendUint16(buf, crc)
	return buf
}

// readSerialFrame reads the next valid frame from a serial stream. Bytes
// before the magic are discarded; frames with a bad checksum are skipped
// and the scan resumes at the next magic byte.
func readSerialFrame(r *bufio.Reader) (frame, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return frame{}, err
		}
		if b != frameMagic {
			continue
		}

		var head [4]byte
		if _, err := io.ReadFull(r, head[:]); err != nil {
			return frame{}, err
		}
		length := int(binary.LittleEndian.Uint16(head[2:4]))
		if length > maxFramePayload {
			// Corrupt length, rescan from the next magic byte.
			continue
		}

		body := make([]byte, 4+length)
		copy(body, head[:])
		if _, err := io.ReadFull(r, body[4:]); err != nil {
			return frame{}, err
		}

		var crcBuf [2]byte
		if _, err := io.ReadFull(r, crcBuf[:]); err != nil {
			return frame{}, err
		}
		if binary.LittleEndian.Uint16(crcBuf[:]) != calculateCRC(body) {
			continue
		}

		return decodeFrame(body)
	}
}
