// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The mdsbridge authors

// Package capture records MDS stream sessions to a compact CBOR format for
// offline inspection and replay. A capture is a header holding the device
// configuration snapshot followed by one record per stream-data packet.
package capture

import (
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/openmds/mdsbridge/pkg/mds"
)

// FormatVersion identifies the capture layout. Readers reject newer
// versions instead of misinterpreting them.
const FormatVersion = 1

// Header opens every capture file.
type Header struct {
	Version           uint8  `cbor:"1,keyasint"`
	CreatedAt         int64  `cbor:"2,keyasint"` // Unix seconds
	SupportedFeatures uint32 `cbor:"3,keyasint"`
	DeviceIdentifier  string `cbor:"4,keyasint"`
	DataURI           string `cbor:"5,keyasint"`
	Authorization     string `cbor:"6,keyasint"`
}

// Record is one captured stream-data packet.
type Record struct {
	ReceivedAt int64  `cbor:"1,keyasint"` // Unix nanoseconds
	Sequence   uint8  `cbor:"2,keyasint"`
	Data       []byte `cbor:"3,keyasint"`
}

// Writer appends capture records to an underlying stream.
type Writer struct {
	enc *cbor.Encoder
}

// NewWriter writes the capture header for cfg and returns a Writer for the
// session's packets.
func NewWriter(w io.Writer, cfg *mds.DeviceConfig) (*Writer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("capture: nil device config")
	}
	enc := cbor.NewEncoder(w)
	head := Header{
		Version:           FormatVersion,
		CreatedAt:         time.Now().Unix(),
		SupportedFeatures: cfg.SupportedFeatures,
		DeviceIdentifier:  cfg.DeviceIdentifier,
		DataURI:           cfg.DataURI,
		Authorization:     cfg.Authorization,
	}
	if err := enc.Encode(&head); err != nil {
		return nil, fmt.Errorf("capture: write header: %w", err)
	}
	return &Writer{enc: enc}, nil
}

// WriteRecord appends one packet to the capture.
func (w *Writer) WriteRecord(pkt *mds.StreamPacket) error {
	rec := Record{
		ReceivedAt: time.Now().UnixNano(),
		Sequence:   pkt.Sequence,
		Data:       pkt.Data,
	}
	if err := w.enc.Encode(&rec); err != nil {
		return fmt.Errorf("capture: write record: %w", err)
	}
	return nil
}

// Reader iterates over a capture stream.
type Reader struct {
	dec  *cbor.Decoder
	head Header
}

// NewReader reads and validates the capture header.
func NewReader(r io.Reader) (*Reader, error) {
	dec := cbor.NewDecoder(r)
	var head Header
	if err := dec.Decode(&head); err != nil {
		return nil, fmt.Errorf("capture: read header: %w", err)
	}
	if head.Version > FormatVersion {
		return nil, fmt.Errorf("capture: unsupported format version %d", head.Version)
	}
	return &Reader{dec: dec, head: head}, nil
}

// Config returns the device configuration snapshot stored in the header.
func (r *Reader) Config() *mds.DeviceConfig {
	return &mds.DeviceConfig{
		SupportedFeatures: r.head.SupportedFeatures,
		DeviceIdentifier:  r.head.DeviceIdentifier,
		DataURI:           r.head.DataURI,
		Authorization:     r.head.Authorization,
	}
}

// CreatedAt returns when the capture was started.
func (r *Reader) CreatedAt() time.Time {
	return time.Unix(r.head.CreatedAt, 0)
}

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (*Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("capture: read record: %w", err)
	}
	return &rec, nil
}
