// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The mdsbridge authors

package capture

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/openmds/mdsbridge/pkg/mds"
)

func testConfig() *mds.DeviceConfig {
	return &mds.DeviceConfig{
		SupportedFeatures: 31,
		DeviceIdentifier:  "DEV123",
		DataURI:           "https://x/chunks/DEV123",
		Authorization:     "Memfault-Project-Key: abc",
	}
}

// ============================================================
// Round-Trip Tests
// ============================================================

func TestCapture_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, testConfig())
	if err != nil {
		t.Fatalf("NewWriter error: %v", err)
	}

	packets := []*mds.StreamPacket{
		{Sequence: 0, Data: []byte{0x01, 0x02}},
		{Sequence: 1, Data: []byte{0x03}},
		{Sequence: 2, Data: nil},
	}
	for _, pkt := range packets {
		if err := w.WriteRecord(pkt); err != nil {
			t.Fatalf("WriteRecord error: %v", err)
		}
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader error: %v", err)
	}
	cfg := r.Config()
	if *cfg != *testConfig() {
		t.Errorf("config snapshot mismatch: %+v", cfg)
	}

	for i, want := range packets {
		rec, err := r.Next()
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if rec.Sequence != want.Sequence {
			t.Errorf("record %d: sequence %d, want %d", i, rec.Sequence, want.Sequence)
		}
		if !bytes.Equal(rec.Data, want.Data) {
			t.Errorf("record %d: data %x, want %x", i, rec.Data, want.Data)
		}
		if rec.ReceivedAt == 0 {
			t.Errorf("record %d: missing timestamp", i)
		}
	}

	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF after last record, got %v", err)
	}
}

func TestNewWriter_NilConfig(t *testing.T) {
	if _, err := NewWriter(&bytes.Buffer{}, nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestNewReader_Garbage(t *testing.T) {
	if _, err := NewReader(bytes.NewReader([]byte{0xFF, 0x00})); err == nil {
		t.Fatal("expected error for garbage header")
	}
}

func TestNewReader_FutureVersion(t *testing.T) {
	var buf bytes.Buffer
	head := Header{Version: FormatVersion + 1}
	if err := cbor.NewEncoder(&buf).Encode(&head); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := NewReader(&buf); err == nil {
		t.Fatal("expected error for future format version")
	}
}

// ============================================================
// Replay Channel Tests
// ============================================================

func TestFileChannel_ReplaysThroughSession(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, testConfig())
	if err != nil {
		t.Fatalf("NewWriter error: %v", err)
	}
	chunks := [][]byte{{0xAA, 0xBB}, {0xCC}}
	for i, data := range chunks {
		if err := w.WriteRecord(&mds.StreamPacket{Sequence: uint8(i), Data: data}); err != nil {
			t.Fatalf("WriteRecord error: %v", err)
		}
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader error: %v", err)
	}

	session := mds.NewSession(NewFileChannel(r))
	defer session.Close()

	var got [][]byte
	var gotURI, gotAuth string
	session.SetSink(mds.ChunkSinkFunc(func(uri, auth string, chunk []byte) error {
		gotURI, gotAuth = uri, auth
		got = append(got, append([]byte(nil), chunk...))
		return nil
	}))

	cfg, err := session.ReadDeviceConfig()
	if err != nil {
		t.Fatalf("ReadDeviceConfig error: %v", err)
	}
	if *cfg != *testConfig() {
		t.Errorf("replayed config mismatch: %+v", cfg)
	}
	if err := session.StreamEnable(); err != nil {
		t.Fatalf("StreamEnable error: %v", err)
	}

	for {
		err := session.Process(time.Second)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Process error: %v", err)
		}
	}

	if len(got) != len(chunks) {
		t.Fatalf("expected %d chunks, got %d", len(chunks), len(got))
	}
	for i := range chunks {
		if !bytes.Equal(got[i], chunks[i]) {
			t.Errorf("chunk %d: got %x, want %x", i, got[i], chunks[i])
		}
	}
	if gotURI != testConfig().DataURI || gotAuth != testConfig().Authorization {
		t.Errorf("sink destination: got (%q, %q)", gotURI, gotAuth)
	}
}

func TestFileChannel_UnknownFeatureReport(t *testing.T) {
	var buf bytes.Buffer
	if _, err := NewWriter(&buf, testConfig()); err != nil {
		t.Fatalf("NewWriter error: %v", err)
	}
	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader error: %v", err)
	}

	ch := NewFileChannel(r)
	if _, err := ch.ReadFeature(0x7F); err == nil {
		t.Error("expected error for unknown feature report")
	}
}
