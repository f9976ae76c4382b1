// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The mdsbridge authors

package mds

import (
	"errors"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// ============================================================
// Codec Fuzz Tests
// ============================================================

func TestFuzz_DecodeStreamPacket_RandomBuffers(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		buf := make([]byte, rng.Intn(100))
		rng.Read(buf)

		pkt, err := DecodeStreamPacket(buf)
		if len(buf) == 0 {
			if !errors.Is(err, ErrMalformedReport) {
				t.Fatalf("round %d: empty buffer should be malformed, got %v", i, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("round %d: non-empty buffer should decode, got %v", i, err)
		}
		if pkt.Sequence > SequenceMax {
			t.Fatalf("round %d: sequence %d out of range", i, pkt.Sequence)
		}
		if len(pkt.Data) > MaxChunkDataLen {
			t.Fatalf("round %d: data length %d exceeds clamp", i, len(pkt.Data))
		}
		if pkt.Sequence != buf[0]&SequenceMask {
			t.Fatalf("round %d: sequence %d does not match low bits of 0x%02X", i, pkt.Sequence, buf[0])
		}
	}
}

func TestFuzz_DecodeFeatures_RandomBuffers(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		buf := make([]byte, rng.Intn(12))
		rng.Read(buf)

		_, err := DecodeFeatures(buf)
		if len(buf) < 4 && !errors.Is(err, ErrMalformedReport) {
			t.Fatalf("round %d: %d bytes should be malformed, got %v", i, len(buf), err)
		}
		if len(buf) >= 4 && err != nil {
			t.Fatalf("round %d: %d bytes should decode, got %v", i, len(buf), err)
		}
	}
}

func TestFuzz_DecodeBoundedStrings_RandomBuffers(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		buf := make([]byte, rng.Intn(300))
		rng.Read(buf)

		id, err := DecodeIdentifier(buf)
		if err != nil {
			t.Fatalf("round %d: identifier decode failed: %v", i, err)
		}
		if len(id) > MaxDeviceIDLen-1 {
			t.Fatalf("round %d: identifier length %d exceeds capacity", i, len(id))
		}

		uri, err := DecodeURI(buf)
		if err != nil {
			t.Fatalf("round %d: uri decode failed: %v", i, err)
		}
		if len(uri) > MaxURILen-1 {
			t.Fatalf("round %d: uri length %d exceeds capacity", i, len(uri))
		}
	}
}

// ============================================================
// Sequence Tracker Fuzz Tests
// ============================================================

func TestFuzz_SequenceTracker_RandomStreams(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	tr := NewSequenceTracker()
	prev := tr.Last()
	for i := 0; i < rounds; i++ {
		seq := uint8(rng.Intn(32))
		result := tr.Observe(seq)

		expected := SequenceExpected
		switch {
		case seq == ExpectedNext(prev):
		case seq == prev:
			expected = SequenceDuplicate
		default:
			expected = SequenceGap
		}
		if result != expected {
			t.Fatalf("round %d: Observe(%d) after %d = %v, want %v", i, seq, prev, result, expected)
		}
		if tr.Last() != seq {
			t.Fatalf("round %d: baseline %d, want %d", i, tr.Last(), seq)
		}
		prev = seq
	}
}

// ============================================================
// Session Fuzz Tests
// ============================================================

func TestFuzz_Session_RandomPacketStream(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	ch := newFakeChannel()
	s := NewSession(ch)
	var want SessionStats
	prev := s.LastSequence()

	for i := 0; i < rounds; i++ {
		buf := make([]byte, 1+rng.Intn(70))
		rng.Read(buf)
		ch.queueInput(ReportIDStreamData, buf)

		pkt, err := s.ReadPacket(time.Second)
		if err != nil {
			t.Fatalf("round %d: %v", i, err)
		}

		want.PacketsReceived++
		want.BytesReceived += uint64(len(pkt.Data))
		switch {
		case pkt.Sequence == ExpectedNext(prev):
		case pkt.Sequence == prev:
			want.Duplicates++
		default:
			want.Gaps++
		}
		prev = pkt.Sequence
	}

	if got := s.Stats(); got != want {
		t.Errorf("stats mismatch: got %+v, want %+v", got, want)
	}
}
