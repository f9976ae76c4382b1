// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The mdsbridge authors

package mds

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// controlTimeout bounds stream-control output report writes.
const controlTimeout = time.Second

// SessionStats counts what a session has seen. Sequence anomalies are
// tallied here rather than surfaced as errors.
type SessionStats struct {
	PacketsReceived  uint64
	BytesReceived    uint64
	Duplicates       uint64
	Gaps             uint64
	ChunksDispatched uint64
	SinkErrors       uint64
}

// Session orchestrates the MDS protocol over a report channel: feature
// report reads for device configuration, stream control, and stream-data
// reception with sequence tracking and chunk dispatch.
//
// A Session does not own its channel; the channel's lifetime is the
// caller's responsibility, and it may be nil when the Session is used
// purely as a codec plus sequence tracker. A Session holds mutable state
// with no internal locking and is not safe for concurrent use; callers
// needing concurrency must dedicate one goroutine to the Session.
type Session struct {
	ch      ReportChannel
	tracker *SequenceTracker

	streaming bool
	sink      ChunkSink
	config    *DeviceConfig
	stats     SessionStats
}

// NewSession creates a session over ch. ch may be nil for buffer-based use.
func NewSession(ch ReportChannel) *Session {
	return &Session{
		ch:      ch,
		tracker: NewSequenceTracker(),
	}
}

// Close disables streaming if it is enabled. The disable is best-effort:
// a transport error never blocks teardown, so Close always returns nil.
func (s *Session) Close() error {
	if s.streaming {
		if err := s.StreamDisable(); err != nil {
			log.Debug().Err(err).Msg("stream disable on close failed")
		}
	}
	return nil
}

// SetSink registers the chunk sink invoked by Process. At most one sink is
// attached at a time; passing nil detaches.
func (s *Session) SetSink(sink ChunkSink) {
	s.sink = sink
}

// StreamingEnabled reports the current streaming state.
func (s *Session) StreamingEnabled() bool {
	return s.streaming
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() SessionStats {
	return s.stats
}

// LastSequence returns the sequence tracker baseline. Before any packet has
// been processed this is the sentinel value 31.
func (s *Session) LastSequence() uint8 {
	return s.tracker.Last()
}

// SetLastSequence overrides the tracker baseline, for callers that decode
// packets outside the session with the buffer-based codec functions.
func (s *Session) SetLastSequence(seq uint8) {
	s.tracker.SetLast(seq)
}

// SupportedFeatures reads and decodes the features bitmask feature report.
func (s *Session) SupportedFeatures() (uint32, error) {
	buf, err := s.readFeature(ReportIDSupportedFeatures)
	if err != nil {
		return 0, err
	}
	return DecodeFeatures(buf)
}

// DeviceIdentifier reads and decodes the device identifier feature report.
func (s *Session) DeviceIdentifier() (string, error) {
	buf, err := s.readFeature(ReportIDDeviceIdentifier)
	if err != nil {
		return "", err
	}
	return DecodeIdentifier(buf)
}

// DataURI reads and decodes the data URI feature report.
func (s *Session) DataURI() (string, error) {
	buf, err := s.readFeature(ReportIDDataURI)
	if err != nil {
		return "", err
	}
	return DecodeURI(buf)
}

// Authorization reads and decodes the authorization feature report.
func (s *Session) Authorization() (string, error) {
	buf, err := s.readFeature(ReportIDAuthorization)
	if err != nil {
		return "", err
	}
	return DecodeAuthorization(buf)
}

// ReadDeviceConfig issues the four feature-report reads in order. The first
// failure aborts the whole operation; a partial configuration is never
// returned. The returned config is cached on the session for Process;
// callers may adjust its fields (e.g. substitute an authorization header)
// before streaming.
func (s *Session) ReadDeviceConfig() (*DeviceConfig, error) {
	features, err := s.SupportedFeatures()
	if err != nil {
		return nil, fmt.Errorf("read supported features: %w", err)
	}
	id, err := s.DeviceIdentifier()
	if err != nil {
		return nil, fmt.Errorf("read device identifier: %w", err)
	}
	uri, err := s.DataURI()
	if err != nil {
		return nil, fmt.Errorf("read data URI: %w", err)
	}
	auth, err := s.Authorization()
	if err != nil {
		return nil, fmt.Errorf("read authorization: %w", err)
	}

	s.config = &DeviceConfig{
		SupportedFeatures: features,
		DeviceIdentifier:  id,
		DataURI:           uri,
		Authorization:     auth,
	}
	return s.config, nil
}

// Config returns the cached device configuration, or nil if
// ReadDeviceConfig has not succeeded yet.
func (s *Session) Config() *DeviceConfig {
	return s.config
}

// StreamEnable sends the stream-control output report enabling chunk
// delivery. The session transitions to enabled only on a successful write.
func (s *Session) StreamEnable() error {
	if err := s.writeStreamControl(true); err != nil {
		return fmt.Errorf("enable streaming: %w", err)
	}
	s.streaming = true
	return nil
}

// StreamDisable sends the stream-control output report stopping chunk
// delivery. The session transitions to disabled only on a successful write.
func (s *Session) StreamDisable() error {
	if err := s.writeStreamControl(false); err != nil {
		return fmt.Errorf("disable streaming: %w", err)
	}
	s.streaming = false
	return nil
}

func (s *Session) writeStreamControl(enable bool) error {
	if s.ch == nil {
		return fmt.Errorf("%w: session has no report channel", ErrInvalidArgument)
	}
	if _, err := s.ch.WriteOutput(ReportIDStreamControl, EncodeStreamControl(enable), controlTimeout); err != nil {
		return channelErr(err)
	}
	return nil
}

// ReadPacket waits for one stream-data input report, decodes it, and
// advances the sequence tracker. The baseline advances on every decoded
// packet regardless of the classification, so a resumed stream validates on
// the packet after an anomaly. Anomalies are logged and counted, never
// returned as errors.
func (s *Session) ReadPacket(timeout time.Duration) (*StreamPacket, error) {
	if s.ch == nil {
		return nil, fmt.Errorf("%w: session has no report channel", ErrInvalidArgument)
	}

	reportID, data, err := s.ch.ReadInput(timeout)
	if err != nil {
		return nil, channelErr(err)
	}
	if reportID != ReportIDStreamData {
		return nil, fmt.Errorf("%w: got report 0x%02X, want 0x%02X",
			ErrProtocolMismatch, reportID, ReportIDStreamData)
	}

	pkt, err := DecodeStreamPacket(data)
	if err != nil {
		return nil, err
	}

	prev := s.tracker.Last()
	result := s.tracker.Observe(pkt.Sequence)
	switch result {
	case SequenceDuplicate:
		s.stats.Duplicates++
	case SequenceGap:
		s.stats.Gaps++
	}
	if result != SequenceExpected {
		log.Warn().
			Str("result", result.String()).
			Uint8("prev", prev).
			Uint8("expected", ExpectedNext(prev)).
			Uint8("got", pkt.Sequence).
			Msg("sequence anomaly")
	}

	s.stats.PacketsReceived++
	s.stats.BytesReceived += uint64(len(pkt.Data))
	return pkt, nil
}

// Process reads one packet and, if a sink is registered, dispatches the
// chunk with the destination and credential from the previously read device
// configuration. Sequence anomalies do not block dispatch. Errors from the
// read or the sink propagate unchanged in meaning; Process performs no
// retry. Call it repeatedly while streaming is enabled.
func (s *Session) Process(timeout time.Duration) error {
	pkt, err := s.ReadPacket(timeout)
	if err != nil {
		return err
	}
	if s.sink == nil {
		return nil
	}
	if s.config == nil {
		return fmt.Errorf("%w: device configuration not read", ErrInvalidArgument)
	}

	if err := s.sink.Upload(s.config.DataURI, s.config.Authorization, pkt.Data); err != nil {
		s.stats.SinkErrors++
		return fmt.Errorf("%w: %w", ErrSink, err)
	}
	s.stats.ChunksDispatched++
	return nil
}

func (s *Session) readFeature(reportID uint8) ([]byte, error) {
	if s.ch == nil {
		return nil, fmt.Errorf("%w: session has no report channel", ErrInvalidArgument)
	}
	buf, err := s.ch.ReadFeature(reportID)
	if err != nil {
		return nil, channelErr(err)
	}
	return buf, nil
}

// channelErr passes protocol sentinels through untouched and wraps anything
// else as a channel failure.
func channelErr(err error) error {
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrProtocolMismatch) || errors.Is(err, ErrChannel) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrChannel, err)
}
