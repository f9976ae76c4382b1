// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The mdsbridge authors

// Package uploader posts MDS diagnostic chunks to the ingestion endpoint a
// device advertises. It implements the mds.ChunkSink capability with an
// HTTP POST per chunk and performs no retries; retry policy belongs to the
// caller.
package uploader

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds each upload request unless overridden.
const DefaultTimeout = 30 * time.Second

// Stats counts uploads performed by one Uploader.
type Stats struct {
	ChunksUploaded uint64
	BytesUploaded  uint64
	UploadFailures uint64
	LastHTTPStatus int
}

// Config controls an Uploader.
type Config struct {
	// Timeout bounds each HTTP request. Zero means DefaultTimeout.
	Timeout time.Duration

	// Verbose logs every request at debug level.
	Verbose bool
}

// Uploader POSTs chunks with Content-Type application/octet-stream and the
// device-provided authorization header. Not safe for concurrent use; it is
// driven synchronously from a session's processing loop.
type Uploader struct {
	client  *http.Client
	verbose bool
	stats   Stats
}

// New creates an uploader from cfg.
func New(cfg Config) *Uploader {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Uploader{
		client:  &http.Client{Timeout: timeout},
		verbose: cfg.Verbose,
	}
}

// Upload posts one chunk to uri. authHeader uses the protocol convention
// "HeaderName:HeaderValue"; a space after the colon is tolerated.
func (u *Uploader) Upload(uri, authHeader string, chunk []byte) error {
	name, value, err := splitAuthHeader(authHeader)
	if err != nil {
		u.stats.UploadFailures++
		metrics.failures.Inc()
		return err
	}

	req, err := http.NewRequest(http.MethodPost, uri, bytes.NewReader(chunk))
	if err != nil {
		u.stats.UploadFailures++
		metrics.failures.Inc()
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set(name, value)

	if u.verbose {
		log.Debug().Str("uri", uri).Int("bytes", len(chunk)).Msg("uploading chunk")
	}

	start := time.Now()
	resp, err := u.client.Do(req)
	if err != nil {
		u.stats.UploadFailures++
		metrics.failures.Inc()
		return fmt.Errorf("upload chunk: %w", err)
	}
	defer resp.Body.Close()

	u.stats.LastHTTPStatus = resp.StatusCode
	metrics.duration.Observe(time.Since(start).Seconds())

	if resp.StatusCode/100 != 2 {
		u.stats.UploadFailures++
		metrics.failures.Inc()
		return fmt.Errorf("upload chunk: HTTP %d from %s", resp.StatusCode, uri)
	}

	u.stats.ChunksUploaded++
	u.stats.BytesUploaded += uint64(len(chunk))
	metrics.chunks.Inc()
	metrics.bytes.Add(float64(len(chunk)))
	return nil
}

// Stats returns a snapshot of the upload counters.
func (u *Uploader) Stats() Stats {
	return u.stats
}

// ResetStats zeroes the upload counters. The process-wide Prometheus
// collectors are monotonic and are not reset.
func (u *Uploader) ResetStats() {
	u.stats = Stats{}
}

// splitAuthHeader splits the "HeaderName:HeaderValue" credential at the
// first colon.
func splitAuthHeader(authHeader string) (name, value string, err error) {
	i := strings.IndexByte(authHeader, ':')
	if i < 1 {
		return "", "", fmt.Errorf("malformed authorization header %q: want \"HeaderName:HeaderValue\"", authHeader)
	}
	return authHeader[:i], strings.TrimPrefix(authHeader[i+1:], " "), nil
}
