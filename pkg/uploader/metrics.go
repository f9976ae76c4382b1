// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The mdsbridge authors

package uploader

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Process-wide collectors shared by all uploaders; promauto registers them
// on the default registry once at package init.
var metrics = struct {
	chunks   prometheus.Counter
	bytes    prometheus.Counter
	failures prometheus.Counter
	duration prometheus.Histogram
}{
	chunks: promauto.NewCounter(prometheus.CounterOpts{
		Name: "mds_chunks_uploaded_total",
		Help: "Total number of diagnostic chunks uploaded successfully",
	}),
	bytes: promauto.NewCounter(prometheus.CounterOpts{
		Name: "mds_chunk_bytes_uploaded_total",
		Help: "Total number of chunk payload bytes uploaded",
	}),
	failures: promauto.NewCounter(prometheus.CounterOpts{
		Name: "mds_chunk_upload_failures_total",
		Help: "Total number of failed chunk uploads",
	}),
	duration: promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mds_chunk_upload_duration_seconds",
		Help:    "Chunk upload request duration",
		Buckets: prometheus.DefBuckets,
	}),
}
