// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The mdsbridge authors

package mds

import "fmt"

// StreamPacket is a decoded stream-data input report: a 5-bit sequence
// counter plus up to MaxChunkDataLen bytes of opaque chunk data.
type StreamPacket struct {
	Sequence uint8
	Data     []byte
}

// String returns a human-readable representation of the packet.
func (p *StreamPacket) String() string {
	return fmt.Sprintf("StreamPacket{Seq:%d, DataLen:%d}", p.Sequence, len(p.Data))
}

// DeviceConfig holds the four feature-report values describing the device
// and its upload destination.
type DeviceConfig struct {
	// SupportedFeatures is the raw 32-bit features bitmask.
	SupportedFeatures uint32

	// DeviceIdentifier names the device, e.g. a serial number.
	DeviceIdentifier string

	// DataURI is the destination for chunk uploads.
	DataURI string

	// Authorization is the upload credential, conventionally
	// "HeaderName:HeaderValue".
	Authorization string
}

// String returns a human-readable representation with the authorization
// value redacted.
func (c *DeviceConfig) String() string {
	return fmt.Sprintf("DeviceConfig{Features:0x%08X, ID:%q, URI:%q, Auth:%s}",
		c.SupportedFeatures, c.DeviceIdentifier, c.DataURI, redactAuth(c.Authorization))
}

// redactAuth keeps the header name but hides the credential value.
func redactAuth(auth string) string {
	if auth == "" {
		return `""`
	}
	for i := 0; i < len(auth); i++ {
		if auth[i] == ':' {
			return fmt.Sprintf("%q", auth[:i+1]+"***")
		}
	}
	return `"***"`
}
