// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The mdsbridge authors

package capture

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/openmds/mdsbridge/pkg/mds"
)

// FileChannel replays a capture through the normal session path: feature
// reads serve the header snapshot re-encoded to wire form, stream-control
// writes are accepted as no-ops, and input reads deliver the recorded
// packets in order. ReadInput returns io.EOF once the capture is exhausted.
type FileChannel struct {
	r *Reader
}

// NewFileChannel wraps r as a report channel.
func NewFileChannel(r *Reader) *FileChannel {
	return &FileChannel{r: r}
}

// ReadFeature serves the configuration snapshot in the same wire form a
// device would, so replay exercises the regular decode path.
func (c *FileChannel) ReadFeature(reportID uint8) ([]byte, error) {
	cfg := c.r.Config()
	switch reportID {
	case mds.ReportIDSupportedFeatures:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, cfg.SupportedFeatures)
		return buf, nil
	case mds.ReportIDDeviceIdentifier:
		return paddedReport(cfg.DeviceIdentifier, mds.MaxDeviceIDLen), nil
	case mds.ReportIDDataURI:
		return paddedReport(cfg.DataURI, mds.MaxURILen), nil
	case mds.ReportIDAuthorization:
		return paddedReport(cfg.Authorization, mds.MaxAuthLen), nil
	default:
		return nil, fmt.Errorf("capture: no feature report 0x%02X", reportID)
	}
}

// WriteOutput accepts stream-control writes without effect; a capture is
// always "streaming".
func (c *FileChannel) WriteOutput(reportID uint8, data []byte, timeout time.Duration) (int, error) {
	if reportID != mds.ReportIDStreamControl {
		return 0, fmt.Errorf("capture: unexpected output report 0x%02X", reportID)
	}
	return len(data), nil
}

// ReadInput returns the next recorded packet. The timeout is ignored; file
// reads do not block.
func (c *FileChannel) ReadInput(timeout time.Duration) (uint8, []byte, error) {
	rec, err := c.r.Next()
	if err != nil {
		return 0, nil, err
	}
	buf := make([]byte, 1+len(rec.Data))
	buf[0] = rec.Sequence
	copy(buf[1:], rec.Data)
	return mds.ReportIDStreamData, buf, nil
}

func paddedReport(s string, size int) []byte {
	buf := make([]byte, size)
	copy(buf, s)
	return buf
}
