// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The mdsbridge authors

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/KarpelesLab/hid"
	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"

	"github.com/openmds/mdsbridge/pkg/mds"
)

// Channel is a report channel that must be released when done.
type Channel interface {
	mds.ReportChannel
	io.Closer
}

// ============================================================================
// HID
// ============================================================================

// hidChannel carries reports over a directly attached USB HID device.
type hidChannel struct {
	handle hid.Handle
}

// findDevice walks the USB bus and returns the first HID device matching
// the vendor/product filter. A zero filter value matches anything, but at
// least one of the two must be set.
func findDevice(vid, pid uint16) (hid.Device, error) {
	if vid == 0 && pid == 0 {
		return nil, fmt.Errorf("no device filter: set --vid and/or --pid")
	}

	var found hid.Device
	hid.UsbWalk(func(device hid.Device) {
		if found != nil {
			return
		}
		info := device.Info()
		if vid != 0 && info.Vendor != vid {
			return
		}
		if pid != 0 && info.Product != pid {
			return
		}
		found = device
	})

	if found == nil {
		return nil, fmt.Errorf("no HID device matching vid=0x%04X pid=0x%04X", vid, pid)
	}
	return found, nil
}

// openHIDChannel opens a report channel to a matching USB HID device.
func openHIDChannel(vid, pid uint16) (Channel, error) {
	device, err := findDevice(vid, pid)
	if err != nil {
		return nil, err
	}

	handle, err := device.Open()
	if err != nil {
		info := device.Info()
		return nil, fmt.Errorf("open HID device %04X:%04X: %w", info.Vendor, info.Product, err)
	}

	return &hidChannel{handle: handle}, nil
}

func (h *hidChannel) ReadFeature(reportID uint8) ([]byte, error) {
	buf, err := h.handle.GetFeatureReport(int(reportID))
	if err != nil {
		return nil, fmt.Errorf("%w: get feature report 0x%02X: %w", mds.ErrChannel, reportID, err)
	}
	// Some HID stacks return the report ID as the first byte.
	if len(buf) > 0 && buf[0] == reportID {
		buf = buf[1:]
	}
	return buf, nil
}

func (h *hidChannel) WriteOutput(reportID uint8, data []byte, timeout time.Duration) (int, error) {
	report := make([]byte, 1+len(data))
	report[0] = reportID
	copy(report[1:], data)

	n, err := h.handle.Write(report, timeout)
	if err != nil {
		return 0, fmt.Errorf("%w: write output report 0x%02X: %w", mds.ErrChannel, reportID, err)
	}
	if n > 0 {
		n--
	}
	return n, nil
}

func (h *hidChannel) ReadInput(timeout time.Duration) (uint8, []byte, error) {
	buf, err := h.handle.ReadInputPacket(timeout)
	if err != nil {
		if os.IsTimeout(err) {
			return 0, nil, mds.ErrTimeout
		}
		return 0, nil, fmt.Errorf("%w: read input report: %w", mds.ErrChannel, err)
	}
	if len(buf) == 0 {
		return 0, nil, mds.ErrTimeout
	}
	return buf[0], buf[1:], nil
}

func (h *hidChannel) Close() error {
	return h.handle.Close()
}

// ============================================================================
// WebSocket tunnel
// ============================================================================

// wsChannel carries reports over a WebSocket tunnel to a remote agent that
// holds the physical device. Each message is one frame.
type wsChannel struct {
	conn *websocket.Conn

	// Input frames arriving while a feature exchange is in flight are
	// queued so they surface on the next ReadInput call.
	mu      sync.Mutex
	pending []frame
}

// openWebSocketChannel dials a report tunnel with HTTP Basic auth.
func openWebSocketChannel(rawURL, username, password string, skipSSLVerify bool) (Channel, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, rawURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return &wsChannel{conn: conn}, nil
}

// readFrame reads the next binary frame off the socket, skipping any
// non-binary messages.
func (w *wsChannel) readFrame() (frame, error) {
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			if os.IsTimeout(err) {
				return frame{}, mds.ErrTimeout
			}
			return frame{}, fmt.Errorf("%w: %w", mds.ErrChannel, err)
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		f, err := decodeFrame(data)
		if err != nil {
			return frame{}, fmt.Errorf("%w: %w", mds.ErrChannel, err)
		}
		return f, nil
	}
}

func (w *wsChannel) writeFrame(f frame) error {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, encodeFrame(f)); err != nil {
		return fmt.Errorf("%w: %w", mds.ErrChannel, err)
	}
	return nil
}

func (w *wsChannel) ReadFeature(reportID uint8) ([]byte, error) {
	if err := w.writeFrame(frame{Kind: frameFeatureRequest, ReportID: reportID}); err != nil {
		return nil, err
	}

	w.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	defer w.conn.SetReadDeadline(time.Time{})

	for {
		f, err := w.readFrame()
		if err != nil {
			return nil, err
		}
		if f.Kind == frameInput {
			w.mu.Lock()
			w.pending = append(w.pending, f)
			w.mu.Unlock()
			continue
		}
		if f.Kind != frameFeatureResponse || f.ReportID != reportID {
			return nil, fmt.Errorf("%w: unexpected frame kind 0x%02X report 0x%02X", mds.ErrChannel, f.Kind, f.ReportID)
		}
		return f.Payload, nil
	}
}

func (w *wsChannel) WriteOutput(reportID uint8, data []byte, timeout time.Duration) (int, error) {
	if timeout > 0 {
		w.conn.SetWriteDeadline(time.Now().Add(timeout))
		defer w.conn.SetWriteDeadline(time.Time{})
	}
	if err := w.writeFrame(frame{Kind: frameOutput, ReportID: reportID, Payload: data}); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (w *wsChannel) ReadInput(timeout time.Duration) (uint8, []byte, error) {
	w.mu.Lock()
	if len(w.pending) > 0 {
		f := w.pending[0]
		w.pending = w.pending[1:]
		w.mu.Unlock()
		return f.ReportID, f.Payload, nil
	}
	w.mu.Unlock()

	if timeout >= 0 {
		w.conn.SetReadDeadline(time.Now().Add(timeout))
		defer w.conn.SetReadDeadline(time.Time{})
	}

	f, err := w.readFrame()
	if err != nil {
		return 0, nil, err
	}
	if f.Kind != frameInput {
		return 0, nil, fmt.Errorf("%w: unexpected frame kind 0x%02X", mds.ErrChannel, f.Kind)
	}
	return f.ReportID, f.Payload, nil
}

func (w *wsChannel) Close() error {
	return w.conn.Close()
}

// ============================================================================
// Serial bridge
// ============================================================================

// serialChannel carries frames over a serial link to a bridge MCU that
// relays reports to the device.
type serialChannel struct {
	port   serial.Port
	reader *bufio.Reader
}

// openSerialChannel opens a serial report bridge.
func openSerialChannel(portName string, baudRate int) (Channel, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return &serialChannel{port: port, reader: bufio.NewReader(port)}, nil
}

func (s *serialChannel) setTimeout(timeout time.Duration) error {
	if timeout < 0 {
		return s.port.SetReadTimeout(serial.NoTimeout)
	}
	return s.port.SetReadTimeout(timeout)
}

func (s *serialChannel) ReadFeature(reportID uint8) ([]byte, error) {
	wire := encodeSerialFrame(frame{Kind: frameFeatureRequest, ReportID: reportID})
	if _, err := s.port.Write(wire); err != nil {
		return nil, fmt.Errorf("%w: %w", mds.ErrChannel, err)
	}

	if err := s.setTimeout(5 * time.Second); err != nil {
		return nil, fmt.Errorf("%w: %w", mds.ErrChannel, err)
	}

	f, err := readSerialFrame(s.reader)
	if err != nil {
		if err == io.EOF {
			return nil, mds.ErrTimeout
		}
		return nil, fmt.Errorf("%w: %w", mds.ErrChannel, err)
	}
	if f.Kind != frameFeatureResponse || f.ReportID != reportID {
		return nil, fmt.Errorf("%w: unexpected frame kind 0x%02X report 0x%02X", mds.ErrChannel, f.Kind, f.ReportID)
	}
	return f.Payload, nil
}

func (s *serialChannel) WriteOutput(reportID uint8, data []byte, timeout time.Duration) (int, error) {
	wire := encodeSerialFrame(frame{Kind: frameOutput, ReportID: reportID, Payload: data})
	if _, err := s.port.Write(wire); err != nil {
		return 0, fmt.Errorf("%w: %w", mds.ErrChannel, err)
	}
	return len(data), nil
}

func (s *serialChannel) ReadInput(timeout time.Duration) (uint8, []byte, error) {
	if err := s.setTimeout(timeout); err != nil {
		return 0, nil, fmt.Errorf("%w: %w", mds.ErrChannel, err)
	}

	f, err := readSerialFrame(s.reader)
	if err != nil {
		// The serial library signals an expired read timeout as a
		// zero-length read, which the frame reader surfaces as EOF.
		if err == io.EOF {
			return 0, nil, mds.ErrTimeout
		}
		return 0, nil, fmt.Errorf("%w: %w", mds.ErrChannel, err)
	}
	if f.Kind != frameInput {
		return 0, nil, fmt.Errorf("%w: unexpected frame kind 0x%02X", mds.ErrChannel, f.Kind)
	}
	return f.ReportID, f.Payload, nil
}

func (s *serialChannel) Close() error {
	return s.port.Close()
}

// ============================================================================
// Selection
// ============================================================================

// getPassword retrieves the tunnel password from the environment or
// prompts the user.
func getPassword() (string, error) {
	if pw := os.Getenv("MDSBRIDGE_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// openChannel opens a report channel based on the connection flags, in
// priority order: WebSocket tunnel, serial bridge, direct HID. Returns the
// channel and a human-readable description of it.
func openChannel() (Channel, string, error) {
	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = getPassword()
			if err != nil {
				return nil, "", err
			}
		}

		ch, err := openWebSocketChannel(wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return ch, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if serialPortName != "" {
		ch, err := openSerialChannel(serialPortName, serialBaudRate)
		if err != nil {
			return nil, "", err
		}
		return ch, fmt.Sprintf("Serial: %s @ %d baud", serialPortName, serialBaudRate), nil
	}

	if hidVendorID != 0 || hidProductID != 0 {
		ch, err := openHIDChannel(hidVendorID, hidProductID)
		if err != nil {
			return nil, "", err
		}
		return ch, fmt.Sprintf("HID: vid=0x%04X pid=0x%04X", hidVendorID, hidProductID), nil
	}

	return nil, "", fmt.Errorf("no connection specified: use --vid/--pid, --url, or --port")
}
