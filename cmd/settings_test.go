// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The mdsbridge authors

package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func writeSettingsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write settings file: %v", err)
	}
	return path
}

func TestLoadSettings(t *testing.T) {
	path := writeSettingsFile(t, `
transport:
  vid: 0x2FE3
  pid: 0x0100
  port: /dev/ttyACM0
  baud: 921600
upload:
  project_key: abc123
  timeout_sec: 60
metrics:
  addr: ":9664"
logging:
  level: debug
`)

	s, err := loadSettings(path)
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}

	if s.Transport.VendorID != 0x2FE3 {
		t.Errorf("VendorID = 0x%04X, want 0x2FE3", s.Transport.VendorID)
	}
	if s.Transport.ProductID != 0x0100 {
		t.Errorf("ProductID = 0x%04X, want 0x0100", s.Transport.ProductID)
	}
	if s.Transport.Port != "/dev/ttyACM0" {
		t.Errorf("Port = %q", s.Transport.Port)
	}
	if s.Transport.Baud != 921600 {
		t.Errorf("Baud = %d", s.Transport.Baud)
	}
	if s.Upload.ProjectKey != "abc123" {
		t.Errorf("ProjectKey = %q", s.Upload.ProjectKey)
	}
	if s.Upload.TimeoutSec != 60 {
		t.Errorf("TimeoutSec = %d", s.Upload.TimeoutSec)
	}
	if s.Metrics.Addr != ":9664" {
		t.Errorf("Metrics.Addr = %q", s.Metrics.Addr)
	}
	if s.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", s.Logging.Level)
	}
}

func TestLoadSettings_Missing(t *testing.T) {
	if _, err := loadSettings("/nonexistent/settings.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadSettings_Malformed(t *testing.T) {
	path := writeSettingsFile(t, "transport: [not a map")
	if _, err := loadSettings(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestApplySettings_FlagWins(t *testing.T) {
	defer func() {
		serialPortName = ""
		serialBaudRate = 115200
		logLevel = "info"
	}()

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&serialPortName, "port", "", "")
	cmd.Flags().IntVar(&serialBaudRate, "baud", 115200, "")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "")
	if err := cmd.Flags().Set("port", "/dev/ttyUSB7"); err != nil {
		t.Fatal(err)
	}
	serialPortName = "/dev/ttyUSB7"

	var s Settings
	s.Transport.Port = "/dev/ttyACM0"
	s.Transport.Baud = 921600
	s.Logging.Level = "trace"
	applySettings(cmd, &s)

	// Explicit flag beats the file.
	if serialPortName != "/dev/ttyUSB7" {
		t.Errorf("port = %q, want flag value preserved", serialPortName)
	}
	// Unset flags take the file values.
	if serialBaudRate != 921600 {
		t.Errorf("baud = %d, want 921600", serialBaudRate)
	}
	if logLevel != "trace" {
		t.Errorf("log level = %q, want trace", logLevel)
	}
}

func TestApplySettings_EmptyFile(t *testing.T) {
	defer func() {
		serialBaudRate = 115200
	}()

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().IntVar(&serialBaudRate, "baud", 115200, "")

	applySettings(cmd, &Settings{})

	if serialBaudRate != 115200 {
		t.Errorf("baud = %d, want default untouched", serialBaudRate)
	}
}
