// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The mdsbridge authors

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Settings mirrors the command line flags so deployments can keep their
// connection parameters in a file. Flags given explicitly on the command
// line win over the file.
type Settings struct {
	Transport struct {
		VendorID    uint16 `yaml:"vid"`
		ProductID   uint16 `yaml:"pid"`
		URL         string `yaml:"url"`
		Username    string `yaml:"username"`
		NoSSLVerify bool   `yaml:"no_ssl_verify"`
		Port        string `yaml:"port"`
		Baud        int    `yaml:"baud"`
	} `yaml:"transport"`

	Upload struct {
		ProjectKey string `yaml:"project_key"`
		TimeoutSec int    `yaml:"timeout_sec"`
	} `yaml:"upload"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

func loadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return &s, nil
}

// applySettings copies file values into the flag variables for every flag
// the user did not set explicitly.
func applySettings(cmd *cobra.Command, s *Settings) {
	flags := cmd.Flags()

	if !flags.Changed("vid") && s.Transport.VendorID != 0 {
		hidVendorID = s.Transport.VendorID
	}
	if !flags.Changed("pid") && s.Transport.ProductID != 0 {
		hidProductID = s.Transport.ProductID
	}
	if !flags.Changed("url") && s.Transport.URL != "" {
		wsURL = s.Transport.URL
	}
	if !flags.Changed("username") && s.Transport.Username != "" {
		wsUsername = s.Transport.Username
	}
	if !flags.Changed("no-ssl-verify") && s.Transport.NoSSLVerify {
		wsNoSSLVerify = true
	}
	if !flags.Changed("port") && s.Transport.Port != "" {
		serialPortName = s.Transport.Port
	}
	if !flags.Changed("baud") && s.Transport.Baud != 0 {
		serialBaudRate = s.Transport.Baud
	}
	if !flags.Changed("log-level") && s.Logging.Level != "" {
		logLevel = s.Logging.Level
	}

	if !flags.Changed("project-key") && s.Upload.ProjectKey != "" {
		projectKey = s.Upload.ProjectKey
	}
	if !flags.Changed("upload-timeout") && s.Upload.TimeoutSec != 0 {
		uploadTimeoutSec = s.Upload.TimeoutSec
	}
	if !flags.Changed("metrics-addr") && s.Metrics.Addr != "" {
		metricsAddr = s.Metrics.Addr
	}
}
