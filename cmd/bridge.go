// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The mdsbridge authors

package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/openmds/mdsbridge/pkg/capture"
	"github.com/openmds/mdsbridge/pkg/mds"
	"github.com/openmds/mdsbridge/pkg/uploader"
)

var (
	projectKey       string
	uploadTimeoutSec int
	metricsAddr      string
	bridgeCapture    string
)

const bridgeReadTimeout = 500 * time.Millisecond

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Stream diagnostic chunks from the device to the cloud",
	Long: `Enable the device's diagnostic stream and forward every chunk to the
ingestion endpoint the device advertises.

The device supplies its own upload URI and authorization header through
feature reports. If the device reports an empty authorization header,
provide a project key with --project-key (or the MEMFAULT_PROJECT_KEY
environment variable, or interactively).

Runs until interrupted. On shutdown the stream is disabled so the device
stops queuing data for a listener that is gone.`,
	RunE: runBridge,
}

func init() {
	bridgeCmd.Flags().StringVarP(&projectKey, "project-key", "k", "", "Project key to use when the device reports no authorization")
	bridgeCmd.Flags().IntVar(&uploadTimeoutSec, "upload-timeout", 0, "Chunk upload timeout in seconds (0 for default)")
	bridgeCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9664)")
	bridgeCmd.Flags().StringVar(&bridgeCapture, "capture", "", "Also record the stream to this capture file")
	rootCmd.AddCommand(bridgeCmd)
}

// resolveAuthorization fills in the authorization header when the device
// does not carry one. The config is the session's cached copy, so the
// override applies to every subsequent upload.
func resolveAuthorization(config *mds.DeviceConfig) error {
	if config.Authorization != "" {
		return nil
	}

	key := projectKey
	if key == "" {
		key = os.Getenv("MEMFAULT_PROJECT_KEY")
	}
	if key == "" && term.IsTerminal(int(syscall.Stdin)) {
		fmt.Fprint(os.Stderr, "Project key: ")
		keyBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("read project key: %w", err)
		}
		key = string(keyBytes)
	}
	if key == "" {
		return errors.New("device reports no authorization header and no project key given")
	}

	config.Authorization = "Memfault-Project-Key: " + key
	return nil
}

func runBridge(cmd *cobra.Command, args []string) error {
	ch, desc, err := openChannel()
	if err != nil {
		return err
	}
	defer ch.Close()

	log.Info().Str("connection", desc).Msg("connected")

	session := mds.NewSession(ch)
	config, err := session.ReadDeviceConfig()
	if err != nil {
		return fmt.Errorf("read device config: %w", err)
	}
	if err := resolveAuthorization(config); err != nil {
		return err
	}

	log.Info().
		Str("device", config.DeviceIdentifier).
		Str("uri", config.DataURI).
		Uint32("features", config.SupportedFeatures).
		Msg("device configuration")

	uploadCfg := uploader.Config{}
	if uploadTimeoutSec > 0 {
		uploadCfg.Timeout = time.Duration(uploadTimeoutSec) * time.Second
	}
	up := uploader.New(uploadCfg)
	session.SetSink(up)

	var capWriter *capture.Writer
	if bridgeCapture != "" {
		f, err := os.Create(bridgeCapture)
		if err != nil {
			return fmt.Errorf("create capture file: %w", err)
		}
		defer f.Close()
		capWriter, err = capture.NewWriter(f, config)
		if err != nil {
			return fmt.Errorf("write capture header: %w", err)
		}
		log.Info().Str("path", bridgeCapture).Msg("recording capture")
	}

	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.Info().Str("addr", metricsAddr).Msg("serving metrics")
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	if err := session.StreamEnable(); err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn().Err(err).Msg("session close")
		}
		stats := session.Stats()
		upStats := up.Stats()
		log.Info().
			Uint64("packets", stats.PacketsReceived).
			Uint64("bytes", stats.BytesReceived).
			Uint64("duplicates", stats.Duplicates).
			Uint64("gaps", stats.Gaps).
			Uint64("uploaded", upStats.ChunksUploaded).
			Uint64("failures", upStats.UploadFailures).
			Msg("session summary")
	}()

	log.Info().Msg("streaming, press Ctrl-C to stop")

	for {
		select {
		case sig := <-stop:
			log.Info().Str("signal", sig.String()).Msg("shutting down")
			return nil
		default:
		}

		if capWriter != nil {
			err = bridgeStep(session, up, config, capWriter)
		} else {
			err = session.Process(bridgeReadTimeout)
		}

		switch {
		case err == nil:
		case errors.Is(err, mds.ErrTimeout):
			// Device idle, keep polling.
		case errors.Is(err, mds.ErrSink):
			log.Warn().Err(err).Msg("chunk upload failed, continuing")
		case errors.Is(err, mds.ErrProtocolMismatch):
			log.Warn().Err(err).Msg("unexpected report, continuing")
		default:
			return fmt.Errorf("stream read: %w", err)
		}
	}
}

// bridgeStep reads one packet, records it, and uploads it. Used instead of
// Session.Process when a capture file is being written, since the capture
// needs the sequence number the sink never sees.
func bridgeStep(session *mds.Session, up *uploader.Uploader, config *mds.DeviceConfig, w *capture.Writer) error {
	pkt, err := session.ReadPacket(bridgeReadTimeout)
	if err != nil {
		return err
	}
	if err := w.WriteRecord(pkt); err != nil {
		log.Warn().Err(err).Msg("capture write failed")
	}
	if err := up.Upload(config.DataURI, config.Authorization, pkt.Data); err != nil {
		return fmt.Errorf("%w: %w", mds.ErrSink, err)
	}
	return nil
}
