// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The mdsbridge authors

package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openmds/mdsbridge/pkg/capture"
	"github.com/openmds/mdsbridge/pkg/mds"
)

var captureCmd = &cobra.Command{
	Use:   "capture <file>",
	Short: "Record the diagnostic stream to a file without uploading",
	Long: `Enable the diagnostic stream and record every packet to a capture file,
along with the device configuration. Nothing is uploaded.

Captures can be inspected or uploaded later with the replay command.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		f, err := os.Create(args[0])
		if err != nil {
			return fmt.Errorf("create capture file: %w", err)
		}
		defer f.Close()

		w, err := capture.NewWriter(f, config)
		if err != nil {
			return fmt.Errorf("write capture header: %w", err)
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
			log.Info().
				Uint64("packets", stats.PacketsReceived).
				Uint64("bytes", stats.BytesReceived).
				Msg("capture summary")
		}()

		log.Info().Str("device", config.DeviceIdentifier).Str("path", args[0]).Msg("recording, press Ctrl-C to stop")

		for {
			select {
			case <-stop:
				return nil
			default:
			}

			pkt, err := session.ReadPacket(500 * time.Millisecond)
			if err != nil {
				if errors.Is(err, mds.ErrTimeout) {
					continue
				}
				if errors.Is(err, mds.ErrProtocolMismatch) {
					log.Warn().Err(err).Msg("unexpected report, continuing")
					continue
				}
				return fmt.Errorf("stream read: %w", err)
			}

			if err := w.WriteRecord(pkt); err != nil {
				return fmt.Errorf("capture write: %w", err)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(captureCmd)
}
