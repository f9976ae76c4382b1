// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The mdsbridge authors

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openmds/mdsbridge/pkg/capture"
	"github.com/openmds/mdsbridge/pkg/mds"
	"github.com/openmds/mdsbridge/pkg/uploader"
)

var replayDryRun bool

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Upload the chunks in a capture file",
	Long: `Read a capture file and upload its chunks to the URI recorded in it.

With --dry-run the chunks are listed but nothing is sent. The recorded
authorization header is used unless --project-key overrides it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open capture file: %w", err)
		}
		defer f.Close()

		reader, err := capture.NewReader(f)
		if err != nil {
			return fmt.Errorf("read capture header: %w", err)
		}

		session := mds.NewSession(capture.NewFileChannel(reader))
		config, err := session.ReadDeviceConfig()
		if err != nil {
			return fmt.Errorf("read capture config: %w", err)
		}
		if projectKey != "" {
			config.Authorization = "Memfault-Project-Key: " + projectKey
		}

		log.Info().
			Str("device", config.DeviceIdentifier).
			Str("uri", config.DataURI).
			Time("created", reader.CreatedAt()).
			Msg("capture file")

		if replayDryRun {
			n := 0
			for {
				pkt, err := session.ReadPacket(0)
				if err != nil {
					if errors.Is(err, io.EOF) {
						break
					}
					return fmt.Errorf("read capture: %w", err)
				}
				fmt.Printf("%4d  seq=%2d  %d bytes\n", n, pkt.Sequence, len(pkt.Data))
				n++
			}
			fmt.Printf("%d chunks, nothing uploaded\n", n)
			return nil
		}

		uploadCfg := uploader.Config{}
		if uploadTimeoutSec > 0 {
			uploadCfg.Timeout = time.Duration(uploadTimeoutSec) * time.Second
		}
		up := uploader.New(uploadCfg)
		session.SetSink(up)

		for {
			if err := session.Process(0); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				if errors.Is(err, mds.ErrSink) {
					log.Warn().Err(err).Msg("chunk upload failed, continuing")
					continue
				}
				return fmt.Errorf("replay: %w", err)
			}
		}

		stats := up.Stats()
		log.Info().
			Uint64("uploaded", stats.ChunksUploaded).
			Uint64("bytes", stats.BytesUploaded).
			Uint64("failures", stats.UploadFailures).
			Msg("replay complete")
		return nil
	},
}

func init() {
	replayCmd.Flags().BoolVar(&replayDryRun, "dry-run", false, "List chunks without uploading")
	replayCmd.Flags().StringVarP(&projectKey, "project-key", "k", "", "Override the recorded authorization with this project key")
	rootCmd.AddCommand(replayCmd)
}
