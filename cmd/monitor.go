// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The mdsbridge authors

package cmd

import (
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/openmds/mdsbridge/pkg/mds"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch the diagnostic stream live without uploading",
	Long: `Enable the diagnostic stream and display packets, sequence anomalies, and
throughput in a live terminal view. Nothing is uploaded.

Useful for verifying firmware behavior during development.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ch, desc, err := openChannel()
		if err != nil {
			return err
		}
		defer ch.Close()

		session := mds.NewSession(ch)
		config, err := session.ReadDeviceConfig()
		if err != nil {
			return fmt.Errorf("read device config: %w", err)
		}

		// The TUI owns the terminal; route log output away from it.
		zerolog.SetGlobalLevel(zerolog.Disabled)

		if err := session.StreamEnable(); err != nil {
			return err
		}

		m := initialMonitorModel(desc, config)
		p := tea.NewProgram(m, tea.WithAltScreen())

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				prev := session.LastSequence()
				pkt, err := session.ReadPacket(500 * time.Millisecond)
				if err != nil {
					if errors.Is(err, mds.ErrTimeout) {
						continue
					}
					if errors.Is(err, mds.ErrProtocolMismatch) {
						continue
					}
					p.Send(monitorErrMsg{err: err})
					return
				}

				expected := mds.ExpectedNext(prev)
				if pkt.Sequence != expected {
					result := mds.SequenceGap
					if pkt.Sequence == prev {
						result = mds.SequenceDuplicate
					}
					p.Send(monitorAnomalyMsg{result: result, expected: expected, got: pkt.Sequence})
				}

				p.Send(monitorPacketMsg{packet: pkt, stats: session.Stats()})
			}
		}()

		_, err = p.Run()

		// Tear down the stream so the reader goroutine unblocks on a
		// channel error rather than holding the device open.
		session.Close()
		ch.Close()
		<-done

		return err
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}
