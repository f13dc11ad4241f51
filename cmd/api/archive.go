package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"storeadmin/api/internal/archive"
	"storeadmin/api/internal/log"
	"storeadmin/api/internal/storage"
)

var archiveOlderThan time.Duration

var archiveLogsCmd = &cobra.Command{
	Use:   "archive-logs",
	Short: "Move resolved security log entries to object storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		if archiveOlderThan <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		store, err := storage.NewObjectStore(a.cfg.Archive)
		if err != nil {
			return err
		}
		if err := store.EnsureBucket(cmd.Context()); err != nil {
			return err
		}

		cutoff := time.Now().Add(-archiveOlderThan)
		archiver := archive.NewArchiver(a.securityLog, store, a.metrics, a.cfg.Archive.PageSize, log.Component(a.log, "archive"))
		n, err := archiver.Run(cmd.Context(), cutoff)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d security log entries archived\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(archiveLogsCmd)
	archiveLogsCmd.Flags().DurationVar(&archiveOlderThan, "older-than", 90*24*time.Hour, "archive resolved entries created before now minus this duration")
}
