package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"fulltrace/internal/tracelog"
)

var logCmd = &cobra.Command{
	Use:   "log [flags]",
	Short: "Print identifier to location pairs from trace-id.log",
	Args:  cobra.NoArgs,
	RunE:  runLog,
}

func init() {
	logCmd.Flags().String("base-dir", ".", "directory holding trace-id.log")
	logCmd.Flags().Int64("id", -1, "only this identifier")
}

func runLog(cmd *cobra.Command, args []string) error {
	baseDir, err := cmd.Flags().GetString("base-dir")
	if err != nil {
		return fmt.Errorf("failed to get base-dir flag: %w", err)
	}
	id, err := cmd.Flags().GetInt64("id")
	if err != nil {
		return fmt.Errorf("failed to get id flag: %w", err)
	}

	path := filepath.Join(baseDir, tracelog.FileName)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s not found; run instrument first", path)
		}
		return err
	}
	defer f.Close()

	entries, err := tracelog.Correlate(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	out := cmd.OutOrStdout()
	for _, e := range entries {
		if id >= 0 && int64(e.ID) != id {
			continue
		}
		loc := e.Location
		if loc == "" {
			loc = "<unknown>"
		}
		fmt.Fprintf(out, "%d\t%s\n", e.ID, loc)
	}
	return nil
}
