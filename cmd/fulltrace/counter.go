package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fulltrace/internal/ident"
)

var counterCmd = &cobra.Command{
	Use:   "counter [flags]",
	Short: "Show the persisted identifier counter",
	Long: `Show the identifier the next run will start from. Every run appends its
final value to inst_id; --history prints all of them`,
	Args: cobra.NoArgs,
	RunE: runCounter,
}

func init() {
	counterCmd.Flags().String("base-dir", ".", "directory holding inst_id")
	counterCmd.Flags().Uint32("capacity", ident.DefaultCapacity, "identifier space size used to wrap the stored value")
	counterCmd.Flags().Bool("history", false, "print every recorded value")
	counterCmd.Flags().Bool("reset", false, "append 0 so the next run starts from the beginning")
}

func runCounter(cmd *cobra.Command, args []string) error {
	baseDir, err := cmd.Flags().GetString("base-dir")
	if err != nil {
		return fmt.Errorf("failed to get base-dir flag: %w", err)
	}
	capacity, err := cmd.Flags().GetUint32("capacity")
	if err != nil {
		return fmt.Errorf("failed to get capacity flag: %w", err)
	}
	history, err := cmd.Flags().GetBool("history")
	if err != nil {
		return fmt.Errorf("failed to get history flag: %w", err)
	}
	reset, err := cmd.Flags().GetBool("reset")
	if err != nil {
		return fmt.Errorf("failed to get reset flag: %w", err)
	}

	store := ident.NewFileStore(baseDir)
	out := cmd.OutOrStdout()
	if reset {
		if err := store.Append(0); err != nil {
			return fmt.Errorf("reset counter: %w", err)
		}
		fmt.Fprintf(out, "%s: next identifier 0\n", store.Path())
		return nil
	}

	alloc := ident.NewAllocator(store, capacity)
	if err := alloc.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(out, "%s: no counter yet, next identifier 0\n", store.Path())
			return nil
		}
		return err
	}
	fmt.Fprintf(out, "%s: next identifier %d\n", store.Path(), alloc.Initial())
	if history {
		for i, v := range alloc.History() {
			fmt.Fprintf(out, "  run %d: %d\n", i+1, v)
		}
	}
	return nil
}
