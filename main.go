package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"library-circulation/config"
	"library-circulation/internal/logging"
	"library-circulation/library"
	"library-circulation/store"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:          "library",
		Short:        "Library inventory and circulation",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(cmd.Context(), cfgPath, func(mgr *library.LibraryManager, _ *slog.Logger) error {
				return runShell(cmd.Context(), cmd.InOrStdin(), mgr)
			})
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default library.yaml)")

	root.AddCommand(
		&cobra.Command{
			Use:   "shell",
			Short: "Start the interactive shell",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withManager(cmd.Context(), cfgPath, func(mgr *library.LibraryManager, _ *slog.Logger) error {
					return runShell(cmd.Context(), cmd.InOrStdin(), mgr)
				})
			},
		},
		&cobra.Command{
			Use:   "report",
			Short: "Print circulation totals and outstanding fines",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withManager(cmd.Context(), cfgPath, func(mgr *library.LibraryManager, _ *slog.Logger) error {
					printSummary(mgr.Summary())
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "refresh",
			Short: "Recompute loan statuses and fines",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withManager(cmd.Context(), cfgPath, func(mgr *library.LibraryManager, log *slog.Logger) error {
					n, err := mgr.RefreshStatuses(cmd.Context())
					if err != nil {
						return err
					}
					log.Info("refresh complete", "changed", n)
					fmt.Printf("%d loans updated\n", n)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "overdue",
			Short: "List overdue loans",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withManager(cmd.Context(), cfgPath, func(mgr *library.LibraryManager, _ *slog.Logger) error {
					loans, err := mgr.OverdueLoans(cmd.Context())
					if err != nil {
						return err
					}
					printLoans(loans)
					return nil
				})
			},
		},
	)
	return root
}

// withManager loads config, opens the store and hands a ready manager to fn.
// Errors are returned for cobra to print.
func withManager(ctx context.Context, cfgPath string, fn func(*library.LibraryManager, *slog.Logger) error) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logging.Init(cfg.LogLevel, os.Stderr)

	st, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	mgr, err := library.NewLibraryManager(ctx, library.Options{
		Store:  st,
		Policy: cfg.Policy(),
		Logger: log,
	})
	if err != nil {
		st.Close()
		return fmt.Errorf("loading library: %w", err)
	}
	defer mgr.Close()
	log.Debug("library opened", "store", cfg.StoreBackend)
	return fn(mgr, log)
}

func printSummary(s library.Summary) {
	fmt.Println("Library report")
	fmt.Println(strings.Repeat("-", 40))
	fmt.Printf("%-24s %d\n", "Titles", s.TotalBooks)
	fmt.Printf("%-24s %d\n", "Copies", s.TotalCopies)
	fmt.Printf("%-24s %d\n", "Copies on shelf", s.AvailableCopies)
	fmt.Printf("%-24s %d\n", "Users", s.TotalUsers)
	fmt.Printf("%-24s %d\n", "Open loans", s.ActiveLoans)
	fmt.Printf("%-24s %d\n", "Overdue loans", s.OverdueLoans)
	fmt.Printf("%-24s %s\n", "Outstanding fines", s.OutstandingFines.StringFixed(2))
	fmt.Printf("%-24s %d\n", "Pending requests", s.PendingRequests)
}
