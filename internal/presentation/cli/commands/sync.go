package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/yardsync/internal/infrastructure/config"
	"github.com/jbctechsolutions/yardsync/internal/infrastructure/configwatch"
	"github.com/jbctechsolutions/yardsync/internal/presentation/cli/output"
)

// SyncResult holds the result of a manual sync for JSON output.
type SyncResult struct {
	Synced            bool `json:"synced"`
	PendingOperations int  `json:"pending_operations"`
	Conflicts         int  `json:"conflicts"`
}

// NewSyncCmd creates the sync command.
func NewSyncCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize with the remote store",
		Long: `Fetch the shared yard document from the remote store, merge it into
the local cache, and push any queued changes.

With --watch, yardsync stays in the foreground and keeps syncing on the
configured poll interval until interrupted. Watch mode also reloads the
configuration when the config file changes on disk.`,
		Example: `  # One-shot sync
  yardsync sync

  # Keep syncing until interrupted
  yardsync sync --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch {
				return runSyncWatch(cmd.Context())
			}
			return runSyncOnce(cmd.Context())
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep syncing until interrupted")

	return cmd
}

func runSyncOnce(ctx context.Context) error {
	formatter := GetFormatter()
	container := GetContainer()

	var spinner *output.Spinner
	if formatter.Format() != output.FormatJSON {
		spinner = output.NewSpinner("Synchronizing...")
		spinner.Start()
	}

	err := container.Orchestrator().ForceSync(ctx)

	status, serr := container.Orchestrator().Status(ctx)
	if serr != nil {
		if spinner != nil {
			spinner.Stop()
		}
		return serr
	}

	if err != nil {
		if spinner != nil {
			spinner.StopWithError("Sync failed: " + err.Error())
		}
		return err
	}

	if formatter.Format() == output.FormatJSON {
		return formatter.JSON(SyncResult{
			Synced:            true,
			PendingOperations: status.PendingOperations,
			Conflicts:         len(status.Conflicts),
		})
	}

	if status.PendingOperations == 0 && len(status.Conflicts) == 0 {
		spinner.StopWithSuccess("Synchronized")
		return nil
	}

	spinner.Stop()
	if status.PendingOperations > 0 {
		formatter.Warning("%d operation(s) could not be pushed yet", status.PendingOperations)
	}
	if len(status.Conflicts) > 0 {
		formatter.Warning("%d conflict(s) need a decision, run 'yardsync conflicts resolve'", len(status.Conflicts))
	}

	return nil
}

func runSyncWatch(parent context.Context) error {
	formatter := GetFormatter()
	container := GetContainer()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background loops: remote polling, queue draining, connectivity probes
	go container.Orchestrator().Run(ctx)
	go container.Queue().Run(ctx)
	if m := container.Monitor(); m != nil {
		go m.Run(ctx)
	}

	// Reload the config when the file changes on disk
	if loader, err := config.NewLoader(""); err == nil {
		watcher, werr := configwatch.NewWatcher(
			loader,
			loader.DefaultConfigPath(),
			container.Reload,
			container.Logger(),
			configwatch.DefaultWatcherConfig(),
		)
		if werr == nil {
			if serr := watcher.Start(ctx); serr == nil {
				defer watcher.Close()
			}
		} else if globalFlags.Verbose {
			formatter.Warning("Config hot reload unavailable: %v", werr)
		}
	}

	formatter.Info("Watching for changes, press Ctrl-C to stop")

	<-ctx.Done()
	formatter.Println("")
	return nil
}
