package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/yardsync/internal/presentation/cli/output"
)

// ConflictView is a single unresolved conflict for status output.
type ConflictView struct {
	OperationID string `json:"operation_id"`
	EntityID    string `json:"entity_id,omitempty"`
	Message     string `json:"message"`
	Age         string `json:"age"`
}

// PendingRecordView is a record whose local edit still awaits remote
// confirmation.
type PendingRecordView struct {
	EntityID   string `json:"entity_id"`
	RecordKind string `json:"record_kind"`
	Age        string `json:"age"`
}

// SyncStatusView represents the synchronization state for output.
type SyncStatusView struct {
	Remote            string              `json:"remote,omitempty"`
	RemoteConfigured  bool                `json:"remote_configured"`
	Online            bool                `json:"online"`
	Syncing           bool                `json:"syncing"`
	PendingOperations int                 `json:"pending_operations"`
	PendingRecords    []PendingRecordView `json:"pending_records,omitempty"`
	LastSync          string              `json:"last_sync,omitempty"`
	Trucks            int                 `json:"trucks"`
	Loadings          int                 `json:"loadings"`
	Conflicts         []ConflictView      `json:"conflicts,omitempty"`
}

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	var checkRemote bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show synchronization status",
		Long: `Display the synchronization state of the local yard data.

This includes:
  • Remote store connectivity
  • Queued operations waiting to be pushed
  • Unresolved conflicts needing a decision
  • Record counts in the local cache

Use --check to probe the remote store before reporting.`,
		Example: `  # Show current status
  yardsync status

  # Probe the remote store first
  yardsync status --check

  # Get status as JSON for scripting
  yardsync status -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), checkRemote)
		},
	}

	cmd.Flags().BoolVar(&checkRemote, "check", false, "probe the remote store before reporting")

	return cmd
}

func runStatus(ctx context.Context, checkRemote bool) error {
	formatter := GetFormatter()
	container := GetContainer()

	if checkRemote {
		if m := container.Monitor(); m != nil {
			m.Probe(ctx)
		}
	}

	view, err := buildStatusView(ctx)
	if err != nil {
		return err
	}

	if formatter.Format() == output.FormatJSON {
		return formatter.JSON(view)
	}

	return printStatusText(formatter, view)
}

// buildStatusView assembles the status snapshot from the container.
func buildStatusView(ctx context.Context) (*SyncStatusView, error) {
	container := GetContainer()

	status, err := container.Orchestrator().Status(ctx)
	if err != nil {
		return nil, err
	}

	doc, err := container.Orchestrator().LoadData(ctx)
	if err != nil {
		return nil, err
	}

	view := &SyncStatusView{
		Online:            status.IsOnline,
		Syncing:           status.IsSyncing,
		PendingOperations: status.PendingOperations,
		Trucks:            len(doc.Trucks),
		Loadings:          len(doc.Loadings),
	}

	if cfg := container.Config(); cfg.Remote.Enabled {
		view.RemoteConfigured = true
		view.Remote = cfg.Remote.Owner + "/" + cfg.Remote.Repo + "/" + cfg.Remote.Path
	}

	if !status.LastSyncTime.IsZero() {
		view.LastSync = status.LastSyncTime.Local().Format(time.RFC3339)
	}

	if marks, err := container.Cache().ListPendingChanges(ctx); err == nil {
		for _, m := range marks {
			view.PendingRecords = append(view.PendingRecords, PendingRecordView{
				EntityID:   m.EntityID,
				RecordKind: m.RecordKind,
				Age:        time.Since(m.MarkedAt).Round(time.Second).String(),
			})
		}
	}

	for _, c := range status.Conflicts {
		view.Conflicts = append(view.Conflicts, ConflictView{
			OperationID: c.OperationID,
			EntityID:    c.EntityID,
			Message:     c.Message,
			Age:         time.Since(c.CreatedAt).Round(time.Second).String(),
		})
	}

	return view, nil
}

// printStatusText prints the status in human-readable format.
func printStatusText(formatter *output.Formatter, view *SyncStatusView) error {
	formatter.Header("Yardsync Status")
	formatter.Println("")

	if !view.RemoteConfigured {
		formatter.Println("  %s  %s", formatter.Dim("Mode:"), "local-only (no remote store configured)")
	} else {
		formatter.Println("  %s  %s", formatter.Dim("Remote:"), view.Remote)
		formatter.Println("  %s  %s", formatter.Dim("Connection:"), connectionIndicator(formatter, view.Online))
		if view.Syncing {
			formatter.Println("  %s  %s", formatter.Dim("Sync:"), "in progress")
		}
		if view.LastSync != "" {
			formatter.Println("  %s  %s", formatter.Dim("Last Sync:"), view.LastSync)
		}
	}
	formatter.Println("")

	formatter.SubHeader("Local Data")
	formatter.Println("  %s  %d", formatter.Dim("Trucks:"), view.Trucks)
	formatter.Println("  %s  %d", formatter.Dim("Loadings:"), view.Loadings)
	formatter.Println("")

	formatter.SubHeader("Queue")
	if view.PendingOperations == 0 {
		formatter.Success("All changes synchronized")
	} else {
		formatter.Println("  %s %d operation(s) waiting to be pushed",
			formatter.Colorize("●", output.ColorYellow), view.PendingOperations)
	}
	for _, p := range view.PendingRecords {
		formatter.BulletItem(fmt.Sprintf("%s %s awaiting remote confirmation (%s old)",
			p.RecordKind, shortID(p.EntityID), p.Age))
	}

	if len(view.Conflicts) > 0 {
		formatter.Println("")
		formatter.SubHeader("Conflicts")
		for _, c := range view.Conflicts {
			formatter.Println("  %s %s %s",
				formatter.Colorize("●", output.ColorRed),
				formatter.Bold(c.OperationID),
				formatter.Dim("("+c.Age+" old)"))
			formatter.Println("      %s", c.Message)
		}
		formatter.Println("")
		formatter.Info("Run 'yardsync conflicts resolve' to settle them")
	}

	return nil
}

// connectionIndicator returns a colored online/offline marker.
func connectionIndicator(formatter *output.Formatter, online bool) string {
	if online {
		return formatter.Colorize("●", output.ColorGreen) + " " + formatter.Colorize("online", output.ColorGreen)
	}
	return formatter.Colorize("●", output.ColorRed) + " " + formatter.Colorize("offline", output.ColorRed)
}
