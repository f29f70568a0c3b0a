package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/yardsync/internal/domain/operation"
	"github.com/jbctechsolutions/yardsync/internal/presentation/cli/output"
)

// NewConflictsCmd creates the conflicts command group.
func NewConflictsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Inspect and resolve sync conflicts",
		Long: `Inspect and resolve synchronization conflicts.

A conflict is raised when a queued change keeps colliding with
concurrent edits from other clients. The change stays parked until you
pick a side: keep your local version and push it again, or drop it and
adopt the remote state.`,
	}

	cmd.AddCommand(newConflictsListCmd())
	cmd.AddCommand(newConflictsResolveCmd())

	return cmd
}

func newConflictsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List unresolved conflicts",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := GetFormatter()

			conflicts, err := GetContainer().Queue().Conflicts(cmd.Context())
			if err != nil {
				return err
			}

			if formatter.Format() == output.FormatJSON {
				views := make([]ConflictView, 0, len(conflicts))
				for _, c := range conflicts {
					views = append(views, ConflictView{
						OperationID: c.OperationID,
						EntityID:    c.EntityID,
						Message:     c.Message,
						Age:         time.Since(c.CreatedAt).Round(time.Second).String(),
					})
				}
				return formatter.JSON(views)
			}

			if len(conflicts) == 0 {
				formatter.Success("No conflicts")
				return nil
			}

			for _, c := range conflicts {
				printConflict(formatter, c)
			}
			formatter.Println("")
			formatter.Info("Run 'yardsync conflicts resolve' to settle them")
			return nil
		},
	}
}

func newConflictsResolveCmd() *cobra.Command {
	var keepLocal, useRemote bool

	cmd := &cobra.Command{
		Use:   "resolve [operation-id]",
		Short: "Resolve conflicts",
		Long: `Resolve one conflict by ID, or all of them interactively.

With --keep-local the queued change is pushed again with a fresh retry
budget. With --use-remote the change is dropped and the next sync adopts
whatever the remote store holds.`,
		Example: `  # Walk through all conflicts interactively
  yardsync conflicts resolve

  # Resolve one conflict, keeping the local change
  yardsync conflicts resolve 4f8a2c1b --keep-local`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if keepLocal && useRemote {
				return fmt.Errorf("--keep-local and --use-remote are mutually exclusive")
			}

			if len(args) == 1 {
				var resolution operation.Resolution
				switch {
				case keepLocal:
					resolution = operation.ResolutionKeepLocal
				case useRemote:
					resolution = operation.ResolutionUseRemote
				default:
					return fmt.Errorf("pass --keep-local or --use-remote when resolving by ID")
				}
				return resolveOne(cmd.Context(), args[0], resolution)
			}

			return resolveInteractive(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&keepLocal, "keep-local", false, "requeue the local change")
	cmd.Flags().BoolVar(&useRemote, "use-remote", false, "drop the local change, adopt remote state")

	return cmd
}

// resolveOne settles a single conflict identified by an operation ID or
// a unique prefix of one.
func resolveOne(ctx context.Context, prefix string, resolution operation.Resolution) error {
	formatter := GetFormatter()
	container := GetContainer()

	conflicts, err := container.Queue().Conflicts(ctx)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		ids = append(ids, c.OperationID)
	}
	id, err := resolveID(ids, prefix, "operation")
	if err != nil {
		return err
	}

	if err := container.Orchestrator().ResolveConflict(ctx, id, resolution); err != nil {
		return err
	}

	formatter.Success("Conflict resolved (%s)", resolution)
	return nil
}

// resolveInteractive walks through all open conflicts one by one.
func resolveInteractive(ctx context.Context) error {
	formatter := GetFormatter()
	container := GetContainer()

	conflicts, err := container.Queue().Conflicts(ctx)
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		formatter.Success("No conflicts")
		return nil
	}

	formatter.Info("%d conflict(s) to resolve. Answer [l]ocal, [r]emote, [s]kip, or [q]uit.", len(conflicts))
	formatter.Println("")

	rl, err := readline.New("resolve> ")
	if err != nil {
		return fmt.Errorf("could not create prompt: %w", err)
	}
	defer rl.Close()

	resolved := 0
	for _, c := range conflicts {
		printConflict(formatter, c)

	answer:
		for {
			line, err := rl.Readline()
			if err == io.EOF || err == readline.ErrInterrupt {
				formatter.Println("")
				formatter.Info("Resolved %d of %d conflict(s)", resolved, len(conflicts))
				return nil
			}
			if err != nil {
				return err
			}

			switch strings.ToLower(strings.TrimSpace(line)) {
			case "l", "local", "keep_local":
				if err := container.Orchestrator().ResolveConflict(ctx, c.OperationID, operation.ResolutionKeepLocal); err != nil {
					formatter.Error("%s", err.Error())
					break answer
				}
				formatter.Success("Kept local change, it will be pushed again")
				resolved++
				break answer
			case "r", "remote", "use_remote":
				if err := container.Orchestrator().ResolveConflict(ctx, c.OperationID, operation.ResolutionUseRemote); err != nil {
					formatter.Error("%s", err.Error())
					break answer
				}
				formatter.Success("Dropped local change, remote state wins")
				resolved++
				break answer
			case "s", "skip":
				break answer
			case "q", "quit":
				formatter.Info("Resolved %d of %d conflict(s)", resolved, len(conflicts))
				return nil
			default:
				formatter.Warning("Answer l, r, s, or q")
			}
		}
		formatter.Println("")
	}

	formatter.Info("Resolved %d of %d conflict(s)", resolved, len(conflicts))
	return nil
}

// printConflict prints one conflict for human review.
func printConflict(formatter *output.Formatter, c *operation.Conflict) {
	age := time.Since(c.CreatedAt).Round(time.Second)
	formatter.Println("  %s %s %s",
		formatter.Colorize("●", output.ColorRed),
		formatter.Bold(shortID(c.OperationID)),
		formatter.Dim(fmt.Sprintf("(%s old)", age)))
	if c.EntityID != "" {
		formatter.Println("      %s %s", formatter.Dim("Record:"), shortID(c.EntityID))
	}
	formatter.Println("      %s", c.Message)
}
