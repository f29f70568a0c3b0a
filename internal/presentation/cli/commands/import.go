package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/yardsync/internal/application/ports"
	"github.com/jbctechsolutions/yardsync/internal/presentation/cli/output"
)

// importFlags holds the flags for the import command.
type importFlags struct {
	Kind   string
	DryRun bool
}

var importOpts importFlags

// ImportResult represents the result of a bulk import.
type ImportResult struct {
	Source   string                  `json:"source"`
	Kind     string                  `json:"kind"`
	Parsed   int                     `json:"parsed"`
	Imported int                     `json:"imported"`
	DryRun   bool                    `json:"dry_run,omitempty"`
	Issues   []ports.ValidationIssue `json:"issues,omitempty"`
}

// NewImportCmd creates the import command for bulk-adding records from text.
func NewImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Bulk-add records from free-form text",
		Long: `Parse free-form text into truck or loading records and add them all.

Each non-empty line becomes one record. The first two fields are the
name and product; quantities, plates, and waybill numbers are recognized
by shape anywhere after that. Fields may be separated by semicolons,
commas, tabs, or spaces. Lines starting with # are skipped.

Reads from the given file, or from stdin when no file is given.

Example input:
  Miller Farms; Wheat; 24.5 tons; AB-123-CD
  Hartmann & Sons, Barley, 12t
  # a comment line`,
		Example: `  # Import trucks from a file
  yardsync import arrivals.txt

  # Import loadings from stdin
  cat orders.txt | yardsync import --kind loadings

  # Check what would be imported without writing anything
  yardsync import arrivals.txt --dry-run`,
		Args: cobra.MaximumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().StringVarP(&importOpts.Kind, "kind", "k", "trucks", "record kind: trucks or loadings")
	cmd.Flags().BoolVar(&importOpts.DryRun, "dry-run", false, "parse and validate without adding records")

	return cmd
}

// runImport handles the import command execution.
func runImport(cmd *cobra.Command, args []string) error {
	formatter := GetFormatter()
	container := GetContainer()

	if importOpts.Kind != "trucks" && importOpts.Kind != "loadings" {
		return fmt.Errorf("unknown record kind %q, expected trucks or loadings", importOpts.Kind)
	}

	source := "stdin"
	var text []byte
	var err error
	if len(args) == 1 {
		source = args[0]
		text, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("could not read %s: %w", args[0], err)
		}
	} else {
		text, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("could not read stdin: %w", err)
		}
	}

	entries := container.Parser().Parse(string(text))
	verdict := container.Parser().Validate(entries)

	result := ImportResult{
		Source: source,
		Kind:   importOpts.Kind,
		Parsed: len(entries),
		DryRun: importOpts.DryRun,
		Issues: verdict.Issues,
	}

	if !importOpts.DryRun && len(verdict.Valid) > 0 {
		var bar *output.ProgressBar
		if formatter.Format() != output.FormatJSON {
			bar = output.NewProgressBar(len(verdict.Valid), "Importing records",
				output.WithProgressBarColor(output.IsColorSupported()))
		}

		// One entry per call so the bar advances with each record written.
		for i := range verdict.Valid {
			batch := verdict.Valid[i : i+1]
			var err error
			switch importOpts.Kind {
			case "trucks":
				_, err = container.Trucks().BulkAdd(cmd.Context(), batch)
			case "loadings":
				_, err = container.Loadings().BulkAdd(cmd.Context(), batch)
			}
			if err != nil {
				return err
			}
			result.Imported++
			if bar != nil {
				bar.Increment()
			}
		}
		if bar != nil {
			bar.Complete()
		}
	}
	if importOpts.DryRun {
		result.Imported = len(verdict.Valid)
	}

	if formatter.Format() == output.FormatJSON {
		return formatter.JSON(result)
	}

	if result.Parsed == 0 {
		formatter.Warning("No records found in %s", source)
		return nil
	}

	if importOpts.DryRun {
		formatter.Info("Dry run: %d of %d record(s) would be imported as %s", result.Imported, result.Parsed, result.Kind)
	} else {
		formatter.Success("Imported %d of %d record(s) as %s", result.Imported, result.Parsed, result.Kind)
	}

	if len(result.Issues) > 0 {
		formatter.Println("")
		formatter.Warning("%d line(s) rejected:", len(result.Issues))
		for _, issue := range result.Issues {
			formatter.BulletItem(fmt.Sprintf("line %d: %s (%s)", issue.Line, issue.Message, issue.Field))
		}
	}

	return nil
}
