package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/yardsync/internal/application/trucks"
	"github.com/jbctechsolutions/yardsync/internal/domain/yard"
	"github.com/jbctechsolutions/yardsync/internal/presentation/cli/output"
)

// TruckView represents a truck for JSON output.
type TruckView struct {
	ID        string  `json:"id"`
	Supplier  string  `json:"supplier"`
	Product   string  `json:"product"`
	Quantity  float64 `json:"quantity"`
	Unit      string  `json:"unit,omitempty"`
	Plate     string  `json:"plate,omitempty"`
	Waybill   string  `json:"waybill,omitempty"`
	Status    string  `json:"status"`
	UpdatedAt string  `json:"updated_at"`
}

func truckView(t *yard.Truck) TruckView {
	return TruckView{
		ID:        t.ID,
		Supplier:  t.SupplierName,
		Product:   t.Product,
		Quantity:  t.Quantity,
		Unit:      t.Unit,
		Plate:     t.TruckPlate,
		Waybill:   t.Waybill,
		Status:    string(t.Status),
		UpdatedAt: t.UpdatedAt.Local().Format(time.RFC3339),
	}
}

// NewTruckCmd creates the truck command group.
func NewTruckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "truck",
		Short: "Manage incoming supplier trucks",
		Long: `Manage supplier trucks through the pickup workflow.

A truck moves through these statuses:
  pending → scaled_in → offloaded
  pending/scaled_in → rejected → scaled_in

Every change is recorded locally first and synchronized in the
background.`,
	}

	cmd.AddCommand(newTruckAddCmd())
	cmd.AddCommand(newTruckListCmd())
	cmd.AddCommand(newTruckShowCmd())
	cmd.AddCommand(newTruckScaleInCmd())
	cmd.AddCommand(newTruckOffloadCmd())
	cmd.AddCommand(newTruckRejectCmd())
	cmd.AddCommand(newTruckUpdateCmd())
	cmd.AddCommand(newTruckDeleteCmd())
	cmd.AddCommand(newTruckClearCmd())

	return cmd
}

func newTruckAddCmd() *cobra.Command {
	var input trucks.AddInput

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Announce a new incoming truck",
		Example: `  # Announce a truck
  yardsync truck add -s "Miller Farms" -p Wheat -q 24.5 -u tons --plate AB-123-CD`,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := GetFormatter()

			truck, err := GetContainer().Trucks().Add(cmd.Context(), input)
			if err != nil {
				return err
			}

			if formatter.Format() == output.FormatJSON {
				return formatter.JSON(truckView(truck))
			}

			formatter.Success("Truck announced")
			printTruckDetail(formatter, truck)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input.SupplierName, "supplier", "s", "", "supplier name (required)")
	cmd.Flags().StringVarP(&input.Product, "product", "p", "", "product being delivered (required)")
	cmd.Flags().Float64VarP(&input.Quantity, "quantity", "q", 0, "declared quantity")
	cmd.Flags().StringVarP(&input.Unit, "unit", "u", "", "quantity unit (tons, bags)")
	cmd.Flags().StringVar(&input.TruckPlate, "plate", "", "vehicle registration plate")
	_ = cmd.MarkFlagRequired("supplier")
	_ = cmd.MarkFlagRequired("product")

	return cmd
}

func newTruckListCmd() *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List trucks",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := GetFormatter()

			list, err := GetContainer().Trucks().List(cmd.Context())
			if err != nil {
				return err
			}

			if statusFilter != "" {
				filtered := list[:0]
				for _, t := range list {
					if string(t.Status) == statusFilter {
						filtered = append(filtered, t)
					}
				}
				list = filtered
			}

			if formatter.Format() == output.FormatJSON {
				views := make([]TruckView, 0, len(list))
				for i := range list {
					views = append(views, truckView(&list[i]))
				}
				return formatter.JSON(views)
			}

			if len(list) == 0 {
				formatter.Info("No trucks recorded")
				return nil
			}

			rows := make([][]string, 0, len(list))
			for i := range list {
				t := &list[i]
				rows = append(rows, []string{
					shortID(t.ID),
					t.SupplierName,
					t.Product,
					formatQuantity(t.Quantity, t.Unit),
					t.TruckPlate,
					string(t.Status),
				})
			}

			return formatter.Table(output.TableData{
				Columns: []output.TableColumn{
					{Header: "ID"},
					{Header: "SUPPLIER"},
					{Header: "PRODUCT"},
					{Header: "QUANTITY", Align: output.AlignRight},
					{Header: "PLATE"},
					{Header: "STATUS"},
				},
				Rows: rows,
			})
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "filter by status (pending, scaled_in, offloaded, rejected)")

	return cmd
}

func newTruckShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a truck with its status history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := GetFormatter()

			id, err := resolveTruckID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			truck, err := GetContainer().Trucks().Get(cmd.Context(), id)
			if err != nil {
				return err
			}

			if formatter.Format() == output.FormatJSON {
				return formatter.JSON(truck)
			}

			printTruckDetail(formatter, truck)
			formatter.Println("")
			formatter.SubHeader("History")
			printHistory(formatter, truck.StatusHistory)
			return nil
		},
	}
}

func newTruckScaleInCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scale-in <id> <waybill>",
		Short: "Record a truck weighing in",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveTruckID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			truck, err := GetContainer().Trucks().ScaleIn(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			return reportTruckTransition(truck, "Truck scaled in")
		},
	}
}

func newTruckOffloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "offload <id>",
		Short: "Record a truck's cargo as received",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveTruckID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			truck, err := GetContainer().Trucks().Offload(cmd.Context(), id)
			if err != nil {
				return err
			}
			return reportTruckTransition(truck, "Truck offloaded")
		},
	}
}

func newTruckRejectCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Turn a truck away",
		Long: `Turn a truck away. A rejected truck may re-enter the workflow by
scaling in again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveTruckID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			truck, err := GetContainer().Trucks().Reject(cmd.Context(), id, reason)
			if err != nil {
				return err
			}
			return reportTruckTransition(truck, "Truck rejected")
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "why the truck was turned away")

	return cmd
}

func newTruckUpdateCmd() *cobra.Command {
	var (
		supplier, product, unit, plate string
		quantity                       float64
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a truck's recorded details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveTruckID(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			var input trucks.UpdateInput
			if cmd.Flags().Changed("supplier") {
				input.SupplierName = &supplier
			}
			if cmd.Flags().Changed("product") {
				input.Product = &product
			}
			if cmd.Flags().Changed("quantity") {
				input.Quantity = &quantity
			}
			if cmd.Flags().Changed("unit") {
				input.Unit = &unit
			}
			if cmd.Flags().Changed("plate") {
				input.TruckPlate = &plate
			}

			truck, err := GetContainer().Trucks().Update(cmd.Context(), id, input)
			if err != nil {
				return err
			}
			return reportTruckTransition(truck, "Truck updated")
		},
	}

	cmd.Flags().StringVarP(&supplier, "supplier", "s", "", "supplier name")
	cmd.Flags().StringVarP(&product, "product", "p", "", "product being delivered")
	cmd.Flags().Float64VarP(&quantity, "quantity", "q", 0, "declared quantity")
	cmd.Flags().StringVarP(&unit, "unit", "u", "", "quantity unit")
	cmd.Flags().StringVar(&plate, "plate", "", "vehicle registration plate")

	return cmd
}

func newTruckDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a truck record",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveTruckID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := GetContainer().Trucks().Delete(cmd.Context(), id); err != nil {
				return err
			}
			GetFormatter().Success("Truck %s deleted", shortID(id))
			return nil
		},
	}
}

func newTruckClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all truck records",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := GetFormatter()

			if !yes {
				p := newPrompter(formatter)
				confirmed, err := p.promptYesNo("Delete all truck records", false)
				if err != nil {
					return err
				}
				if !confirmed {
					formatter.Info("Aborted")
					return nil
				}
			}

			if err := GetContainer().Trucks().Reset(cmd.Context()); err != nil {
				return err
			}
			formatter.Success("All truck records deleted")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")

	return cmd
}

// reportTruckTransition prints the outcome of a single-truck mutation.
func reportTruckTransition(truck *yard.Truck, message string) error {
	formatter := GetFormatter()
	if formatter.Format() == output.FormatJSON {
		return formatter.JSON(truckView(truck))
	}
	formatter.Success("%s", message)
	printTruckDetail(formatter, truck)
	return nil
}

// printTruckDetail prints the key fields of a truck.
func printTruckDetail(formatter *output.Formatter, t *yard.Truck) {
	formatter.Item("ID", t.ID)
	formatter.Item("Supplier", t.SupplierName)
	formatter.Item("Product", t.Product)
	if t.Quantity > 0 {
		formatter.Item("Quantity", formatQuantity(t.Quantity, t.Unit))
	}
	if t.TruckPlate != "" {
		formatter.Item("Plate", t.TruckPlate)
	}
	if t.Waybill != "" {
		formatter.Item("Waybill", t.Waybill)
	}
	formatter.Item("Status", string(t.Status))
}

// printHistory prints a status trail.
func printHistory(formatter *output.Formatter, history []yard.StatusEntry) {
	for _, e := range history {
		line := fmt.Sprintf("%s  %s", e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Status)
		for k, v := range e.Detail {
			line += fmt.Sprintf("  %s=%s", k, v)
		}
		formatter.BulletItem(line)
	}
}

// resolveTruckID expands a unique ID prefix to the full record ID.
func resolveTruckID(ctx context.Context, prefix string) (string, error) {
	list, err := GetContainer().Trucks().List(ctx)
	if err != nil {
		return "", err
	}

	ids := make([]string, 0, len(list))
	for i := range list {
		ids = append(ids, list[i].ID)
	}
	return resolveID(ids, prefix, "truck")
}

// resolveID matches a prefix against known IDs. Exact matches win;
// otherwise the prefix must identify exactly one record.
func resolveID(ids []string, prefix, kind string) (string, error) {
	var matches []string
	for _, id := range ids {
		if id == prefix {
			return id, nil
		}
		if strings.HasPrefix(id, prefix) {
			matches = append(matches, id)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		// Let the service produce its not-found error for the raw input
		return prefix, nil
	default:
		return "", fmt.Errorf("%s ID %q is ambiguous, matches %d records", kind, prefix, len(matches))
	}
}

// shortID shortens a UUID for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatQuantity renders a quantity with its optional unit.
func formatQuantity(q float64, unit string) string {
	if q == 0 {
		return ""
	}
	s := fmt.Sprintf("%g", q)
	if unit != "" {
		s += " " + unit
	}
	return s
}
