package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/yardsync/internal/application/loadings"
	"github.com/jbctechsolutions/yardsync/internal/domain/yard"
	"github.com/jbctechsolutions/yardsync/internal/presentation/cli/output"
)

// LoadingView represents a loading for JSON output.
type LoadingView struct {
	ID        string  `json:"id"`
	Customer  string  `json:"customer"`
	Product   string  `json:"product"`
	Quantity  float64 `json:"quantity"`
	Unit      string  `json:"unit,omitempty"`
	Plate     string  `json:"plate,omitempty"`
	Waybill   string  `json:"waybill,omitempty"`
	Status    string  `json:"status"`
	UpdatedAt string  `json:"updated_at"`
}

func loadingView(l *yard.Loading) LoadingView {
	return LoadingView{
		ID:        l.ID,
		Customer:  l.CustomerName,
		Product:   l.Product,
		Quantity:  l.Quantity,
		Unit:      l.Unit,
		Plate:     l.TruckPlate,
		Waybill:   l.Waybill,
		Status:    string(l.Status),
		UpdatedAt: l.UpdatedAt.Local().Format(time.RFC3339),
	}
}

// NewLoadingCmd creates the loading command group.
func NewLoadingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loading",
		Short: "Manage outbound customer loadings",
		Long: `Manage outbound loadings through the dispatch workflow.

A loading moves through these statuses:
  pending → scaled_in → loaded`,
	}

	cmd.AddCommand(newLoadingAddCmd())
	cmd.AddCommand(newLoadingListCmd())
	cmd.AddCommand(newLoadingShowCmd())
	cmd.AddCommand(newLoadingScaleInCmd())
	cmd.AddCommand(newLoadingLoadCmd())
	cmd.AddCommand(newLoadingUpdateCmd())
	cmd.AddCommand(newLoadingDeleteCmd())
	cmd.AddCommand(newLoadingClearCmd())

	return cmd
}

func newLoadingAddCmd() *cobra.Command {
	var input loadings.AddInput

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Order a new outbound loading",
		Example: `  # Order a loading
  yardsync loading add -c "Harbor Mills" -p Flour -q 18 -u tons`,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := GetFormatter()

			loading, err := GetContainer().Loadings().Add(cmd.Context(), input)
			if err != nil {
				return err
			}

			if formatter.Format() == output.FormatJSON {
				return formatter.JSON(loadingView(loading))
			}

			formatter.Success("Loading ordered")
			printLoadingDetail(formatter, loading)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input.CustomerName, "customer", "c", "", "customer name (required)")
	cmd.Flags().StringVarP(&input.Product, "product", "p", "", "product being dispatched (required)")
	cmd.Flags().Float64VarP(&input.Quantity, "quantity", "q", 0, "ordered quantity")
	cmd.Flags().StringVarP(&input.Unit, "unit", "u", "", "quantity unit (tons, bags)")
	cmd.Flags().StringVar(&input.TruckPlate, "plate", "", "vehicle registration plate")
	_ = cmd.MarkFlagRequired("customer")
	_ = cmd.MarkFlagRequired("product")

	return cmd
}

func newLoadingListCmd() *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List loadings",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := GetFormatter()

			list, err := GetContainer().Loadings().List(cmd.Context())
			if err != nil {
				return err
			}

			if statusFilter != "" {
				filtered := list[:0]
				for _, l := range list {
					if string(l.Status) == statusFilter {
						filtered = append(filtered, l)
					}
				}
				list = filtered
			}

			if formatter.Format() == output.FormatJSON {
				views := make([]LoadingView, 0, len(list))
				for i := range list {
					views = append(views, loadingView(&list[i]))
				}
				return formatter.JSON(views)
			}

			if len(list) == 0 {
				formatter.Info("No loadings recorded")
				return nil
			}

			rows := make([][]string, 0, len(list))
			for i := range list {
				l := &list[i]
				rows = append(rows, []string{
					shortID(l.ID),
					l.CustomerName,
					l.Product,
					formatQuantity(l.Quantity, l.Unit),
					l.TruckPlate,
					string(l.Status),
				})
			}

			return formatter.Table(output.TableData{
				Columns: []output.TableColumn{
					{Header: "ID"},
					{Header: "CUSTOMER"},
					{Header: "PRODUCT"},
					{Header: "QUANTITY", Align: output.AlignRight},
					{Header: "PLATE"},
					{Header: "STATUS"},
				},
				Rows: rows,
			})
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "filter by status (pending, scaled_in, loaded)")

	return cmd
}

func newLoadingShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a loading with its status history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := GetFormatter()

			id, err := resolveLoadingID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			loading, err := GetContainer().Loadings().Get(cmd.Context(), id)
			if err != nil {
				return err
			}

			if formatter.Format() == output.FormatJSON {
				return formatter.JSON(loading)
			}

			printLoadingDetail(formatter, loading)
			formatter.Println("")
			formatter.SubHeader("History")
			printHistory(formatter, loading.StatusHistory)
			return nil
		},
	}
}

func newLoadingScaleInCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scale-in <id> <waybill>",
		Short: "Record a loading truck weighing in",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveLoadingID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			loading, err := GetContainer().Loadings().ScaleIn(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			return reportLoadingTransition(loading, "Loading scaled in")
		},
	}
}

func newLoadingLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <id>",
		Short: "Record a loading as dispatched",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveLoadingID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			loading, err := GetContainer().Loadings().MarkLoaded(cmd.Context(), id)
			if err != nil {
				return err
			}
			return reportLoadingTransition(loading, "Loading dispatched")
		},
	}
}

func newLoadingUpdateCmd() *cobra.Command {
	var (
		customer, product, unit, plate string
		quantity                       float64
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a loading's recorded details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveLoadingID(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			var input loadings.UpdateInput
			if cmd.Flags().Changed("customer") {
				input.CustomerName = &customer
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

			loading, err := GetContainer().Loadings().Update(cmd.Context(), id, input)
			if err != nil {
				return err
			}
			return reportLoadingTransition(loading, "Loading updated")
		},
	}

	cmd.Flags().StringVarP(&customer, "customer", "c", "", "customer name")
	cmd.Flags().StringVarP(&product, "product", "p", "", "product being dispatched")
	cmd.Flags().Float64VarP(&quantity, "quantity", "q", 0, "ordered quantity")
	cmd.Flags().StringVarP(&unit, "unit", "u", "", "quantity unit")
	cmd.Flags().StringVar(&plate, "plate", "", "vehicle registration plate")

	return cmd
}

func newLoadingDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a loading record",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveLoadingID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := GetContainer().Loadings().Delete(cmd.Context(), id); err != nil {
				return err
			}
			GetFormatter().Success("Loading %s deleted", shortID(id))
			return nil
		},
	}
}

func newLoadingClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all loading records",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := GetFormatter()

			if !yes {
				p := newPrompter(formatter)
				confirmed, err := p.promptYesNo("Delete all loading records", false)
				if err != nil {
					return err
				}
				if !confirmed {
					formatter.Info("Aborted")
					return nil
				}
			}

			if err := GetContainer().Loadings().Reset(cmd.Context()); err != nil {
				return err
			}
			formatter.Success("All loading records deleted")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")

	return cmd
}

// reportLoadingTransition prints the outcome of a single-loading mutation.
func reportLoadingTransition(loading *yard.Loading, message string) error {
	formatter := GetFormatter()
	if formatter.Format() == output.FormatJSON {
		return formatter.JSON(loadingView(loading))
	}
	formatter.Success("%s", message)
	printLoadingDetail(formatter, loading)
	return nil
}

// printLoadingDetail prints the key fields of a loading.
func printLoadingDetail(formatter *output.Formatter, l *yard.Loading) {
	formatter.Item("ID", l.ID)
	formatter.Item("Customer", l.CustomerName)
	formatter.Item("Product", l.Product)
	if l.Quantity > 0 {
		formatter.Item("Quantity", formatQuantity(l.Quantity, l.Unit))
	}
	if l.TruckPlate != "" {
		formatter.Item("Plate", l.TruckPlate)
	}
	if l.Waybill != "" {
		formatter.Item("Waybill", l.Waybill)
	}
	formatter.Item("Status", string(l.Status))
}

// resolveLoadingID expands a unique ID prefix to the full record ID.
func resolveLoadingID(ctx context.Context, prefix string) (string, error) {
	list, err := GetContainer().Loadings().List(ctx)
	if err != nil {
		return "", err
	}

	ids := make([]string, 0, len(list))
	for i := range list {
		ids = append(ids, list[i].ID)
	}
	return resolveID(ids, prefix, "loading")
}
