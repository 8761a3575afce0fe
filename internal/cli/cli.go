package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Additional-Code/taller/internal/app"
	"github.com/Additional-Code/taller/internal/entity"
	"github.com/Additional-Code/taller/internal/migration"
	"github.com/Additional-Code/taller/internal/seeder"
	"github.com/Additional-Code/taller/internal/service/audit"
	"github.com/Additional-Code/taller/internal/service/inventory"
	"github.com/Additional-Code/taller/internal/service/payment"
)

// NewRootCommand builds the root taller CLI command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "taller",
		Short:         "Order workshop service toolkit",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newStartCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newStockCmd())
	root.AddCommand(newKardexCmd())
	root.AddCommand(newStatementCmd())

	return root
}

// Execute runs the taller CLI until it finishes or receives SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Aliases: []string{"run"},
		Short:   "Run the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), app.Module)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			opts := fx.Options(app.Infra, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Up(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			all, _ := cmd.Flags().GetBool("all")
			var mig *migration.Migrator
			opts := fx.Options(app.Infra, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Down(ctx, steps, all); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			})
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migration steps to rollback")
	downCmd.Flags().Bool("all", false, "Rollback all applied migrations")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show applied migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			opts := fx.Options(app.Infra, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, mig.Status)
		},
	}

	cmd.AddCommand(upCmd, downCmd, statusCmd)
	return cmd
}

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed products, stock, payment methods and a cash session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cashier, _ := cmd.Flags().GetString("cashier")
			var seed *seeder.Seeder
			opts := fx.Options(app.Infra, seeder.Module, fx.Populate(&seed))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := seed.All(ctx, cashier); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "seed data applied")
				return nil
			})
		},
	}
	cmd.Flags().String("cashier", "caja", "Actor whose cash session is opened; empty skips it")
	return cmd
}

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage background workers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run worker engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), app.Worker)
		},
	})
	return cmd
}

func newStockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Inspect stock levels",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "low",
		Short: "List products at or below their reorder level",
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc *inventory.Service
			opts := fx.Options(app.Infra, app.Repositories, inventory.Module, fx.Populate(&svc))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				levels, err := svc.Low(ctx)
				if err != nil {
					return err
				}
				return printLevels(cmd.OutOrStdout(), levels)
			})
		},
	})
	return cmd
}

func newKardexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kardex [product-id]",
		Short: "Show the newest stock movements of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid product id %q: %w", args[0], err)
			}
			limit, _ := cmd.Flags().GetInt("limit")
			var svc *inventory.Service
			opts := fx.Options(app.Infra, app.Repositories, inventory.Module, fx.Populate(&svc))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				entries, err := svc.Kardex(ctx, productID, limit)
				if err != nil {
					return err
				}
				return printKardex(cmd.OutOrStdout(), entries)
			})
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum number of entries")
	return cmd
}

func newStatementCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "statement [order-id]",
		Short: "Show what an order has paid and still owes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid order id %q: %w", args[0], err)
			}
			var svc *payment.Service
			opts := fx.Options(app.Infra, app.Repositories, audit.Module, payment.Module, fx.Populate(&svc))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				st, err := svc.Statement(ctx, orderID)
				if err != nil {
					return err
				}
				return printStatement(cmd.OutOrStdout(), st)
			})
		},
	}
}

func printLevels(out io.Writer, levels []inventory.Level) error {
	if len(levels) == 0 {
		_, err := fmt.Fprintln(out, "no products at reorder level")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRODUCT\tON HAND\tREORDER")
	for _, level := range levels {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\n", level.ProductID, level.Name, level.OnHand, level.ReorderLevel)
	}
	return w.Flush()
}

func printKardex(out io.Writer, entries []entity.KardexEntry) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWHEN\tKIND\tQTY\tCOST\tREFERENCE")
	for _, entry := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n",
			entry.ID, entry.OccurredAt.Format(time.RFC3339), entry.Kind, entry.Quantity,
			entry.UnitCost.StringFixed(2), entry.Reference)
	}
	return w.Flush()
}

func printStatement(out io.Writer, st *payment.Statement) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "order\t%d\n", st.OrderID)
	fmt.Fprintf(w, "total\tQ%s\n", st.Total.StringFixed(2))
	fmt.Fprintf(w, "deposit paid\tQ%s\n", st.DepositPaid.StringFixed(2))
	fmt.Fprintf(w, "balance paid\tQ%s\n", st.BalancePaid.StringFixed(2))
	fmt.Fprintf(w, "outstanding\tQ%s\n", st.Outstanding.StringFixed(2))
	for _, receipt := range st.Receipts {
		fmt.Fprintf(w, "receipt %d\t%s Q%s by %s\n", receipt.ID, receipt.Concept, receipt.Amount.StringFixed(2), receipt.CreatedBy)
	}
	return w.Flush()
}

func serve(ctx context.Context, opts fx.Option) error {
	application := fx.New(opts)
	if err := application.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return application.Stop(stopCtx)
}

func runWithApp(ctx context.Context, opts fx.Option, fn func(context.Context) error) error {
	application := fx.New(opts, fx.NopLogger)
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = application.Stop(stopCtx)
	}()
	return fn(ctx)
}
