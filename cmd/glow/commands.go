package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/aethra/glow/internal/app"
	"github.com/aethra/glow/internal/database"
	"github.com/aethra/glow/internal/engine"
	"github.com/aethra/glow/internal/query"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// SERVE
// =============================================================================

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard and portal API server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Run(ctx)
	},
}

// =============================================================================
// DATABASE
// =============================================================================

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		if !cfg.Database.Enabled() {
			return errors.New("no database configured (set database.driver or GLOW_DB_DRIVER)")
		}
		db, err := database.Open(cfg.Database, logger)
		if err != nil {
			return err
		}
		applied, err := database.RunMigrations(db, logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Migrations complete (%d applied)\n", len(applied))
		return nil
	},
}

var seedRows int

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Replace the stored rows with freshly generated data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		if !cfg.Database.Enabled() {
			return errors.New("no database configured (set database.driver or GLOW_DB_DRIVER)")
		}
		schema, err := app.LoadSchema(cfg, logger)
		if err != nil {
			return err
		}
		store, _, err := app.OpenStore(cfg, logger)
		if err != nil {
			return err
		}

		rows := cfg.Mock.Rows
		if cmd.Flags().Changed("rows") {
			rows = seedRows
		}
		built, err := engine.BuildAll(schema.Modules(), rows)
		if err != nil {
			return err
		}
		if err := store.Seed(cmd.Context(), built); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d modules\n", len(built))
		return nil
	},
}

// =============================================================================
// SCHEMA & DATA
// =============================================================================

var modulesYAML bool

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List the configured modules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		schema, err := app.LoadSchema(cfg, logger)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if modulesYAML {
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(map[string]any{"modules": schema.Modules()})
		}

		order, err := schema.BuildOrder()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tLABEL\tFIELDS\tREFERENCES")
		for _, m := range schema.Modules() {
			refs := strings.Join(m.References(), ",")
			if refs == "" {
				refs = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", m.ID, m.Label, len(m.Fields), refs)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nBuild order: %s\n", strings.Join(order, " -> "))
		return nil
	},
}

var (
	queryPage    int
	queryLimit   int
	querySearch  string
	querySort    string
	queryOrder   string
	queryFilters []string
)

var queryCmd = &cobra.Command{
	Use:   "query <module>",
	Short: "Run a list query against local data and print the JSON page",
	Example: `  glow query services --search brake
  glow query work_orders --filter status=Done --sort customer --order desc`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		state := query.UIState{
			Page:      queryPage,
			Limit:     queryLimit,
			Search:    querySearch,
			SortBy:    querySort,
			SortOrder: queryOrder,
		}
		for _, f := range queryFilters {
			key, value, ok := strings.Cut(f, "=")
			if !ok || key == "" {
				return fmt.Errorf("filter %q must be key=value", f)
			}
			if state.Filters == nil {
				state.Filters = make(map[string]string)
			}
			state.Filters[key] = value
		}

		a, err := app.New(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		q := query.Builder{PageSize: cfg.Pagination.PageSize}.Build(state)
		result, err := a.Data.Query(cmd.Context(), args[0], q)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	seedCmd.Flags().IntVar(&seedRows, "rows", 0, "rows per generated module (default from config)")

	modulesCmd.Flags().BoolVar(&modulesYAML, "yaml", false, "print the schema as a modules file")

	queryCmd.Flags().IntVar(&queryPage, "page", 1, "page number")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "page size (default from config)")
	queryCmd.Flags().StringVar(&querySearch, "search", "", "search term")
	queryCmd.Flags().StringVar(&querySort, "sort", "", "field to sort by")
	queryCmd.Flags().StringVar(&queryOrder, "order", "asc", "sort order: asc or desc")
	queryCmd.Flags().StringArrayVar(&queryFilters, "filter", nil, "filter as key=value (repeatable)")
}
