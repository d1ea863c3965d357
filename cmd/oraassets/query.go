package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Mailaender/OpenRA/internal/catalog"
	"github.com/Mailaender/OpenRA/internal/format"
	"github.com/Mailaender/OpenRA/internal/utils"
)

var queryCmd = &cobra.Command{
	Use:   "query [SQL]",
	Short: "Query the asset catalog",
	Long: `Query lists catalog entries matching the filter flags, prints a per-format
summary with --summary, or runs an SQL statement given as argument
against the catalog database.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		summary, err := cmd.Flags().GetBool("summary")
		if err != nil {
			return fmt.Errorf("failed to get summary flag: %w", err)
		}

		filter := catalog.Filter{}
		if filter.Kind, err = cmd.Flags().GetString("kind"); err != nil {
			return fmt.Errorf("failed to get kind flag: %w", err)
		}
		if filter.Package, err = cmd.Flags().GetString("package"); err != nil {
			return fmt.Errorf("failed to get package flag: %w", err)
		}
		if filter.NameLike, err = cmd.Flags().GetString("name"); err != nil {
			return fmt.Errorf("failed to get name flag: %w", err)
		}
		if filter.ErrorsOnly, err = cmd.Flags().GetBool("errors"); err != nil {
			return fmt.Errorf("failed to get errors flag: %w", err)
		}
		if filter.Limit, err = cmd.Flags().GetInt("limit"); err != nil {
			return fmt.Errorf("failed to get limit flag: %w", err)
		}

		if filter.Kind != "" {
			kind, err := format.ParseKind(filter.Kind)
			if err != nil {
				return err
			}
			filter.Kind = kind.String()
		}

		slog.Debug("Query parameters",
			"database", cfg.Database,
			"summary", summary,
			"kind", filter.Kind,
			"package", filter.Package,
			"name", filter.NameLike,
			"errors", filter.ErrorsOnly,
			"limit", filter.Limit)

		cat, err := catalog.NewCatalog(catalog.DefaultOptions(cfg.Database))
		if err != nil {
			return fmt.Errorf("opening catalog: %w", err)
		}
		defer cat.Close()

		if err := cat.CreateSchema(ctx); err != nil {
			return err
		}

		switch {
		case len(args) > 0:
			return runSQL(ctx, cat, args[0])
		case summary:
			counts, err := cat.Summary(ctx)
			if err != nil {
				return fmt.Errorf("summarising catalog: %w", err)
			}
			var total int64
			for _, kc := range counts {
				fmt.Printf("%-10s %10s\n", kc.Kind, utils.Number(int64(kc.Count)))
				total += int64(kc.Count)
			}
			fmt.Println(strings.Repeat("-", 21))
			fmt.Printf("%-10s %10s\n", "total", utils.Number(total))
			return nil
		}

		entries, err := cat.Entries(ctx, filter)
		if err != nil {
			return fmt.Errorf("listing entries: %w", err)
		}
		for _, e := range entries {
			line := fmt.Sprintf("%-6s %10s  %s/%s", e.Kind, utils.Bytes(e.Size), e.Package, e.Name)
			if e.Error != "" {
				line += "  (" + e.Error + ")"
			}
			fmt.Println(line)
		}
		return nil
	},
}

func runSQL(ctx context.Context, cat *catalog.Catalog, query string) error {
	slog.Debug("Executing SQL query", "query", query)

	rows, err := cat.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("getting column names: %w", err)
	}

	fmt.Println(strings.Join(columns, "\t"))
	rule := make([]string, len(columns))
	for i, col := range columns {
		rule[i] = strings.Repeat("-", len(col))
	}
	fmt.Println(strings.Join(rule, "\t"))

	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return fmt.Errorf("scanning row: %w", err)
		}

		cells := make([]string, len(values))
		for i, val := range values {
			switch v := val.(type) {
			case nil:
				cells[i] = "NULL"
			case []byte:
				cells[i] = string(v)
			default:
				cells[i] = fmt.Sprint(v)
			}
		}
		fmt.Println(strings.Join(cells, "\t"))
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating rows: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().Bool("summary", false, "count entries per format")
	queryCmd.Flags().String("kind", "", "only entries of this format (mix, zip, aud, pcx, ...)")
	queryCmd.Flags().String("package", "", "only entries of the container at this path")
	queryCmd.Flags().String("name", "", "only entry names matching this SQL LIKE pattern")
	queryCmd.Flags().Bool("errors", false, "only entries that failed to decode")
	queryCmd.Flags().Int("limit", 0, "maximum number of entries to list")
}
