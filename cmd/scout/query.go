package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/koustreak/scout/internal/config"
	"github.com/koustreak/scout/internal/errs"
	"github.com/koustreak/scout/internal/logger"
	"github.com/koustreak/scout/internal/search"
	"github.com/spf13/cobra"
)

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [table]",
		Short: "Print the classified schema, or one table of it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			table := ""
			if len(args) == 1 {
				table = args[0]
			}
			return runSchema(cmd.Context(), cmd.OutOrStdout(), cfg, table)
		},
	}
}

func runSchema(ctx context.Context, out io.Writer, cfg *config.Config, table string) error {
	engine, err := openEngine(ctx, cfg, logger.New(cfg.LoggerConfig(os.Stderr)))
	if err != nil {
		return err
	}
	defer engine.Close()

	if table == "" {
		return printJSON(out, engine.Catalog())
	}
	t, err := engine.Table(table)
	if err != nil {
		return err
	}
	return printJSON(out, t)
}

type searchOptions struct {
	query   string
	dsl     string
	fields  string
	filters string
	size    int
	from    int
}

func searchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <table> [text]",
		Short: "Run one search and print the result",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if len(args) == 2 {
				opts.query = args[1]
			}
			return runSearch(cmd.Context(), cmd.OutOrStdout(), cfg, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.dsl, "dsl", "", "Query object as JSON, e.g. '{\"match\": {\"title\": \"bridge\"}}'")
	cmd.Flags().StringVar(&opts.fields, "fields", "", "Comma-separated fields for free text")
	cmd.Flags().StringVar(&opts.filters, "filters", "", "Filters as a JSON object")
	cmd.Flags().IntVar(&opts.size, "size", search.DefaultSize, "Hits to return")
	cmd.Flags().IntVar(&opts.from, "from", 0, "Hits to skip")
	return cmd
}

func runSearch(ctx context.Context, out io.Writer, cfg *config.Config, table string, opts searchOptions) error {
	req := search.Request{
		Table: table,
		Query: opts.query,
		Size:  min(opts.size, cfg.Server.MaxSize),
		From:  opts.from,
	}
	if opts.dsl != "" {
		var q map[string]any
		if err := json.Unmarshal([]byte(opts.dsl), &q); err != nil {
			return errs.Wrap(errs.ErrKindInvalidInput, "invalid --dsl JSON", err)
		}
		req.Query = q
	}
	if opts.filters != "" {
		if err := json.Unmarshal([]byte(opts.filters), &req.Filters); err != nil {
			return errs.Wrap(errs.ErrKindInvalidInput, "invalid --filters JSON", err)
		}
	}
	for _, f := range strings.Split(opts.fields, ",") {
		if f = strings.TrimSpace(f); f != "" {
			req.Fields = append(req.Fields, f)
		}
	}

	engine, err := openEngine(ctx, cfg, logger.New(cfg.LoggerConfig(os.Stderr)))
	if err != nil {
		return err
	}
	defer engine.Close()

	res, err := engine.Search(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(out, res)
}
