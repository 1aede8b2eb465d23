package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"

	"github.com/yurifrl/coinbook/pkg/config"
	"github.com/yurifrl/coinbook/pkg/csv"
	"github.com/yurifrl/coinbook/pkg/executors"
	"github.com/yurifrl/coinbook/pkg/messages"
	"github.com/yurifrl/coinbook/pkg/parser"
	"github.com/yurifrl/coinbook/pkg/plan"
	"github.com/yurifrl/coinbook/pkg/server"
	"github.com/yurifrl/coinbook/pkg/summary"
)

var (
	cliFilters filters
	cfgFile    string
)

// setup loads the configuration with flag overrides and builds the logger.
func setup(cmd *cobra.Command) (*config.Config, *log.Logger, error) {
	cfg, err := config.Build(cfgFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "coinbook",
		Level:           level,
	})
	return cfg, logger, nil
}

var rootCmd = &cobra.Command{
	Use:           "coinbook",
	Short:         "Browse, filter and export coin collection records",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Show help when no subcommand is provided
		return cmd.Help()
	},
}

var listCmd = &cobra.Command{
	Use:   "list <file.json>",
	Short: "Print one page of the filtered records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		store, _, err := NewFileProcessor(logger, cfg, &cliFilters).Open(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		view := store.View()
		renderPage(out, view)
		fmt.Fprintln(out)
		renderSummary(out, view.Summary)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <file.json>",
	Short: "Summarize the filtered records per currency",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		store, _, err := NewFileProcessor(logger, cfg, &cliFilters).Open(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		renderSummary(out, store.Summary())
		fmt.Fprintln(out)
		renderBreakdown(out, summary.Breakdown(store.Filtered()))
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <file.json>",
	Short: "Export the filtered records as CSV or XLSX",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")
		format, _ := cmd.Flags().GetString("format")
		format = strings.ToLower(format)

		processor := NewFileProcessor(logger, cfg, &cliFilters)
		store, _, err := processor.Open(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		// "-" streams CSV to stdout
		if output == "-" {
			return csv.Write(cmd.OutOrStdout(), store.Filtered())
		}
		if output == "" {
			output = processor.exportName(format)
		}
		if err := writeExport(output, format, store.Filtered()); err != nil {
			return err
		}
		logger.Info("exported", "file", output, "items", len(store.Filtered()))
		return nil
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert [flags] <input_path>",
	Short: "Export every JSON file matching a glob or inside a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		outputDir, _ := cmd.Flags().GetString("out-dir")
		format, _ := cmd.Flags().GetString("format")
		format = strings.ToLower(format)

		processor := NewFileProcessor(logger, cfg, &cliFilters)

		matches, err := filepath.Glob(args[0])
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			return fmt.Errorf("no files found matching pattern %s", args[0])
		}

		for _, match := range matches {
			fileInfo, err := os.Stat(match)
			if err != nil {
				logger.Warn("failed to stat file", "error", err, "file", match)
				continue
			}

			if fileInfo.IsDir() {
				if err := processor.ProcessDirectory(cmd.Context(), match, outputDir, format); err != nil {
					logger.Warn("failed to process directory", "error", err, "dir", match)
				}
			} else {
				if _, err := processor.ProcessFile(cmd.Context(), match, outputDir, format); err != nil {
					logger.Warn("failed to process file", "error", err, "file", match)
				}
			}
		}
		return nil
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode <code>...",
	Short: "Decode item codes into their fields",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		p := parser.New(logger)
		printer := pp.New()
		printer.SetOutput(cmd.OutOrStdout())

		invalid := 0
		for _, code := range args {
			fields, ok := p.Decode(code)
			if !ok {
				invalid++
				fmt.Fprintf(cmd.OutOrStdout(), "%s: invalid code\n", code)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ", code)
			printer.Println(fields)
		}
		if invalid > 0 {
			return fmt.Errorf("%d of %d code(s) could not be decoded", invalid, len(args))
		}
		return nil
	},
}

var codesCmd = &cobra.Command{
	Use:   "codes",
	Short: "List the known currency and status codes",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		renderCodes(cmd.OutOrStdout())
	},
}

var planCmd = &cobra.Command{
	Use:   "plan <plan_file>",
	Short: "Preview a YAML plan of exports (dry-run)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		p, err := plan.Load(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Plan preview for %s\n", args[0])
		p.Print()
		fmt.Println()
		_, err = executors.New(logger, cfg).Plan(cmd.Context(), p)
		return err
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply <plan_file>",
	Short: "Write every export of a YAML plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		p, err := plan.Load(args[0])
		if err != nil {
			return err
		}
		_, err = executors.New(logger, cfg).Apply(cmd.Context(), p)
		return err
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		srv := server.New(cfg, logger)
		logger.Info("starting server", "addr", cfg.Server.Addr)
		return srv.Run(cmd.Context(), cfg.Server.Addr)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default is coinbook.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Int("page-size", 0, "Items per page")
	rootCmd.PersistentFlags().Int("chunk-size", 0, "Records decoded per chunk")
	rootCmd.PersistentFlags().Int64("max-size", 0, "Maximum input size in bytes")
	rootCmd.PersistentFlags().String("label", "", "Export file name label")
	rootCmd.PersistentFlags().String("records-path", "", "JSONPath of the record array inside the input")

	// Filter flags (global)
	rootCmd.PersistentFlags().StringVar(&cliFilters.search, "search", "", "Search code, currency, mark, number, value and year")
	rootCmd.PersistentFlags().StringVar(&cliFilters.currency, "currency", "", "Filter by currency label")
	rootCmd.PersistentFlags().StringVar(&cliFilters.status, "status", "", "Filter by status label")
	rootCmd.PersistentFlags().IntVar(&cliFilters.page, "page", 1, "Page to print")

	exportCmd.Flags().StringP("output", "o", "", "Output file, - for stdout (default <label>_<date>.<format>)")
	exportCmd.Flags().String("format", plan.FormatCSV, "Export format (csv or xlsx)")

	convertCmd.Flags().String("out-dir", "", "Output directory (default next to each input)")
	convertCmd.Flags().String("format", plan.FormatCSV, "Export format (csv or xlsx)")

	serveCmd.Flags().String("addr", "", "Listen address")
	serveCmd.Flags().Duration("debounce", 0, "Search debounce delay")

	rootCmd.AddCommand(listCmd, statsCmd, exportCmd, convertCmd, decodeCmd, codesCmd, planCmd, applyCmd, serveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, userMessage(err))
		os.Exit(1)
	}
}

// userMessage shows load and export conditions with the same text the server
// answers with, followed by the cause. Usage and other errors print as they are.
func userMessage(err error) string {
	if text, ok := messages.Lookup(err); ok {
		return fmt.Sprintf("%s (%v)", text, err)
	}
	return err.Error()
}
