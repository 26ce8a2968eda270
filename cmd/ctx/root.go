package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wenkaifan0720/ctx/internal/ctxcore"
	"github.com/wenkaifan0720/ctx/internal/logging"
	"github.com/wenkaifan0720/ctx/internal/sqlexec"
	"github.com/wenkaifan0720/ctx/internal/version"
)

var (
	flagProject  string
	flagFormat   string
	flagNoCache  bool
	flagWithDeps bool
	flagRepl     bool
	flagWatch    bool
)

var rootCmd = &cobra.Command{
	Use:     "ctx [sql-query]",
	Short:   "Incremental SCIP-backed code-intelligence engine",
	Version: version.Version,
	Args:    cobra.MaximumNArgs(1),
	RunE:    runRoot,
}

func init() {
	rootCmd.SetVersionTemplate("ctx version {{.Version}}\n")

	rootCmd.PersistentFlags().StringVarP(&flagProject, "project", "p", ".", "project root to open")
	rootCmd.PersistentFlags().StringVarP(&flagFormat, "format", "f", "text", "output format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&flagNoCache, "no-cache", false, "skip the on-disk index cache")
	rootCmd.PersistentFlags().BoolVar(&flagWithDeps, "with-deps", false, "load external dependency indexes at open")

	rootCmd.Flags().BoolVarP(&flagRepl, "interactive", "i", false, "start the interactive REPL")
	rootCmd.Flags().BoolVarP(&flagWatch, "watch", "w", false, "watch mode: re-run the query on every index change")

	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(listPackagesCmd)
}

func runRoot(cmd *cobra.Command, args []string) error {
	logger := logging.NewLogger(logging.Config{Format: logging.HumanFormat, Level: logging.InfoLevel})

	c, err := openProject(flagProject, logger)
	if err != nil {
		return err
	}
	defer c.Dispose()

	switch {
	case flagRepl:
		return runREPL(c)
	case flagWatch:
		if len(args) == 0 {
			return fmt.Errorf("ctx -w requires a sql-query argument")
		}
		return runWatch(c, args[0])
	case len(args) == 1:
		return runOneShotQuery(c, args[0])
	default:
		return cmd.Help()
	}
}

func runOneShotQuery(c *ctxcore.Context, query string) error {
	result, err := c.SQL(query)
	if err != nil {
		return err
	}
	return printResult(result)
}

func runWatch(c *ctxcore.Context, query string) error {
	if err := runOneShotQuery(c, query); err != nil {
		return err
	}
	for range c.Updates() {
		fmt.Println("---")
		if err := runOneShotQuery(c, query); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	return nil
}

func printResult(result *sqlexec.Result) error {
	if flagFormat == "json" {
		out, err := sqlexec.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}
	fmt.Print(sqlexec.FormatMarkdown(result))
	if result.QueryTimeMs > 0 {
		fmt.Printf("(%d row%s in %s)\n", result.TotalRows, plural(result.TotalRows), time.Duration(result.QueryTimeMs)*time.Millisecond)
	}
	return nil
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
