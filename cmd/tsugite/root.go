package main

import (
	"github.com/spf13/cobra"
)

// Flags shared by all subcommands. Empty string / zero means "not set";
// buildOverrides converts them into config.Overrides pointers.
var (
	flagDatabaseURL string
	flagLogLevel    string
	flagAuditLog    string
	flagOTel        bool
	flagProvider    string
	flagModel       string
	flagBaseURL     string
	flagDictionary  string
)

var rootCmd = &cobra.Command{
	Use:           "tsugite",
	Short:         "Ask a PostgreSQL database questions in plain language",
	Long: `tsugite turns natural-language questions into guarded, read-only SQL.

Every generated statement passes a safety gate before execution: a single
SELECT, no writes, no transaction control, and a server-side LIMIT. The eval
subcommand scores generation quality against trusted reference queries.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagDatabaseURL, "database-url", "", "PostgreSQL connection string (overrides config and env)")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flagAuditLog, "audit-log", "", "path to NDJSON audit log file")
	pf.BoolVar(&flagOTel, "otel", false, "enable OpenTelemetry tracing and metrics")
	pf.StringVar(&flagProvider, "provider", "", "LLM provider preset: local or groq")
	pf.StringVar(&flagModel, "model", "", "chat model name (overrides config)")
	pf.StringVar(&flagBaseURL, "base-url", "", "OpenAI-compatible API base URL (overrides config)")
	pf.StringVar(&flagDictionary, "dictionary", "", "path to YAML data dictionary with table descriptions")
}
