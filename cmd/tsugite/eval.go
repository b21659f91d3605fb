package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hanehara/tsugite/internal/core/service"
)

var (
	evalCasesPath    string
	evalMaxLimit     int
	evalPrecision    int
	evalShowMismatch bool
	evalIntrospect   bool
)

var evalCmd = &cobra.Command{
	Use:   "eval --cases cases.jsonl",
	Short: "Score SQL generation against trusted reference queries",
	Long: `eval runs a batch of cases, each a question plus a reference SQL statement.
For every case the reference runs unbounded, the generated statement runs
through the safety gate, and the two result sets are compared leniently
(numeric rounding, row order ignored). Mismatches never abort the batch and
never fail the command.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides, err := buildOverrides()
		if err != nil {
			return err
		}
		if evalMaxLimit > 0 {
			overrides.MaxLimit = &evalMaxLimit
		}
		if evalPrecision >= 0 {
			overrides.Precision = &evalPrecision
		}

		f, err := os.Open(evalCasesPath)
		if err != nil {
			return fmt.Errorf("opening cases file: %w", err)
		}
		defer f.Close()

		cases, err := service.LoadCases(f)
		if err != nil {
			return err
		}
		if len(cases) == 0 {
			return fmt.Errorf("no cases found in %s", evalCasesPath)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		a, err := newApp(ctx, overrides)
		if err != nil {
			return err
		}
		defer a.close(ctx)

		svc := service.NewEvalService(
			a.client,
			a.executor(0), // reference queries run unbounded
			a.explorer,
			a.logger,
			a.tracer,
			a.inst,
			a.cfg.Dialect,
			a.cfg.MaxLimit,
			int32(a.cfg.Precision),
		)
		svc.CollectMismatches = evalShowMismatch

		pterm.Printfln("Running %d case(s)...", len(cases))
		report, err := svc.Run(ctx, cases, evalIntrospect)
		if err != nil {
			return err
		}

		printSummary(report)
		if evalShowMismatch {
			printMismatches(report)
		}
		return nil
	},
}

func printSummary(report *service.Report) {
	s := report.Summary

	pterm.DefaultSection.Println("Summary")
	data := pterm.TableData{
		{"metric", "count", "ratio"},
		{"cases", fmt.Sprint(s.Cases), ""},
		{"exec_success", fmt.Sprint(s.ExecSuccess), fmt.Sprintf("%.2f", s.ExecRatio())},
		{"lenient_result_match", fmt.Sprint(s.Match), fmt.Sprintf("%.2f", s.MatchRatio())},
		{"guard_rejected", fmt.Sprint(s.GuardRejected), fmt.Sprintf("%.2f", s.GuardRatio())},
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()

	var failed []service.CaseOutcome
	for _, o := range report.Outcomes {
		if !o.OKMatch {
			failed = append(failed, o)
		}
	}
	if len(failed) == 0 {
		pterm.Success.Println("All cases matched.")
		return
	}

	pterm.DefaultSection.Println("Failed cases")
	for _, o := range failed {
		detail := "result mismatch"
		if o.Error != nil {
			detail = *o.Error
		}
		pterm.Printfln("  #%d: %s", o.ID, detail)
	}
}

func printMismatches(report *service.Report) {
	for _, m := range report.Mismatches {
		pterm.DefaultSection.Printfln("Case #%d: %s", m.CaseID, m.Question)
		pterm.Println("reference SQL: " + m.ReferenceSQL)
		pterm.Println("generated SQL: " + m.GeneratedSQL)
		pterm.Println("expected:")
		renderResultTable(m.Expected)
		pterm.Println("got:")
		renderResultTable(m.Generated)
	}
}

func init() {
	evalCmd.Flags().StringVar(&evalCasesPath, "cases", "", "path to JSONL cases file (required)")
	evalCmd.Flags().IntVar(&evalMaxLimit, "max-limit", 0, "row bound enforced on generated SQL (default from config)")
	evalCmd.Flags().IntVar(&evalPrecision, "precision", -1, "fractional digits for lenient numeric comparison (default from config)")
	evalCmd.Flags().BoolVar(&evalShowMismatch, "show-mismatch", false, "print both result sets for mismatched cases")
	evalCmd.Flags().BoolVar(&evalIntrospect, "introspect", false, "ground generation in the live schema")
	_ = evalCmd.MarkFlagRequired("cases")
	rootCmd.AddCommand(evalCmd)
}
