package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hanehara/tsugite/internal/core/port"
	"github.com/hanehara/tsugite/internal/core/service"
	"github.com/hanehara/tsugite/internal/vector"
)

var (
	askIntrospect bool
	askRetrieve   bool
	askMaxLimit   int
	askShowSQL    bool
)

var askCmd = &cobra.Command{
	Use:   "ask \"question\"",
	Short: "Answer one natural-language question with a guarded SELECT",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.TrimSpace(args[0])

		overrides, err := buildOverrides()
		if err != nil {
			return err
		}
		if askMaxLimit > 0 {
			overrides.MaxLimit = &askMaxLimit
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		a, err := newApp(ctx, overrides)
		if err != nil {
			return err
		}
		defer a.close(ctx)

		svc := a.askService(a.cfg.MaxRows, a.cfg.MaxLimit)
		if askRetrieve {
			svc.UseRetriever(vector.NewRetriever(a.client, vector.NewStore(a.pool)))
		}

		spinner, _ := pterm.DefaultSpinner.Start("Generating SQL...")
		res, err := svc.Ask(ctx, question, askIntrospect)
		if err != nil {
			spinner.Fail()
			if service.IsGuardRejection(err) {
				pterm.Error.Printfln("The generated SQL was rejected by the safety gate: %v", err)
				return nil
			}
			return err
		}
		spinner.Success("Done")

		if askShowSQL {
			pterm.DefaultSection.Println("SQL")
			pterm.Println(res.SafeSQL)
		}
		if len(res.Assumptions) > 0 {
			pterm.DefaultSection.Println("Assumptions")
			for _, assumption := range res.Assumptions {
				pterm.Printfln("  - %s", assumption)
			}
		}

		pterm.DefaultSection.Println("Result")
		renderResultTable(res.Result)
		return nil
	},
}

func renderResultTable(result *port.QueryResult) {
	if result == nil || len(result.Rows) == 0 {
		pterm.Println("(no rows)")
		return
	}

	data := pterm.TableData{result.Columns}
	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = cellText(v)
		}
		data = append(data, cells)
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	pterm.Printfln("%d row(s)", len(result.Rows))
}

func cellText(v any) string {
	if v == nil {
		return "NULL"
	}
	return pterm.Sprint(v)
}

func init() {
	askCmd.Flags().BoolVar(&askIntrospect, "introspect", false, "ground generation in the live schema instead of the built-in demo schema")
	askCmd.Flags().BoolVar(&askRetrieve, "retrieve", false, "augment the prompt with vector-index matches (run 'tsugite index' first)")
	askCmd.Flags().IntVar(&askMaxLimit, "max-limit", 0, "row bound enforced on generated SQL (default from config)")
	askCmd.Flags().BoolVar(&askShowSQL, "show-sql", true, "print the guarded SQL before the result")
	rootCmd.AddCommand(askCmd)
}
