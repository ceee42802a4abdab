// CDS CLI — инструмент командной строки для управления flows
// через HTTP API.
//
// Использование:
//
//	cds [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	flow     Управление flows
//	task     Статусы отдельных задач
//	deposit  Агрегированные статусы депозитов
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jrcastro2/cds-videos/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "cds",
		Short:         "CDS Videos CLI — flow management tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewFlowCmd(clientFn, outputFn),
		cli.NewTaskCmd(clientFn, outputFn),
		cli.NewDepositCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
