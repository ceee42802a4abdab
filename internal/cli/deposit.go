package cli

import (
	"github.com/spf13/cobra"
)

// NewDepositCmd создаёт группу команд для просмотра состояния депозитов.
func NewDepositCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Inspect deposit flow state",
	}

	cmd.AddCommand(
		newDepositFlowCmd(clientFn, outputFn),
		newDepositStatusCmd(clientFn, outputFn),
	)

	return cmd
}

func newDepositFlowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "flow DEPOSIT_ID",
		Short: "Show the latest flow of a deposit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flow, err := client.GetDepositFlow(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "NAME", "DEPOSIT", "CREATED"},
				[][]string{{flow.ID, flow.Name, flow.DepositID, flow.CreatedAt}},
				flow,
			)
			return nil
		},
	}
}

func newDepositStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status DEPOSIT_ID",
		Short: "Show aggregated task statuses of the latest flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			status, err := client.GetDepositStatus(args[0])
			if err != nil {
				return err
			}

			headers := []string{"TASK", "STATUS"}
			rows := make([][]string, 0, len(status.Tasks))
			for name, st := range status.Tasks {
				rows = append(rows, []string{name, st})
			}

			out.Print(headers, rows, status)
			return nil
		},
	}
}
