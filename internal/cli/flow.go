package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewFlowCmd создаёт группу команд для управления flows.
func NewFlowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Manage flows",
	}

	cmd.AddCommand(
		newFlowCreateCmd(clientFn, outputFn),
		newFlowShowCmd(clientFn, outputFn),
		newFlowRunCmd(clientFn, outputFn),
		newFlowStopCmd(clientFn, outputFn),
		newFlowDeleteCmd(clientFn, outputFn),
		newFlowRestartTaskCmd(clientFn, outputFn),
	)

	return cmd
}

func newFlowCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var depositID string
	var userID string
	var payloadFile string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new flow for a deposit",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := CreateFlowRequest{
				Name:      name,
				DepositID: depositID,
				UserID:    userID,
			}

			if payloadFile != "" {
				data, err := os.ReadFile(payloadFile)
				if err != nil {
					return fmt.Errorf("failed to read payload file: %w", err)
				}
				if err := json.Unmarshal(data, &req.Payload); err != nil {
					return fmt.Errorf("payload file is not valid JSON: %w", err)
				}
			}

			flow, err := client.CreateFlow(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow created: %s", flow.ID))
			out.Print(
				[]string{"ID", "NAME", "DEPOSIT", "CREATED"},
				[][]string{{flow.ID, flow.Name, flow.DepositID, flow.CreatedAt}},
				flow,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "AVCWorkflow", "Flow template name")
	cmd.Flags().StringVar(&depositID, "deposit", "", "Deposit ID (required)")
	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	cmd.Flags().StringVar(&payloadFile, "payload-file", "", "Path to payload JSON file")
	cmd.MarkFlagRequired("deposit")

	return cmd
}

func newFlowShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show flow with tasks and aggregated status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			view, err := client.GetFlow(args[0])
			if err != nil {
				return err
			}

			headers := []string{"TASK_ID", "NAME", "STATUS", "MESSAGE"}
			rows := make([][]string, len(view.Tasks))
			for i, t := range view.Tasks {
				rows[i] = []string{t.ID, t.Name, t.Status, t.Message}
			}

			out.Success(fmt.Sprintf("Flow %s (%s): %s", view.ID, view.Name, view.Status))
			out.Print(headers, rows, view)
			return nil
		},
	}
}

func newFlowRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "run ID",
		Short: "Start flow execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flow, err := client.RunFlow(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow started: %s", flow.ID))
			out.Print(
				[]string{"ID", "NAME", "DEPOSIT", "CREATED"},
				[][]string{{flow.ID, flow.Name, flow.DepositID, flow.CreatedAt}},
				flow,
			)
			return nil
		},
	}
}

func newFlowStopCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stop ID",
		Short: "Cancel not-yet-started tasks of a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.StopFlow(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow stopped: %s", args[0]))
			return nil
		},
	}
}

func newFlowDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Clean task results and soft-delete a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteFlow(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow deleted: %s", args[0]))
			return nil
		},
	}
}

func newFlowRestartTaskCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "restart-task FLOW_ID TASK_ID",
		Short: "Resubmit a finished task with the same id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.RestartTask(args[0], args[1]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Task restarted: %s", args[1]))
			return nil
		},
	}
}
