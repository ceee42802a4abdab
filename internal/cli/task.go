package cli

import (
	"github.com/spf13/cobra"
)

// NewTaskCmd создаёт группу команд для работы с отдельными задачами.
func NewTaskCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect flow tasks",
	}

	cmd.AddCommand(
		newTaskStatusCmd(clientFn, outputFn),
	)

	return cmd
}

func newTaskStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status FLOW_ID TASK_ID",
		Short: "Show status and diagnostic message of a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			status, err := client.GetTaskStatus(args[0], args[1])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "NAME", "STATUS", "MESSAGE"},
				[][]string{{status.ID, status.Name, status.Status, status.Message}},
				status,
			)
			return nil
		},
	}
}
