// Package tasks implements the scheduled-task inspection commands.
package tasks

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskbeat/taskbeat/cmd/taskbeat/output"
	"github.com/taskbeat/taskbeat/cmd/taskbeat/root"
	"github.com/taskbeat/taskbeat/internal/repo"
	"github.com/taskbeat/taskbeat/internal/schedule"
)

func init() {
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect scheduled tasks",
	}
	tasksCmd.AddCommand(listTasksCmd(), showTaskCmd())
	root.RootCmd.AddCommand(tasksCmd)
}

func listTasksCmd() *cobra.Command {
	var all bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduled tasks and whether each is due",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _ := root.Bootstrap()
			conn, driver, err := root.OpenDB(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			tasks, err := repo.NewTaskRepo(conn, driver).List(cmd.Context(), all)
			if err != nil {
				return err
			}

			if asJSON {
				b, err := json.MarshalIndent(tasks, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(b))
				return nil
			}

			now := time.Now().UTC()
			rows := make([][]interface{}, 0, len(tasks))
			for _, t := range tasks {
				spec, _ := schedule.ParseOrDefault(t.Schedule)
				rows = append(rows, []interface{}{
					t.ID,
					t.UserID,
					output.Truncate(t.TaskName, 40),
					t.Schedule,
					strconv.FormatBool(t.IsActive),
					output.FormatTime(t.LastRunAt),
					strconv.FormatBool(t.IsActive && spec.Due(t.LastRunAt, now)),
				})
			}
			output.RenderTable([]string{"ID", "USER", "NAME", "SCHEDULE", "ACTIVE", "LAST RUN", "DUE"}, rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include deactivated tasks")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON instead of a table")
	return cmd
}

func showTaskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show one task and its recent runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}

			cfg, _ := root.Bootstrap()
			conn, driver, err := root.OpenDB(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			task, err := repo.NewTaskRepo(conn, driver).Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if task == nil {
				return fmt.Errorf("task %d not found", id)
			}

			fmt.Printf("ID:        %d\n", task.ID)
			fmt.Printf("User:      %s\n", task.UserID)
			fmt.Printf("Name:      %s\n", task.TaskName)
			fmt.Printf("Query:     %s\n", task.Query)
			if task.OutputSchema != nil {
				fmt.Printf("Schema:    %s\n", *task.OutputSchema)
			}
			fmt.Printf("Schedule:  %s\n", task.Schedule)
			fmt.Printf("Active:    %t\n", task.IsActive)
			fmt.Printf("Last run:  %s\n", output.FormatTime(task.LastRunAt))
			fmt.Printf("Created:   %s\n", output.FormatTime(&task.CreatedAt))

			runs, err := repo.NewRunRepo(conn, driver).ListByTask(cmd.Context(), id, 10)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("\nNo runs recorded.")
				return nil
			}

			fmt.Println()
			rows := make([][]interface{}, 0, len(runs))
			for _, r := range runs {
				errMsg := ""
				if r.Error != nil {
					errMsg = output.Truncate(*r.Error, 50)
				}
				rows = append(rows, []interface{}{
					output.Truncate(r.ID, 8),
					r.Status,
					output.FormatTime(&r.StartedAt),
					output.FormatTime(r.FinishedAt),
					errMsg,
				})
			}
			output.RenderTable([]string{"RUN", "STATUS", "STARTED", "FINISHED", "ERROR"}, rows)
			return nil
		},
	}
}
