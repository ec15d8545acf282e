// Package runs implements the run-history commands.
package runs

import (
	"github.com/spf13/cobra"

	"github.com/taskbeat/taskbeat/cmd/taskbeat/output"
	"github.com/taskbeat/taskbeat/cmd/taskbeat/root"
	"github.com/taskbeat/taskbeat/internal/models"
	"github.com/taskbeat/taskbeat/internal/repo"
)

func init() {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect run history",
	}
	runsCmd.AddCommand(listRunsCmd())
	root.RootCmd.AddCommand(runsCmd)
}

func listRunsCmd() *cobra.Command {
	var taskID int64
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _ := root.Bootstrap()
			conn, driver, err := root.OpenDB(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			runRepo := repo.NewRunRepo(conn, driver)
			var runs []models.TaskRun
			if taskID > 0 {
				runs, err = runRepo.ListByTask(cmd.Context(), taskID, limit)
			} else {
				runs, err = runRepo.ListRecent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}

			rows := make([][]interface{}, 0, len(runs))
			for _, r := range runs {
				jobID := ""
				if r.AgentJobID != nil {
					jobID = *r.AgentJobID
				}
				errMsg := ""
				if r.Error != nil {
					errMsg = output.Truncate(*r.Error, 50)
				}
				rows = append(rows, []interface{}{
					output.Truncate(r.ID, 8),
					r.TaskID,
					r.Status,
					jobID,
					output.FormatTime(&r.StartedAt),
					output.FormatTime(r.FinishedAt),
					errMsg,
				})
			}
			output.RenderTable([]string{"RUN", "TASK", "STATUS", "JOB", "STARTED", "FINISHED", "ERROR"}, rows)
			return nil
		},
	}

	cmd.Flags().Int64Var(&taskID, "task", 0, "Only runs for this task id")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum rows to show")
	return cmd
}
