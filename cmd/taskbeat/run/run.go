// Package run implements the one-shot dispatch pass.
package run

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskbeat/taskbeat/cmd/taskbeat/output"
	"github.com/taskbeat/taskbeat/cmd/taskbeat/root"
	"github.com/taskbeat/taskbeat/internal/agent"
	"github.com/taskbeat/taskbeat/internal/metrics"
	"github.com/taskbeat/taskbeat/internal/notify"
	"github.com/taskbeat/taskbeat/internal/repo"
	"github.com/taskbeat/taskbeat/internal/runner"
)

func init() {
	root.RootCmd.AddCommand(runCmd())
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Dispatch all due tasks once and exit",
		RunE:  runPass,
	}
	cmd.Flags().Bool("dry-run", false, "Show which tasks would run without dispatching them")
	return cmd
}

func runPass(cmd *cobra.Command, args []string) error {
	cfg, log := root.Bootstrap()

	// A cron-driven process has to release the database and report what it
	// managed to do even when the host shuts it down mid-pass.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, driver, err := root.OpenDB(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	tasks := repo.NewTaskRepo(conn, driver)

	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		r := runner.New(runner.Config{Tasks: tasks, Logger: log})
		decisions, err := r.DryRun(ctx)
		if err != nil {
			return err
		}
		rows := make([][]interface{}, 0, len(decisions))
		for _, d := range decisions {
			rows = append(rows, []interface{}{
				d.Task.ID,
				output.Truncate(d.Task.TaskName, 40),
				d.Task.Schedule,
				output.FormatTime(d.Task.LastRunAt),
				strconv.FormatBool(d.Due),
				d.Reason,
			})
		}
		output.RenderTable([]string{"ID", "TASK", "SCHEDULE", "LAST RUN", "DUE", "REASON"}, rows)
		return nil
	}

	if cfg.AgentAPIURL == "" {
		return fmt.Errorf("AGENT_API_URL is required")
	}

	client := agent.New(cfg.AgentAPIURL, cfg.AgentAPIKey,
		agent.WithPollInterval(time.Duration(cfg.AgentPollSeconds)*time.Second))
	m := metrics.New()

	r := runner.New(runner.Config{
		Tasks:          tasks,
		Runs:           repo.NewRunRepo(conn, driver),
		Agent:          client,
		Notifier:       notify.NewSlack(cfg.SlackWebhookURL),
		Metrics:        m,
		Logger:         log,
		PerTaskTimeout: time.Duration(cfg.AgentTimeoutSeconds) * time.Second,
		MaxRPS:         cfg.AgentMaxRPS,
	})

	sum, err := r.Run(ctx)
	if err != nil {
		// The pass was cut short; report what it managed before bailing.
		fmt.Printf("pass aborted: scanned %d tasks, %d due, %d completed, %d failed\n",
			sum.Scanned, sum.Due, sum.Succeeded, sum.Failed)
		return err
	}

	if err := m.Push(cfg.PushgatewayURL); err != nil {
		log.Warn().Err(err).Msg("push metrics")
	}

	fmt.Printf("scanned %d tasks, %d due, %d completed, %d failed\n",
		sum.Scanned, sum.Due, sum.Succeeded, sum.Failed)
	return nil
}
