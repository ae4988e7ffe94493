package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/showdeck/importer/internal/job"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background import worker",
	Long:  "Consumes the import task queue and executes pipeline runs for jobs too large to process inline.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()

		w := worker.New(env.Temporal, cfg.Worker.TaskQueue, worker.Options{})
		job.RegisterWorker(w, &job.Activities{Orchestrator: env.Orchestrator})

		zap.L().Info("worker starting",
			zap.String("task_queue", cfg.Worker.TaskQueue),
			zap.String("host_port", cfg.Worker.HostPort),
		)
		if err := w.Run(worker.InterruptCh()); err != nil {
			return eris.Wrap(err, "worker run")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
