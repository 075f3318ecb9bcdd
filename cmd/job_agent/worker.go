package main

import (
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued resume uploads",
	Long: `Consume resume processing jobs published by "serve" and run text extraction, indexing and the job scan for each.
Use it with the rabbitmq queue backend; the inprocess backend is consumed by "serve" itself.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(_ *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()
	defer startTracing(ctx)()

	a := newApp(cfg)
	defer a.Close()

	svc, queue, err := a.ResumeService(ctx)
	if err != nil {
		return err
	}
	consume(ctx, queue, svc)
	return nil
}
