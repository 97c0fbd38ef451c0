package main

import (
	"context"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	err := rootCmd.ExecuteContext(ctx)
	stop()

	if apiClient != nil {
		if cerr := apiClient.Close(); cerr != nil {
			logger.WithError(cerr).Warn("Close failed")
		}
	}
	if err != nil {
		reportError(err)
		os.Exit(exitCode(err))
	}
}
