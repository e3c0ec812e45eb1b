// Command etl runs the GP practice / TEC pipelines: the star-schema OLAP
// load, the patient document load and the deprivation report.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	// Every table and document backend is linked in; the config picks one.
	_ "gpetl/internal/docstore/all"
	_ "gpetl/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
