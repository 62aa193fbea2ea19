// Command exporter polls a Prefect API and exposes flow run and deployment
// gauges for Prometheus on /metrics.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stderr)
	stop()
	if err != nil {
		log.Fatalf("exporter: %v", err)
	}
}
