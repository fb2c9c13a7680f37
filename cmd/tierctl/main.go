// Command tierctl inspects and writes group tier records in Redis.
//
//	REDIS_URL=redis://localhost:6379/0 tierctl get <group>
//	tierctl set <group> <tier>
//	tierctl watch <group>
//	tierctl snapshot <uid>
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrymomot/gatekit/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New(logger.WithOutput(os.Stderr), logger.WithAttr(logger.Component("tierctl")))
	if err := newRootCmd(newApp(log, os.Stdout)).ExecuteContext(ctx); err != nil {
		log.Error("tierctl failed", logger.Error(err))
		os.Exit(1)
	}
}
