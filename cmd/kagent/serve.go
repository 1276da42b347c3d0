package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kagent-go/kagent/internal/rpcserver"
)

// ServeCmd runs kagent as a line-oriented JSON-RPC server over
// stdin/stdout, for editor/IDE integrations that drive the agent as a
// subprocess rather than a human typing at a terminal. Grounded on
// _examples/kadirpekel-hector/cmd/hector/main.go's ServeCmd signal
// handling: SIGINT/SIGTERM cancel the serve context so an in-flight
// turn gets a chance to unwind instead of being killed outright.
type ServeCmd struct{}

func (c *ServeCmd) Run(cli *CLI) error {
	env, err := build(cli)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := rpcserver.New(env.soul, env.approval, os.Stdin, os.Stdout)
	return srv.Serve(ctx)
}
