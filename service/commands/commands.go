package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/subcommands"

	"mc.store/service/core"
	sm "mc.store/service/models"
)

// Opener connects the backing stores. The returned func releases them.
type Opener func(ctx context.Context) (*core.ServiceContext, func(), error)

type env struct {
	open   Opener
	stdout io.Writer
	stderr io.Writer
}

// Register adds every operator command to c.
func Register(c *subcommands.Commander, open Opener, stdout, stderr io.Writer) {
	e := &env{open: open, stdout: stdout, stderr: stderr}

	c.Register(&schemaCmd{env: e}, "database")

	c.Register(&importQuotesCmd{env: e}, "market data")
	c.Register(&importFeaturesCmd{env: e}, "market data")
	c.Register(&pruneQuotesCmd{env: e}, "market data")

	c.Register(&importRunCmd{env: e}, "simulations")
	c.Register(&runsCmd{env: e}, "simulations")
	c.Register(&showRunCmd{env: e}, "simulations")
	c.Register(&deleteRunCmd{env: e}, "simulations")
}

// withService opens the stores, runs fn, and maps its error to an exit status.
func (e *env) withService(ctx context.Context, fn func(sc *core.ServiceContext) error) subcommands.ExitStatus {
	sc, closeFn, err := e.open(ctx)
	if err != nil {
		e.errorf("Error connecting: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeFn()

	if err := fn(sc); err != nil {
		e.errorf("Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (e *env) errorf(format string, args ...any) {
	fmt.Fprintf(e.stderr, format, args...)
}

func (e *env) printJSON(v any) error {
	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printOk[T any](e *env, data *T) error {
	return e.printJSON(sm.GetServiceResponseOk(data))
}
