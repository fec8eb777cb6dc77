package commands

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"mc.store/data/schema"
	"mc.store/service/core"
)

type schemaCmd struct {
	env   *env
	apply bool
}

func (*schemaCmd) Name() string     { return "schema" }
func (*schemaCmd) Synopsis() string { return "print or apply the database schema" }
func (*schemaCmd) Usage() string {
	return `schema [-apply]

  Prints the DDL for every table and index. With -apply, creates whatever is
  missing in the configured database. Existing tables are left alone.
`
}

func (c *schemaCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.apply, "apply", false, "apply the schema to DATABASE_URL instead of printing it")
}

func (c *schemaCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.apply {
		fmt.Fprint(c.env.stdout, schema.DDL())
		return subcommands.ExitSuccess
	}

	return c.env.withService(ctx, func(sc *core.ServiceContext) error {
		if err := sc.ApplySchema(); err != nil {
			return err
		}
		fmt.Fprintf(c.env.stdout, "schema applied: %d tables, %d indexes\n", len(schema.Tables), len(schema.Indexes))
		return nil
	})
}
