package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/google/subcommands"
	"github.com/google/uuid"

	m "mc.store/data/models"
	"mc.store/service/core"
	sm "mc.store/service/models"
	"mc.store/service/report"
)

// readRecords accepts a single record or an array of records per file.
func readRecords(args []string) ([]*sm.SimulationRecord, error) {
	var res []*sm.SimulationRecord
	for _, path := range args {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()

		if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
			var records []*sm.SimulationRecord
			if err := dec.Decode(&records); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			res = append(res, records...)
			continue
		}

		var record sm.SimulationRecord
		if err := dec.Decode(&record); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		res = append(res, &record)
	}
	return res, nil
}

type importRunCmd struct {
	env       *env
	requestID string
	asJSON    bool
}

func (*importRunCmd) Name() string     { return "import-run" }
func (*importRunCmd) Synopsis() string { return "record finished simulation runs from JSON files" }
func (*importRunCmd) Usage() string {
	return `import-run [-request-id <id>] [-json] <record.json>...

  Each file holds one simulation record or an array of them. Every run is
  written in its own transaction. Re-running with the same -request-id and the
  same files returns the runs recorded the first time instead of duplicating them.
`
}

func (c *importRunCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.requestID, "request-id", "", "id that makes the import safe to retry (default: a new uuid)")
	f.BoolVar(&c.asJSON, "json", false, "print outcomes as JSON")
}

func (c *importRunCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprint(c.env.stderr, c.Usage())
		return subcommands.ExitUsageError
	}

	records, err := readRecords(f.Args())
	if err != nil {
		c.env.errorf("Error reading records: %v\n", err)
		return subcommands.ExitFailure
	}

	requestID := c.requestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	requests := make([]core.RecordRequest, len(records))
	for i, r := range records {
		requests[i] = core.RecordRequest{Record: r, RequestID: requestID + "/" + strconv.Itoa(i)}
	}

	return c.env.withService(ctx, func(sc *core.ServiceContext) error {
		outcomes, err := sc.RecordSimulations(requests)
		if err != nil {
			c.env.errorf("retry with -request-id %s to keep runs already recorded\n", requestID)
			return err
		}

		if c.asJSON {
			return printOk(c.env, &outcomes)
		}
		for _, o := range outcomes {
			if o.Replayed {
				fmt.Fprintf(c.env.stdout, "run %d already recorded\n", o.RunId)
				continue
			}
			fmt.Fprintf(c.env.stdout, "run %d recorded\n", o.RunId)
		}
		return nil
	})
}

type runsCmd struct {
	env       *env
	portfolio string
	since     string
	limit     int
	asJSON    bool
}

func (*runsCmd) Name() string     { return "runs" }
func (*runsCmd) Synopsis() string { return "list recorded simulation runs, newest first" }
func (*runsCmd) Usage() string {
	return `runs [-portfolio A|B] [-since <date>] [-limit n] [-json]
`
}

func (c *runsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "portfolio", "", "only runs of this portfolio type")
	f.StringVar(&c.since, "since", "", "only runs created on or after this date")
	f.IntVar(&c.limit, "limit", 50, "maximum number of runs")
	f.BoolVar(&c.asJSON, "json", false, "print runs as JSON")
}

func (c *runsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	filter := m.SimulationRunFilter{Limit: c.limit}

	if c.portfolio != "" {
		p, err := m.ParsePortfolioType(c.portfolio)
		if err != nil {
			c.env.errorf("Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		filter.PortfolioType = p
	}
	if c.since != "" {
		since, err := parseTime(c.since)
		if err != nil {
			c.env.errorf("Error parsing -since: %v\n", err)
			return subcommands.ExitUsageError
		}
		filter.Since = since.UTC()
	}

	return c.env.withService(ctx, func(sc *core.ServiceContext) error {
		runs, err := sc.ListRuns(filter)
		if err != nil {
			return err
		}
		if c.asJSON {
			return printOk(c.env, &runs)
		}
		return report.RenderRuns(c.env.stdout, runs)
	})
}

type showRunCmd struct {
	env    *env
	id     int
	asJSON bool
}

func (*showRunCmd) Name() string     { return "show-run" }
func (*showRunCmd) Synopsis() string { return "report a recorded run and its summary metrics" }
func (*showRunCmd) Usage() string {
	return `show-run -id <run id> [-json]
`
}

func (c *showRunCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.id, "id", 0, "run id")
	f.BoolVar(&c.asJSON, "json", false, "print the report as JSON")
}

func (c *showRunCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id <= 0 {
		fmt.Fprint(c.env.stderr, c.Usage())
		return subcommands.ExitUsageError
	}

	return c.env.withService(ctx, func(sc *core.ServiceContext) error {
		r, err := sc.GetRunReport(int32(c.id))
		if err != nil {
			if c.asJSON {
				_ = c.env.printJSON(sm.GetServiceResponseError(err.Error()))
			}
			return err
		}
		if c.asJSON {
			return printOk(c.env, r)
		}
		return report.RenderRun(c.env.stdout, r)
	})
}

type deleteRunCmd struct {
	env *env
	id  int
}

func (*deleteRunCmd) Name() string     { return "delete-run" }
func (*deleteRunCmd) Synopsis() string { return "delete a run and every row recorded for it" }
func (*deleteRunCmd) Usage() string {
	return `delete-run -id <run id>
`
}

func (c *deleteRunCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.id, "id", 0, "run id")
}

func (c *deleteRunCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id <= 0 {
		fmt.Fprint(c.env.stderr, c.Usage())
		return subcommands.ExitUsageError
	}

	return c.env.withService(ctx, func(sc *core.ServiceContext) error {
		if err := sc.DeleteRun(int32(c.id)); err != nil {
			return err
		}
		fmt.Fprintf(c.env.stdout, "run %d deleted\n", c.id)
		return nil
	})
}
