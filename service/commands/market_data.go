package commands

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	ex "mc.store/data/extensions"
	m "mc.store/data/models"
	"mc.store/service/core"
)

// readCSVFiles decodes every file named in args and stamps -ticker when given.
func readCSVFiles[T any](args []string) ([]*T, error) {
	var res []*T
	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		rows, err := DecodeCSV[T](f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		res = append(res, rows...)
	}
	return res, nil
}

// byTicker groups rows by their ticker column, or files them all under ticker when set.
func byTicker[T any](rows []*T, ticker string, rowTicker func(*T) string) (map[string][]*T, error) {
	if ticker != "" {
		return map[string][]*T{ticker: rows}, nil
	}

	grouped := ex.GroupBy(rows, func(r *T) string { return strings.ToUpper(strings.TrimSpace(rowTicker(r))) })
	if _, ok := grouped[""]; ok {
		return nil, fmt.Errorf("%w: rows without a ticker column need -ticker", m.ErrInvalidTicker)
	}
	return grouped, nil
}

type importQuotesCmd struct {
	env    *env
	ticker string
	policy string
}

func (*importQuotesCmd) Name() string     { return "import-quotes" }
func (*importQuotesCmd) Synopsis() string { return "load raw OHLCV quotes from CSV files" }
func (*importQuotesCmd) Usage() string {
	return `import-quotes [-ticker <symbol>] [-policy skip|overwrite|fail] <file.csv>...

  Header names are column names: timestamp,open,high,low,close,volume,vwap and
  optionally ticker. Quotes already stored for the same ticker and timestamp are
  skipped unless another policy is given.
`
}

func (c *importQuotesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.ticker, "ticker", "", "ticker for every row, overrides the ticker column")
	f.StringVar(&c.policy, "policy", core.DefaultQuotePolicy.String(), "conflict policy for existing quotes")
}

func (c *importQuotesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	policy, err := m.ParseConflictPolicy(c.policy)
	if err != nil || f.NArg() == 0 {
		fmt.Fprint(c.env.stderr, c.Usage())
		return subcommands.ExitUsageError
	}

	rows, err := readCSVFiles[m.RawMarketDatum](f.Args())
	if err != nil {
		c.env.errorf("Error reading quotes: %v\n", err)
		return subcommands.ExitFailure
	}

	grouped, err := byTicker(rows, c.ticker, func(r *m.RawMarketDatum) string { return r.Ticker })
	if err != nil {
		c.env.errorf("Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	return c.env.withService(ctx, func(sc *core.ServiceContext) error {
		for ticker, quotes := range grouped {
			n, err := sc.StoreQuotes(ticker, quotes, policy)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.env.stdout, "%s: %d of %d quotes written\n", ticker, n, len(quotes))
		}
		return nil
	})
}

type importFeaturesCmd struct {
	env    *env
	ticker string
	policy string
}

func (*importFeaturesCmd) Name() string     { return "import-features" }
func (*importFeaturesCmd) Synopsis() string { return "load processed daily rows from CSV files" }
func (*importFeaturesCmd) Usage() string {
	return `import-features [-ticker <symbol>] [-policy overwrite|skip|fail] <file.csv>...

  Header names are processed_market_data column names. Rows for a ticker and
  date that are already stored are replaced unless another policy is given.
`
}

func (c *importFeaturesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.ticker, "ticker", "", "ticker for every row, overrides the ticker column")
	f.StringVar(&c.policy, "policy", core.DefaultFeaturePolicy.String(), "conflict policy for existing rows")
}

func (c *importFeaturesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	policy, err := m.ParseConflictPolicy(c.policy)
	if err != nil || f.NArg() == 0 {
		fmt.Fprint(c.env.stderr, c.Usage())
		return subcommands.ExitUsageError
	}

	rows, err := readCSVFiles[m.ProcessedMarketDatum](f.Args())
	if err != nil {
		c.env.errorf("Error reading features: %v\n", err)
		return subcommands.ExitFailure
	}

	grouped, err := byTicker(rows, c.ticker, func(r *m.ProcessedMarketDatum) string { return r.Ticker })
	if err != nil {
		c.env.errorf("Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	return c.env.withService(ctx, func(sc *core.ServiceContext) error {
		for ticker, features := range grouped {
			n, err := sc.StoreFeatures(ticker, features, policy)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.env.stdout, "%s: %d of %d rows written\n", ticker, n, len(features))
		}
		return nil
	})
}

type pruneQuotesCmd struct {
	env    *env
	ticker string
	before string
}

func (*pruneQuotesCmd) Name() string     { return "prune-quotes" }
func (*pruneQuotesCmd) Synopsis() string { return "delete raw quotes older than a date" }
func (*pruneQuotesCmd) Usage() string {
	return `prune-quotes -ticker <symbol> -before <YYYY-MM-DD>

  Deletes raw quotes strictly before the cutoff. The newest quote is always kept.
`
}

func (c *pruneQuotesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.ticker, "ticker", "", "ticker to prune")
	f.StringVar(&c.before, "before", "", "cutoff date or timestamp")
}

func (c *pruneQuotesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.ticker == "" || c.before == "" {
		fmt.Fprint(c.env.stderr, c.Usage())
		return subcommands.ExitUsageError
	}

	cutoff, err := parseTime(c.before)
	if err != nil {
		c.env.errorf("Error parsing -before: %v\n", err)
		return subcommands.ExitUsageError
	}

	return c.env.withService(ctx, func(sc *core.ServiceContext) error {
		n, err := sc.PruneQuotes(c.ticker, cutoff.UTC())
		if err != nil {
			return err
		}
		fmt.Fprintf(c.env.stdout, "%d quotes deleted before %s\n", n, ex.FmtLong(cutoff.UTC()))
		return nil
	})
}
