package report

import (
	"fmt"
	"io"

	"github.com/Rhymond/go-money"
	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"

	dm "mc.store/data/models"
	sm "mc.store/service/models"
)

const timeLayout = "2006-01-02 15:04:05"

func recorded(t null.Time) string {
	if !t.Valid {
		return "-"
	}
	return t.Time.UTC().Format(timeLayout)
}

// USD formats a dollar amount, rounded to the cent.
func USD(amount decimal.Decimal) string {
	return money.New(amount.Shift(2).Round(0).IntPart(), money.USD).Display()
}

// RenderRun writes a markdown report of a stored run. Summary metrics are
// listed in vocabulary order; metrics the run does not carry are skipped.
func RenderRun(w io.Writer, r *sm.RunReport) error {
	if _, err := fmt.Fprintf(w, "# Simulation Run %d\n\n", r.RunId); err != nil {
		return err
	}

	fmt.Fprintln(w, "| Field | Value |")
	fmt.Fprintln(w, "|:---|:---|")
	fmt.Fprintf(w, "| Portfolio | %s |\n", r.PortfolioType)
	fmt.Fprintf(w, "| Horizon | %d years |\n", r.TimeHorizonYears)
	fmt.Fprintf(w, "| Trials | %d |\n", r.NumSimulations)
	fmt.Fprintf(w, "| Recorded | %s |\n", recorded(r.CreatedAt))
	fmt.Fprintf(w, "| Ticker results | %d |\n", r.Results)
	fmt.Fprintf(w, "| Portfolio results | %d |\n", r.PortfolioResults)

	if len(r.Summary) == 0 {
		_, err := fmt.Fprint(w, "\nNo summary metrics recorded.\n")
		return err
	}

	fmt.Fprint(w, "\n## Final Portfolio Value\n\n")
	fmt.Fprintln(w, "| Metric | Value |")
	fmt.Fprintln(w, "|:---|---:|")
	for _, name := range dm.MetricNames {
		v, ok := r.Summary[name.String()]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "| %s | %s |\n", name, USD(v))
	}

	_, err := fmt.Fprintln(w)
	return err
}

// RenderRuns writes one table row per run, newest first as given.
func RenderRuns(w io.Writer, runs []*dm.SimulationRun) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No simulation runs.")
		return err
	}

	fmt.Fprintln(w, "| Run | Portfolio | Horizon | Trials | Recorded |")
	fmt.Fprintln(w, "|---:|:---:|---:|---:|:---|")
	for _, r := range runs {
		if _, err := fmt.Fprintf(w, "| %d | %s | %d | %d | %s |\n",
			r.RunId, r.PortfolioType, r.TimeHorizonYears, r.NumSimulations, recorded(r.CreatedAt)); err != nil {
			return err
		}
	}
	return nil
}
