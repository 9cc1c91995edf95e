package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/aristath/portfoliowidget/internal/config"
	"github.com/aristath/portfoliowidget/internal/di"
	"github.com/aristath/portfoliowidget/internal/domain"
	"github.com/aristath/portfoliowidget/internal/modules/display"
	"github.com/aristath/portfoliowidget/pkg/logger"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
)

var commands = []subcommands.Command{
	&summaryCmd{out: os.Stdout},
	&rateCmd{out: os.Stdout},
	&holdingsCmd{out: os.Stdout},
}

// setup loads configuration and wires a container; CLI logs go to stderr
func setup(verbose bool) (*config.Config, *di.Container, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, zerolog.Nop(), err
	}

	level := "warn"
	if verbose {
		level = cfg.LogLevel
	}
	log := logger.New(logger.Config{Level: level, Pretty: true, Output: os.Stderr})

	container, err := di.Wire(cfg, log)
	if err != nil {
		return nil, nil, log, err
	}
	return cfg, container, log, nil
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return subcommands.ExitFailure
}

type summaryCmd struct {
	out     io.Writer
	target  string
	dust    float64
	asJSON  bool
	hide    bool
	verbose bool
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "run one valuation pass and print the summary" }
func (*summaryCmd) Usage() string {
	return `valuate summary [-target <ccy>] [-dust <n>] [-json] [-hide]

  Fetches every configured account, converts all holdings into the target
  currency and prints the total with its breakdown.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.target, "target", "", "reporting currency (defaults to TARGET_CURRENCY)")
	f.Float64Var(&c.dust, "dust", -1, "hide holdings worth this much or less (defaults to DUST_THRESHOLD)")
	f.BoolVar(&c.asJSON, "json", false, "print the raw summary as JSON")
	f.BoolVar(&c.hide, "hide", false, "mask all values")
	f.BoolVar(&c.verbose, "v", false, "log at the configured level")
}

func (c *summaryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, container, _, err := setup(c.verbose)
	if err != nil {
		return fail(err)
	}

	target := cfg.TargetCurrency
	if c.target != "" {
		target = strings.ToUpper(c.target)
	}
	dust := cfg.DustThreshold
	if c.dust >= 0 {
		dust = c.dust
	}

	summary, err := container.Valuation.Run(ctx, target, dust)
	if err != nil {
		return fail(err)
	}

	if c.asJSON {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return fail(err)
		}
		return subcommands.ExitSuccess
	}

	printSummary(c.out, summary, c.hide || cfg.HideValues)
	return subcommands.ExitSuccess
}

// printSummary renders a summary as an aligned text table
func printSummary(w io.Writer, summary *domain.PortfolioSummary, hide bool) {
	amount := func(v float64) string {
		if hide {
			return display.Masked
		}
		return display.FormatTotal(v, summary.Currency)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "SYMBOL\tSOURCE\tNATIVE\tVALUE\n")
	for _, h := range summary.Holdings {
		native := fmt.Sprintf("%.4f %s", h.NativeValue, h.NativeCurrency)
		if hide {
			native = display.Masked
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", h.Symbol, h.Source, native, amount(h.Value))
	}
	fmt.Fprintf(tw, "\t\t\t\n")
	for _, src := range summary.Sources {
		total := amount(src.Total)
		if src.Error != "" {
			total = display.FailedTotal
		}
		fmt.Fprintf(tw, "%s\t\t\t%s\n", src.Name, total)
	}
	fmt.Fprintf(tw, "TOTAL\t\t\t%s\n", amount(summary.TotalValue))
	tw.Flush()

	if summary.Incomplete {
		fmt.Fprintln(w, "(incomplete: some holdings or sources could not be valued)")
	}
	fmt.Fprintf(w, "Updated %s\n", display.FormatTimestamp(summary.GeneratedAt))
}

type rateCmd struct {
	out     io.Writer
	from    string
	to      string
	amount  float64
	verbose bool
}

func (*rateCmd) Name() string     { return "rate" }
func (*rateCmd) Synopsis() string { return "convert an amount through the FX provider chain" }
func (*rateCmd) Usage() string {
	return `valuate rate -from <ccy> -to <ccy> [-amount <n>]

  Queries the configured FX providers in order and prints the first rate.
`
}

func (c *rateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.from, "from", "", "source currency")
	f.StringVar(&c.to, "to", "", "target currency (defaults to TARGET_CURRENCY)")
	f.Float64Var(&c.amount, "amount", 1, "amount to convert")
	f.BoolVar(&c.verbose, "v", false, "log every provider attempt")
}

func (c *rateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.from == "" {
		fmt.Fprintln(os.Stderr, "Error: -from is required")
		return subcommands.ExitUsageError
	}

	cfg, container, _, err := setup(c.verbose)
	if err != nil {
		return fail(err)
	}

	to := cfg.TargetCurrency
	if c.to != "" {
		to = c.to
	}
	from, to := strings.ToUpper(c.from), strings.ToUpper(to)

	rates := container.ExchangeRates.NewPass("")
	converted, err := rates.Convert(ctx, c.amount, from, to)
	if err != nil {
		return fail(err)
	}

	fmt.Fprintf(c.out, "%g %s = %s\n", c.amount, from, display.FormatTotal(converted, to))
	for _, r := range rates.Rates() {
		fmt.Fprintf(c.out, "  1 %s = %g %s (%s)\n", r.Base, r.Rate, r.Quote, r.Source)
	}
	return subcommands.ExitSuccess
}

type holdingsCmd struct {
	out     io.Writer
	source  string
	verbose bool
}

func (*holdingsCmd) Name() string     { return "holdings" }
func (*holdingsCmd) Synopsis() string { return "print the raw holdings of one source" }
func (*holdingsCmd) Usage() string {
	return `valuate holdings -source <name>

  Fetches one account and prints its holdings with the resolved currency,
  before any conversion.
`
}

func (c *holdingsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.source, "source", "", "source name (bitvavo or trading212)")
	f.BoolVar(&c.verbose, "v", false, "log at the configured level")
}

func (c *holdingsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, container, _, err := setup(c.verbose)
	if err != nil {
		return fail(err)
	}

	src, ok := container.Valuation.Source(c.source)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: source %q is not configured (have %v)\n", c.source, container.Valuation.Sources())
		return subcommands.ExitUsageError
	}

	holdings, err := src.Fetch(ctx, cfg.TargetCurrency)
	if err != nil {
		return fail(err)
	}

	printHoldings(c.out, holdings, func(h domain.RawHolding) (string, string) {
		return container.CurrencyResolver.ResolveWithStep(h, cfg.TargetCurrency)
	})
	return subcommands.ExitSuccess
}

// printHoldings lists raw holdings with the currency the resolver picks
func printHoldings(w io.Writer, holdings []domain.RawHolding, resolve func(domain.RawHolding) (string, string)) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "SYMBOL\tAMOUNT\tNATIVE VALUE\tCURRENCY\tFROM\tNOTE\n")
	for _, h := range holdings {
		code, step := resolve(h)
		note := ""
		if h.Err != nil {
			note = h.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%g\t%.4f\t%s\t%s\t%s\n", h.Symbol, h.Amount, h.NativeValue(), code, step, note)
	}
	tw.Flush()
}
