// backsim-cli is a small client for the backsim-server API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"backsim/pkg/backsim"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: backsim-cli <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version     Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  strategies  List registered strategies\n")
		fmt.Fprintf(os.Stderr, "  symbols     List available symbols\n")
		fmt.Fprintf(os.Stderr, "  backtest    Run a backtest and print the summary\n")
		fmt.Fprintf(os.Stderr, "\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	ctx := context.Background()

	switch os.Args[1] {
	case "version":
		fmt.Printf("backsim-cli %s\n", version)

	case "strategies":
		fs := flag.NewFlagSet("strategies", flag.ExitOnError)
		addr := fs.String("addr", "http://localhost:8000", "server address")
		fs.Parse(os.Args[2:])

		strategies, err := backsim.NewClient(*addr).Strategies(ctx)
		if err != nil {
			fatal(err)
		}
		printJSON(strategies)

	case "symbols":
		fs := flag.NewFlagSet("symbols", flag.ExitOnError)
		addr := fs.String("addr", "http://localhost:8000", "server address")
		fs.Parse(os.Args[2:])

		symbols, err := backsim.NewClient(*addr).Symbols(ctx)
		if err != nil {
			fatal(err)
		}
		for _, s := range symbols {
			fmt.Println(s)
		}

	case "backtest":
		runBacktest(ctx, os.Args[2:])

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		flag.Usage()
		os.Exit(1)
	}
}

func runBacktest(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("backtest", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8000", "server address")
	symbol := fs.String("symbol", "AAPL", "symbol to backtest")
	strat := fs.String("strategy", "ma_crossover", "strategy name")
	start := fs.String("start", "", "start date (YYYY-MM-DD)")
	end := fs.String("end", "", "end date (YYYY-MM-DD)")
	capital := fs.Float64("capital", 0, "initial capital (0 = server default)")
	commission := fs.Float64("commission", 0, "commission rate (0 = server default)")
	fs.Parse(args)

	if *start == "" || *end == "" {
		fmt.Fprintln(os.Stderr, "backtest requires -start and -end")
		os.Exit(1)
	}

	result, err := backsim.NewClient(*addr).Backtest(ctx, backsim.BacktestRequest{
		Symbol:         *symbol,
		Strategy:       *strat,
		StartDate:      *start,
		EndDate:        *end,
		InitialCapital: *capital,
		Commission:     *commission,
	})
	if err != nil {
		fatal(err)
	}

	s := result.Summary
	fmt.Printf("%s / %s  %s..%s  (%d bars)\n", *symbol, *strat, *start, *end, result.DataPoints)
	fmt.Printf("  total return:  %8.2f%%\n", s.TotalReturn*100)
	fmt.Printf("  annual return: %8.2f%%\n", s.AnnualReturn*100)
	fmt.Printf("  volatility:    %8.2f%%\n", s.Volatility*100)
	fmt.Printf("  sharpe ratio:  %8.2f\n", s.SharpeRatio)
	fmt.Printf("  max drawdown:  %8.2f%%\n", s.MaxDrawdown*100)
	fmt.Printf("  trades:        %d (%d winning, %.0f%% win rate)\n",
		s.TotalTrades, s.WinningTrades, s.WinRate*100)
	fmt.Printf("  final equity:  %.2f\n", s.FinalEquity)
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(out))
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
