package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"text/tabwriter"

	"mtfBreakoutBot/config"
	"mtfBreakoutBot/internal/adapters/logger"
	"mtfBreakoutBot/internal/adapters/sqlite"
	"mtfBreakoutBot/internal/analytics"
	"mtfBreakoutBot/internal/domain"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.New(cfg.LogLevel)

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to open trade database: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	trades, err := repo.FindAll(ctx)
	if err != nil {
		log.Fatalf("Error loading trades: %v", err)
	}
	if len(trades) == 0 {
		log.Println("No recorded trades found. Run the bot or the backtest runner first.")
		return
	}

	bySymbol := make(map[string][]*domain.Trade)
	for _, t := range trades {
		bySymbol[t.Symbol] = append(bySymbol[t.Symbol], t)
	}
	symbols := make([]string, 0, len(bySymbol))
	for s := range bySymbol {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Symbol\tTrades\tWinRate\tAvgR\tPF\tMaxDD(R)\tTotal(R)\tAvgHold(min)\t")
	for _, sym := range symbols {
		s := analytics.Compute(bySymbol[sym])
		fmt.Fprintf(w, "%s\t%d\t%.1f%%\t%.2f\t%.2f\t%.2f\t%.2f\t%.0f\t\n",
			sym, s.TradeCount, s.WinRate*100, s.AvgR, s.ProfitFactor,
			s.MaxDrawdownR, s.TotalR, s.AvgHoldingMinutes)
	}
	w.Flush()

	total := analytics.Compute(trades)
	fmt.Printf("\n## Overall\n")
	fmt.Printf("Trades: %d  WinRate: %.1f%%  Expectancy: %.2f R  Sharpe: %.2f  Total: %.2f R\n",
		total.TradeCount, total.WinRate*100, total.Expectancy, total.SharpeRatio, total.TotalR)

	// Exit reason distribution
	reasons := make(map[domain.ExitReason]int)
	for _, t := range trades {
		if !t.IsOpen() {
			reasons[t.ExitReason]++
		}
	}
	fmt.Printf("\n## Exit reasons\n")
	for _, r := range []domain.ExitReason{domain.ExitStopLoss, domain.ExitTarget1, domain.ExitTarget2, domain.ExitEndOfData} {
		if n := reasons[r]; n > 0 {
			fmt.Printf("%-4s %d\n", r, n)
		}
	}
}
