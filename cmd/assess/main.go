// Command assess rates a seller's asking price against the stored listings of
// the same reference number.
//
//	assess -ref 126610LN -price 12500 -year 2021
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"watch-market/config"
	"watch-market/services"
	"watch-market/storage"
	"watch-market/utils"
)

func main() {
	ref := flag.String("ref", "", "reference number, e.g. 126610LN")
	price := flag.Float64("price", 0, "seller's asking price")
	year := flag.Int("year", 0, "year of production (defaults to the data year)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		utils.NewLogger(utils.LevelInfo).Error("Invalid configuration: %v", err)
		os.Exit(1)
	}
	logger := utils.NewLogger(utils.ParseLevel(cfg.LogLevel))

	if *ref == "" || *price <= 0 {
		flag.Usage()
		os.Exit(2)
	}
	if *year == 0 {
		*year = cfg.DataYear
	}
	if *year < 1905 || *year > cfg.DataYear {
		logger.Error("Year of production must be between 1905 and %d, got %d", cfg.DataYear, *year)
		os.Exit(2)
	}

	os.Exit(assess(cfg, logger, *ref, *price, float64(cfg.DataYear-*year)))
}

// assess prints the assessment and returns the process exit code.
func assess(cfg *config.Config, logger *utils.Logger, ref string, price, age float64) int {
	store, err := storage.OpenStore(cfg.StoreDriver, cfg.DSN(), &utils.RetryConfig{
		MaxAttempts: cfg.StoreConnectRetries,
		BaseDelay:   cfg.StoreRetryDelay,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("Failed to connect to the %s store: %v", cfg.StoreDriver, err)
		return 1
	}
	defer store.Close()

	assessor := services.NewAssessor(store, cfg.IQRMultiplier, logger)
	assessment, err := assessor.Assess(ref, price, age)

	var unknown *services.UnknownReferenceError
	switch {
	case errors.As(err, &unknown):
		fmt.Printf("\n  Reference %q not found. Most listed references:\n", unknown.Reference)
		for _, s := range unknown.Suggestions {
			fmt.Printf("    %-14s %d listings\n", s.Reference, s.Count)
		}
		fmt.Println()
		return 1
	case err != nil:
		logger.Error("Assessment failed: %v", err)
		return 1
	}

	services.PrintAssessment(os.Stdout, assessment)
	return 0
}
