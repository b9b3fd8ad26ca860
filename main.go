package main

import (
	"fmt"
	"os"

	"watch-market/config"
	"watch-market/models"
	"watch-market/services"
	"watch-market/storage"
	"watch-market/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.NewLogger(utils.LevelInfo).Error("Invalid configuration: %v", err)
		os.Exit(1)
	}
	logger := utils.NewLogger(utils.ParseLevel(cfg.LogLevel))

	logger.Info("=== Watch Market pipeline starting ===")
	logger.Info("Config: data year %d | shipping cap %.0f | IQR k=%.2f | store %s",
		cfg.DataYear, cfg.MaxShipping, cfg.IQRMultiplier, cfg.StoreDriver)

	rawListings, err := storage.ReadRawListings(cfg.RawCSVPath)
	if err != nil {
		logger.Error("Failed to load raw listings: %v", err)
		os.Exit(1)
	}
	if len(rawListings) == 0 {
		logger.Error("No listings in %s. Exiting.", cfg.RawCSVPath)
		os.Exit(1)
	}
	logger.Info("Loaded %d raw listings from %s", len(rawListings), cfg.RawCSVPath)

	cleaner := services.NewCleaner(cfg.CleanerOptions(), logger)
	cleanListings := cleaner.Clean(rawListings)
	if len(cleanListings) == 0 {
		logger.Error("All listings were dropped during cleaning. Exiting.")
		os.Exit(1)
	}
	if err := writeCSV(cfg.CleanedCSVPath, models.CleanedColumns, cleanListings); err != nil {
		logger.Error("Cleaned CSV write failed: %v", err)
		os.Exit(1)
	}
	logger.Info("Cleaned dataset (%d listings) saved to %s", len(cleanListings), cfg.CleanedCSVPath)

	preprocessor := services.NewPreprocessor(cfg.PreprocessorOptions(), logger)
	processed := preprocessor.Process(cleanListings)
	encoded := processed.Encoder.Columns()
	if err := writeCSV(cfg.ProcessedCSVPath, storage.ListingColumns(encoded), processed.Rows); err != nil {
		logger.Error("Processed CSV write failed: %v", err)
		os.Exit(1)
	}
	logger.Info("Processed dataset (%d listings) saved to %s", len(processed.Rows), cfg.ProcessedCSVPath)

	store, err := storage.OpenStore(cfg.StoreDriver, cfg.DSN(), &utils.RetryConfig{
		MaxAttempts: cfg.StoreConnectRetries,
		BaseDelay:   cfg.StoreRetryDelay,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("Failed to connect to the %s store: %v", cfg.StoreDriver, err)
		os.Exit(1)
	}
	defer store.Close()

	var listingWriter storage.ListingWriter = store
	if err := listingWriter.ReplaceListings(processed.Rows, encoded); err != nil {
		logger.Error("Store write failed: %v", err)
		os.Exit(1)
	}
	logger.Info("Processed listings stored (table: %s)", storage.ListingsTable)

	depreciation := services.NewDepreciation(cfg.DepreciationOptions(), logger)
	trends := depreciation.Trends(processed.Rows)
	var trendWriter storage.TrendWriter = store
	if err := trendWriter.ReplaceTrends(trends); err != nil {
		logger.Error("Trend write failed: %v", err)
		os.Exit(1)
	}
	significant := services.SignificantTrends(trends)
	logger.Info("Fitted %d trends, %d significant (table: %s)", len(trends), len(significant), storage.TrendsTable)
	for _, t := range services.TopDepreciating(significant, 5) {
		if t.Slope >= 0 {
			break
		}
		logger.Info("  losing value:  %-12s %8.0f/yr  R²=%.2f  n=%d", t.Reference, t.DepreciationRate(), t.RSquared, t.N)
	}
	for _, t := range services.TopAppreciating(significant, 5) {
		if t.Slope <= 0 {
			break
		}
		logger.Info("  gaining value: %-12s %8.0f/yr  R²=%.2f  n=%d", t.Reference, t.Slope, t.RSquared, t.N)
	}

	insightSvc := services.NewInsightService(logger)
	report := insightSvc.Generate(processed.Rows)
	insightSvc.Print(os.Stdout, report)

	fmt.Printf("  Done. Cleaned → %s | Processed → %s | Store → %s (%s)\n\n",
		cfg.CleanedCSVPath, cfg.ProcessedCSVPath, cfg.StoreDriver, storage.ListingsTable)
}

func writeCSV(path string, columns []string, listings []*models.Listing) error {
	w, err := storage.NewCSVWriter(path)
	if err != nil {
		return err
	}
	var dw storage.DatasetWriter = w
	return dw.WriteListings(columns, listings)
}
