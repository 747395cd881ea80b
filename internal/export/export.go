package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/curve-launchpad/internal/storage"
	"github.com/rovshanmuradov/curve-launchpad/internal/storage/models"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ExportOptions configures the export behavior
type ExportOptions struct {
	Format       ExportFormat
	StartTime    time.Time
	EndTime      time.Time
	TokenFilter  string // Filter by token mint
	UserFilter   string // Filter by trader wallet
	ActionFilter string // Filter by action (buy/sell)
	OutputDir    string
}

func (o ExportOptions) filter() storage.TradeFilter {
	return storage.TradeFilter{
		Mint:   o.TokenFilter,
		User:   o.UserFilter,
		Action: o.ActionFilter,
		Since:  o.StartTime,
		Until:  o.EndTime,
	}
}

// TradeExporter handles trade export functionality
type TradeExporter struct {
	logger *zap.Logger
}

// NewTradeExporter creates a new trade exporter
func NewTradeExporter(logger *zap.Logger) *TradeExporter {
	return &TradeExporter{
		logger: logger,
	}
}

// ExportFromStore loads the matching settlement records from store and exports them.
func (te *TradeExporter) ExportFromStore(ctx context.Context, store storage.Storage, options ExportOptions) (string, error) {
	trades, err := store.ListTrades(ctx, options.filter())
	if err != nil {
		return "", fmt.Errorf("failed to load trades: %w", err)
	}
	return te.ExportTrades(trades, options)
}

// ExportTrades exports trades based on the provided options
func (te *TradeExporter) ExportTrades(trades []*models.Trade, options ExportOptions) (string, error) {
	filtered := te.filterTrades(trades, options)

	if len(filtered) == 0 {
		return "", fmt.Errorf("no trades match the export criteria")
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].BlockTime.Before(filtered[j].BlockTime)
	})

	filename := te.generateFilename(options)
	outputPath := filepath.Join(options.OutputDir, filename)

	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	switch options.Format {
	case FormatCSV:
		err = te.exportToCSV(filtered, outputPath)
	case FormatJSON:
		err = te.exportToJSON(filtered, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}

	if err != nil {
		return "", err
	}

	te.logger.Info("Trades exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))

	return outputPath, nil
}

// filterTrades applies filters to the trade list
func (te *TradeExporter) filterTrades(trades []*models.Trade, options ExportOptions) []*models.Trade {
	f := options.filter()
	var filtered []*models.Trade
	for _, trade := range trades {
		if f.Match(trade) {
			filtered = append(filtered, trade)
		}
	}
	return filtered
}

// generateFilename creates a filename based on export options
func (te *TradeExporter) generateFilename(options ExportOptions) string {
	timestamp := time.Now().Format("20060102_150405")

	var prefix string
	if options.ActionFilter != "" {
		prefix = fmt.Sprintf("trades_%s", options.ActionFilter)
	} else {
		prefix = "trades_all"
	}

	if options.TokenFilter != "" {
		prefix += "_" + short(options.TokenFilter)
	}

	return fmt.Sprintf("%s_%s.%s", prefix, timestamp, options.Format)
}

func short(addr string) string {
	if len(addr) > 8 {
		return addr[:8]
	}
	return addr
}

// CSVHeaders returns the column names of the CSV export.
func CSVHeaders() []string {
	return []string{
		"timestamp", "mint", "user", "action", "sol_amount", "token_amount", "fee",
		"virtual_sol_reserves", "virtual_token_reserves", "real_sol_reserves", "real_token_reserves", "hash",
	}
}

func csvRow(t *models.Trade) []string {
	u := func(v uint64) string { return strconv.FormatUint(v, 10) }
	return []string{
		t.BlockTime.UTC().Format(time.RFC3339),
		t.Mint,
		t.User,
		t.Action(),
		u(t.SolAmount),
		u(t.TokenAmount),
		u(t.Fee),
		u(t.VirtualSolReserves),
		u(t.VirtualTokenReserves),
		u(t.RealSolReserves),
		u(t.RealTokenReserves),
		t.Hash,
	}
}

// exportToCSV exports trades to CSV format
func (te *TradeExporter) exportToCSV(trades []*models.Trade, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, trade := range trades {
		if err := writer.Write(csvRow(trade)); err != nil {
			return fmt.Errorf("failed to write trade: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

// exportToJSON exports trades to JSON format
func (te *TradeExporter) exportToJSON(trades []*models.Trade, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	exportData := struct {
		ExportTime time.Time       `json:"export_time"`
		TradeCount int             `json:"trade_count"`
		Trades     []*models.Trade `json:"trades"`
		Summary    ExportSummary   `json:"summary"`
	}{
		ExportTime: time.Now(),
		TradeCount: len(trades),
		Trades:     trades,
		Summary:    te.calculateSummary(trades),
	}

	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

// calculateSummary calculates summary statistics for the export
func (te *TradeExporter) calculateSummary(trades []*models.Trade) ExportSummary {
	summary := ExportSummary{
		TotalTrades: len(trades),
	}

	if len(trades) == 0 {
		return summary
	}

	summary.StartDate = trades[0].BlockTime
	summary.EndDate = trades[len(trades)-1].BlockTime

	tokenSet := make(map[string]bool)
	userSet := make(map[string]bool)

	for _, trade := range trades {
		tokenSet[trade.Mint] = true
		userSet[trade.User] = true
		summary.TotalFees += trade.Fee

		if trade.IsBuy {
			summary.BuyCount++
			summary.TotalBuyVolume += trade.SolAmount
			summary.TokensBought += trade.TokenAmount
		} else {
			summary.SellCount++
			summary.TotalSellVolume += trade.SolAmount
			summary.TokensSold += trade.TokenAmount
		}
	}

	summary.UniqueTokens = len(tokenSet)
	summary.UniqueUsers = len(userSet)
	summary.TotalVolume = summary.TotalBuyVolume + summary.TotalSellVolume

	if summary.TotalVolume > 0 {
		summary.EffectiveFeeBps = float64(summary.TotalFees) / float64(summary.TotalVolume) * 10_000
	}

	return summary
}

// ExportSummary contains summary statistics for exported trades. Amounts are
// lamports and token base units.
type ExportSummary struct {
	TotalTrades     int       `json:"total_trades"`
	BuyCount        int       `json:"buy_count"`
	SellCount       int       `json:"sell_count"`
	UniqueTokens    int       `json:"unique_tokens"`
	UniqueUsers     int       `json:"unique_users"`
	TotalVolume     uint64    `json:"total_volume"`
	TotalBuyVolume  uint64    `json:"total_buy_volume"`
	TotalSellVolume uint64    `json:"total_sell_volume"`
	TokensBought    uint64    `json:"tokens_bought"`
	TokensSold      uint64    `json:"tokens_sold"`
	TotalFees       uint64    `json:"total_fees"`
	EffectiveFeeBps float64   `json:"effective_fee_bps"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
}

// ExportDailyReport exports a daily summary report
func (te *TradeExporter) ExportDailyReport(trades []*models.Trade, date time.Time, outputDir string) (string, error) {
	startOfDay := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	options := ExportOptions{
		Format:    FormatJSON,
		StartTime: startOfDay,
		EndTime:   endOfDay,
		OutputDir: outputDir,
	}

	filename := fmt.Sprintf("daily_report_%s.json", startOfDay.Format("20060102"))
	outputPath := filepath.Join(outputDir, filename)

	filtered := te.filterTrades(trades, options)

	if len(filtered) == 0 {
		te.logger.Info("No trades for daily report",
			zap.Time("date", startOfDay))
		return "", nil
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].BlockTime.Before(filtered[j].BlockTime)
	})

	report := DailyReport{
		Date:            startOfDay,
		TradeCount:      len(filtered),
		Trades:          filtered,
		Summary:         te.calculateSummary(filtered),
		HourlyBreakdown: te.calculateHourlyBreakdown(filtered, date.Location()),
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(report); err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	te.logger.Info("Daily report exported",
		zap.String("file", outputPath),
		zap.Time("date", startOfDay),
		zap.Int("trades", len(filtered)))

	return outputPath, nil
}

// DailyReport represents a daily trading report
type DailyReport struct {
	Date            time.Time       `json:"date"`
	TradeCount      int             `json:"trade_count"`
	Summary         ExportSummary   `json:"summary"`
	HourlyBreakdown []HourlyStats   `json:"hourly_breakdown"`
	Trades          []*models.Trade `json:"trades"`
}

// HourlyStats represents trading statistics for an hour
type HourlyStats struct {
	Hour       int    `json:"hour"`
	TradeCount int    `json:"trade_count"`
	BuyCount   int    `json:"buy_count"`
	SellCount  int    `json:"sell_count"`
	Volume     uint64 `json:"volume"`
	Fees       uint64 `json:"fees"`
}

// calculateHourlyBreakdown calculates hourly trading statistics in loc
func (te *TradeExporter) calculateHourlyBreakdown(trades []*models.Trade, loc *time.Location) []HourlyStats {
	hourlyMap := make(map[int]*HourlyStats)

	for _, trade := range trades {
		hour := trade.BlockTime.In(loc).Hour()

		stats, exists := hourlyMap[hour]
		if !exists {
			stats = &HourlyStats{Hour: hour}
			hourlyMap[hour] = stats
		}

		stats.TradeCount++
		stats.Volume += trade.SolAmount
		stats.Fees += trade.Fee

		if trade.IsBuy {
			stats.BuyCount++
		} else {
			stats.SellCount++
		}
	}

	var breakdown []HourlyStats
	for hour := 0; hour < 24; hour++ {
		if stats, exists := hourlyMap[hour]; exists {
			breakdown = append(breakdown, *stats)
		}
	}

	return breakdown
}
