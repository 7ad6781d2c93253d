// Package report produces the dashboard's mocked positions and the simulated
// AI trading report. No market data is fetched and no model is called; the
// payload shape is what the real integration will fill in later.
package report

import (
	"time"

	"github.com/shopspring/decimal"
)

type Position struct {
	ID           int64           `json:"id"`
	Symbol       string          `json:"symbol"`
	Type         string          `json:"type"`
	Size         decimal.Decimal `json:"size"`
	OpenPrice    decimal.Decimal `json:"openPrice"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	PnL          decimal.Decimal `json:"pnl"`
	Status       string          `json:"status"`
	OpenTime     time.Time       `json:"openTime"`
}

type Analysis struct {
	MarketSentiment string          `json:"market_sentiment"`
	Confidence      decimal.Decimal `json:"confidence"`
	Recommendation  string          `json:"recommendation"`
	TargetPrice     decimal.Decimal `json:"target_price"`
	StopLoss        decimal.Decimal `json:"stop_loss"`
	RiskLevel       string          `json:"risk_level"`
}

type TechnicalAnalysis struct {
	Indicators       map[string]string `json:"indicators"`
	Patterns         []string          `json:"patterns"`
	SupportLevels    []decimal.Decimal `json:"support_levels"`
	ResistanceLevels []decimal.Decimal `json:"resistance_levels"`
}

type RiskAssessment struct {
	ProbabilityOfSuccess decimal.Decimal `json:"probability_of_success"`
	MaxDrawdown          decimal.Decimal `json:"max_drawdown"`
	RewardRiskRatio      decimal.Decimal `json:"reward_risk_ratio"`
	Volatility           string          `json:"volatility"`
}

type Report struct {
	ID                int64             `json:"id"`
	ReportType        string            `json:"reportType"`
	Symbol            string            `json:"symbol"`
	GeneratedAt       time.Time         `json:"generatedAt"`
	Analysis          Analysis          `json:"analysis"`
	Summary           string            `json:"summary"`
	KeyPoints         []string          `json:"key_points"`
	TechnicalAnalysis TechnicalAnalysis `json:"technical_analysis"`
	RiskAssessment    RiskAssessment    `json:"risk_assessment"`
	Timeframe         string            `json:"timeframe"`
}

const DefaultSymbol = "EUR/USD"

// MockPositions returns the fixed open-positions set shown on the dashboard
// until a positions table exists.
func MockPositions() []Position {
	return []Position{
		{
			ID:           1,
			Symbol:       "EUR/USD",
			Type:         "BUY",
			Size:         decimal.RequireFromString("0.1"),
			OpenPrice:    decimal.RequireFromString("1.085"),
			CurrentPrice: decimal.RequireFromString("1.0875"),
			PnL:          decimal.RequireFromString("25.0"),
			Status:       "OPEN",
			OpenTime:     time.Date(2025, 7, 12, 10, 30, 0, 0, time.UTC),
		},
		{
			ID:           2,
			Symbol:       "GBP/USD",
			Type:         "SELL",
			Size:         decimal.RequireFromString("0.05"),
			OpenPrice:    decimal.RequireFromString("1.275"),
			CurrentPrice: decimal.RequireFromString("1.274"),
			PnL:          decimal.RequireFromString("5.0"),
			Status:       "OPEN",
			OpenTime:     time.Date(2025, 7, 12, 9, 15, 0, 0, time.UTC),
		},
		{
			ID:           3,
			Symbol:       "USD/JPY",
			Type:         "BUY",
			Size:         decimal.RequireFromString("0.2"),
			OpenPrice:    decimal.RequireFromString("149.5"),
			CurrentPrice: decimal.RequireFromString("149.45"),
			PnL:          decimal.RequireFromString("-10.0"),
			Status:       "WAITING",
			OpenTime:     time.Date(2025, 7, 12, 11, 0, 0, 0, time.UTC),
		},
	}
}

// Generate builds the simulated analysis for the given report type and symbol.
func Generate(id int64, reportType, symbol string, now time.Time) Report {
	if symbol == "" {
		symbol = DefaultSymbol
	}

	return Report{
		ID:          id,
		ReportType:  reportType,
		Symbol:      symbol,
		GeneratedAt: now.UTC(),
		Analysis: Analysis{
			MarketSentiment: "Bullish",
			Confidence:      decimal.RequireFromString("0.78"),
			Recommendation:  "BUY",
			TargetPrice:     decimal.RequireFromString("1.095"),
			StopLoss:        decimal.RequireFromString("1.075"),
			RiskLevel:       "Medium",
		},
		Summary: "Based on the " + reportType + " analysis for " + symbol +
			", current market conditions show bullish momentum with strong support levels. " +
			"Technical indicators suggest continued upward movement with a target of 1.095.",
		KeyPoints: []string{
			"RSI shows oversold conditions presenting buying opportunity",
			"Moving averages indicate bullish crossover pattern",
			"Support level at 1.080 provides strong foundation",
			"Economic indicators favor EUR strength against USD",
			"Recommended position size: 2% of portfolio",
		},
		TechnicalAnalysis: TechnicalAnalysis{
			Indicators: map[string]string{
				"RSI":    "68.5",
				"MACD":   "Bullish crossover",
				"SMA_20": "1.0845",
				"SMA_50": "1.082",
				"Volume": "Above average",
			},
			Patterns: []string{"Ascending triangle", "Higher lows"},
			SupportLevels: []decimal.Decimal{
				decimal.RequireFromString("1.08"),
				decimal.RequireFromString("1.075"),
				decimal.RequireFromString("1.07"),
			},
			ResistanceLevels: []decimal.Decimal{
				decimal.RequireFromString("1.09"),
				decimal.RequireFromString("1.095"),
				decimal.RequireFromString("1.1"),
			},
		},
		RiskAssessment: RiskAssessment{
			ProbabilityOfSuccess: decimal.RequireFromString("0.72"),
			MaxDrawdown:          decimal.RequireFromString("0.025"),
			RewardRiskRatio:      decimal.RequireFromString("2.5"),
			Volatility:           "Low to Medium",
		},
		Timeframe: timeframeFor(reportType),
	}
}

func timeframeFor(reportType string) string {
	switch reportType {
	case "daily":
		return "24 hours"
	case "weekly":
		return "7 days"
	default:
		return "30 days"
	}
}
