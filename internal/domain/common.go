package domain

// Side represents the direction of a trade.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// ExitReason indicates why a position was closed.
type ExitReason string

const (
	ExitStopLoss  ExitReason = "SL"
	ExitTarget1   ExitReason = "T1"
	ExitTarget2   ExitReason = "T2"
	ExitEndOfData ExitReason = "EOD"
)

// Permission is the directional permission derived from the trend ladder.
type Permission string

const (
	PermissionLong  Permission = "LONG"
	PermissionShort Permission = "SHORT"
	PermissionNone  Permission = "NONE"
)

// TrendState labels the trend of a single timeframe.
type TrendState string

const (
	TrendBullish TrendState = "Bullish"
	TrendBearish TrendState = "Bearish"
	TrendNeutral TrendState = "Neutral"
)

// TrendLabel pairs a timeframe with its trend classification.
type TrendLabel struct {
	Timeframe string
	Label     TrendState
}
