package model

import "time"

// ErrorKind classifies a recoverable sync failure.
type ErrorKind string

const (
	ErrorNone       ErrorKind = ""
	ErrorNetwork    ErrorKind = "network"
	ErrorTimeout    ErrorKind = "timeout"
	ErrorMalformed  ErrorKind = "malformed"
	ErrorHTTPStatus ErrorKind = "http_status"
)

// SyncStatus is the externally visible state of a price sync controller.
type SyncStatus struct {
	Loading             bool      `json:"loading"`
	Refreshing          bool      `json:"refreshing"`
	Error               ErrorKind `json:"error,omitempty"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	// Unavailable is set once ConsecutiveFailures reaches the configured threshold.
	Unavailable bool `json:"unavailable"`
}

// Row is one render-ready line of a basket valuation. Nil pointers render as "--".
type Row struct {
	Ticker           string         `json:"ticker"`
	Name             string         `json:"name"`
	Classification   Classification `json:"classification"`
	Weight           float64        `json:"weight"`
	BaselinePrice    *float64       `json:"baselinePrice"`
	CurrentPrice     *float64       `json:"currentPrice"`
	ReturnPercent    *float64       `json:"returnPercent"`
	DayChangePercent *float64       `json:"dayChangePercent"`
	Score            *float64       `json:"score"`
	IsStale          bool           `json:"isStale"`
	IsMissing        bool           `json:"isMissing"`
	IsLive           bool           `json:"isLive"`
}

// Summary holds the basket level aggregates as raw floats.
type Summary struct {
	WeightedReturn    float64 `json:"weightedReturn"`
	WeightedDayChange float64 `json:"weightedDayChange"`
	AvgScore          float64 `json:"avgScore"`
	TotalWeight       float64 `json:"totalWeight"`
	WeightDelta       float64 `json:"weightDelta"`
}

// BasketValuation is the full derived view of a basket at one point in time.
type BasketValuation struct {
	BasketID   string     `json:"basketId"`
	Rows       []Row      `json:"rows"`
	Summary    Summary    `json:"summary"`
	Status     SyncStatus `json:"status"`
	MarketOpen bool       `json:"marketOpen"`
	AsOf       time.Time  `json:"asOf"`
	Stale      []string   `json:"staleTickers"`
	Missing    []string   `json:"missingTickers"`
}
