package models

import "time"

// Bar is one daily OHLCV candle.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Quote is the latest snapshot for a symbol. Zero fields mean the provider
// did not report them.
type Quote struct {
	Symbol        string
	Name          string
	Price         float64
	PrevClose     float64
	Open          float64
	Change        float64
	ChangePercent float64
	Volume        float64
	MarketCap     float64
	Sector        string
	Industry      string
	EPS           float64
	EPSGrowth     float64
	RevenueGrowth float64
	PERatio       float64
	ForwardPE     float64
	AnalystRating string
	TargetPrice   float64
	NumAnalysts   int
	Time          time.Time
}

// Sentinels used by the base computation when a field is not known.
const (
	UnknownClassification = "Unknown"
	NoAnalystRating       = "N/A"
)

// Candle is the chart representation of a Bar.
type Candle struct {
	Time   string  `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// SetupDetails lists the individual setup criteria.
type SetupDetails struct {
	HasMinLiquidity  bool `json:"hasMinLiquidity"`
	HasMinPrice      bool `json:"hasMinPrice"`
	EMA50AboveEMA200 bool `json:"ema50AboveEma200"`
	PriceAboveEMA200 bool `json:"priceAboveEma200"`
	PriceAboveEMA50  bool `json:"priceAboveEma50"`
	GoodADR          bool `json:"goodADR"`

	HasStrongMomentum bool `json:"hasStrongMomentum"`
	SMA200TrendingUp  bool `json:"sma200TrendingUp"`
	IsNear52WkHigh    bool `json:"isNear52WkHigh"`
	IsAbove52WkLow    bool `json:"isAbove52WkLow"`
	VolatilityMonth   bool `json:"volatilityMonth"`

	CoreScore    int     `json:"coreScore"`
	SupportScore int     `json:"supportScore"`
	DollarVolume float64 `json:"dollarVolume"`
}

// SymbolRecord is the scored result for one symbol. It is what gets cached,
// streamed to clients and archived.
type SymbolRecord struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Volume        float64 `json:"volume"`
	AvgVolume     float64 `json:"avgVolume"`
	VolumeRatio   float64 `json:"volumeRatio"`
	MarketCap     float64 `json:"marketCap"`

	Momentum1M float64 `json:"momentum1M"`
	Momentum3M float64 `json:"momentum3M"`
	Momentum6M float64 `json:"momentum6M"`
	Momentum1Y float64 `json:"momentum1Y"`

	RSI                  float64 `json:"rsi"`
	ADRPercent           float64 `json:"adrPercent"`
	DistanceFrom20SMA    float64 `json:"distanceFrom20SMA"`
	DistanceFrom50SMA    float64 `json:"distanceFrom50SMA"`
	DistanceFrom200SMA   float64 `json:"distanceFrom200SMA"`
	DistanceFrom52WkHigh float64 `json:"distanceFrom52WkHigh"`
	DistanceFrom52WkLow  float64 `json:"distanceFrom52WkLow"`

	EMA10  float64 `json:"ema10"`
	EMA20  float64 `json:"ema20"`
	EMA50  float64 `json:"ema50"`
	EMA200 float64 `json:"ema200"`
	SMA20  float64 `json:"sma20"`
	SMA50  float64 `json:"sma50"`
	SMA150 float64 `json:"sma150"`
	SMA200 float64 `json:"sma200"`

	EPS           float64 `json:"eps"`
	EPSGrowth     float64 `json:"epsGrowth"`
	RevenueGrowth float64 `json:"revenueGrowth"`
	PERatio       float64 `json:"peRatio"`
	ForwardPE     float64 `json:"forwardPE"`

	RSRating      int     `json:"rsRating"`
	AnalystRating string  `json:"analystRating"`
	TargetPrice   float64 `json:"targetPrice"`
	NumAnalysts   int     `json:"numAnalysts"`

	Sector   string `json:"sector"`
	Industry string `json:"industry"`

	GapPercent   float64       `json:"gapPercent"`
	IsEP         bool          `json:"isEP"`
	IsQullaSetup bool          `json:"isQullaSetup"`
	SetupScore   float64       `json:"setupScore"`
	SetupDetails *SetupDetails `json:"setupDetails,omitempty"`
	ScanTypes    []string      `json:"scanTypes"`

	ChartData  []Candle `json:"chartData,omitempty"`
	ProxyPlays []string `json:"proxyPlays,omitempty"`

	EnrichmentFields
}

// EnrichmentFields are copied verbatim from the enrichment provider.
type EnrichmentFields struct {
	ShortFloat        *float64 `json:"shortFloat,omitempty"`
	InsiderOwn        *float64 `json:"insiderOwn,omitempty"`
	InstOwn           *float64 `json:"instOwn,omitempty"`
	ShortRatio        *float64 `json:"shortRatio,omitempty"`
	PEG               *float64 `json:"peg,omitempty"`
	PriceToSales      *float64 `json:"priceToSales,omitempty"`
	PriceToBook       *float64 `json:"priceToBook,omitempty"`
	Beta              *float64 `json:"beta,omitempty"`
	ATR               *float64 `json:"atr,omitempty"`
	RelativeVolume    *float64 `json:"relativeVolume,omitempty"`
	ProfitMargin      *float64 `json:"profitMargin,omitempty"`
	OperMargin        *float64 `json:"operMargin,omitempty"`
	GrossMargin       *float64 `json:"grossMargin,omitempty"`
	ReturnOnEquity    *float64 `json:"returnOnEquity,omitempty"`
	ReturnOnAssets    *float64 `json:"returnOnAssets,omitempty"`
	EPSGrowthThisYear *float64 `json:"epsGrowthThisYear,omitempty"`
	EPSGrowthNextYear *float64 `json:"epsGrowthNextYear,omitempty"`
	EPSGrowthNext5Y   *float64 `json:"epsGrowthNext5Y,omitempty"`
	SalesGrowthQoQ    *float64 `json:"salesGrowthQoQ,omitempty"`
	EarningsDate      string   `json:"earningsDate,omitempty"`
}

// HasScanType reports whether the record carries the given tag.
func (r *SymbolRecord) HasScanType(tag string) bool {
	for _, t := range r.ScanTypes {
		if t == tag {
			return true
		}
	}
	return false
}

// NewsItem is one headline for a symbol.
type NewsItem struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Publisher   string    `json:"publisher"`
	PublishedAt time.Time `json:"publishedAt"`
	Type        string    `json:"type"`
}
