package universe

// DefaultSymbols is the last-resort universe of liquid US names.
var DefaultSymbols = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "META", "TSLA", "BRK-B", "UNH", "JNJ",
	"V", "XOM", "JPM", "WMT", "MA", "PG", "HD", "CVX", "MRK", "ABBV",
	"LLY", "PEP", "KO", "COST", "AVGO", "TMO", "MCD", "CSCO", "ACN", "ABT",
	"CRM", "AMD", "ORCL", "ADBE", "NFLX", "QCOM", "TXN", "INTC", "IBM", "NOW",
	"INTU", "AMAT", "ADI", "LRCX", "MU", "KLAC", "SNPS", "CDNS", "MRVL", "FTNT",
	"PANW", "CRWD", "ZS", "DDOG", "NET", "SNOW", "MDB", "TEAM", "SHOP", "PYPL",
	"UBER", "ABNB", "DASH", "COIN", "PLTR", "RBLX", "HUBS", "TTD", "APP", "SMCI",
	"ARM", "MSTR", "DELL", "TSM", "ASML", "ON", "MPWR", "NXPI", "BAC", "WFC",
	"GS", "MS", "BLK", "SCHW", "AXP", "HOOD", "SOFI", "AFRM", "PFE", "AMGN",
	"VRTX", "REGN", "ISRG", "DXCM", "NKE", "SBUX", "CMG", "LULU", "DECK", "CELH",
	"CAT", "DE", "BA", "GE", "LMT", "AXON", "ETN", "COP", "EOG", "FANG",
	"LIN", "FCX", "NUE", "MELI", "SPOT", "DKNG", "RCL", "ANF", "ELF", "VKTX",
}
