package config

import "time"

// Application constants
const (
	// Application Info
	AppName    = "Finclusion"
	AppVersion = "1.0.0"

	// Workbook sheet names of the unified dataset file
	UnifiedDataSheet    = "ethiopia_fi_unified_data"
	ImpactLinksSheet    = "Impact_sheet"
	ReferenceCodesSheet = "reference_codes"

	// Output artifact file names
	EnrichedDataFile  = "ethiopia_fi_enriched_data.csv"
	ImpactMatrixFile  = "ethiopia_fi_impact_matrix.csv"
	ForecastFile      = "ethiopia_fi_forecast.csv"
	EnrichmentLogFile = "data_enrichment_log.md"

	// Key indicator codes surfaced on the dashboard overview
	IndicatorAccountOverall = "ACC_OWNERSHIP"
	IndicatorDigitalPayment = "USG_DIGITAL_PAY"
	IndicatorMobileMoney    = "USG_MM_USERS"

	// Network timeouts
	DefaultHTTPTimeout = 30 * time.Second
	SheetsFetchTimeout = 45 * time.Second

	// WebSocket keepalive
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second

	// Date layouts accepted in the unified dataset
	DateLayoutISO  = "2006-01-02"
	DateLayoutYear = "2006"
)
