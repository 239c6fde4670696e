package model

// Built-in report format names
const (
	FormatIVT         = "ivt"
	FormatIVTActivity = "ivt-activity"
)

// Report column labels used by the built-in formats
const (
	ColumnPublisherID        = "Publisher ID"
	ColumnImpressions        = "Impressions"
	ColumnCost               = "Cost (USD)"
	ColumnInvalidImpressions = "Invalid Impressions"
	ColumnInvalidCost        = "Invalid Impression Cost (USD)"
)

// Summary table labels
const (
	TotalLabel             = "total"
	SummarySSPName         = "SSP Name"
	SummaryInvalidImps     = "Total Invalid Impressions"
	SummaryInvalidImpsCost = "Total Invalid Impression Cost (USD)"
)
