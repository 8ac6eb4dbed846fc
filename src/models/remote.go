package models

import "github.com/shopspring/decimal"

// -----------------------------------------------------------------------------
// Broker REST records
// -----------------------------------------------------------------------------

type MAccountBalance struct {
	Balance    decimal.Decimal `json:"balance"`
	Available  decimal.Decimal `json:"available"`
	ProfitLoss decimal.Decimal `json:"profitLoss"`
}

type MAccount struct {
	AccountID   string          `json:"accountId"`
	AccountName string          `json:"accountName"`
	AccountType string          `json:"accountType"`
	Preferred   bool            `json:"preferred"`
	Currency    string          `json:"currency"`
	Balance     MAccountBalance `json:"balance"`
}

// -----------------------------------------------------------------------------

type MPosition struct {
	DealID    string          `json:"dealId"`
	Direction string          `json:"direction"`
	Size      decimal.Decimal `json:"size"`
	Level     decimal.Decimal `json:"level"`
	Currency  string          `json:"currency"`
}

type MMarketSummary struct {
	Epic           string          `json:"epic"`
	InstrumentName string          `json:"instrumentName"`
	InstrumentType string          `json:"instrumentType,omitempty"`
	Bid            decimal.Decimal `json:"bid"`
	Offer          decimal.Decimal `json:"offer"`
	MarketStatus   string          `json:"marketStatus,omitempty"`
}

type MMarketPosition struct {
	Position MPosition      `json:"position"`
	Market   MMarketSummary `json:"market"`
}

// -----------------------------------------------------------------------------

type MMarketInstrument struct {
	Epic     string `json:"epic"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Currency string `json:"currency,omitempty"`
}

type MMarketSnapshot struct {
	Bid          decimal.Decimal `json:"bid"`
	Offer        decimal.Decimal `json:"offer"`
	MarketStatus string          `json:"marketStatus"`
	UpdateTime   string          `json:"updateTime"`
}

type MMarkets struct {
	Instrument MMarketInstrument `json:"instrument"`
	Snapshot   MMarketSnapshot   `json:"snapshot"`
}

// -----------------------------------------------------------------------------

type MNavigationNode struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type MMarketNavigation struct {
	Nodes   []MNavigationNode `json:"nodes"`
	Markets []MMarketSummary  `json:"markets"`
}
