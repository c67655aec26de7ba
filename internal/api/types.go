package api

import (
	"encoding/json"

	"charteye/pkg/charteye"
)

type portfolioPayload struct {
	Holdings []charteye.Holding `json:"holdings"`
}

type riskPayload struct {
	TradeSetup json.RawMessage `json:"tradeSetup"`
}

type economicNewsPayload struct {
	NewsItems []json.RawMessage `json:"newsItems"`
}

type journalPayload struct {
	Entries []charteye.JournalEntry `json:"entries"`
}

type indicatorPayload struct {
	Name        string `json:"name"`
	Language    string `json:"language"`
	Description string `json:"description"`
	IsPublic    bool   `json:"isPublic"`
}

type messagePayload struct {
	Message string `json:"message"`
}

type newsChatPayload struct {
	Message  string              `json:"message"`
	Currency string              `json:"currency"`
	History  []charteye.ChatTurn `json:"history"`
}

type paymentPayload struct {
	Token   string `json:"token"`
	OrderID string `json:"orderId"`
}

type testUpgradePayload struct {
	UserID  string `json:"userId"`
	TestKey string `json:"testKey"`
}

type analysesResponse struct {
	Analyses []charteye.ChartAnalysis `json:"analyses"`
	Total    int                      `json:"total"`
}

type indicatorsResponse struct {
	Indicators []charteye.IndicatorCode `json:"indicators"`
}

type healthResponse struct {
	Status      string       `json:"status"`
	Timestamp   string       `json:"timestamp"`
	Uptime      float64      `json:"uptime"`
	Environment string       `json:"environment"`
	AIEnabled   bool         `json:"aiEnabled"`
	Database    string       `json:"database"`
	System      *systemStats `json:"system,omitempty"`
}

type systemStats struct {
	MemoryUsedPercent float64 `json:"memoryUsedPercent"`
	MemoryTotalBytes  uint64  `json:"memoryTotalBytes"`
	ProcessRSSBytes   uint64  `json:"processRssBytes,omitempty"`
}
