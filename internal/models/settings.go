package models

// Credentials — ключи API биржи, хранятся в БД между рестартами.
type Credentials struct {
	Exchange  string `json:"exchange"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// BotSettings — настройки последней сессии, восстанавливаются при старте.
type BotSettings struct {
	Strategy       string `json:"strategy"`
	Ticker         Ticker `json:"ticker"`
	ScannerEnabled bool   `json:"scanner_enabled"`
}
