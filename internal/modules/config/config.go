package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
	apiKeyENV         = "EXCHANGE_API_KEY"
	apiSecretENV      = "EXCHANGE_API_SECRET"
)

// Config ...
type Config struct {
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	DB      string `yaml:"db_dsn"`
	Service struct {
		Host      string `yaml:"host"`
		AdminPort int    `yaml:"admin_port"`
	} `yaml:"service"`
	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`

	Exchange struct {
		// bybit | binance
		Name      string `yaml:"name"`
		APIKey    string `yaml:"api_key"`
		APISecret string `yaml:"api_secret"`
	} `yaml:"exchange"`

	Ticker struct {
		Symbol   string  `yaml:"symbol"`
		Qty      float64 `yaml:"qty"`
		Leverage int     `yaml:"leverage"`
	} `yaml:"ticker"`

	Strategy struct {
		// sma | emarsi | martingale
		Name string `yaml:"name"`
		// Доля базового объёма на доливку; 0 — дефолт варианта
		ScaleInFraction float64 `yaml:"scale_in_fraction"`
		// Пауза между первым и вторым тейком
		TakeProfitDelay time.Duration `yaml:"take_profit_delay"`
		QtyDecimals     int           `yaml:"qty_decimals"`
	} `yaml:"strategy"`

	Scanner struct {
		Enabled      bool     `yaml:"enabled"`
		Symbols      []string `yaml:"symbols"`
		MaxPositions int      `yaml:"max_positions"`
		Leverage     int      `yaml:"leverage"`
		// Маржа одной заявки в USDT
		Margin float64 `yaml:"margin"`
	} `yaml:"scanner"`
}

func NewConfig() (*Config, error) {

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		log.Fatalf("Failed to open config file: %v", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := Config{}
	config.Exchange.Name = getenvDefault("EXCHANGE", "bybit")
	config.Ticker.Symbol = getenvDefault("SYMBOL", "BTCUSDT")
	config.Ticker.Qty = floatFromEnv("ORDER_QTY", 0.007)
	config.Ticker.Leverage = intFromEnv("LEVERAGE", 10)
	config.Strategy.Name = getenvDefault("STRATEGY", "sma")
	config.Strategy.TakeProfitDelay = durationFromEnv("TAKE_PROFIT_DELAY", "2s")
	config.Strategy.QtyDecimals = intFromEnv("QTY_DECIMALS", 4)
	config.Scanner.Enabled = boolFromEnv("SCANNER_ENABLED", false)
	config.Scanner.MaxPositions = intFromEnv("SCANNER_MAX_POSITIONS", 5)
	config.Scanner.Leverage = intFromEnv("SCANNER_LEVERAGE", 10)
	config.Scanner.Margin = floatFromEnv("SCANNER_MARGIN", 10)

	err = decoder.Decode(&config)
	if err != nil {
		log.Fatalf("Failed to decode config file: %v", err)
	}

	token := os.Getenv(tokenTelegramENV)
	if token != "" {
		config.Telegram.Token = token
	}

	dsn := os.Getenv(databaseDSN)
	if dsn != "" {
		config.DB = dsn
	}

	if key := os.Getenv(apiKeyENV); key != "" {
		config.Exchange.APIKey = key
	}
	if secret := os.Getenv(apiSecretENV); secret != "" {
		config.Exchange.APISecret = secret
	}

	return &config, nil
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func boolFromEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if v == "1" || v == "true" || v == "TRUE" {
			return true
		}
		if v == "0" || v == "false" || v == "FALSE" {
			return false
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
