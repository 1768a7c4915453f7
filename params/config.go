package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Server struct {
	Listen      string
	CORSOrigins []string
}

type Storage struct {
	DBPath  string
	LogFile string
}

type Quotes struct {
	// FeedURL selects the remote HTTP quote feed. Empty means the
	// in-process registry seeded from Symbols.
	FeedURL string
	// Timeout bounds every quote feed request; the feed is external and
	// may be slow or unavailable.
	Timeout time.Duration
	// Symbols seeds the in-process registry: "AAPL=189.5,TSLA=240,IPOX"
	// (a bare symbol is listed but unpriced).
	Symbols string
}

type Config struct {
	Server  Server
	Storage Storage
	Quotes  Quotes
}

func Default() Config {
	return Config{
		Server: Server{
			Listen:      ":8080",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Storage: Storage{
			DBPath:  "data/brokerd.db",
			LogFile: "data/brokerd.log",
		},
		Quotes: Quotes{
			Timeout: 3 * time.Second,
			Symbols: "AAPL=189.5,MSFT=404.1,TSLA=240.0",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Server.Listen = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Storage.LogFile = v
	}
	if v := os.Getenv("QUOTE_FEED_URL"); v != "" {
		cfg.Quotes.FeedURL = v
	}
	if v := os.Getenv("QUOTE_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Quotes.Timeout = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		cfg.Quotes.Symbols = v
	}

	return cfg
}
