package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreSheets = "sheets"
)

// Update transport modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Entry modes.
const (
	EntryMenu      = "menu"
	EntryAutoStart = "autostart"
)

// Config holds the bot's runtime configuration, read from environment
// variables (optionally seeded from a .env file).
type Config struct {
	TelegramAPIBase string
	BotToken        string
	AdminPassword   string

	Mode      string
	EntryMode string

	Store  string
	DBPath string

	SpreadsheetID   string
	SheetName       string
	CredentialsFile string

	PublicBaseURL string
	Port          int

	LinkMarker string

	PollTimeout  int
	SleepSeconds int
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return Config{}, fmt.Errorf("TELEGRAM_BOT_TOKEN is required in environment")
	}
	password := os.Getenv("REELBOT_ADMIN_PASSWORD")
	if password == "" {
		return Config{}, fmt.Errorf("REELBOT_ADMIN_PASSWORD is required in environment")
	}

	cfg := Config{
		TelegramAPIBase: fmt.Sprintf("https://api.telegram.org/bot%s", token),
		BotToken:        token,
		AdminPassword:   password,
		Mode:            envOrDefault("REELBOT_MODE", ModePolling),
		EntryMode:       envOrDefault("REELBOT_ENTRY_MODE", EntryMenu),
		Store:           envOrDefault("REELBOT_STORE", StoreSQLite),
		DBPath:          envOrDefault("REELBOT_DB_PATH", "/state/reelbot.db"),
		SpreadsheetID:   os.Getenv("GOOGLE_SHEET_ID"),
		SheetName:       envOrDefault("REELBOT_SHEET_NAME", "Videos"),
		CredentialsFile: os.Getenv("GOOGLE_CREDENTIALS_FILE"),
		PublicBaseURL:   strings.TrimRight(os.Getenv("REELBOT_PUBLIC_URL"), "/"),
		Port:            envIntOrDefault("REELBOT_PORT", 8080),
		LinkMarker:      envOrDefault("REELBOT_LINK_MARKER", "instagram.com"),
		PollTimeout:     envIntOrDefault("TG_TIMEOUT", 30),
		SleepSeconds:    envIntOrDefault("TG_SLEEP_SECONDS", 1),
	}

	switch cfg.Mode {
	case ModePolling, ModeWebhook:
	default:
		return Config{}, fmt.Errorf("REELBOT_MODE must be %q or %q, got %q", ModePolling, ModeWebhook, cfg.Mode)
	}
	switch cfg.EntryMode {
	case EntryMenu, EntryAutoStart:
	default:
		return Config{}, fmt.Errorf("REELBOT_ENTRY_MODE must be %q or %q, got %q", EntryMenu, EntryAutoStart, cfg.EntryMode)
	}
	switch cfg.Store {
	case StoreSQLite:
	case StoreSheets:
		if cfg.SpreadsheetID == "" {
			return Config{}, fmt.Errorf("GOOGLE_SHEET_ID is required in environment when REELBOT_STORE=%s", StoreSheets)
		}
		if cfg.CredentialsFile == "" {
			return Config{}, fmt.Errorf("GOOGLE_CREDENTIALS_FILE is required in environment when REELBOT_STORE=%s", StoreSheets)
		}
	default:
		return Config{}, fmt.Errorf("REELBOT_STORE must be %q or %q, got %q", StoreSQLite, StoreSheets, cfg.Store)
	}
	if cfg.Mode == ModeWebhook && cfg.PublicBaseURL == "" {
		return Config{}, fmt.Errorf("REELBOT_PUBLIC_URL is required in environment when REELBOT_MODE=%s", ModeWebhook)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
