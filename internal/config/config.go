package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	OutputDir string
	InboxDir  string

	ReportTimezone       string
	CSVEncoding          string
	CSVDelimiter         string
	FormulaReferencePath string
	ParallelRowThreshold int

	HTTPAddr        string
	HTTPMaxUploadMB int

	RemoteToken        string
	RemoteRateLimitRPS int
	RemoteTimeoutMs    int
	RemoteMaxAttempts  int

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailListenerProvider    string
	MailListenerLabel       string
	MailListenerIntervalSec int
	MailListenerFetchMax    int
	MailListenerReport      string
	MailListenerWorkers     int

	LogLevel  string
	LogFormat string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		InboxDir:  getEnv("INBOX_DIR", filepath.Join(cwd, "data", "inbox")),

		ReportTimezone:       getEnv("REPORT_TIMEZONE", "Local"),
		CSVEncoding:          getEnv("CSV_ENCODING", "utf-8"),
		CSVDelimiter:         getEnv("CSV_DELIMITER", ""),
		FormulaReferencePath: getEnv("FORMULA_REFERENCE_PATH", `C:\Reportes\[Inventario.xlsx]Equipos`),
		ParallelRowThreshold: getEnvInt("PARALLEL_ROW_THRESHOLD", 5000),

		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		HTTPMaxUploadMB: getEnvInt("HTTP_MAX_UPLOAD_MB", 32),

		RemoteToken:        getEnv("REMOTE_TOKEN", ""),
		RemoteRateLimitRPS: getEnvInt("REMOTE_RATE_LIMIT_RPS", 2),
		RemoteTimeoutMs:    getEnvInt("REMOTE_TIMEOUT_MS", 30000),
		RemoteMaxAttempts:  getEnvInt("REMOTE_MAX_ATTEMPTS", 5),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailListenerProvider:    getEnv("MAIL_LISTENER_PROVIDER", "imap"),
		MailListenerLabel:       getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec: getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 300),
		MailListenerFetchMax:    getEnvInt("MAIL_LISTENER_FETCH_MAX", 20),
		MailListenerReport:      getEnv("MAIL_LISTENER_REPORT", "gps"),
		MailListenerWorkers:     getEnvInt("MAIL_LISTENER_WORKERS", 4),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

// Location resolves REPORT_TIMEZONE. Dates in reports are rendered in this zone.
func (c Config) Location() (*time.Location, error) {
	switch strings.TrimSpace(c.ReportTimezone) {
	case "", "Local":
		return time.Local, nil
	default:
		loc, err := time.LoadLocation(c.ReportTimezone)
		if err != nil {
			return nil, fmt.Errorf("invalid REPORT_TIMEZONE %q: %w", c.ReportTimezone, err)
		}
		return loc, nil
	}
}

// Delimiter returns the configured CSV delimiter, or 0 to auto-detect.
func (c Config) Delimiter() rune {
	switch strings.ToLower(strings.TrimSpace(c.CSVDelimiter)) {
	case "":
		return 0
	case "tab", `\t`:
		return '\t'
	default:
		return []rune(c.CSVDelimiter)[0]
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
