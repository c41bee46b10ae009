package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/camden-git/sitephotosync/media"
	"github.com/camden-git/sitephotosync/reconcile"
	"github.com/camden-git/sitephotosync/traversal"
)

const (
	DefaultQuarantineDir = "photos_to_delete"
	DefaultInboxDir      = "pics"
	DefaultSortedDir     = "sorted"
	DefaultChatsDir      = "chats"
	DefaultDownloadDir   = "download_from_asite"
)

const (
	defaultSortQueueSize  = 200
	defaultNumSortWorkers = 2
	defaultFormColumn     = 33
	defaultPort           = "8080"
)

type Config struct {
	// archive of per-location folders and its role subfolders
	BaseDirectory string
	Layout        media.Layout

	QuarantineDirectory string
	DownloadDirectory   string

	// intake: messaging channel exports, OCR inbox and sort output
	ChatsDirectory  string
	InboxDirectory  string
	SortedDirectory string

	DatabasePath string

	// lookup tables
	PlotTablePath   string
	WindowTablePath string

	// business constants
	PhotoCapacity      int
	DuplicateThreshold int
	ExactDigestSize    int

	// traversal
	StartRow           int
	MaxRowReadFailures int

	// remote site and browser
	SiteURL           string
	SiteLogin         string
	SitePassword      string
	BrowserBin        string
	BrowserHeadless   bool
	BrowserControlURL string
	NavigationTimeout time.Duration
	ElementTimeout    time.Duration
	UploadTimeout     time.Duration
	FormColumn        int

	// sftp pull of chat exports
	SFTPHost            string
	SFTPUser            string
	SFTPPassword        string
	SFTPKeyPath         string
	SFTPKnownHosts      string
	SFTPInsecureHostKey bool
	SFTPRemoteDirectory string
	SyncInterval        time.Duration

	// status api
	Port               string
	CORSAllowedOrigins []string

	// worker settings
	SortQueueSize  int
	NumSortWorkers int

	TesseractBin string
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(log *zap.Logger, envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Warn("invalid integer setting, using default",
			zap.String("key", envVar), zap.String("value", valStr), zap.Int("default", defaultVal))
		return defaultVal
	}
	return val
}

// getEnvNonNegativeIntOrDefault is getEnvIntOrDefault that also accepts 0.
func getEnvNonNegativeIntOrDefault(log *zap.Logger, envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val < 0 {
		log.Warn("invalid integer setting, using default",
			zap.String("key", envVar), zap.String("value", valStr), zap.Int("default", defaultVal))
		return defaultVal
	}
	return val
}

func getEnvDurationOrDefault(log *zap.Logger, envVar string, defaultVal time.Duration) time.Duration {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := time.ParseDuration(valStr)
	if err != nil || val <= 0 {
		log.Warn("invalid duration setting, using default",
			zap.String("key", envVar), zap.String("value", valStr), zap.Duration("default", defaultVal))
		return defaultVal
	}
	return val
}

func getEnvBoolOrDefault(log *zap.Logger, envVar string, defaultVal bool) bool {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Warn("invalid boolean setting, using default",
			zap.String("key", envVar), zap.String("value", valStr), zap.Bool("default", defaultVal))
		return defaultVal
	}
	return val
}

func absPath(name, path string) (string, error) {
	if path == "" {
		return "", nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for %s '%s': %w", name, path, err)
	}
	return abs, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadConfig reads the configuration from the environment. Invalid numeric
// values fall back to their defaults with a warning.
func LoadConfig(log *zap.Logger) (Config, error) {
	if log == nil {
		log = zap.NewNop()
	}

	cfg := Config{
		Layout: media.Layout{
			NewPhotos:  getEnvOrDefault("NEW_PHOTOS_SUBDIR", media.DefaultNewPhotosSubDir),
			OnRemote:   getEnvOrDefault("ON_REMOTE_SUBDIR", media.DefaultOnRemoteSubDir),
			Duplicated: getEnvOrDefault("DUPLICATED_SUBDIR", media.DefaultDuplicatedSubDir),
			Deferred:   getEnvOrDefault("DEFERRED_SUBDIR", media.DefaultDeferredSubDir),
		},
		DatabasePath:    getEnvOrDefault("DATABASE_PATH", "photos.db"),
		PlotTablePath:   getEnvOrDefault("PLOT_TABLE_PATH", "plot_mapping.json"),
		WindowTablePath: getEnvOrDefault("WINDOW_TABLE_PATH", "window_mapping.json"),

		PhotoCapacity:      getEnvIntOrDefault(log, "PHOTO_CAPACITY", reconcile.DefaultCapacity),
		DuplicateThreshold: getEnvNonNegativeIntOrDefault(log, "DUPLICATE_THRESHOLD", media.DefaultDuplicateThreshold),
		ExactDigestSize:    getEnvNonNegativeIntOrDefault(log, "EXACT_DIGEST_SIZE", 0),
		StartRow:           getEnvIntOrDefault(log, "START_ROW", traversal.DefaultStartRow),
		MaxRowReadFailures: getEnvIntOrDefault(log, "MAX_ROW_READ_FAILURES", traversal.DefaultMaxReadFailures),

		SiteURL:           getEnvOrDefault("SITE_URL", "https://adoddleak.asite.com"),
		SiteLogin:         os.Getenv("SITE_LOGIN"),
		SitePassword:      os.Getenv("SITE_PASSWORD"),
		BrowserBin:        os.Getenv("BROWSER_BIN"),
		BrowserHeadless:   getEnvBoolOrDefault(log, "BROWSER_HEADLESS", false),
		BrowserControlURL: os.Getenv("BROWSER_CONTROL_URL"),
		NavigationTimeout: getEnvDurationOrDefault(log, "NAVIGATION_TIMEOUT", 20*time.Second),
		ElementTimeout:    getEnvDurationOrDefault(log, "ELEMENT_TIMEOUT", 10*time.Second),
		UploadTimeout:     getEnvDurationOrDefault(log, "UPLOAD_TIMEOUT", 2*time.Minute),
		FormColumn:        getEnvIntOrDefault(log, "FORM_COLUMN", defaultFormColumn),

		SFTPHost:            os.Getenv("SFTP_HOST"),
		SFTPUser:            os.Getenv("SFTP_USER"),
		SFTPPassword:        os.Getenv("SFTP_PASSWORD"),
		SFTPKeyPath:         os.Getenv("SFTP_KEY_PATH"),
		SFTPKnownHosts:      os.Getenv("SFTP_KNOWN_HOSTS"),
		SFTPInsecureHostKey: getEnvBoolOrDefault(log, "SFTP_INSECURE_HOST_KEY", false),
		SFTPRemoteDirectory: getEnvOrDefault("SFTP_REMOTE_DIRECTORY", "."),
		SyncInterval:        getEnvDurationOrDefault(log, "SYNC_INTERVAL", 5*time.Minute),

		Port:               getEnvOrDefault("PORT", defaultPort),
		CORSAllowedOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		SortQueueSize:  getEnvIntOrDefault(log, "SORT_QUEUE_SIZE", defaultSortQueueSize),
		NumSortWorkers: getEnvIntOrDefault(log, "NUM_SORT_WORKERS", defaultNumSortWorkers),

		TesseractBin: getEnvOrDefault("TESSERACT_BIN", "tesseract"),
	}

	var err error
	if cfg.BaseDirectory, err = absPath("base directory", getEnvOrDefault("BASE_DIRECTORY", "SideRise")); err != nil {
		return Config{}, err
	}
	dirs := []struct {
		name   string
		key    string
		def    string
		target *string
	}{
		{"quarantine directory", "QUARANTINE_DIRECTORY", DefaultQuarantineDir, &cfg.QuarantineDirectory},
		{"download directory", "DOWNLOAD_DIRECTORY", DefaultDownloadDir, &cfg.DownloadDirectory},
		{"chats directory", "CHATS_DIRECTORY", DefaultChatsDir, &cfg.ChatsDirectory},
		{"inbox directory", "INBOX_DIRECTORY", DefaultInboxDir, &cfg.InboxDirectory},
		{"sorted directory", "SORTED_DIRECTORY", DefaultSortedDir, &cfg.SortedDirectory},
	}
	for _, d := range dirs {
		if *d.target, err = absPath(d.name, getEnvOrDefault(d.key, d.def)); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

// SFTPEnabled reports whether enough settings are present to sync chats.
func (c Config) SFTPEnabled() bool {
	return c.SFTPHost != "" && c.SFTPUser != "" && (c.SFTPPassword != "" || c.SFTPKeyPath != "")
}
