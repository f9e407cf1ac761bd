package utils

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	UrlPrefix string
	WorkDir   string
	StartTime int

	OrientUrl      string
	OrientDatabase string
	OrientUser     string
	OrientPassword string
	OrientTimeout  time.Duration

	GridBatchSize      int
	GridMaxConcurrency int
	FilterPresence     string

	I18nDir         string
	DefaultLanguage string

	Notifier     string
	NotifierArgs []string

	AuthenticationType string
	AuthServiceUrl     string
	CacheType          string
	RedisUrl           string

	JournalDbUrl string

	SentryDsn               string
	LogLevel                string
	EnableProfiler          bool
	DisableSafePanicHandler bool
}

func workingDirectory() string {
	if dir := os.Getenv("WORK_DIR"); len(dir) > 0 {
		return dir
	}
	dir, _ := os.Getwd()
	return dir
}

func GetConfig() *AppConfig {
	workDir := workingDirectory()
	godotenv.Load(filepath.Join(workDir, ".env"))

	var appConfig = AppConfig{
		UrlPrefix:          "/console",
		WorkDir:            workDir,
		StartTime:          int(time.Now().Unix()),
		OrientUrl:          "http://localhost:2480",
		OrientDatabase:     "smsc",
		OrientUser:         "admin",
		OrientPassword:     "admin",
		OrientTimeout:      30 * time.Second,
		GridBatchSize:      50,
		GridMaxConcurrency: 8,
		FilterPresence:     "present",
		I18nDir:            filepath.Join(workDir, "assets", "i18n"),
		DefaultLanguage:    "en",
		Notifier:           "LOG",
		AuthenticationType: "EMPTY",
		LogLevel:           "info",
	}

	if urlPrefix := os.Getenv("URL_PREFIX"); len(urlPrefix) > 0 {
		appConfig.UrlPrefix = urlPrefix
	}

	setString(&appConfig.OrientUrl, "ORIENTDB_URL")
	setString(&appConfig.OrientDatabase, "ORIENTDB_DATABASE")
	setString(&appConfig.OrientUser, "ORIENTDB_USER")
	setString(&appConfig.OrientPassword, "ORIENTDB_PASSWORD")
	if seconds := getInt("ORIENTDB_TIMEOUT"); seconds > 0 {
		appConfig.OrientTimeout = time.Duration(seconds) * time.Second
	}

	if size := getInt("GRID_BATCH_SIZE"); size > 0 {
		appConfig.GridBatchSize = size
	}
	if limit := getInt("GRID_MAX_CONCURRENCY"); limit > 0 {
		appConfig.GridMaxConcurrency = limit
	}
	setString(&appConfig.FilterPresence, "FILTER_PRESENCE")

	setString(&appConfig.I18nDir, "I18N_DIR")
	setString(&appConfig.DefaultLanguage, "DEFAULT_LANGUAGE")

	setString(&appConfig.Notifier, "NOTIFIER")
	if args := os.Getenv("NOTIFIER_ARGS"); len(args) > 0 {
		appConfig.NotifierArgs = strings.Split(args, ",")
	}

	setString(&appConfig.AuthenticationType, "AUTHENTICATION_TYPE")
	setString(&appConfig.AuthServiceUrl, "AUTH_SERVICE_URL")
	setString(&appConfig.CacheType, "CACHE_TYPE")
	setString(&appConfig.RedisUrl, "REDIS_URL")

	setString(&appConfig.JournalDbUrl, "JOURNAL_DB_URL")

	setString(&appConfig.SentryDsn, "SENTRY_DSN")
	setString(&appConfig.LogLevel, "LOG_LEVEL")
	appConfig.EnableProfiler = len(os.Getenv("ENABLE_PROFILER")) > 0
	appConfig.DisableSafePanicHandler = len(os.Getenv("DISABLE_SAFE_PANIC_HANDLER")) > 0

	return &appConfig
}

func setString(target *string, name string) {
	if value := os.Getenv(name); len(value) > 0 {
		*target = value
	}
}

func getInt(name string) int {
	if value, err := strconv.Atoi(os.Getenv(name)); err == nil {
		return value
	}
	return 0
}
