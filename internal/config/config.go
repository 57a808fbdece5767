package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zanphear/planview/internal/logger"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AppPort       string
	DatabaseURL   string
	JWTSecret     string
	TokenTTL      time.Duration
	AllowedOrigin string

	LogLevel string
	LogJSON  bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// write limits per client IP and per user
	RateLimit       int
	RateLimitWindow int

	Workflow Workflow
}

// Workflow holds the settings that can also come from the YAML file named
// by CONFIG_FILE. Environment variables win over the file.
type Workflow struct {
	InitialStatus string   `yaml:"initial_status"`
	DoneStatuses  []string `yaml:"done_statuses"`
	HorizonDays   int      `yaml:"recurrence_horizon_days"`
	WSSendBuffer  int      `yaml:"ws_send_buffer"`
	ReminderTime  string   `yaml:"reminder_time"`
	ReminderZone  string   `yaml:"reminder_timezone"`
}

func defaultWorkflow() Workflow {
	return Workflow{
		InitialStatus: "todo",
		DoneStatuses:  []string{"done"},
		HorizonDays:   365,
		WSSendBuffer:  256,
		ReminderTime:  "08:00",
		ReminderZone:  "UTC",
	}
}

// Загрузка конфига из env
func Load() *Config {
	_ = godotenv.Load()

	cfg, err := FromEnv(os.Getenv)
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	return cfg
}

// FromEnv builds a Config from getenv. A missing DATABASE_URL or JWT_SECRET
// is an error.
func FromEnv(getenv func(string) string) (*Config, error) {
	dbURL := getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}

	jwtSecret := getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}

	port := getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	wf := defaultWorkflow()
	if path := getenv("CONFIG_FILE"); path != "" {
		if err := loadWorkflowFile(path, &wf); err != nil {
			return nil, err
		}
	}
	if v := getenv("INITIAL_STATUS"); v != "" {
		wf.InitialStatus = v
	}
	if v := getenv("DONE_STATUSES"); v != "" {
		wf.DoneStatuses = splitList(v)
	}
	if v := getenv("REMINDER_TIME"); v != "" {
		wf.ReminderTime = v
	}
	if v := getenv("REMINDER_TIMEZONE"); v != "" {
		wf.ReminderZone = v
	}
	wf.HorizonDays = positiveInt(getenv("RECURRENCE_HORIZON_DAYS"), wf.HorizonDays)
	wf.WSSendBuffer = positiveInt(getenv("WS_SEND_BUFFER"), wf.WSSendBuffer)
	if len(wf.DoneStatuses) == 0 {
		return nil, errors.New("at least one done status is required")
	}

	ttlHours := positiveInt(getenv("TOKEN_TTL_HOURS"), 24*7)

	redisDB := 0
	if v := getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("REDIS_DB %q is not a database index", v)
		}
		redisDB = n
	}

	level := getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	return &Config{
		AppPort:         port,
		DatabaseURL:     dbURL,
		JWTSecret:       jwtSecret,
		TokenTTL:        time.Duration(ttlHours) * time.Hour,
		AllowedOrigin:   getenv("ALLOWED_ORIGIN"),
		LogLevel:        level,
		LogJSON:         getenv("LOG_JSON") == "true",
		RedisAddr:       getenv("REDIS_ADDR"),
		RedisPassword:   getenv("REDIS_PASSWORD"),
		RedisDB:         redisDB,
		RateLimit:       positiveInt(getenv("RATE_LIMIT"), 120),
		RateLimitWindow: positiveInt(getenv("RATE_LIMIT_WINDOW"), 60),
		Workflow:        wf,
	}, nil
}

// Location resolves ReminderZone, falling back to UTC.
func (w Workflow) Location() *time.Location {
	loc, err := time.LoadLocation(w.ReminderZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func loadWorkflowFile(path string, wf *Workflow) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("config file not found, using defaults", "path", path)
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	var file struct {
		Workflow Workflow `yaml:"workflow"`
	}
	file.Workflow = *wf
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	*wf = file.Workflow
	return nil
}

func positiveInt(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
