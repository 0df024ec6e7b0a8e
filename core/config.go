package core

import (
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host            string
		Address         string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		MaxUploadSize   string // echo BodyLimit format, eg. "10M"
		DisableReqLogs  bool
	}

	DatabaseConfig struct {
		Engine        string // postgres | memory
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		MaxOpenConns  int
		MaxIdleConns  int
	}

	IngestConfig struct {
		Timeout       time.Duration
		BatchSize     int
		MaxConcurrent int64
		// staff roster layout
		RosterAnchor     time.Time // Monday of week 1
		RosterWeekColumn int
		RosterTeamColumn int
	}

	EventsConfig struct {
		RabbitMQURL string
		Exchange    string
	}

	Config struct {
		AppName      string
		Env          string
		Build        string
		Debug        bool
		TestMode     bool
		RollbarToken string
		Server       ServerConfig
		Database     DatabaseConfig
		Ingest       IngestConfig
		Events       EventsConfig
	}
)

// Address returns the "host:port" of the database server.
func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// InMemory tells whether the app runs against the in-memory store.
func (c DatabaseConfig) InMemory() bool {
	return c.Engine == "memory"
}

// NewConfig loads the app configuration from defaults, config/.env.<env> and the environment.
// Environment variables are prefixed with the upper-cased env, eg. DEV_DATABASE_HOST.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "Campusgrid")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 2*time.Minute)
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("server.maxUploadSize", "20M")
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "campusgrid")
	v.SetDefault("database.user", "campusgrid")
	v.SetDefault("database.password", "campusgrid")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.maxOpenConns", 10)
	v.SetDefault("database.maxIdleConns", 5)

	v.SetDefault("ingest.timeout", 2*time.Minute)
	v.SetDefault("ingest.batchSize", 500)
	v.SetDefault("ingest.maxConcurrent", 4)
	v.SetDefault("ingest.rosterAnchor", "2025-01-06")
	v.SetDefault("ingest.rosterWeekColumn", 0)
	v.SetDefault("ingest.rosterTeamColumn", 1)

	v.SetDefault("events.rabbitmqURL", "")
	v.SetDefault("events.exchange", "campusgrid.ingestion")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
		v.SetDefault("database.name", "campusgrid_test")
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	anchor, err := time.Parse("2006-01-02", v.GetString("ingest.rosterAnchor"))
	if err != nil {
		log.Fatalf("config: invalid ingest.rosterAnchor %q: %v", v.GetString("ingest.rosterAnchor"), err)
	}

	return &Config{
		AppName:      v.GetString("appName"),
		Env:          env,
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		RollbarToken: v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Address:         v.GetString("server.address"),
			DebugHost:       v.GetString("server.debugHost"),
			ReadTimeout:     v.GetDuration("server.readTimeout"),
			WriteTimeout:    v.GetDuration("server.writeTimeout"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			MaxUploadSize:   v.GetString("server.maxUploadSize"),
			DisableReqLogs:  v.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			MaxOpenConns:  v.GetInt("database.maxOpenConns"),
			MaxIdleConns:  v.GetInt("database.maxIdleConns"),
		},
		Ingest: IngestConfig{
			Timeout:          v.GetDuration("ingest.timeout"),
			BatchSize:        v.GetInt("ingest.batchSize"),
			MaxConcurrent:    v.GetInt64("ingest.maxConcurrent"),
			RosterAnchor:     anchor,
			RosterWeekColumn: v.GetInt("ingest.rosterWeekColumn"),
			RosterTeamColumn: v.GetInt("ingest.rosterTeamColumn"),
		},
		Events: EventsConfig{
			RabbitMQURL: v.GetString("events.rabbitmqURL"),
			Exchange:    v.GetString("events.exchange"),
		},
	}
}
