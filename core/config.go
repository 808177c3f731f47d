package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host            string
		Port            int
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Enabled       bool
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	// APIConfig describes the remote school transportation REST API.
	APIConfig struct {
		BaseURL   string
		Key       string
		KeyHeader string
		LoginPath string
		Timeout   time.Duration
	}

	NotificationsConfig struct {
		APIKeyHash string // bcrypt hash of the key accepted by the notification endpoint
	}

	BulkConfig struct {
		Concurrency int
	}

	Config struct {
		Debug           bool
		TestMode        bool
		AppName         string
		Env             string
		Build           string
		WorkDir         string
		SecretKey       string
		FrontendBaseURL string
		RollbarToken    string
		SendgridAPIKey  string

		defaultFromEmail string

		Server        ServerConfig
		Database      DatabaseConfig
		API           APIConfig
		Notifications NotificationsConfig
		Bulk          BulkConfig
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, strconv.Itoa(db.Port))
}

func (srv ServerConfig) Address() string {
	return net.JoinHostPort(srv.Host, strconv.Itoa(srv.Port))
}

// DefaultFromEmail parses the configured sender; an invalid value falls back to the raw address.
func (conf *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(conf.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: conf.defaultFromEmail}
	}
	if addr.Name == "" {
		addr.Name = conf.AppName
	}
	return *addr
}

// NewConfig loads the configuration from defaults, the optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed with the upper-cased env name, e.g. DEV_API_BASEURL.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "SchoolBus")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "k2m$8vq-0!c4b+z1x%wy7u(e3o&n5t#hr6p)a9dj_sl=f")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.debugHost", "localhost:4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 5*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "schoolbus")
	v.SetDefault("database.user", "schoolbus")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("api.baseURL", "http://localhost:5000/api")
	v.SetDefault("api.key", "")
	v.SetDefault("api.keyHeader", "x-api-key")
	v.SetDefault("api.loginPath", "/auth/login")
	v.SetDefault("api.timeout", 30*time.Second)

	v.SetDefault("notifications.apiKeyHash", "")

	v.SetDefault("bulk.concurrency", 5)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd(): %v", err)
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		Env:              env,
		Build:            v.GetString("build"),
		WorkDir:          wd,
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridAPIKey:   v.GetString("sendgridApiKey"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			DebugHost:       v.GetString("server.debugHost"),
			ReadTimeout:     v.GetDuration("server.readTimeout"),
			WriteTimeout:    v.GetDuration("server.writeTimeout"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Enabled:       v.GetBool("database.enabled"),
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		API: APIConfig{
			BaseURL:   strings.TrimRight(v.GetString("api.baseURL"), "/"),
			Key:       v.GetString("api.key"),
			KeyHeader: v.GetString("api.keyHeader"),
			LoginPath: v.GetString("api.loginPath"),
			Timeout:   v.GetDuration("api.timeout"),
		},
		Notifications: NotificationsConfig{
			APIKeyHash: v.GetString("notifications.apiKeyHash"),
		},
		Bulk: BulkConfig{
			Concurrency: v.GetInt("bulk.concurrency"),
		},
	}
}

// NewTestConfig returns a Config suitable for tests: test mode, no database, no remote services.
func NewTestConfig() *Config {
	return &Config{
		Debug:            false,
		TestMode:         true,
		AppName:          "SchoolBus",
		Env:              "TEST",
		Build:            "test",
		SecretKey:        "secret",
		FrontendBaseURL:  "http://localhost:3000",
		defaultFromEmail: "noreply@test.cd",
		Server: ServerConfig{
			ShutdownTimeout: time.Second,
		},
		API: APIConfig{
			KeyHeader: "x-api-key",
			LoginPath: "/auth/login",
			Timeout:   5 * time.Second,
		},
		Bulk: BulkConfig{Concurrency: 5},
	}
}
