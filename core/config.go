package core

import (
	"log"
	"net"
	"net/mail"
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
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		URL      string
		DraftTTL time.Duration
	}

	Config struct {
		Debug                    bool
		TestMode                 bool
		Env                      string
		Build                    string
		AppName                  string
		SecretKey                string
		FrontendBaseURL          string
		DefaultFromEmail         mail.Address
		SessionCookieName        string
		JWTExpirationDelta       time.Duration
		VerificationTimeoutDelta time.Duration
		SubmitTimeout            time.Duration
		RollbarToken             string
		SendgridApiKey           string
		ApplicationsEndpoint     string
		Server                   ServerConfig
		Database                 DatabaseConfig
		Redis                    RedisConfig
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// NewConfig reads the configuration from the environment.
// Env vars are prefixed with the value of ENV (DEV by default): DEV_SECRETKEY, PROD_DATABASE_HOST...
func NewConfig() *Config {
	conf := viper.New()

	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("build", "dev")
	conf.SetDefault("appName", "Jobify")
	conf.SetDefault("secretKey", "u3m!k9#fz2q@x7w$e0r^t5y&i8o*p1a(s4d)f6g+h_j=k-l")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("defaultFromEmail", "Jobify <noreply@localhost>")
	conf.SetDefault("sessionCookieName", "session-token")
	conf.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("verificationTimeoutDelta", 3*24*time.Hour)
	conf.SetDefault("submitTimeout", 15*time.Second)
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("sendgridApiKey", "")
	conf.SetDefault("applicationsEndpoint", "")
	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.address", ":8000")
	conf.SetDefault("server.debugHost", ":4000")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", "5432")
	conf.SetDefault("database.name", "jobify")
	conf.SetDefault("database.user", "jobify")
	conf.SetDefault("database.password", "jobify")
	conf.SetDefault("database.adminUser", "")
	conf.SetDefault("database.adminPassword", "")
	conf.SetDefault("database.disableTLS", true)
	conf.SetDefault("redis.url", "")
	conf.SetDefault("redis.draftTTL", 30*24*time.Hour)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	from, err := mail.ParseAddress(conf.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config.defaultFromEmail: %v", err)
	}

	return &Config{
		Debug:                    conf.GetBool("debug"),
		TestMode:                 conf.GetBool("testMode"),
		Env:                      env,
		Build:                    conf.GetString("build"),
		AppName:                  conf.GetString("appName"),
		SecretKey:                conf.GetString("secretKey"),
		FrontendBaseURL:          conf.GetString("frontendBaseURL"),
		DefaultFromEmail:         *from,
		SessionCookieName:        conf.GetString("sessionCookieName"),
		JWTExpirationDelta:       conf.GetDuration("jwtExpirationDelta"),
		VerificationTimeoutDelta: conf.GetDuration("verificationTimeoutDelta"),
		SubmitTimeout:            conf.GetDuration("submitTimeout"),
		RollbarToken:             conf.GetString("rollbarToken"),
		SendgridApiKey:           conf.GetString("sendgridApiKey"),
		ApplicationsEndpoint:     conf.GetString("applicationsEndpoint"),
		Server: ServerConfig{
			Host:            conf.GetString("server.host"),
			Address:         conf.GetString("server.address"),
			DebugHost:       conf.GetString("server.debugHost"),
			ShutdownTimeout: conf.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("database.engine"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetString("database.port"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
		},
		Redis: RedisConfig{
			URL:      conf.GetString("redis.url"),
			DraftTTL: conf.GetDuration("redis.draftTTL"),
		},
	}
}

// NewTestConfig returns a Config suitable for tests: no env lookups, fixed secret.
func NewTestConfig() *Config {
	return &Config{
		TestMode:                 true,
		Env:                      "TEST",
		Build:                    "test",
		AppName:                  "Jobify",
		SecretKey:                "test-secret",
		FrontendBaseURL:          "http://localhost:3000",
		DefaultFromEmail:         mail.Address{Name: "Jobify", Address: "noreply@localhost"},
		SessionCookieName:        "session-token",
		JWTExpirationDelta:       time.Hour,
		VerificationTimeoutDelta: 3 * 24 * time.Hour,
		SubmitTimeout:            time.Second,
		Server:                   ServerConfig{Host: "localhost", ShutdownTimeout: time.Second},
		Redis:                    RedisConfig{DraftTTL: time.Hour},
	}
}
