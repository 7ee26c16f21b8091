package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName          string
		Build            string
		Env              string // DEV (local; default), TEST, QA, PROD
		Debug            bool
		TestMode         bool
		SecretKey        string
		FrontendBaseURL  string
		RollbarToken     string
		SendgridApiKey   string
		defaultFromEmail string

		Server  ServerConfig
		Session SessionConfig
		Mongo   MongoConfig
		Redis   RedisConfig
	}

	ServerConfig struct {
		Host            string
		Addr            string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		DisableReqLogs  bool
		// LoginRateLimit is the number of auth requests per second allowed per client IP. 0 disables limiting.
		LoginRateLimit float64
		LoginRateBurst int
		// TrustedProxies lists the IPs or CIDRs allowed to set X-Forwarded-For. Empty means the peer address is the client IP.
		TrustedProxies []string
	}

	SessionConfig struct {
		CookieName     string
		KeyPrefix      string
		LoginTTL       time.Duration
		OTPTTL         time.Duration
		MaxOTPAttempts int
	}

	MongoConfig struct {
		URI      string
		Database string
		Timeout  time.Duration
	}

	RedisConfig struct {
		Addr     string
		Password string
		DB       int
	}
)

func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Shule")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("defaultFromEmail", "Shule <noreply@localhost>")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("server.disableReqLogs", false)
	v.SetDefault("server.loginRateLimit", 5.0)
	v.SetDefault("server.loginRateBurst", 10)
	v.SetDefault("server.trustedProxies", []string{})

	v.SetDefault("session.cookieName", "sessionId")
	v.SetDefault("session.keyPrefix", "session")
	v.SetDefault("session.loginTTL", 24*time.Hour)
	v.SetDefault("session.otpTTL", 5*time.Minute)
	v.SetDefault("session.maxOTPAttempts", 5)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "shule")
	v.SetDefault("mongo.timeout", 10*time.Second)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
		v.SetDefault("debug", false)
	case "PROD":
		v.SetDefault("debug", false)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:          v.GetString("appName"),
		Build:            v.GetString("build"),
		Env:              env,
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Addr:            v.GetString("server.addr"),
			DebugHost:       v.GetString("server.debugHost"),
			ReadTimeout:     v.GetDuration("server.readTimeout"),
			WriteTimeout:    v.GetDuration("server.writeTimeout"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			DisableReqLogs:  v.GetBool("server.disableReqLogs"),
			LoginRateLimit:  v.GetFloat64("server.loginRateLimit"),
			LoginRateBurst:  v.GetInt("server.loginRateBurst"),
			TrustedProxies:  splitList(v.GetStringSlice("server.trustedProxies")),
		},
		Session: SessionConfig{
			CookieName:     v.GetString("session.cookieName"),
			KeyPrefix:      v.GetString("session.keyPrefix"),
			LoginTTL:       v.GetDuration("session.loginTTL"),
			OTPTTL:         v.GetDuration("session.otpTTL"),
			MaxOTPAttempts: v.GetInt("session.maxOTPAttempts"),
		},
		Mongo: MongoConfig{
			URI:      v.GetString("mongo.uri"),
			Database: v.GetString("mongo.database"),
			Timeout:  v.GetDuration("mongo.timeout"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
	}
}

// splitList flattens comma separated entries.
func splitList(entries []string) []string {
	list := make([]string, 0, len(entries))
	for _, entry := range entries {
		for _, item := range strings.Split(entry, ",") {
			if item = strings.TrimSpace(item); item != "" {
				list = append(list, item)
			}
		}
	}
	return list
}

// DefaultFromEmail parses the configured sender address, falling back to the bare value.
func (c *Config) DefaultFromEmail() mail.Address {
	if addr, err := mail.ParseAddress(c.defaultFromEmail); err == nil {
		return *addr
	}
	return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
}

// SetDefaultFromEmail overrides the sender address (tests & CLI).
func (c *Config) SetDefaultFromEmail(addr string) {
	c.defaultFromEmail = addr
}
