package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/starfall-project/authcore/internal/flagx"
	"github.com/starfall-project/authcore/internal/timex"
)

// JsonConfig is the intermediate DTO for JSON configuration files. Interval
// fields use timex.Duration so both "15m" strings and integer nanoseconds
// parse. Absent fields leave the corresponding Config value untouched.
type JsonConfig struct {
	Addr            string         `json:"addr"`
	StoreBackend    string         `json:"store_backend"`
	UsersFile       string         `json:"users_file"`
	DatabaseDSN     string         `json:"database_dsn"`
	SecretKey       string         `json:"secret_key"`
	AdminToken      string         `json:"admin_token"`
	TokenTTL        timex.Duration `json:"token_ttl"`
	RateLimitWindow timex.Duration `json:"rate_limit_window"`
	RateLimitMax    int            `json:"rate_limit_max"`
	MaxUsers        int            `json:"max_users"`
	FlushInterval   timex.Duration `json:"flush_interval"`
	ProxyTimeout    timex.Duration `json:"proxy_timeout"`
	RequestRate     float64        `json:"request_rate"`
	RequestBurst    int            `json:"request_burst"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flag into the provided Config. No flag, no file loaded. An
// unreadable or invalid file panics: starting with half a config is worse
// than not starting.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.Addr != "" {
		config.Addr = c.Addr
	}
	if c.StoreBackend != "" {
		config.StoreBackend = c.StoreBackend
	}
	if c.UsersFile != "" {
		config.UsersFile = c.UsersFile
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.AdminToken != "" {
		config.AdminToken = c.AdminToken
	}
	if c.TokenTTL.Duration != 0 {
		config.TokenTTL = time.Duration(c.TokenTTL.Duration)
	}
	if c.RateLimitWindow.Duration != 0 {
		config.RateLimitWindow = time.Duration(c.RateLimitWindow.Duration)
	}
	if c.RateLimitMax != 0 {
		config.RateLimitMax = c.RateLimitMax
	}
	if c.MaxUsers != 0 {
		config.MaxUsers = c.MaxUsers
	}
	if c.FlushInterval.Duration != 0 {
		config.FlushInterval = time.Duration(c.FlushInterval.Duration)
	}
	if c.ProxyTimeout.Duration != 0 {
		config.ProxyTimeout = time.Duration(c.ProxyTimeout.Duration)
	}
	if c.RequestRate != 0 {
		config.RequestRate = c.RequestRate
	}
	if c.RequestBurst != 0 {
		config.RequestBurst = c.RequestBurst
	}
}
