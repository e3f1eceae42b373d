package config

import (
	"flag"
	"os"
	"time"

	"github.com/starfall-project/authcore/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-b string   store backend: file, memory, postgres
//	-f string   user database file (file backend)
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-k string   admin bearer token for account provisioning
//	-t int      session token validity, minutes
//	-w int      failed-login window, minutes
//	-n int      failed-login budget per identity
//	-u int      store capacity cap
//	-i int      flush/sweep interval, seconds
//	-p int      external auth server timeout, seconds
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. Duration
// flags are accepted as integers and converted to time.Duration values.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-b", "-f", "-d", "-s", "-k", "-t", "-w", "-n", "-u", "-i", "-p"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.Addr, "a", config.Addr, "address and port to run server")
	fs.StringVar(&config.StoreBackend, "b", config.StoreBackend, "store backend (file, memory, postgres)")
	fs.StringVar(&config.UsersFile, "f", config.UsersFile, "user database file")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.AdminToken, "k", config.AdminToken, "admin bearer token")

	tokenTTL := fs.Int("t", int(config.TokenTTL.Minutes()), "token_ttl (in minutes)")
	rateLimitWindow := fs.Int("w", int(config.RateLimitWindow.Minutes()), "rate_limit_window (in minutes)")
	fs.IntVar(&config.RateLimitMax, "n", config.RateLimitMax, "rate_limit_max")
	fs.IntVar(&config.MaxUsers, "u", config.MaxUsers, "max_users")
	flushInterval := fs.Int("i", int(config.FlushInterval.Seconds()), "flush_interval (in seconds)")
	proxyTimeout := fs.Int("p", int(config.ProxyTimeout.Seconds()), "proxy_timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.TokenTTL = time.Duration(*tokenTTL) * time.Minute
	config.RateLimitWindow = time.Duration(*rateLimitWindow) * time.Minute
	config.FlushInterval = time.Duration(*flushInterval) * time.Second
	config.ProxyTimeout = time.Duration(*proxyTimeout) * time.Second
}
