package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/bankguard/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   bank database DSN
//	-s string   session database file
//	-m string   surface: user or admin
//	-r string   site root URL
//	-i int      poll interval in seconds
//	-l string   prompt language
//
// Only these flags are taken from os.Args (see flagx.FilterArgs), so other
// stages can own the rest.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-s", "-m", "-r", "-i", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "bank database DSN")
	fs.StringVar(&cfg.SessionDBPath, "s", cfg.SessionDBPath, "session database file")
	fs.StringVar(&cfg.Surface, "m", cfg.Surface, "surface (user or admin)")
	fs.StringVar(&cfg.SiteRoot, "r", cfg.SiteRoot, "site root URL")
	pollInterval := fs.Int("i", int(cfg.PollInterval.Seconds()), "poll interval (in seconds)")
	fs.StringVar(&cfg.Language, "l", cfg.Language, "prompt language")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.PollInterval = time.Duration(*pollInterval) * time.Second
}
