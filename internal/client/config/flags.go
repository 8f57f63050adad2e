package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/photomagic/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
// os.Args is filtered with flagx.FilterArgs so the subcommand and its
// arguments are left alone.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-t", "-i", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the API")
	fs.StringVar(&cfg.Token, "t", cfg.Token, "bearer token")
	pollInterval := fs.Int("i", int(cfg.PollInterval.Seconds()), "status polling interval (in seconds)")
	waitTimeout := fs.Int("w", int(cfg.WaitTimeout.Seconds()), "wait timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.PollInterval = time.Duration(*pollInterval) * time.Second
	cfg.WaitTimeout = time.Duration(*waitTimeout) * time.Second
}
