package config

import (
	"flag"
	"os"
	"strings"

	"github.com/dmitrijs2005/photomagic/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-m string   storage backend: postgres | memory
//	-s string   JWT HMAC secret key
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-v string   vision API endpoint
//	-w int      background workers
//	-q string   dispatch mode: pool | kafka
//	-k string   comma separated Kafka brokers
//	-r string   Redis address for the terminal task cache
//	-l string   log format: json | zap
//
// Vision credentials are deliberately not accepted as flags, so they do not
// show up in process listings; use the JSON file or the environment.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-d", "-m", "-s", "-u", "-p", "-b", "-g", "-e", "-v", "-w", "-q", "-k", "-r", "-l",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.Store, "m", config.Store, "storage backend (postgres|memory)")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.StringVar(&config.VisionEndpoint, "v", config.VisionEndpoint, "vision API endpoint")
	fs.IntVar(&config.Workers, "w", config.Workers, "background workers")
	fs.StringVar(&config.Dispatch, "q", config.Dispatch, "dispatch mode (pool|kafka)")
	brokers := fs.String("k", strings.Join(config.KafkaBrokers, ","), "kafka brokers")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.LogFormat, "l", config.LogFormat, "log format (json|zap)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.KafkaBrokers = flagx.SplitList(*brokers)
}
