package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/secledger/internal/flagx"
)

var serverFlags = []string{
	"-a", "-w", "-k", "-f", "-x", "-d", "-s", "-t", "-i", "-q", "-m", "-z", "-l",
	"-r", "-n", "-o", "-u", "-p", "-b", "-g", "-e", "-y",
}

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-w string   HTTP bind address (e.g., ":10000")
//	-k string   storage backend: memory, file, s3, postgres
//	-f string   document path for the file backend
//	-x string   document secret (enables encryption at rest)
//	-d string   PostgreSQL DSN
//	-s string   assertion HMAC secret key
//	-t int      assertion validity, minutes
//	-i string   otpauth issuer
//	-q int      QR code size, pixels
//	-m bool     symmetric buddy pairing (use -m=false to disable)
//	-z bool     reset 2FA on setup (use -z=false to disable)
//	-l int      code verification attempts per minute
//	-r string   Redis address for the shared limiter
//	-n string   AMQP URL for security events
//	-o string   events exchange
//	-u -p -b -g -e -y   S3 user, password, bucket, region, endpoint, document key
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.EndpointAddrHTTP, "w", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.StorageBackend, "k", config.StorageBackend, "storage backend")
	fs.StringVar(&config.DocumentPath, "f", config.DocumentPath, "document path")
	fs.StringVar(&config.DocumentSecret, "x", config.DocumentSecret, "document secret")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	assertionTTL := fs.Int("t", int(config.AssertionTTL.Minutes()), "assertion validity (in minutes)")

	fs.StringVar(&config.Issuer, "i", config.Issuer, "otpauth issuer")
	fs.IntVar(&config.QRCodeSize, "q", config.QRCodeSize, "QR code size")
	fs.BoolVar(&config.SymmetricPairing, "m", config.SymmetricPairing, "symmetric buddy pairing")
	fs.BoolVar(&config.ResetOnSetup, "z", config.ResetOnSetup, "reset 2FA on setup")
	fs.IntVar(&config.VerifyAttemptsPerMinute, "l", config.VerifyAttemptsPerMinute, "verification attempts per minute")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.AMQPURL, "n", config.AMQPURL, "AMQP URL")
	fs.StringVar(&config.EventsExchange, "o", config.EventsExchange, "events exchange")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3DocumentKey, "y", config.S3DocumentKey, "S3 document key")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// -t counts whole minutes, so it only replaces a finer lifetime when given.
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			config.AssertionTTL = time.Duration(*assertionTTL) * time.Minute
		}
	})
}
