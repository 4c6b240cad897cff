package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/secledger/internal/flagx"
	"github.com/dmitrijs2005/secledger/internal/timex"
)

// JsonConfig is the on-disk shape of the server configuration file. It uses
// timex.Duration so intervals may be written as "5m" or as nanoseconds.
type JsonConfig struct {
	EndpointAddrGRPC        string         `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP        string         `json:"endpoint_addr_http"`
	StorageBackend          string         `json:"storage_backend"`
	DocumentPath            string         `json:"document_path"`
	DocumentSecret          string         `json:"document_secret"`
	DatabaseDSN             string         `json:"database_dsn"`
	SecretKey               string         `json:"secret_key"`
	AssertionTTL            timex.Duration `json:"assertion_ttl"`
	Issuer                  string         `json:"issuer"`
	QRCodeSize              int            `json:"qr_code_size"`
	SymmetricPairing        bool           `json:"symmetric_pairing"`
	ResetOnSetup            bool           `json:"reset_on_setup"`
	VerifyAttemptsPerMinute int            `json:"verify_attempts_per_minute"`
	RedisAddr               string         `json:"redis_addr"`
	AMQPURL                 string         `json:"amqp_url"`
	EventsExchange          string         `json:"events_exchange"`
	S3RootUser              string         `json:"s3_root_user"`
	S3RootPassword          string         `json:"s3_root_password"`
	S3Bucket                string         `json:"s3_bucket"`
	S3Region                string         `json:"s3_region"`
	S3BaseEndpoint          string         `json:"s3_base_endpoint"`
	S3DocumentKey           string         `json:"s3_document_key"`
}

func fromConfig(c *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrGRPC:        c.EndpointAddrGRPC,
		EndpointAddrHTTP:        c.EndpointAddrHTTP,
		StorageBackend:          c.StorageBackend,
		DocumentPath:            c.DocumentPath,
		DocumentSecret:          c.DocumentSecret,
		DatabaseDSN:             c.DatabaseDSN,
		SecretKey:               c.SecretKey,
		AssertionTTL:            timex.Duration{Duration: c.AssertionTTL},
		Issuer:                  c.Issuer,
		QRCodeSize:              c.QRCodeSize,
		SymmetricPairing:        c.SymmetricPairing,
		ResetOnSetup:            c.ResetOnSetup,
		VerifyAttemptsPerMinute: c.VerifyAttemptsPerMinute,
		RedisAddr:               c.RedisAddr,
		AMQPURL:                 c.AMQPURL,
		EventsExchange:          c.EventsExchange,
		S3RootUser:              c.S3RootUser,
		S3RootPassword:          c.S3RootPassword,
		S3Bucket:                c.S3Bucket,
		S3Region:                c.S3Region,
		S3BaseEndpoint:          c.S3BaseEndpoint,
		S3DocumentKey:           c.S3DocumentKey,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.EndpointAddrGRPC = j.EndpointAddrGRPC
	c.EndpointAddrHTTP = j.EndpointAddrHTTP
	c.StorageBackend = j.StorageBackend
	c.DocumentPath = j.DocumentPath
	c.DocumentSecret = j.DocumentSecret
	c.DatabaseDSN = j.DatabaseDSN
	c.SecretKey = j.SecretKey
	c.AssertionTTL = j.AssertionTTL.Duration
	c.Issuer = j.Issuer
	c.QRCodeSize = j.QRCodeSize
	c.SymmetricPairing = j.SymmetricPairing
	c.ResetOnSetup = j.ResetOnSetup
	c.VerifyAttemptsPerMinute = j.VerifyAttemptsPerMinute
	c.RedisAddr = j.RedisAddr
	c.AMQPURL = j.AMQPURL
	c.EventsExchange = j.EventsExchange
	c.S3RootUser = j.S3RootUser
	c.S3RootPassword = j.S3RootPassword
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
	c.S3DocumentKey = j.S3DocumentKey
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config flags; without
// them nothing is loaded.
//
// Keys missing from the file keep their current values. If the file cannot be
// read or contains invalid JSON, the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := fromConfig(config)
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}
	c.apply(config)
}
