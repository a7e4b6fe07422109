package kafkaops

import (
	"time"
)

// kafka configuration options, global `kafka` section and per-step models

const (
	pluginName string = "kafka"

	defaultRequestTimeout = 10000 * time.Millisecond
	defaultConnectTimeout = 10000 * time.Millisecond

	// partition used for the latest offset and the consumer
	defaultPartition int32 = 0
)

type Acks string

const (
	NoAck     Acks = "NoAck"
	LeaderAck Acks = "LeaderAck"
	AllISRAck Acks = "AllISRAck"
)

type CompressionCodec string

const (
	gzip   CompressionCodec = "gzip"
	snappy CompressionCodec = "snappy"
	lz4    CompressionCodec = "lz4"
	zstd   CompressionCodec = "zstd"
)

type SASLMechanism string

const (
	basic       SASLMechanism = "plain"
	scramSha256 SASLMechanism = "SCRAM-SHA-256"
	scramSha512 SASLMechanism = "SCRAM-SHA-512"
	awsMskIam   SASLMechanism = "aws_msk_iam"
)

// config is the global `kafka` section merged with a single step model
type config struct {
	Brokers        []string      `mapstructure:"brokers"`
	TLS            *TLS          `mapstructure:"tls"`
	SASL           *SASL         `mapstructure:"sasl"`
	Ping           *Ping         `mapstructure:"ping"`
	ClientID       string        `mapstructure:"client_id"`
	KafkaVersion   string        `mapstructure:"kafka_version"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ProducerOpts   *ProducerOpts `mapstructure:"producer_options"`
}

type SASL struct {
	Type SASLMechanism `mapstructure:"mechanism" json:"mechanism"`

	// plain + SHA
	Username string `mapstructure:"username" json:"username"`
	Password string `mapstructure:"password" json:"password"`
	Zid      string `mapstructure:"zid" json:"zid"`
	Nonce    []byte `mapstructure:"nonce" json:"nonce"`
	IsToken  bool   `mapstructure:"is_token" json:"is_token"`

	// aws_msk_iam, empty keys mean the default AWS credentials chain
	AccessKey    string `mapstructure:"access_key" json:"access_key"`
	SecretKey    string `mapstructure:"secret_key" json:"secret_key"`
	SessionToken string `mapstructure:"session_token" json:"session_token"`
	UserAgent    string `mapstructure:"user_agent" json:"user_agent"`
}

type Ping struct {
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
}

type ProducerOpts struct {
	DisableIdempotent bool             `mapstructure:"disable_idempotent" json:"disable_idempotent"`
	RequiredAcks      Acks             `mapstructure:"required_acks" json:"required_acks"`
	MaxMessageBytes   int32            `mapstructure:"max_message_bytes" json:"max_message_bytes"`
	RequestTimeout    time.Duration    `mapstructure:"request_timeout" json:"request_timeout"`
	DeliveryTimeout   time.Duration    `mapstructure:"delivery_timeout" json:"delivery_timeout"`
	CompressionCodec  CompressionCodec `mapstructure:"compression_codec" json:"compression_codec"`
}

type TLS struct {
	Key                string `mapstructure:"key"`
	Cert               string `mapstructure:"cert"`
	RootCA             string `mapstructure:"root_ca"`
	ServerName         string `mapstructure:"server_name"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// legacyClient is the `client` block of older step models: comma separated
// kafkaHost and millisecond timeouts.
type legacyClient struct {
	KafkaHost      string `mapstructure:"kafkaHost"`
	ConnectTimeout int    `mapstructure:"connectTimeout"`
	RequestTimeout int    `mapstructure:"requestTimeout"`
}

// PublisherConfig is the step model of a publisher.
type PublisherConfig struct {
	Brokers          []string          `mapstructure:"brokers"`
	Topic            string            `mapstructure:"topic"`
	Payload          any               `mapstructure:"payload"`
	Key              string            `mapstructure:"key"`
	Headers          map[string]string `mapstructure:"headers"`
	RequestTimeoutMs int               `mapstructure:"requestTimeoutMs"`
	ConnectTimeoutMs int               `mapstructure:"connectTimeoutMs"`

	Client *legacyClient `mapstructure:"client"`
}

// SubscriberConfig is the step model of a subscription.
type SubscriberConfig struct {
	Brokers          []string `mapstructure:"brokers"`
	Topic            string   `mapstructure:"topic"`
	RequestTimeoutMs int      `mapstructure:"requestTimeoutMs"`
	ConnectTimeoutMs int      `mapstructure:"connectTimeoutMs"`

	Client  *legacyClient       `mapstructure:"client"`
	Options *subscriptionLegacy `mapstructure:"options"`
}

type subscriptionLegacy struct {
	Topic          string `mapstructure:"topic"`
	RequestTimeout int    `mapstructure:"requestTimeout"`
	ConnectTimeout int    `mapstructure:"connectTimeout"`
}
