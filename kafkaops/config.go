package kafkaops

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/roadrunner-server/errors"
	"github.com/twmb/franz-go/pkg/kgo"
)

type Configurer interface {
	// UnmarshalKey takes a single key and unmarshal it into a Struct.
	UnmarshalKey(name string, out any) error
	// Has checks if config section exists.
	Has(name string) bool
}

// globalConfig reads the optional `kafka` section. A nil Configurer or a
// missing section gives an empty config, the step model must then carry the brokers.
func globalConfig(cfg Configurer) (*config, error) {
	const op = errors.Op("kafka_global_config")

	conf := &config{}
	if cfg == nil || !cfg.Has(pluginName) {
		return conf, nil
	}

	err := cfg.UnmarshalKey(pluginName, conf)
	if err != nil {
		return nil, errors.E(op, err)
	}

	return conf, nil
}

// decodeModel decodes the host step model into one of the *Config structs.
func decodeModel(model map[string]any, out any) error {
	const op = errors.Op("kafka_decode_model")

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return errors.E(op, err)
	}

	err = dec.Decode(model)
	if err != nil {
		return errors.E(op, err)
	}

	return nil
}

// overlay applies step level values on top of the global section.
// Precedence: step fields, then the legacy client block, then the global section.
func (c *config) overlay(brokers []string, legacy *legacyClient, requestMs, connectMs int) {
	if legacy != nil {
		if legacy.KafkaHost != "" {
			c.Brokers = splitHosts(legacy.KafkaHost)
		}
		if legacy.RequestTimeout > 0 {
			c.RequestTimeout = millis(legacy.RequestTimeout)
		}
		if legacy.ConnectTimeout > 0 {
			c.ConnectTimeout = millis(legacy.ConnectTimeout)
		}
	}

	if len(brokers) > 0 {
		c.Brokers = brokers
	}

	if requestMs > 0 {
		c.RequestTimeout = millis(requestMs)
	}

	if connectMs > 0 {
		c.ConnectTimeout = millis(connectMs)
	}
}

// InitDefault validates the merged configuration and builds the kgo options.
func (c *config) InitDefault() ([]kgo.Opt, error) {
	const op = errors.Op("kafka_init_default")

	brokers := c.Brokers[:0:0]
	for i := range c.Brokers {
		if b := strings.TrimSpace(c.Brokers[i]); b != "" {
			brokers = append(brokers, b)
		}
	}
	c.Brokers = brokers

	if len(c.Brokers) == 0 {
		return nil, errors.E(op, errors.Str("at least one broker address should be provided"))
	}

	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}

	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}

	if c.Ping == nil {
		c.Ping = &Ping{}
	}

	if c.Ping.Timeout <= 0 {
		c.Ping.Timeout = c.ConnectTimeout
	}

	if c.ClientID == "" {
		c.ClientID = pluginName + "-" + uuid.NewString()
	}

	opts := make([]kgo.Opt, 0, 10)
	opts = append(opts,
		kgo.SeedBrokers(c.Brokers...),
		kgo.ClientID(c.ClientID),
		kgo.DialTimeout(c.ConnectTimeout),
		kgo.RequestTimeoutOverhead(c.RequestTimeout),
		kgo.RetryTimeout(c.RequestTimeout),
	)

	if c.KafkaVersion != "" {
		v := parseVersion(c.KafkaVersion)
		if v == nil {
			return nil, errors.E(op, errors.Errorf("unknown kafka version: %s", c.KafkaVersion))
		}
		opts = append(opts, kgo.MaxVersions(v))
	}

	if c.TLS != nil {
		tlsCfg, err := c.TLS.config()
		if err != nil {
			return nil, errors.E(op, err)
		}
		opts = append(opts, kgo.DialTLSConfig(tlsCfg))
	}

	if c.SASL != nil {
		mech, err := c.SASL.mechanism(context.Background())
		if err != nil {
			return nil, errors.E(op, err)
		}
		opts = append(opts, kgo.SASL(mech))
	}

	if c.ProducerOpts != nil {
		popts, err := c.ProducerOpts.opts()
		if err != nil {
			return nil, errors.E(op, err)
		}
		opts = append(opts, popts...)
	}

	return opts, nil
}

func (p *ProducerOpts) opts() ([]kgo.Opt, error) {
	var opts []kgo.Opt

	disableIdempotent := p.DisableIdempotent

	switch p.RequiredAcks {
	case NoAck:
		opts = append(opts, kgo.RequiredAcks(kgo.NoAck()))
		// idempotent writes require acks from all in-sync replicas
		disableIdempotent = true
	case LeaderAck:
		opts = append(opts, kgo.RequiredAcks(kgo.LeaderAck()))
		disableIdempotent = true
	case AllISRAck, "":
		opts = append(opts, kgo.RequiredAcks(kgo.AllISRAcks()))
	default:
		return nil, errors.Errorf("unknown required_acks value: %s", p.RequiredAcks)
	}

	if disableIdempotent {
		opts = append(opts, kgo.DisableIdempotentWrite())
	}

	if p.MaxMessageBytes > 0 {
		opts = append(opts, kgo.ProducerBatchMaxBytes(p.MaxMessageBytes))
	}

	if p.RequestTimeout > 0 {
		opts = append(opts, kgo.ProduceRequestTimeout(p.RequestTimeout))
	}

	if p.DeliveryTimeout > 0 {
		opts = append(opts, kgo.RecordDeliveryTimeout(p.DeliveryTimeout))
	}

	switch p.CompressionCodec {
	case gzip:
		opts = append(opts, kgo.ProducerBatchCompression(kgo.GzipCompression()))
	case snappy:
		opts = append(opts, kgo.ProducerBatchCompression(kgo.SnappyCompression()))
	case lz4:
		opts = append(opts, kgo.ProducerBatchCompression(kgo.Lz4Compression()))
	case zstd:
		opts = append(opts, kgo.ProducerBatchCompression(kgo.ZstdCompression()))
	case "":
	default:
		return nil, errors.Errorf("unknown compression codec: %s", p.CompressionCodec)
	}

	return opts, nil
}

func splitHosts(hosts string) []string {
	parts := strings.Split(hosts, ",")
	out := make([]string, 0, len(parts))
	for i := range parts {
		if h := strings.TrimSpace(parts[i]); h != "" {
			out = append(out, h)
		}
	}
	return out
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
