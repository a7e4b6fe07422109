package kafkaops

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/roadrunner-server/errors"
)

func (t *TLS) config() (*tls.Config, error) {
	const op = errors.Op("kafka_tls_config")

	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         t.ServerName,
		InsecureSkipVerify: t.InsecureSkipVerify, //nolint:gosec
	}

	// client certificate, both parts or none
	switch {
	case t.Cert != "" && t.Key != "":
		cert, err := tls.LoadX509KeyPair(t.Cert, t.Key)
		if err != nil {
			return nil, errors.E(op, err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	case t.Cert != "" || t.Key != "":
		return nil, errors.E(op, errors.Str("both tls.cert and tls.key should be set"))
	}

	if t.RootCA != "" {
		pem, err := os.ReadFile(t.RootCA)
		if err != nil {
			return nil, errors.E(op, err)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.E(op, errors.Errorf("no certificates found in %s", t.RootCA))
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}
