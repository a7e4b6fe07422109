package kafkaops

import (
	"context"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/roadrunner-server/errors"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/twmb/franz-go/pkg/sasl/aws"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"github.com/twmb/franz-go/pkg/sasl/scram"
)

func (s *SASL) mechanism(ctx context.Context) (sasl.Mechanism, error) {
	const op = errors.Op("kafka_sasl_mechanism")

	switch s.Type {
	case basic:
		return plain.Auth{
			Zid:  s.Zid,
			User: s.Username,
			Pass: s.Password,
		}.AsMechanism(), nil
	case scramSha256:
		return s.scram().AsSha256Mechanism(), nil
	case scramSha512:
		return s.scram().AsSha512Mechanism(), nil
	case awsMskIam:
		if s.AccessKey != "" {
			return aws.Auth{
				AccessKey:    s.AccessKey,
				SecretKey:    s.SecretKey,
				SessionToken: s.SessionToken,
				UserAgent:    s.UserAgent,
			}.AsManagedStreamingIAMMechanism(), nil
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, errors.E(op, err)
		}

		if awsCfg.Credentials == nil {
			return nil, errors.E(op, errors.Str("no AWS credentials found for the aws_msk_iam mechanism"))
		}

		userAgent := s.UserAgent
		return aws.ManagedStreamingIAM(func(ctx context.Context) (aws.Auth, error) {
			creds, err := awsCfg.Credentials.Retrieve(ctx)
			if err != nil {
				return aws.Auth{}, err
			}

			return aws.Auth{
				AccessKey:    creds.AccessKeyID,
				SecretKey:    creds.SecretAccessKey,
				SessionToken: creds.SessionToken,
				UserAgent:    userAgent,
			}, nil
		}), nil
	default:
		return nil, errors.E(op, errors.Errorf("unknown SASL mechanism: %s", s.Type))
	}
}

func (s *SASL) scram() scram.Auth {
	return scram.Auth{
		Zid:     s.Zid,
		User:    s.Username,
		Pass:    s.Password,
		Nonce:   s.Nonce,
		IsToken: s.IsToken,
	}
}
