package main

import (
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// viperConfigurer serves the kafka section of the config file.
type viperConfigurer struct {
	v *viper.Viper
}

func newConfigurer(path string) (*viperConfigurer, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	return &viperConfigurer{v: v}, nil
}

func (c *viperConfigurer) UnmarshalKey(name string, out any) error {
	return c.v.UnmarshalKey(name, out)
}

func (c *viperConfigurer) Has(name string) bool {
	return c.v.IsSet(name)
}

type namedLogger struct {
	base *zap.Logger
}

func (l *namedLogger) NamedLogger(name string) *zap.Logger {
	return l.base.Named(name)
}
