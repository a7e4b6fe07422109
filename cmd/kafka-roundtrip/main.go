// Command kafka-roundtrip runs the kafka publish and subscribe steps from a shell.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stepkit/kafka"
	"github.com/stepkit/kafka/kafkaops"
	"go.uber.org/zap"
)

var (
	cfgFile string
	debug   bool
)

func main() {
	root := &cobra.Command{
		Use:           "kafka-roundtrip",
		Short:         "Publish to and consume from Kafka the way the kafka steps do",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file with an optional kafka section")
	root.PersistentFlags().StringSlice("brokers", nil, "broker addresses, override the kafka section")
	root.PersistentFlags().Duration("timeout", 10*time.Second, "request timeout of every step")
	root.PersistentFlags().Duration("receive-timeout", 30*time.Second, "wait for every received message, 0 waits until interrupted")
	root.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "development logger at debug level")

	_ = viper.BindPFlag("brokers", root.PersistentFlags().Lookup("brokers"))
	_ = viper.BindPFlag("timeout", root.PersistentFlags().Lookup("timeout"))
	_ = viper.BindPFlag("receive_timeout", root.PersistentFlags().Lookup("receive-timeout"))
	_ = viper.BindEnv("brokers", "KAFKA_BROKERS")

	root.AddCommand(publishCmd(), consumeCmd(), roundtripCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1) //nolint:gocritic
	}
}

func publishCmd() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "publish <topic> <payload>",
		Short: "Publish one message and print the broker ack",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			model := stepModel(args[0])
			model["payload"] = args[1]
			if key != "" {
				model["key"] = key
			}

			pub, err := steps.publisher(model)
			if err != nil {
				return err
			}

			res, err := pub.Publish(cmd.Context())
			if err != nil {
				return err
			}

			return printJSON(res)
		},
	}

	cmd.Flags().StringVarP(&key, "key", "k", "", "record key")
	return cmd
}

func consumeCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "consume <topic>",
		Short: "Subscribe at the latest offset and print the next messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			sub, err := steps.subscriber(stepModel(args[0]))
			if err != nil {
				return err
			}

			err = sub.Subscribe(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = sub.Unsubscribe(context.Background()) }()

			log.Info("waiting for messages", zap.String("topic", args[0]), zap.Int("count", count))

			for i := 0; count <= 0 || i < count; i++ {
				msg, err := receive(cmd.Context(), sub)
				if err != nil {
					return err
				}

				if err := printJSON(msg); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 1, "messages to receive, 0 receives until interrupted")
	return cmd
}

func roundtripCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roundtrip <topic> <payload>",
		Short: "Subscribe, publish one message and receive it back",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			return roundtrip(cmd.Context(), steps, args[0], args[1])
		},
	}
}

func roundtrip(ctx context.Context, steps *registry, topic, payload string) error {
	sub, err := steps.subscriber(stepModel(topic))
	if err != nil {
		return err
	}

	err = sub.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = sub.Unsubscribe(context.Background()) }()

	model := stepModel(topic)
	model["payload"] = payload

	pub, err := steps.publisher(model)
	if err != nil {
		return err
	}

	res, err := pub.Publish(ctx)
	if err != nil {
		return err
	}

	msg, err := receive(ctx, sub)
	if err != nil {
		return err
	}

	return printJSON(map[string]any{
		"published": res,
		"received":  msg,
	})
}

// receive bounds a single Receive by the receive timeout, the subscription
// itself has no deadline of its own.
func receive(ctx context.Context, sub kafka.Subscriber) (*kafkaops.Message, error) {
	if timeout := viper.GetDuration("receive_timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return sub.Receive(ctx)
}

// setup reads the config and registers the kafka steps into a local registry.
func setup() (*registry, *zap.Logger, error) {
	log, err := newLogger(debug)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := newConfigurer(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	p := &kafka.Plugin{}
	err = p.Init(&namedLogger{base: log}, cfg)
	if err != nil {
		return nil, nil, err
	}

	reg := newRegistry()
	p.Register(reg)

	return reg, log, nil
}

func stepModel(topic string) map[string]any {
	model := map[string]any{"topic": topic}

	if brokers := viper.GetStringSlice("brokers"); len(brokers) > 0 {
		model["brokers"] = brokers
	}

	if timeout := viper.GetDuration("timeout"); timeout > 0 {
		model["requestTimeoutMs"] = int(timeout.Milliseconds())
	}

	return model
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}

	return zap.NewProduction()
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}
