// Command sqs-consumer consumes an SQS queue and logs every message it
// receives. It is configured through environment variables and exposes
// /healthz and /metrics over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	sqsconsumer "github.com/BBC/sqs-consumer"
	"github.com/BBC/sqs-consumer/internal/config"
	"github.com/BBC/sqs-consumer/internal/zaplogger"
	"github.com/BBC/sqs-consumer/metrics"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/slackmgr/types"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := zaplogger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to set up logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Errorf("sqs-consumer exited: %v", err)
		os.Exit(1) //nolint:gocritic // exitAfterDefer: logger flush is best effort
	}
}

func run(ctx context.Context, cfg *config.Config, logger types.Logger) error {
	awsCfg, err := loadAWSConfig(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	consumer, err := sqsconsumer.New(&awsCfg, cfg.QueueURL, logMessages(logger), logger, cfg.ConsumerOptions()...)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	registry := prometheus.NewRegistry()
	collector := metrics.New("sqs_consumer")

	if err := collector.Register(registry); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	unsubscribe := consumer.Subscribe(collector.Observe)
	defer unsubscribe()

	serverDone := startHTTPServer(ctx, cfg.HTTPAddr, newMux(consumer, registry), logger)

	consumer.Start(ctx)

	<-ctx.Done()

	logger.Info("Shutdown requested, waiting for in-flight messages")
	consumer.Stop()
	<-consumer.Done()
	<-serverDone

	return nil
}

func loadAWSConfig(ctx context.Context, cfg *config.Config, logger types.Logger) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.Endpoint != "" {
		// Local emulators accept any static credentials.
		logger.WithField("endpoint", cfg.Endpoint).Info("Configuring SQS client for custom endpoint")

		opts = append(opts,
			awsconfig.WithBaseEndpoint(cfg.Endpoint),
			awsconfig.WithCredentialsProvider(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     "test",
					SecretAccessKey: "test",
					Source:          "CustomEndpoint",
				}, nil
			})),
		)
	}

	return awsconfig.LoadDefaultConfig(ctx, opts...)
}

func logMessages(logger types.Logger) sqsconsumer.HandlerFunc {
	return func(_ context.Context, msg *sqsconsumer.Message) error {
		logger.WithFields(map[string]any{
			"message_id": msg.ID,
			"body_size":  len(msg.Body),
		}).Infof("Message received: %s", msg.Body)

		return nil
	}
}
