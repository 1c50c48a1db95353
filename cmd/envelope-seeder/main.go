package main

import (
	"context"
	"fmt"
	"os"

	"github.com/esignworks/connect-worker/internal/messaging"
	natsclient "github.com/esignworks/connect-worker/internal/messaging/nats"
	"github.com/spf13/cobra"
)

var (
	natsURL    string
	subject    string
	streamName string
)

var rootCmd = &cobra.Command{
	Use:   "envelope-seeder",
	Short: "Publish synthetic envelope notifications to the worker's stream",
	Long: `envelope-seeder publishes synthetic Connect notifications to the
worker's JetStream stream for development and load testing.

It shares the worker's notification codec, so everything it publishes
decodes exactly the way production traffic does.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&natsURL, "url", "nats://localhost:4222", "NATS server URL")
	rootCmd.PersistentFlags().StringVar(&subject, "subject", messaging.SubjectEnvelopeEvents, "Subject to publish on")
	rootCmd.PersistentFlags().StringVar(&streamName, "stream", messaging.StreamEnvelopeEvents, "Stream to ensure before publishing")
}

// connect opens a JetStream client and makes sure the target stream exists,
// so the seeder works against a freshly started broker.
func connect(ctx context.Context) (*natsclient.JetStreamClient, error) {
	cfg := natsclient.DefaultConfig()
	cfg.URL = natsURL
	cfg.Name = "envelope-seeder"

	js, err := natsclient.NewJetStreamClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", natsURL, err)
	}

	streamCfg := natsclient.EnvelopeEventsStream
	streamCfg.Name = streamName
	streamCfg.Subjects = []string{subject}
	if _, err := js.CreateOrUpdateStream(ctx, streamCfg); err != nil {
		js.Close()
		return nil, fmt.Errorf("failed to ensure stream %s: %w", streamName, err)
	}

	return js, nil
}
