package main

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/esignworks/connect-worker/internal/messaging"
	"github.com/esignworks/connect-worker/internal/notification"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/cobra"
)

var (
	envCount    int
	envInterval time.Duration
	envFixtures string
	envSeed     int64
)

var envelopesCmd = &cobra.Command{
	Use:   "envelopes",
	Short: "Publish generated envelope-status notifications",
	Long: `Generate envelope-status notifications and publish them to the stream.

The status mix, business keys and colors come from a fixtures file when
one is given, otherwise from built-in defaults with generated values.

Examples:
  # 25 mixed notifications against a local broker
  envelope-seeder envelopes

  # A reproducible batch from a fixtures file
  envelope-seeder envelopes --count 100 --fixtures ./fixtures.yaml --seed 42`,
	RunE: runEnvelopes,
}

func init() {
	rootCmd.AddCommand(envelopesCmd)

	envelopesCmd.Flags().IntVarP(&envCount, "count", "c", 25, "Number of notifications to publish")
	envelopesCmd.Flags().DurationVarP(&envInterval, "interval", "i", 50*time.Millisecond, "Pause between publishes")
	envelopesCmd.Flags().StringVarP(&envFixtures, "fixtures", "f", "", "Fixtures file (YAML)")
	envelopesCmd.Flags().Int64Var(&envSeed, "seed", 0, "Random seed for the generated content (0 uses the current time)")
}

func runEnvelopes(cmd *cobra.Command, args []string) error {
	fixtures, err := LoadFixtures(envFixtures)
	if err != nil {
		return fmt.Errorf("failed to load fixtures: %w", err)
	}

	seed := envSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)

	ctx := cmd.Context()
	js, err := connect(ctx)
	if err != nil {
		return err
	}
	defer js.Close()

	fmt.Printf("Publishing %d notifications to %s (subject %s)\n\n", envCount, natsURL, subject)

	success := 0
	failed := 0
	for i := 0; i < envCount; i++ {
		env := fixtures.Envelope()
		data, err := notification.Encode(env)
		if err != nil {
			return fmt.Errorf("failed to encode notification: %w", err)
		}

		msg := &messaging.Message{
			Subject: subject,
			Data:    data,
			Metadata: map[string]string{
				jetstream.MsgIDHeader: uuid.NewString(),
			},
		}

		if _, err := js.PublishMsgSync(ctx, msg); err != nil {
			color.Red("✗ %s: %v", env.EnvelopeID, err)
			failed++
		} else {
			key, _ := env.CustomField(fixtures.KeyField)
			color.Green("✓ %s  status=%-9s key=%s", env.EnvelopeID, env.Status, key)
			success++
		}

		if envInterval > 0 && i < envCount-1 {
			time.Sleep(envInterval)
		}
	}

	fmt.Printf("\nSeeding complete: %d published, %d failed\n", success, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d publishes failed", failed, envCount)
	}
	return nil
}
