package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/esignworks/connect-worker/internal/messaging"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/cobra"
)

var harnessCount int

var harnessCmd = &cobra.Command{
	Use:   "harness [values...]",
	Short: "Publish test-mode messages for the crash-recovery harness",
	Long: `Publish values that the worker routes to its file marker harness
instead of the notification decoder. Each message carries the Test-Mode
header and the value as its body.

A value matching the worker's break marker makes it exit on purpose
mid-message; restart it afterwards to watch the broker redeliver the
unacknowledged value.

Examples:
  # Three ordered markers: test1.txt holds 3, test2.txt holds 2, test3.txt holds 1
  envelope-seeder harness 1 2 3

  # Crash the worker on the second message
  envelope-seeder harness 1 /break 3

  # Ten sequential values
  envelope-seeder harness --count 10`,
	RunE: runHarness,
}

func init() {
	rootCmd.AddCommand(harnessCmd)

	harnessCmd.Flags().IntVarP(&harnessCount, "count", "c", 0, "Send this many sequential values instead of arguments")
}

func runHarness(cmd *cobra.Command, args []string) error {
	values := args
	if harnessCount > 0 {
		values = make([]string, 0, harnessCount)
		for i := 1; i <= harnessCount; i++ {
			values = append(values, strconv.Itoa(i))
		}
	}
	if len(values) == 0 {
		return errors.New("nothing to send: pass values as arguments or use --count")
	}

	ctx := cmd.Context()
	js, err := connect(ctx)
	if err != nil {
		return err
	}
	defer js.Close()

	fmt.Printf("Publishing %d test values to %s (subject %s)\n\n", len(values), natsURL, subject)

	failed := 0
	for _, value := range values {
		msg := &messaging.Message{
			Subject: subject,
			Data:    []byte(value),
			Metadata: map[string]string{
				messaging.HeaderTestMode: "true",
				jetstream.MsgIDHeader:    uuid.NewString(),
			},
		}

		if _, err := js.PublishMsgSync(ctx, msg); err != nil {
			color.Red("✗ %q: %v", value, err)
			failed++
			continue
		}
		color.Green("✓ sent %q", value)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d publishes failed", failed, len(values))
	}
	return nil
}
