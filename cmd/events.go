/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/cropscan/apiserver/config"
	"github.com/cropscan/apiserver/internal/logging"
	"github.com/cropscan/apiserver/internal/mq"
	"github.com/cropscan/apiserver/types"
	"github.com/spf13/cobra"
)

var eventsChannel string

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the domain event stream",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Subscribe to a channel and log every event",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(serviceName, cfg.LogLevel)

		channel := eventsChannel
		if channel == "" {
			channel = cfg.MQ.ScansChannel
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := mq.NewFromConfig(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if queue == nil {
			return errors.New("MQ_BACKEND is not set")
		}
		defer queue.Close()

		logger.Info("tailing events", "backend", cfg.MQ.Backend, "channel", channel)
		err = queue.Subscribe(ctx, channel, func(ctx context.Context, msg mq.Message) error {
			var event types.Event
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				// Foreign payloads are logged raw and acked so they do not loop.
				logger.Warn("undecodable message", "id", msg.ID, "data", string(msg.Data))
				return nil
			}
			logger.Info("event",
				"id", msg.ID,
				"type", event.Type,
				"occurred_at", event.OccurredAt,
				"payload", event.Payload,
			)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
	eventsTailCmd.Flags().StringVar(&eventsChannel, "channel", "", "channel to subscribe to (defaults to MQ_SCANS_CHANNEL)")
}
