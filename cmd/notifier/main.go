// Command notifier drains OTP events from RabbitMQ and delivers the codes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	zlog "github.com/rs/zerolog/log"

	"github.com/AnshRaj112/freshcart-backend/internal/config"
	"github.com/AnshRaj112/freshcart-backend/internal/logger"
	"github.com/AnshRaj112/freshcart-backend/internal/notify"
)

const queueName = "notifier.otp"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.Environment, cfg.LogLevel).With().Str(logger.Component, "notifier").Logger()
	zlog.Logger = log

	if cfg.RabbitURL == "" {
		log.Fatal().Msg("RABBIT_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := notify.NewConsumer(notify.ConsumerConfig{
		RabbitURL: cfg.RabbitURL,
		Exchange:  cfg.OTPExchange,
		Queue:     queueName,
		Bindings:  []string{notify.RKOTPIssued},
		Tag:       "freshcart-notifier",
	}, notify.NewLogNotifier(log), log)

	if err := consumer.Connect(); err != nil {
		log.Fatal().Err(err).Msg("connect consumer")
	}
	defer consumer.Close()

	log.Info().Str("queue", queueName).Str("exchange", cfg.OTPExchange).Msg("notifier running")
	if err := consumer.Run(ctx); err != nil {
		log.Error().Err(err).Msg("consumer stopped")
		return
	}
	log.Info().Msg("notifier stopped")
}
