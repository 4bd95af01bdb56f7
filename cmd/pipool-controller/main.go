package main

import (
	"github.com/rs/zerolog/log"

	"github.com/mjpetersen/pipool-controller/internal/config"
	"github.com/mjpetersen/pipool-controller/internal/logging"
	"github.com/mjpetersen/pipool-controller/internal/supervisor"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel)

	log.Info().
		Str("hardware_mode", cfg.HardwareMode).
		Str("mqtt_broker", cfg.MQTTBroker).
		Msg("starting pool controller")

	sup, err := supervisor.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build supervisor")
	}

	if cfg.PrometheusAddr != "" {
		go func() {
			if err := sup.ServeMetrics(cfg.PrometheusAddr); err != nil {
				log.Error().Err(err).Msg("metrics server exited")
			}
		}()
	}

	sup.Run()
}
