package app

import (
	"github.com/rentsearchrs/lviv-pject/internal/autopost"
	"github.com/rentsearchrs/lviv-pject/internal/config"
	"github.com/rentsearchrs/lviv-pject/internal/dispatch"
	"github.com/rentsearchrs/lviv-pject/internal/jobs"
	"github.com/rentsearchrs/lviv-pject/internal/match"
	"github.com/rentsearchrs/lviv-pject/internal/storage"
	telegram "github.com/rentsearchrs/lviv-pject/internal/transport/telegram"
	logx "github.com/rentsearchrs/lviv-pject/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapTelegramConfig(cfg *config.Config) (telegram.Config, error) {
	timeout, err := config.ParseDurationField("telegram.http_timeout", cfg.Telegram.HTTPTimeout)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{
		Token:       cfg.Telegram.Token,
		AdminChatID: cfg.Telegram.AdminChatID,
		HTTPTimeout: timeout,
	}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, nil
}

func mapMatchConfig(cfg *config.Config) match.Config {
	return match.Config{
		UAHRate:    cfg.Match.UAHRate,
		CityAnchor: cfg.Match.CityAnchor,
	}
}

func mapDispatchConfig(cfg *config.Config) (dispatch.Config, error) {
	retryBase, err := config.ParseDurationField("dispatch.retry_base", cfg.Dispatch.RetryBase)
	if err != nil {
		return dispatch.Config{}, err
	}
	return dispatch.Config{
		RetryMax:   cfg.Dispatch.RetryMax,
		RetryBase:  retryBase,
		RatePerSec: cfg.Dispatch.RatePerSec,
	}, nil
}

func mapAutopostConfig(cfg *config.Config) (autopost.Config, error) {
	interval, err := config.ParseDurationField("dispatch.interval", cfg.Dispatch.Interval)
	if err != nil {
		return autopost.Config{}, err
	}
	pace, err := config.ParseDurationField("dispatch.pace_delay", cfg.Dispatch.PaceDelay)
	if err != nil {
		return autopost.Config{}, err
	}
	return autopost.Config{
		Enabled:   cfg.Dispatch.Enabled,
		Interval:  interval,
		PaceDelay: pace,
	}, nil
}

func mapJobsConfig(cfg *config.Config) (jobs.Config, error) {
	window, err := config.ParseDurationField("jobs.relevance_window", cfg.Jobs.RelevanceWindow)
	if err != nil {
		return jobs.Config{}, err
	}
	return jobs.Config{
		Digest:          jobs.JobConfig{Enabled: cfg.Jobs.Digest.Enabled, Spec: cfg.Jobs.Digest.Spec},
		Relevance:       jobs.JobConfig{Enabled: cfg.Jobs.Relevance.Enabled, Spec: cfg.Jobs.Relevance.Spec},
		Orders:          jobs.JobConfig{Enabled: cfg.Jobs.Orders.Enabled, Spec: cfg.Jobs.Orders.Spec},
		RelevanceWindow: window,
	}, nil
}
