package main

import (
	"fmt"
	"os"

	"github.com/lotline/lotline/internal/analytics"
	"github.com/lotline/lotline/internal/config"
	"github.com/lotline/lotline/internal/db"
	"github.com/lotline/lotline/internal/escalation"
	"github.com/lotline/lotline/internal/geo"
	"github.com/lotline/lotline/internal/inventory"
	"github.com/lotline/lotline/internal/leads"
	"github.com/lotline/lotline/internal/notify"
	"github.com/lotline/lotline/internal/sales"
	"go.uber.org/zap"
)

// loadConfig reads the config file, falling back to defaults when the
// default path does not exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) && path == defaultConfigPath {
		return config.Default(), nil
	}
	return config.Load(path)
}

const defaultConfigPath = "lotline.yaml"

// newLogger builds the process logger.
func newLogger() (*zap.SugaredLogger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return l.Sugar(), nil
}

// app is the wired set of engines every command works against.
type app struct {
	cfg  *config.Config
	h    *db.Handle
	geo  *geo.Index
	inv  *inventory.Store
	esc  *escalation.Store
	eng  *leads.Engine
	rep  *analytics.Engine
	rec  *sales.Recorder
	disp *escalation.Dispatcher
	log  *zap.SugaredLogger
}

// buildApp connects to the database and wires every engine, including
// any chat notifiers the config enables.
func buildApp(configPath string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	log, err := newLogger()
	if err != nil {
		return nil, err
	}
	h, err := db.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := h.Migrate(); err != nil {
		return nil, err
	}

	escStore := escalation.NewStore(h)
	disp := escalation.NewDispatcher(log)
	if cfg.Notify.Slack.Token != "" {
		sn, err := notify.NewSlack(notify.SlackOpts{
			Token:     cfg.Notify.Slack.Token,
			ChannelID: cfg.Notify.Slack.Channel,
		})
		if err != nil {
			return nil, err
		}
		disp.Subscribe(sn)
	}
	if cfg.Notify.Discord.BotToken != "" {
		dn, err := notify.NewDiscord(notify.DiscordOpts{
			BotToken:  cfg.Notify.Discord.BotToken,
			ChannelID: cfg.Notify.Discord.ChannelID,
		})
		if err != nil {
			return nil, err
		}
		disp.Subscribe(dn)
	}

	return &app{
		cfg: cfg,
		h:   h,
		geo: geo.NewIndex(),
		inv: inventory.NewStore(h, inventory.Options{
			TTLDays: cfg.Inventory.TTLDays,
			Logger:  log,
		}),
		esc: escStore,
		eng: leads.NewEngine(h, escStore, disp, leads.Options{
			ScoringWindowDays: cfg.Leads.ScoringWindowDays,
			Logger:            log,
		}),
		rep:  analytics.NewEngine(h, analytics.Thresholds(cfg.Analytics), log),
		rec:  sales.NewRecorder(h, log),
		disp: disp,
		log:  log,
	}, nil
}
