package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fitstash/reelbot/internal/config"
	"github.com/fitstash/reelbot/internal/db"
	"github.com/fitstash/reelbot/internal/flow"
	"github.com/fitstash/reelbot/internal/server"
	"github.com/fitstash/reelbot/internal/session"
	"github.com/fitstash/reelbot/internal/store"
	"github.com/fitstash/reelbot/internal/store/sheets"
	"github.com/fitstash/reelbot/internal/store/sqlite"
	"github.com/fitstash/reelbot/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[bot] %v", err)
	}

	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("[bot] %v", err)
	}
	defer database.Close()

	if err := db.InitSchema(database); err != nil {
		log.Fatalf("[bot] failed to init schema: %v", err)
	}

	if _, err := db.LogEvent(database, nil, db.EventProcessStarted, map[string]any{
		"pid":        os.Getpid(),
		"store":      cfg.Store,
		"mode":       cfg.Mode,
		"entry_mode": cfg.EntryMode,
	}); err != nil {
		log.Printf("[bot] failed to log process.started: %v", err)
	}
	journal := &db.Journal{DB: database}

	repo, err := newRepository(&cfg, database)
	if err != nil {
		log.Fatalf("[bot] failed to init store: %v", err)
	}

	client := telegram.NewClient(cfg.TelegramAPIBase, time.Duration(cfg.PollTimeout+20)*time.Second)
	machine := flow.New(client, repo, session.NewStore(), journal, flow.Config{
		AdminPassword: cfg.AdminPassword,
		LinkMarker:    cfg.LinkMarker,
		EntryMode:     flow.EntryMode(cfg.EntryMode),
	})

	log.Printf("bot running store=%s mode=%s entry_mode=%s", cfg.Store, cfg.Mode, cfg.EntryMode)

	if cfg.Mode == config.ModeWebhook {
		webhookURL := fmt.Sprintf("%s/webhook/%s", cfg.PublicBaseURL, cfg.BotToken)
		if err := client.SetWebhook(webhookURL); err != nil {
			log.Fatalf("[bot] failed to set webhook: %v", err)
		}
		srv := server.New(cfg.BotToken, machine)
		log.Fatalf("[bot] %v", srv.ListenAndServe(fmt.Sprintf(":%d", cfg.Port)))
	}

	poll(client, machine, &cfg)
}

func newRepository(cfg *config.Config, database *sql.DB) (store.Repository, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		return sqlite.New(database), nil
	case config.StoreSheets:
		return sheets.New(context.Background(), cfg.SpreadsheetID, cfg.SheetName, cfg.CredentialsFile)
	default:
		return nil, fmt.Errorf("unsupported store: %s", cfg.Store)
	}
}

func poll(client *telegram.Client, machine *flow.Machine, cfg *config.Config) {
	var offset int64
	for {
		updates, err := client.GetUpdates(offset, cfg.PollTimeout)
		if err != nil {
			log.Printf("getUpdates error: %v", err)
			time.Sleep(time.Duration(cfg.SleepSeconds) * time.Second)
			continue
		}
		for _, update := range updates {
			offset = update.UpdateID + 1
			if update.Event.Text == "" {
				continue
			}
			if err := machine.HandleEvent(update.Event); err != nil {
				log.Printf("handle update %d chat_id=%d error: %v", update.UpdateID, update.Event.ChatID, err)
			}
		}
		if len(updates) == 0 {
			time.Sleep(time.Duration(cfg.SleepSeconds) * time.Second)
		}
	}
}
