package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"pdf-chat/api/internal/chat"
	"pdf-chat/api/internal/config"
	"pdf-chat/api/internal/httpserver"
	"pdf-chat/api/internal/ocr"
	"pdf-chat/api/internal/session"
	"pdf-chat/api/internal/store"
	"pdf-chat/api/internal/telegram"
)

func main() {
	cfg := config.LoadBot()
	ctx := context.Background()

	// --- Кэш результатов: Postgres, если настроен, иначе память процесса ---
	var kv store.KV = store.NewMemoryKV()
	var db *sql.DB
	if dsn := cfg.ResolveDSN(); dsn != "" {
		var err error
		db, err = store.OpenPG(ctx, dsn)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		log.Printf("db connected: %s", config.SafeDSNSummary(dsn))
		pg := store.NewPGKV(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatalf("ensure schema: %v", err)
		}
		go store.RunPurge(ctx, pg, cfg.CacheMaxAge, time.Hour)
		kv = pg
	} else {
		log.Printf("db: not configured, caching OCR results in memory")
	}
	cache := store.NewResultCache(kv, store.Policy(cfg.CacheMaxAge))

	// --- Ядро ---
	defOpts, _ := cfg.DefaultOptions()
	engine := cfg.OCRClient()
	log.Printf("ocr endpoint: %s", engine.Endpoint())

	widget := chat.NewResponder(chat.WidgetReply)
	document := chat.NewResponder(chat.DocumentReply)
	for _, r := range []*chat.Responder{widget, document} {
		r.MinDelay, r.MaxDelay = cfg.ChatMinDelay, cfg.ChatMaxDelay
	}
	sessions := session.NewRegistry(widget, document)
	intake := session.NewIntake(engine, cache)

	// --- Telegram bot ---
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Fatal(err)
	}
	bot.Debug = false

	r := telegram.NewRouter(bot, sessions, intake, ocr.NewManager(defOpts))
	r.Health = func(ctx context.Context) error {
		if db == nil {
			return nil
		}
		return db.PingContext(ctx)
	}

	// --- HTTP (DefaultServeMux: ListenForWebhook регистрируется там же) ---
	httpserver.RegisterHealth(http.DefaultServeMux, db)

	addr := "0.0.0.0:" + cfg.Port
	if webhookURL := strings.TrimSpace(cfg.WebhookURL); webhookURL != "" {
		startWebhookMode(addr, bot, r, webhookURL)
	} else {
		startPollingMode(ctx, addr, bot, r)
	}
}

// ---------------- Modes -----------------

func startWebhookMode(addr string, bot *tgbotapi.BotAPI, r *telegram.Router, baseURL string) {
	// секретный путь вебхука
	path := "/webhook/" + httpserver.ShortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		log.Fatal(err)
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		log.Fatal(err)
	}

	updates := bot.ListenForWebhook(path)
	go func() {
		for upd := range updates {
			r.HandleUpdate(upd)
		}
		log.Printf("webhook updates channel closed")
	}()

	log.Printf("health server listening on %s/healthz", addr)
	log.Printf("webhook listening on %s%s", addr, path)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal(err)
	}
}

func startPollingMode(ctx context.Context, addr string, bot *tgbotapi.BotAPI, r *telegram.Router) {
	go func() {
		log.Printf("health server listening on %s/healthz", addr)
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Fatal(err)
		}
	}()

	// снимаем вебхук, иначе getUpdates вернёт 409
	if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		log.Printf("delete webhook: %v", err)
	}
	runPolling(ctx, bot, r.HandleUpdate)
}

// ---------------- Polling loop -----------------

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") { // HTTP 429 от Telegram
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return 1 * time.Second
}

func runPolling(ctx context.Context, bot *tgbotapi.BotAPI, handle func(tgbotapi.Update)) {
	offset := 0
	baseDelay := 1 * time.Second
	maxDelay := 15 * time.Second

	for {
		select {
		case <-ctx.Done():
			log.Printf("polling: context cancelled")
			return
		default:
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := retryDelayFromError(err)
			if d < baseDelay {
				d = baseDelay
			}
			if d > maxDelay {
				d = maxDelay
			}
			log.Printf("polling error: %v; retry in %v", err, d)
			time.Sleep(d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		if len(updates) == 0 {
			time.Sleep(200 * time.Millisecond)
		}
	}
}
