package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"pdf-chat/api/internal/chat"
	"pdf-chat/api/internal/config"
	"pdf-chat/api/internal/handle"
	"pdf-chat/api/internal/httpserver"
	"pdf-chat/api/internal/ocr"
	"pdf-chat/api/internal/session"
	"pdf-chat/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

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
	}
	cache := store.NewResultCache(kv, store.Policy(cfg.CacheMaxAge))

	defOpts, _ := cfg.DefaultOptions()
	engine := cfg.OCRClient()

	widget := chat.NewResponder(chat.WidgetReply)
	document := chat.NewResponder(chat.DocumentReply)
	for _, r := range []*chat.Responder{widget, document} {
		r.MinDelay, r.MaxDelay = cfg.ChatMinDelay, cfg.ChatMaxDelay
	}
	sessions := session.NewRegistry(widget, document)
	intake := session.NewIntake(engine, cache)

	mux := http.NewServeMux()
	httpserver.RegisterHealth(mux, db)
	handle.New(engine, sessions, intake, ocr.NewManager(defOpts)).Register(mux)

	log.Printf("pdfchat-api: ocr endpoint %s", engine.Endpoint())
	log.Fatal(httpserver.Serve(":"+cfg.Port, mux))
}
