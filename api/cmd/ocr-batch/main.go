// Command ocr-batch прогоняет набор PDF через удалённый OCR и складывает
// результаты в кэш и/или JSON-файл. Ошибка одного файла не останавливает остальные.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"golang.org/x/sync/errgroup"

	"pdf-chat/api/internal/config"
	"pdf-chat/api/internal/ocr"
	"pdf-chat/api/internal/session"
	"pdf-chat/api/internal/store"
	"pdf-chat/api/internal/util"
)

// Item: итог по одному файлу.
type Item struct {
	Path  string      `json:"path"`
	Hash  string      `json:"hash,omitempty"`
	Kind  string      `json:"kind,omitempty"`
	Error string      `json:"error,omitempty"`
	OCR   *ocr.Result `json:"ocr,omitempty"`
	Cache bool        `json:"cached,omitempty"`
}

type batch struct {
	engine ocr.Engine
	cache  *store.ResultCache
	opt    *ocr.Options
	limit  int
}

func main() {
	var (
		out      = flag.String("out", "", "write results as JSON to this file (default stdout)")
		parallel = flag.Int("parallel", 4, "concurrent OCR requests")
		model    = flag.String("model", "", "model size (tiny|small|base|large|gundam)")
		task     = flag.String("task", "", "task type (free|markdown|figure|locate)")
		ref      = flag.String("ref", "", "reference text for locate")
		useCache = flag.Bool("cache", true, "read/write the result cache (Postgres when configured)")
	)
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: ocr-batch [flags] <file.pdf|dir>...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg := config.Load()
	if *model != "" {
		cfg.OCRModelSize = *model
	}
	if *task != "" {
		cfg.OCRTaskType = *task
	}
	opt, err := cfg.DefaultOptions()
	if err != nil {
		log.Fatalf("options: %v", err)
	}
	opt.RefText = *ref

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	b := &batch{engine: cfg.OCRClient(), opt: &opt, limit: *parallel}
	if *useCache {
		b.cache = openCache(ctx, cfg)
	}

	paths, err := collect(flag.Args())
	if err != nil {
		log.Fatalf("collect: %v", err)
	}
	log.Printf("ocr-batch: %d file(s), parallel=%d", len(paths), b.limit)

	items := b.run(ctx, paths)
	failed := 0
	for _, it := range items {
		if it.Error != "" {
			failed++
		}
	}
	if err := writeJSON(*out, items); err != nil {
		log.Fatalf("write results: %v", err)
	}
	log.Printf("ocr-batch: done, %d ok, %d failed", len(items)-failed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func openCache(ctx context.Context, cfg *config.Config) *store.ResultCache {
	dsn := cfg.ResolveDSN()
	if dsn == "" {
		return store.NewResultCache(store.NewMemoryKV(), store.Policy(cfg.CacheMaxAge))
	}
	db, err := store.OpenPG(ctx, dsn)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	pg := store.NewPGKV(db)
	if err := pg.EnsureSchema(ctx); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}
	return store.NewResultCache(pg, store.Policy(cfg.CacheMaxAge))
}

// collect раскрывает каталоги в список *.pdf.
func collect(args []string) ([]string, error) {
	var paths []string
	for _, a := range args {
		fi, err := os.Stat(a)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			paths = append(paths, a)
			continue
		}
		err = filepath.WalkDir(a, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".pdf") {
				paths = append(paths, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// run обрабатывает файлы с ограничением параллельности; порядок результата = порядок paths.
func (b *batch) run(ctx context.Context, paths []string) []Item {
	items := make([]Item, len(paths))
	var g errgroup.Group
	if b.limit > 0 {
		g.SetLimit(b.limit)
	}
	var mu sync.Mutex
	done := 0
	for i, p := range paths {
		g.Go(func() error {
			items[i] = b.one(ctx, p)
			mu.Lock()
			done++
			log.Printf("ocr-batch: [%d/%d] %s %s", done, len(paths), p, status(items[i]))
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return items
}

func status(it Item) string {
	switch {
	case it.Error != "":
		return "FAILED: " + it.Error
	case it.Cache:
		return "ok (cached)"
	default:
		return "ok"
	}
}

func (b *batch) one(ctx context.Context, path string) Item {
	it := Item{Path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		it.Error = err.Error()
		return it
	}
	if !util.IsPDF(data) {
		it.Error = "not a PDF"
		return it
	}
	it.Hash = util.SHA256Hex(data)
	id := session.CacheID(it.Hash, b.opt)

	if b.cache != nil {
		if res, ok := b.cache.Retrieve(ctx, id); ok {
			it.OCR, it.Cache = &res, true
			return it
		}
	}

	rctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()
	res, err := b.engine.Process(rctx, data, filepath.Base(path), b.opt)
	if err != nil {
		it.Kind, it.Error = ocr.KindOf(err).String(), err.Error()
		return it
	}
	if b.cache != nil {
		if err := b.cache.Store(ctx, id, res); err != nil {
			log.Printf("ocr-batch: cache store %s: %v", path, err)
		}
	}
	it.OCR = &res
	return it
}

func writeJSON(path string, items []Item) error {
	w := os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}
