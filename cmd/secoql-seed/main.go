// Command secoql-seed loads entity metadata records from a JSON file,
// embeds each entity name and writes them into the Redis entity index.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/civica-cloud/secoql/internal/config"
	dbRedis "github.com/civica-cloud/secoql/internal/db/redis"
	logpkg "github.com/civica-cloud/secoql/internal/logger"
	entityrepo "github.com/civica-cloud/secoql/internal/repository/entity"
	openaiTransport "github.com/civica-cloud/secoql/internal/transport/openai"
)

func main() {
	_ = godotenv.Load()

	source := flag.String("source", "", "path to a JSON array of entity records")
	flag.Parse()

	if *source == "" {
		fmt.Fprintln(os.Stderr, "usage: secoql-seed -source entities.json")
		os.Exit(2)
	}

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	if len(cfg.Database.Addrs) == 0 {
		logger.Fatal("database.addrs is required for seeding")
	}
	if cfg.Embed.APIKey == "" || cfg.Embed.Model == "" {
		logger.Fatal("embedding.api_key and embedding.model are required for seeding")
	}

	records, err := loadRecords(*source)
	if err != nil {
		logger.Fatal("Failed to load records", zap.String("source", *source), zap.Error(err))
	}
	if len(records) == 0 {
		logger.Fatal("No records found in source file", zap.String("source", *source))
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}

	embedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedConfig{
		APIKey:     cfg.Embed.APIKey,
		BaseURL:    cfg.Embed.BaseURL,
		Model:      cfg.Embed.Model,
		Dimensions: cfg.Embed.Dimensions,
		Logger:     logger,
	})
	repo := entityrepo.New(store, embedder, cfg.Embed.Dimensions, logger)

	if err := repo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure entity index", zap.Error(err))
	}

	inserted := 0
	for _, record := range records {
		name := recordName(record)
		if name == "" {
			logger.Warn("Skipping record without a name", zap.Any("record", record))
			continue
		}
		if err := repo.Upsert(ctx, name, record); err != nil {
			logger.Fatal("Failed to upsert entity", zap.String("name", name), zap.Error(err))
		}
		inserted++
	}

	logger.Info("Seeding complete",
		zap.Int("inserted", inserted),
		zap.Int("skipped", len(records)-inserted),
	)
}

func loadRecords(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse source: %w", err)
	}
	return records, nil
}

func recordName(record map[string]any) string {
	if name, ok := record["name"].(string); ok && name != "" {
		return name
	}
	if title, ok := record["title"].(string); ok && title != "" {
		return title
	}
	return ""
}
