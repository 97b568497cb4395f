package main

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/converge-game/go-server/internal/game"
	"github.com/converge-game/go-server/internal/httpserver"
	"github.com/converge-game/go-server/internal/scoring"
	"github.com/converge-game/go-server/internal/store"
)

func main() {
	_ = godotenv.Load()
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	scorer, err := buildScorer()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize scorer")
	}

	games, users, err := buildStores()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}

	srv := httpserver.New(games, users, scorer)
	port := getEnv("PORT", "3024")
	log.Info().Str("port", port).Str("backend", getEnv("STORE_BACKEND", "memory")).Msg("starting converge server")
	if err := srv.Start(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

// buildScorer picks the round scorer: embedding-based when configured
// (SCORER=embedding, vectors from EMBEDDINGS_FILE or the embedded sample),
// exact-match otherwise.
func buildScorer() (game.Scorer, error) {
	switch getEnv("SCORER", "embedding") {
	case "exact":
		return scoring.NewExact(), nil
	default:
		return scoring.NewEmbeddings(os.Getenv("EMBEDDINGS_FILE"))
	}
}

// buildStores selects the repository backend from STORE_BACKEND:
// memory (default), sqlite, or redis. Users ride on SQLite when it is the
// game backend and fall back to memory otherwise.
func buildStores() (store.Store, store.UserStore, error) {
	switch strings.ToLower(getEnv("STORE_BACKEND", "memory")) {
	case "sqlite":
		db, err := openDB(getEnv("SQLITE_DSN", "./data/converge.db"))
		if err != nil {
			return nil, nil, err
		}
		if err := migrate(db); err != nil {
			return nil, nil, err
		}
		return store.NewSQLite(db), store.NewSQLiteUsers(db), nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		return store.NewRedis(rdb), store.NewMemoryUsers(), nil

	default:
		return store.NewMemory(), store.NewMemoryUsers(), nil
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
