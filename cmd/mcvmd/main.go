// Command mcvmd runs the long-lived resolver service: it syncs configured
// repositories on an interval and serves /v1/resolve, /v1/health, /metrics,
// and /ws over HTTP.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcvm-launcher/mcvm-sub000/internal/cache"
	"github.com/mcvm-launcher/mcvm-sub000/internal/config"
	"github.com/mcvm-launcher/mcvm-sub000/internal/contentstore"
	"github.com/mcvm-launcher/mcvm-sub000/internal/logging"
	"github.com/mcvm-launcher/mcvm-sub000/internal/repoindex"
	"github.com/mcvm-launcher/mcvm-sub000/internal/resolver"
	"github.com/mcvm-launcher/mcvm-sub000/internal/server"
	"github.com/mcvm-launcher/mcvm-sub000/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.NewLogger("mcvmd")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(&store.Config{
		Host: cfg.DBHost, Port: cfg.DBPort, Username: cfg.DBUser,
		Password: cfg.DBPassword, DatabaseName: cfg.DBName, SSLMode: cfg.DBSSLMode,
	})
	if err != nil {
		logger.Warn(ctx, "running without durable run history", logging.Err(err))
	} else if err := st.AutoMigrate(); err != nil {
		logger.Warn(ctx, "store migration failed", logging.Err(err))
	}

	redisCache, err := cache.New(ctx, cache.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Warn(ctx, "running without redis cache", logging.Err(err))
	}

	repos := loadRepositories()
	idx := repoindex.NewIndex(repos...)
	if err := idx.SyncAll(ctx); err != nil {
		logger.Warn(ctx, "initial repository sync failed", logging.Err(err))
	}
	go syncLoop(ctx, idx, logger)

	r := resolver.New(idx).WithStore(contentstore.New(cfg.ContentStoreRoot))
	srv := server.New(r, logger)
	if redisCache != nil {
		srv = srv.WithCache(redisCache)
	}
	if st != nil {
		srv = srv.WithStore(st)
	}

	logger.Info(ctx, "mcvmd starting", logging.String("port", cfg.Port), logging.String("mode", cfg.Mode))
	if err := srv.Run(ctx, ":"+cfg.Port); err != nil {
		logger.Error(ctx, "server exited with error", logging.Err(err))
		os.Exit(1)
	}
}

// loadRepositories builds the default repository order (preferred, core,
// std, backup) from MCVM_REPO_* environment variables. A deployment with no
// repositories configured still starts; every resolve will simply report
// unknown_package until at least one is added.
func loadRepositories() []*repoindex.Repository {
	var repos []*repoindex.Repository
	add := func(id, kind, base string) {
		if base == "" {
			return
		}
		repos = append(repos, &repoindex.Repository{
			ID: id, Kind: repoindex.Kind(kind), Enabled: true,
			Base: base, Remote: isURL(base),
		})
	}
	add("preferred", "preferred", os.Getenv("MCVM_REPO_PREFERRED"))
	add("core", "core", os.Getenv("MCVM_REPO_CORE"))
	add("std", "std", os.Getenv("MCVM_REPO_STD"))
	add("backup", "backup", os.Getenv("MCVM_REPO_BACKUP"))
	return repos
}

func isURL(s string) bool {
	for i := 0; i+2 < len(s); i++ {
		if s[i] == ':' && s[i+1] == '/' && s[i+2] == '/' {
			return true
		}
	}
	return false
}

// syncLoop re-syncs every repository every 15 minutes so index.json edits
// become visible without restarting mcvmd.
func syncLoop(ctx context.Context, idx *repoindex.Index, logger logging.Logger) {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := idx.SyncAll(ctx); err != nil {
				logger.Warn(ctx, "periodic repository sync failed", logging.Err(err))
			}
		}
	}
}
