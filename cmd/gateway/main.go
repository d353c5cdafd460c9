package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/example/service-match/internal/config"
	"github.com/example/service-match/internal/gateway"
	"github.com/example/service-match/internal/ingest"
	"github.com/example/service-match/internal/logging"
	"github.com/example/service-match/internal/match"
	"github.com/example/service-match/internal/nego"
	"github.com/example/service-match/internal/notify"
	"github.com/example/service-match/internal/payments"
	"github.com/example/service-match/internal/rooms"
	"github.com/example/service-match/internal/session"
	"github.com/example/service-match/internal/store"
)

func main() {
	cfg, err := config.LoadGatewayConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	// optional migration
	if cfg.PGDSN != "" && cfg.RunMigrations {
		if db, err := sql.Open("postgres", cfg.PGDSN); err == nil {
			if b, err := os.ReadFile(filepath.Join("migrations", "001_create_marketplace.sql")); err == nil {
				if _, err := db.Exec(string(b)); err != nil {
					logger.Error("migration exec error", "error", err)
				} else {
					logger.Info("migration applied", "file", "001_create_marketplace.sql")
				}
			}
			_ = db.Close()
		} else {
			logger.Error("migration db open error", "error", err)
		}
	}

	var st store.Facade
	if cfg.PGDSN != "" {
		ps, err := store.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer ps.Close()
		st = ps
	} else {
		logger.Warn("PG_DSN not set, using in-memory store")
		st = store.NewMemoryStore()
	}

	var verifier session.Verifier
	if cfg.RedisAddr != "" {
		rv := session.NewRedisVerifier(cfg.RedisAddr, cfg.RedisPassword, cfg.SessionKeyPrefix)
		defer rv.Close()
		verifier = rv
	} else if tokens := os.Getenv("DEV_SESSION_TOKENS"); tokens != "" {
		logger.Warn("REDIS_ADDR not set, using static dev sessions")
		verifier = devVerifier(tokens)
	} else {
		log.Fatal("REDIS_ADDR is required (or DEV_SESSION_TOKENS for local runs)")
	}

	var dispatcher notify.Dispatcher
	switch {
	case len(cfg.KafkaBrokers) > 0 && cfg.KafkaPushTopic != "":
		kd := notify.NewKafkaDispatcher(cfg.KafkaBrokers, cfg.KafkaPushTopic)
		defer kd.Close()
		dispatcher = kd
	case cfg.FCMEndpoint != "":
		fcm := notify.NewFCMClient(cfg.FCMEndpoint, cfg.FCMKey)
		fcm.Resolve = st.GetFCMToken
		dispatcher = fcm
	default:
		dispatcher = &notify.LogDispatcher{Logger: logger}
	}

	var deposits nego.Deposits
	if os.Getenv("STRIPE_API_KEY") != "" {
		deposits = payments.NewStripeClient()
	} else {
		logger.Warn("STRIPE_API_KEY not set, deposit flow disabled")
	}

	reg := rooms.NewRegistry(logger)
	mc := &match.Coordinator{Rooms: reg, Store: st, Dispatch: dispatcher, Logger: logger}
	nc := &nego.Coordinator{Rooms: reg, Store: st, Dispatch: dispatcher, Deposits: deposits, Logger: logger}
	srv := gateway.NewServer(cfg, logger, reg, mc, nc, st, verifier)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaRequestTopic != "" {
		reader := ingest.NewReader(cfg.KafkaBrokers, cfg.KafkaRequestTopic, cfg.KafkaGroup, logger)
		defer reader.Close()
		go reader.Run(ctx, srv.HandleEnvelope)
	}

	httpSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("gateway listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}

// devVerifier parses "token=userID:role,token2=userID2:role2".
func devVerifier(spec string) session.StaticVerifier {
	v := session.StaticVerifier{}
	for _, pair := range strings.Split(spec, ",") {
		token, ident, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		userID, role, ok := strings.Cut(ident, ":")
		if !ok {
			continue
		}
		v[token] = session.Binding{UserID: userID, Role: session.Role(role)}
	}
	return v
}
