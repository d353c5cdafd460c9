package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/example/service-match/internal/notify"
	"github.com/example/service-match/internal/store"
)

var (
	pushesConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_pushes_consumed_total",
		Help: "Total push requests consumed",
	})
	pushesInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_pushes_invalid_total",
		Help: "Total invalid push requests received",
	})
	pushesDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_pushes_delivered_total",
		Help: "Total pushes delivered",
	})
	pushErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_push_errors_total",
		Help: "Total push delivery errors after retries",
	})
)

func init() {
	prometheus.MustRegister(pushesConsumed, pushesInvalid, pushesDelivered, pushErrors)
}

func main() {
	// allow some flags for local runs
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	brokersEnv := os.Getenv("KAFKA_BROKERS")
	brokers := []string{}
	if brokersEnv != "" {
		for _, b := range strings.Split(brokersEnv, ",") {
			if s := strings.TrimSpace(b); s != "" {
				brokers = append(brokers, s)
			}
		}
	} else {
		brokers = []string{"localhost:9092"}
	}

	topic := os.Getenv("KAFKA_PUSH_TOPIC")
	if topic == "" {
		topic = "push-notifications"
	}
	group := os.Getenv("KAFKA_GROUP")
	if group == "" {
		group = "service-match-notifier"
	}

	fcmEndpoint := os.Getenv("FCM_ENDPOINT")
	if fcmEndpoint == "" {
		log.Fatal("FCM_ENDPOINT is required")
	}
	fcm := notify.NewFCMClient(fcmEndpoint, os.Getenv("FCM_KEY"))

	// resolve device tokens from the users table when a database is
	// available; without one, routing falls to the endpoint
	if dsn := os.Getenv("PG_DSN"); dsn != "" {
		ps, err := store.NewPostgresStore(dsn)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer ps.Close()
		fcm.Resolve = ps.GetFCMToken
	}

	// start metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		log.Printf("metrics/health listening on %s", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 1, MaxBytes: 10e6})
	defer func() { _ = r.Close() }()

	log.Printf("notifier listening topic=%s brokers=%v group=%s", topic, brokers, group)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("shutting down notifier")
				return
			}
			log.Printf("kafka read error: %v; backing off %s", err, backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		// reset backoff on success
		backoff = time.Second

		pushesConsumed.Inc()

		var pr notify.PushRequest
		if err := json.Unmarshal(m.Value, &pr); err != nil || pr.UserID == "" {
			pushesInvalid.Inc()
			log.Printf("invalid push request: %v", err)
			continue
		}

		// Deliver with retries and small backoff; pushes are best-effort
		// so exhaustion drops the message rather than blocking the topic.
		if err := deliverWithRetry(ctx, fcm, pr, 3, 200*time.Millisecond); err != nil {
			pushErrors.Inc()
			log.Printf("push delivery failed for user=%s: %v", pr.UserID, err)
			continue
		}
		pushesDelivered.Inc()
	}
}

// Pusher defines the small subset of delivery operations we need for tests
// and production.
type Pusher interface {
	Push(ctx context.Context, pr notify.PushRequest) error
}

// deliverWithRetry sends one push using the Pusher interface with
// retry/backoff.
func deliverWithRetry(ctx context.Context, p Pusher, pr notify.PushRequest, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = p.Push(ctx, pr); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}
