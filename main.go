package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rustyguts/screenrelay/store"
)

func main() {
	if len(os.Args) > 1 {
		cliDB := "screenrelay.db"
		if RunCLI(os.Args[1:], cliDB) {
			return
		}
	}

	addr := flag.String("addr", ":8765", "WebSocket listen address")
	port := flag.Int("p", 0, "alias for the port portion of -addr (0 keeps -addr's port)")
	flag.IntVar(port, "port", 0, "alias for -p")
	daemon := flag.Bool("d", false, "run detached from a controlling terminal (advisory only)")
	flag.BoolVar(daemon, "daemon", false, "alias for -d")
	apiAddr := flag.String("api-addr", ":8080", "REST API listen address (empty to disable)")
	dbPath := flag.String("db", "", "optional SQLite diagnostic database path (empty disables persistence, §6)")
	idleTimeout := flag.Duration("idle-timeout", 30*time.Second, "HTTP idle timeout")
	heartbeatWindowFlag := flag.Duration("heartbeat-window", heartbeatWindow, "liveness window before a user is reaped")
	heartbeatTick := flag.Duration("heartbeat-tick", reaperTick, "liveness reaper sweep interval")
	roomReapIntervalFlag := flag.Duration("room-reap-interval", roomReapInterval, "empty-room reaper sweep interval")
	maxConnections := flag.Int("max-connections", 500, "maximum total WebSocket connections (0 disables the limit)")
	perIPLimit := flag.Int("per-ip-limit", 10, "maximum connections per IP address (0 disables the cap)")
	controlRateLimitFlag := flag.Int("control-rate-limit", controlRateLimit, "maximum control messages per second per connection (0 disables)")
	useTLS := flag.Bool("tls", false, "serve over a self-signed TLS certificate instead of plain ws:// (§6 non-secure by default)")
	certValidity := flag.Duration("cert-validity", 24*time.Hour, "self-signed TLS certificate validity, when -tls is set")
	testPublisherRoom := flag.String("test-publisher-room", "", "room id to feed synthetic binary frames into (empty disables)")
	flag.Parse()

	if *port != 0 {
		host, _, err := net.SplitHostPort(*addr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -addr %q: %v\n", *addr, err)
			os.Exit(1)
		}
		if *port < 1 || *port > 65535 {
			fmt.Fprintf(os.Stderr, "invalid -p/-port %d: must be 1-65535\n", *port)
			os.Exit(1)
		}
		*addr = net.JoinHostPort(host, strconv.Itoa(*port))
	}
	if *daemon {
		log.Printf("[server] -d/-daemon set (advisory only, no process detachment is performed)")
	}

	var st *store.Store
	if *dbPath != "" {
		var err error
		st, err = store.New(*dbPath)
		if err != nil {
			log.Fatalf("[store] %v", err)
		}
		defer st.Close()
	}

	hub := NewHub(st, *heartbeatWindowFlag)

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	router := NewRouter(hub, *controlRateLimitFlag, metrics)

	var tlsConfig *tls.Config
	var tlsFingerprint string
	if *useTLS {
		host := ""
		if h, _, err := net.SplitHostPort(*addr); err == nil {
			host = h
		}
		info, err := generateTLSConfig(*certValidity, host)
		if err != nil {
			log.Fatalf("[server] %v", err)
		}
		log.Printf("[server] TLS certificate fingerprint: %s (expires %s)", info.Fingerprint, info.NotAfter.Format(time.RFC3339))
		tlsConfig = info.Config
		tlsFingerprint = info.Fingerprint
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Println("[server] shutting down...")
		cancel()
	}()

	go RunLivenessReaper(ctx, hub, *heartbeatTick, metrics)
	go RunRoomReaper(ctx, hub.Rooms, *roomReapIntervalFlag, metrics)
	go RunMetricsSampler(ctx, hub, metrics, 5*time.Second)

	if *apiAddr != "" {
		api := NewAPIServer(hub, st, reg, tlsFingerprint)
		go api.Run(ctx, *apiAddr)
		log.Printf("[api] listening on %s", *apiAddr)
	}

	if *testPublisherRoom != "" {
		log.Printf("[server] starting synthetic %s", testPublisherLabel(*testPublisherRoom))
		go RunTestPublisher(ctx, *addr, tlsConfig, *testPublisherRoom, 20*time.Millisecond)
	}

	srv := NewWSServer(*addr, tlsConfig, *idleTimeout, hub, router, *maxConnections, *perIPLimit)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("[server] %v", err)
	}
}
