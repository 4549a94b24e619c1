// Command chatserver runs the iChat UDP chat server: roster, history
// replay, command routing, idle-ping-evict liveness, and the ambient
// admin/audit stack described in SPEC_FULL.md §10/§11. Grounded on the
// teacher's server/main.go: flag-based configuration, a context canceled on
// SIGINT/SIGTERM, and background goroutines for each periodic subsystem.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ichat/internal/adminhttp"
	"ichat/internal/audit"
	"ichat/internal/history"
	"ichat/internal/liveness"
	"ichat/internal/ratelimit"
	"ichat/internal/roster"
	"ichat/internal/router"
	"ichat/internal/server"
)

func main() {
	addr := flag.String("addr", ":9000", "UDP listen address")
	tick := flag.Duration("tick", liveness.DefaultTick, "liveness monitor sweep interval")
	idleTimeout := flag.Duration("idle", liveness.DefaultIdleTimeout, "inactivity duration before a client is pinged")
	pingTimeout := flag.Duration("ping-timeout", liveness.DefaultPingTimeout, "time to wait for ret-ping before evicting a client")
	historySize := flag.Int("history", history.Capacity, "number of recent chat lines replayed to new connections")
	rateLimit := flag.Float64("rate", ratelimit.DefaultRate, "maximum datagrams per second accepted per source address")
	rateBurst := flag.Int("rate-burst", ratelimit.DefaultBurst, "burst allowance for the per-address rate limiter")
	auditDB := flag.String("audit-db", "ichat_audit.db", "SQLite database path for the kick audit log (empty to disable)")
	adminAddr := flag.String("admin-http", ":9001", "read-only admin HTTP listen address (empty to disable)")
	flag.Parse()

	var auditLog *audit.Log
	if *auditDB != "" {
		var err error
		auditLog, err = audit.Open(*auditDB)
		if err != nil {
			log.Fatalf("[audit] %v", err)
		}
		defer auditLog.Close()
	}

	r := roster.New()
	h := history.New(*historySize)
	pending := liveness.NewPendingSet()
	limiter := ratelimit.New(*rateLimit, *rateBurst)

	// auditLogger stays a nil router.AuditLogger (not a non-nil interface
	// boxing a nil *audit.Log) when -audit-db is empty, so handleKick's
	// "rt.Audit != nil" check works as intended instead of dereferencing a
	// nil *audit.Log.
	var auditLogger router.AuditLogger
	if auditLog != nil {
		auditLogger = auditLog
	}

	rt := router.New(r, h, pending, nil, auditLogger)
	rt.Forgetter = limiter
	monitor := liveness.New(r, pending, nil, rt)
	monitor.Tick = *tick
	monitor.IdleTimeout = *idleTimeout
	monitor.PingTimeout = *pingTimeout
	monitor.Forgetter = limiter

	srv := server.NewServer(*addr, rt, monitor, limiter)
	rt.Out = srv
	monitor.Sender = srv

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[chatserver] shutting down...")
		cancel()
	}()

	if *adminAddr != "" {
		admin := adminhttp.New(r, auditLog)
		go admin.Run(ctx, *adminAddr)
		log.Printf("[chatserver] admin http listening on %s", *adminAddr)
	}

	log.Printf("[chatserver] listening on %s", *addr)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("[chatserver] %v", err)
	}
}
