// Command load-test opens many WebSocket clients against the snapshot hub and reports
// how quickly they receive dashboard snapshots.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"bridgeflow-backend/internal/broadcaster"
	"bridgeflow-backend/internal/scheduler"
	"bridgeflow-backend/internal/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	clients       = flag.Int("clients", 500, "Number of concurrent WebSocket clients")
	duration      = flag.Duration("duration", 60*time.Second, "Test duration")
	serverURL     = flag.String("url", "ws://localhost:8080/ws", "WebSocket endpoint of the backend")
	rampUp        = flag.Duration("rampup", 10*time.Second, "Time to connect all clients")
	printInterval = flag.Duration("print", 5*time.Second, "Statistics print interval")
)

type counters struct {
	active     atomic.Int64
	snapshots  atomic.Int64
	malformed  atomic.Int64
	errors     atomic.Int64
	firstTotal atomic.Int64 // summed connect-to-first-snapshot latency in microseconds
	firstCount atomic.Int64
}

func (c *counters) avgFirstSnapshot() time.Duration {
	n := c.firstCount.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(c.firstTotal.Load()/n) * time.Microsecond
}

func main() {
	flag.Parse()

	logger, err := utils.NewLogger(utils.LogConfig{Level: "info", Encoding: "console"})
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting snapshot load test",
		zap.Int("clients", *clients),
		zap.Duration("duration", *duration),
		zap.String("url", *serverURL),
		zap.Duration("rampUp", *rampUp))

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			logger.Info("Interrupted")
			cancel()
		case <-ctx.Done():
		}
	}()

	var (
		stats counters
		wg    sync.WaitGroup
	)
	go report(ctx, logger, &stats)

	interval := time.Duration(0)
	if *clients > 0 {
		interval = *rampUp / time.Duration(*clients)
	}

ramp:
	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go runClient(ctx, &wg, &stats)

		if interval > 0 {
			select {
			case <-ctx.Done():
				break ramp
			case <-time.After(interval):
			}
		}
	}

	<-ctx.Done()
	wg.Wait()

	logger.Info("Load test finished",
		zap.Int64("snapshots", stats.snapshots.Load()),
		zap.Int64("malformed", stats.malformed.Load()),
		zap.Int64("errors", stats.errors.Load()),
		zap.Duration("avgFirstSnapshot", stats.avgFirstSnapshot()))
}

func runClient(ctx context.Context, wg *sync.WaitGroup, stats *counters) {
	defer wg.Done()

	started := time.Now()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, *serverURL, nil)
	if err != nil {
		stats.errors.Add(1)
		return
	}
	stats.active.Add(1)
	defer stats.active.Add(-1)

	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}()

	first := true
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				stats.errors.Add(1)
			}
			return
		}

		var msg broadcaster.Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != scheduler.SnapshotMessage {
			stats.malformed.Add(1)
			continue
		}
		stats.snapshots.Add(1)
		if first {
			first = false
			stats.firstTotal.Add(time.Since(started).Microseconds())
			stats.firstCount.Add(1)
		}
	}
}

func report(ctx context.Context, logger *zap.Logger, stats *counters) {
	ticker := time.NewTicker(*printInterval)
	defer ticker.Stop()

	var last int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshots := stats.snapshots.Load()
			logger.Info("Load test progress",
				zap.Int64("active", stats.active.Load()),
				zap.Int64("snapshots", snapshots),
				zap.Int64("sinceLast", snapshots-last),
				zap.Int64("errors", stats.errors.Load()),
				zap.Duration("avgFirstSnapshot", stats.avgFirstSnapshot()))
			last = snapshots
		}
	}
}
