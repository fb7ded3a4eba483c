// Package health provides process health, counters and the status server.
package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ihiteshgupta/groupguard/internal/config"
)

// Status is the snapshot served on /status.
type Status struct {
	Connected         bool      `json:"connected"`
	UptimeSeconds     int64     `json:"uptime_seconds"`
	LastUpdate        time.Time `json:"last_update"`
	ReconnectCount    int       `json:"reconnect_count"`
	CommandsProcessed int64     `json:"commands_processed"`
	MessagesProcessed int64     `json:"messages_processed"`
	Denials           int64     `json:"denials"`
	ModerationActions int64     `json:"moderation_actions"`

	// Checks holds the error text of every failing dependency check.
	Checks map[string]string `json:"checks,omitempty"`
}

// Check probes one dependency and returns nil when it is healthy.
type Check func(ctx context.Context) error

const checkTimeout = 2 * time.Second

type metrics struct {
	commands   *prometheus.CounterVec
	messages   prometheus.Counter
	denials    *prometheus.CounterVec
	moderation *prometheus.CounterVec
	restricts  *prometheus.CounterVec
	reconnects prometheus.Counter
	connected  prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "groupguard_commands_total",
			Help: "Number of commands received",
		}, []string{"command"}),
		messages: f.NewCounter(prometheus.CounterOpts{
			Name: "groupguard_messages_total",
			Help: "Number of plain messages processed",
		}),
		denials: f.NewCounterVec(prometheus.CounterOpts{
			Name: "groupguard_permission_denials_total",
			Help: "Number of commands rejected by a capability check",
		}, []string{"capability"}),
		moderation: f.NewCounterVec(prometheus.CounterOpts{
			Name: "groupguard_moderation_actions_total",
			Help: "Number of moderation actions applied",
		}, []string{"action"}),
		restricts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "groupguard_restriction_transitions_total",
			Help: "Number of restriction state transitions",
		}, []string{"to", "trigger"}),
		reconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "groupguard_poll_reconnects_total",
			Help: "Number of times update polling was restarted after a failure",
		}),
		connected: f.NewGauge(prometheus.GaugeOpts{
			Name: "groupguard_connected",
			Help: "1 while update polling is healthy",
		}),
	}
}

// Monitor tracks process health and manages reconnection delays.
type Monitor struct {
	config *config.Config
	log    *zap.Logger

	registry         *prometheus.Registry
	metrics          *metrics
	reconnectBackoff *backoff.ExponentialBackOff

	startTime         time.Time
	lastUpdate        time.Time
	connected         bool
	reconnectCount    int
	commandsProcessed atomic.Int64
	messagesProcessed atomic.Int64
	denials           atomic.Int64
	moderationActions atomic.Int64

	checks map[string]Check

	server *http.Server
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

// NewMonitor creates a new health monitor with its own metrics registry.
func NewMonitor(cfg *config.Config, log *zap.Logger) *Monitor {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.ReconnectBaseDelay
	bo.MaxInterval = cfg.ReconnectMaxDelay
	bo.MaxElapsedTime = 0 // Never stop based on elapsed time
	bo.Reset()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Monitor{
		config:           cfg,
		log:              log.Named("health"),
		registry:         reg,
		metrics:          newMetrics(reg),
		reconnectBackoff: bo,
		startTime:        time.Now(),
		checks:           make(map[string]Check),
	}
}

// Start serves /healthz, /status and /metrics when metrics are enabled.
func (m *Monitor) Start() error {
	m.mu.Lock()
	m.startTime = time.Now()
	m.mu.Unlock()

	if !m.config.MetricsEnabled {
		m.log.Info("health monitor started without status server")
		return nil
	}

	m.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", m.config.MetricsPort),
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Error("status server failed", zap.Error(err))
		}
	}()

	m.log.Info("health monitor started", zap.String("addr", m.server.Addr))
	return nil
}

// Stop shuts the status server down.
func (m *Monitor) Stop(ctx context.Context) {
	if m.server != nil {
		if err := m.server.Shutdown(ctx); err != nil {
			m.log.Warn("status server shutdown", zap.Error(err))
		}
	}
	m.wg.Wait()
	m.log.Info("health monitor stopped")
}

// Router builds the HTTP handler for the status server.
func (m *Monitor) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		if !m.Connected() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "disconnected"})
			return
		}
		if failed := m.RunChecks(c.Request.Context()); len(failed) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": failed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/status", func(c *gin.Context) {
		status := m.GetStatus()
		status.Checks = m.RunChecks(c.Request.Context())
		c.JSON(http.StatusOK, status)
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})))
	return router
}

// AddCheck registers a dependency check run by /healthz and /status.
func (m *Monitor) AddCheck(name string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// RunChecks runs every registered check and returns the failures by name.
func (m *Monitor) RunChecks(ctx context.Context) map[string]string {
	m.mu.RLock()
	checks := make(map[string]Check, len(m.checks))
	for name, check := range m.checks {
		checks[name] = check
	}
	m.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var failed map[string]string
	for name, check := range checks {
		if err := check(ctx); err != nil {
			if failed == nil {
				failed = make(map[string]string)
			}
			failed[name] = err.Error()
			m.log.Warn("health check failed", zap.String("check", name), zap.Error(err))
		}
	}
	return failed
}

// GetStatus returns the current health status.
func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Status{
		Connected:         m.connected,
		UptimeSeconds:     int64(time.Since(m.startTime).Seconds()),
		LastUpdate:        m.lastUpdate,
		ReconnectCount:    m.reconnectCount,
		CommandsProcessed: m.commandsProcessed.Load(),
		MessagesProcessed: m.messagesProcessed.Load(),
		Denials:           m.denials.Load(),
		ModerationActions: m.moderationActions.Load(),
	}
}

// Uptime returns how long the monitor has been running.
func (m *Monitor) Uptime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return time.Since(m.startTime)
}

// RecordCommand counts an inbound command.
func (m *Monitor) RecordCommand(name string) {
	m.commandsProcessed.Add(1)
	m.metrics.commands.WithLabelValues(name).Inc()
	m.touch()
}

// RecordMessage counts an inbound plain message.
func (m *Monitor) RecordMessage() {
	m.messagesProcessed.Add(1)
	m.metrics.messages.Inc()
	m.touch()
}

// RecordDenial counts a command rejected at the given capability tier.
func (m *Monitor) RecordDenial(capability string) {
	m.denials.Add(1)
	m.metrics.denials.WithLabelValues(capability).Inc()
}

// RecordModeration counts an applied moderation action.
func (m *Monitor) RecordModeration(action string) {
	m.moderationActions.Add(1)
	m.metrics.moderation.WithLabelValues(action).Inc()
}

// RecordTransition counts a restriction lifecycle transition.
func (m *Monitor) RecordTransition(to, trigger string) {
	m.metrics.restricts.WithLabelValues(to, trigger).Inc()
}

// CommandsProcessed returns the number of commands seen.
func (m *Monitor) CommandsProcessed() int64 {
	return m.commandsProcessed.Load()
}

// MessagesProcessed returns the number of plain messages seen.
func (m *Monitor) MessagesProcessed() int64 {
	return m.messagesProcessed.Load()
}

// Connected reports whether update polling is currently healthy.
func (m *Monitor) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// NextReconnectDelay marks the connection lost and returns the next
// polling retry delay using exponential backoff.
func (m *Monitor) NextReconnectDelay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connected = false
	m.reconnectCount++
	m.metrics.connected.Set(0)
	m.metrics.reconnects.Inc()
	return m.reconnectBackoff.NextBackOff()
}

// OnConnectionRestored should be called when polling succeeds again.
func (m *Monitor) OnConnectionRestored() {
	m.mu.Lock()
	defer m.mu.Unlock()

	wasConnected := m.connected
	m.connected = true
	m.reconnectBackoff.Reset()
	m.metrics.connected.Set(1)
	if !wasConnected {
		m.log.Info("connection restored, backoff reset")
	}
}

// GetReconnectCount returns the total number of reconnections.
func (m *Monitor) GetReconnectCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reconnectCount
}

func (m *Monitor) touch() {
	m.mu.Lock()
	m.lastUpdate = time.Now()
	m.mu.Unlock()
}
