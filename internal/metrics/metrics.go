// Package metrics exports daemon counters and registry sizes to Prometheus.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/1broseidon/autumn/internal/platform"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the daemon updates. It implements
// desktop.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	// Registry sizes
	Apps    prometheus.Gauge
	Windows prometheus.Gauge
	Screens prometheus.Gauge

	// Event and command counts
	Notifications  *prometheus.CounterVec
	CommandsFailed *prometheus.CounterVec
	ScriptReloads  *prometheus.CounterVec
	Reconciles     *prometheus.CounterVec

	Uptime    prometheus.GaugeFunc
	startTime time.Time
}

// New creates collectors on a private registry, including the Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		Apps: f.NewGauge(prometheus.GaugeOpts{
			Name: "autumn_apps",
			Help: "Number of tracked applications",
		}),
		Windows: f.NewGauge(prometheus.GaugeOpts{
			Name: "autumn_windows",
			Help: "Number of tracked windows",
		}),
		Screens: f.NewGauge(prometheus.GaugeOpts{
			Name: "autumn_screens",
			Help: "Number of tracked screens",
		}),

		Notifications: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autumn_notifications_total",
				Help: "OS notifications delivered to the registries",
			},
			[]string{"notification"},
		),
		CommandsFailed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autumn_commands_failed_total",
				Help: "Entity commands that could not be completed",
			},
			[]string{"command"},
		),
		ScriptReloads: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autumn_script_reloads_total",
				Help: "Script reloads by outcome",
			},
			[]string{"status"},
		),
		Reconciles: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autumn_reconciles_total",
				Help: "Reconciliation passes by outcome",
			},
			[]string{"status"},
		),
	}
	m.Uptime = f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "autumn_uptime_seconds",
		Help: "Seconds since the daemon started",
	}, func() float64 { return time.Since(m.startTime).Seconds() })
	return m
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Notification counts one delivered notification.
func (m *Metrics) Notification(n platform.Notification) {
	m.Notifications.WithLabelValues(string(n)).Inc()
}

// CommandFailed counts one failed entity command.
func (m *Metrics) CommandFailed(op string) {
	m.CommandsFailed.WithLabelValues(op).Inc()
}

// SetSizes records the current registry sizes.
func (m *Metrics) SetSizes(apps, windows, screens int) {
	m.Apps.Set(float64(apps))
	m.Windows.Set(float64(windows))
	m.Screens.Set(float64(screens))
}

// ScriptReloaded counts a reload attempt.
func (m *Metrics) ScriptReloaded(err error) {
	m.ScriptReloads.WithLabelValues(status(err)).Inc()
}

// Reconciled counts a reconciliation pass.
func (m *Metrics) Reconciled(err error) {
	m.Reconciles.WithLabelValues(status(err)).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
