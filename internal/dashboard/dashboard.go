// Package dashboard serves a tiny HTTP debug page and JSON stats feed
// on a separate port from the game listener, mirroring the original
// server's standalone debug HTTP server. It is read-only: nothing here
// ever touches world, player, or visibility state directly, only the
// stats.Sink snapshot and a Prometheus registry.
package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dyewars/server/internal/stats"
)

// Server is the debug dashboard's HTTP server. Two routes matter:
// /stats (JSON snapshot) and / (the static polling page); /metrics is
// added for Prometheus scraping since client_golang is already in the
// dependency graph for the JSON stats themselves.
type Server struct {
	httpSrv *http.Server
	log     *zap.Logger
}

// New builds a dashboard server bound to addr (e.g. ":8081"), reading
// stats from sink and serving, on /metrics, a dedicated Prometheus
// registry that holds a collector over sink.
func New(addr string, sink *stats.Sink, log *zap.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{log: log}

	mux.HandleFunc("/stats", s.withDebugHeaders(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err := json.NewEncoder(w).Encode(sink.Snapshot()); err != nil {
			log.Warn("failed to encode stats snapshot", zap.Error(err))
		}
	}))
	mux.HandleFunc("/", s.withDebugHeaders(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(dashboardHTML))
	}))
	reg := prometheus.NewRegistry()
	reg.MustRegister(stats.NewPromCollector(sink))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return s
}

// withDebugHeaders applies the debug server's response headers: open
// CORS so a dashboard can be hosted anywhere, and a forced connection
// close since this server expects very low, bursty traffic rather than
// keep-alive reuse.
func (s *Server) withDebugHeaders(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Connection", "close")
		h(w, r)
	}
}

// Run starts the server and blocks until ctx is canceled or the server
// fails to start.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("debug dashboard listening", zap.String("addr", s.httpSrv.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		return err
	}
}

const dashboardHTML = `<!DOCTYPE html>
<html>
<head>
    <title>DyeWars Server Debug</title>
    <meta charset="utf-8">
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: 'Segoe UI', Consolas, monospace;
            background: #1a1a2e;
            color: #eee;
            padding: 20px;
        }
        h1 { color: #00d4ff; margin-bottom: 20px; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(300px, 1fr)); gap: 20px; }
        .card {
            background: #16213e;
            border-radius: 10px;
            padding: 20px;
            border: 1px solid #0f3460;
        }
        .card h2 { color: #00d4ff; font-size: 14px; margin-bottom: 15px; text-transform: uppercase; }
        .stat { display: flex; justify-content: space-between; padding: 8px 0; border-bottom: 1px solid #0f3460; }
        .stat:last-child { border-bottom: none; }
        .stat-label { color: #888; }
        .stat-value { color: #00ff88; font-weight: bold; }
        .stat-value.warning { color: #ffaa00; }
        .stat-value.danger { color: #ff4444; }
        .status { display: inline-block; width: 10px; height: 10px; border-radius: 50%; margin-right: 8px; }
        .status.online { background: #00ff88; }
        .status.offline { background: #ff4444; }
        #refresh-indicator { position: fixed; top: 10px; right: 10px; color: #666; font-size: 12px; }
    </style>
</head>
<body>
    <h1><span class="status online" id="status"></span>DyeWars Server Debug</h1>
    <div id="refresh-indicator">Refreshing...</div>

    <div class="grid">
        <div class="card">
            <h2>Performance</h2>
            <div class="stat"><span class="stat-label">Tick Time (avg)</span><span class="stat-value" id="tick-avg">-</span></div>
            <div class="stat"><span class="stat-label">Tick Time (max)</span><span class="stat-value" id="tick-max">-</span></div>
            <div class="stat"><span class="stat-label">TPS</span><span class="stat-value" id="tps">-</span></div>
        </div>

        <div class="card">
            <h2>Connections</h2>
            <div class="stat"><span class="stat-label">Real Clients</span><span class="stat-value" id="real-clients">-</span></div>
            <div class="stat"><span class="stat-label">Fake Clients (Bots)</span><span class="stat-value" id="fake-clients">-</span></div>
            <div class="stat"><span class="stat-label">Total Players</span><span class="stat-value" id="total-players">-</span></div>
        </div>

        <div class="card">
            <h2>World</h2>
            <div class="stat"><span class="stat-label">Visibility Tracked</span><span class="stat-value" id="visibility">-</span></div>
            <div class="stat"><span class="stat-label">Dirty Players/Tick</span><span class="stat-value" id="dirty-players">-</span></div>
        </div>

        <div class="card">
            <h2>Bandwidth (Out)</h2>
            <div class="stat"><span class="stat-label">Current</span><span class="stat-value" id="bytes-out">-</span></div>
            <div class="stat"><span class="stat-label">Average</span><span class="stat-value" id="bytes-out-avg">-</span></div>
            <div class="stat"><span class="stat-label">Total</span><span class="stat-value" id="bytes-out-total">-</span></div>
            <div class="stat"><span class="stat-label">Packets/sec</span><span class="stat-value" id="packets-out">-</span></div>
        </div>

        <div class="card">
            <h2>Broadcast Breakdown</h2>
            <div class="stat"><span class="stat-label">Total Time</span><span class="stat-value" id="broadcast-time">-</span></div>
            <div class="stat"><span class="stat-label">Viewer Query</span><span class="stat-value" id="broadcast-viewer">-</span></div>
            <div class="stat"><span class="stat-label">Client Lookup</span><span class="stat-value" id="broadcast-lookup">-</span></div>
            <div class="stat"><span class="stat-label">Packet Send</span><span class="stat-value" id="broadcast-send">-</span></div>
            <div class="stat"><span class="stat-label">Viewer Count</span><span class="stat-value" id="broadcast-viewers">-</span></div>
            <div class="stat"><span class="stat-label">Dirty Count</span><span class="stat-value" id="broadcast-dirty">-</span></div>
        </div>
    </div>

    <script>
        function formatBytes(bytes) {
            if (bytes < 1024) return bytes + ' B';
            if (bytes < 1024 * 1024) return (bytes / 1024).toFixed(1) + ' KB';
            return (bytes / 1024 / 1024).toFixed(2) + ' MB';
        }
        function formatMs(ms) { return ms.toFixed(2) + ' ms'; }

        function setValueWithClass(id, value, thresholds) {
            const el = document.getElementById(id);
            el.textContent = value;
            el.className = 'stat-value';
            if (thresholds) {
                const numVal = parseFloat(value);
                if (numVal >= thresholds.danger) el.classList.add('danger');
                else if (numVal >= thresholds.warning) el.classList.add('warning');
            }
        }

        async function refresh() {
            try {
                const res = await fetch('/stats');
                const data = await res.json();

                document.getElementById('status').className = 'status online';
                document.getElementById('refresh-indicator').textContent = 'Last update: ' + new Date().toLocaleTimeString();

                setValueWithClass('tick-avg', formatMs(data.tick_avg_ms || 0), {warning: 40, danger: 50});
                setValueWithClass('tick-max', formatMs(data.tick_max_ms || 0), {warning: 50, danger: 100});
                document.getElementById('tps').textContent = (data.tps || 0).toFixed(1);

                document.getElementById('real-clients').textContent = data.real_clients || 0;
                document.getElementById('fake-clients').textContent = data.fake_clients || 0;
                document.getElementById('total-players').textContent = data.total_players || 0;

                document.getElementById('visibility').textContent = data.visibility_tracked || 0;
                document.getElementById('dirty-players').textContent = data.dirty_players || 0;

                document.getElementById('bytes-out').textContent = formatBytes(data.bytes_out_per_sec || 0) + '/s';
                document.getElementById('bytes-out-avg').textContent = formatBytes(data.bytes_out_avg || 0) + '/s';
                document.getElementById('bytes-out-total').textContent = formatBytes(data.bytes_out_total || 0);
                document.getElementById('packets-out').textContent = data.packets_out_per_sec || 0;

                setValueWithClass('broadcast-time', formatMs(data.broadcast_time_ms || 0), {warning: 20, danger: 40});
                setValueWithClass('broadcast-viewer', formatMs(data.broadcast_viewer_ms || 0), {warning: 10, danger: 20});
                setValueWithClass('broadcast-lookup', formatMs(data.broadcast_lookup_ms || 0), {warning: 5, danger: 10});
                setValueWithClass('broadcast-send', formatMs(data.broadcast_send_ms || 0), {warning: 10, danger: 20});
                document.getElementById('broadcast-viewers').textContent = data.broadcast_viewer_count || 0;
                document.getElementById('broadcast-dirty').textContent = data.broadcast_dirty_count || 0;
            } catch (e) {
                document.getElementById('status').className = 'status offline';
                document.getElementById('refresh-indicator').textContent = 'Connection lost';
            }
        }

        refresh();
        setInterval(refresh, 500);
    </script>
</body>
</html>
`
