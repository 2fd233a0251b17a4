package api

import (
    "bufio"
    "errors"
    "net"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/sirupsen/logrus"

    "vrptw/internal/metrics"
)

// statusWriter captures the final HTTP status code and number of bytes written.
type statusWriter struct {
    http.ResponseWriter
    status int
    bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
    w.status = code
    w.ResponseWriter.WriteHeader(code)
}

// Record implicit 200 responses when handlers write without calling WriteHeader.
func (w *statusWriter) Write(b []byte) (int, error) {
    if w.status == 0 {
        w.status = http.StatusOK
    }
    n, err := w.ResponseWriter.Write(b)
    w.bytes += n
    return n, err
}

// Hijack lets the WebSocket upgrader take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
    h, ok := w.ResponseWriter.(http.Hijacker)
    if !ok {
        return nil, nil, errors.New("hijack not supported")
    }
    w.status = http.StatusSwitchingProtocols
    return h.Hijack()
}

// routeLabel folds run ids out of the path so metric labels stay bounded.
func routeLabel(path string) string {
    rest, ok := strings.CutPrefix(path, "/v1/runs/")
    if !ok || rest == "" {
        return path
    }
    if strings.HasSuffix(rest, "/ws") {
        return "/v1/runs/{id}/ws"
    }
    return "/v1/runs/{id}"
}

// instrument logs every request and records request metrics.
func instrument(log logrus.FieldLogger, next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        sw := &statusWriter{ResponseWriter: w}
        next.ServeHTTP(sw, r)
        if sw.status == 0 {
            sw.status = http.StatusOK
        }
        dur := time.Since(start)
        route := routeLabel(r.URL.Path)
        code := strconv.Itoa(sw.status)
        metrics.HTTPRequests.WithLabelValues(r.Method, route, code).Inc()
        metrics.HTTPDuration.WithLabelValues(r.Method, route, code).Observe(dur.Seconds())
        log.WithFields(logrus.Fields{
            "method": r.Method, "path": r.URL.RequestURI(), "status": sw.status,
            "bytes": sw.bytes, "dur": dur.Round(time.Microsecond), "remote": r.RemoteAddr,
        }).Debug("request")
    })
}
