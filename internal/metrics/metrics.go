package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	uploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "uploads_total",
		Help: "Upload requests by result.",
	}, []string{"result"})

	uploadBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "upload_bytes_total",
		Help: "Bytes persisted by the upload store.",
	})

	mongoReconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mongo_reconnects_total",
		Help: "Reconnect cycles started after a lost database connection.",
	})

	mongoConnectionState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mongo_connection_state",
		Help: "Connection manager state (0 unconnected, 1 connecting, 2 connected, 3 failed, 4 closed).",
	})

	initOnce sync.Once
)

// InitMetrics registers the collectors with the default registry. Safe to call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			requestsTotal,
			requestDuration,
			uploadsTotal,
			uploadBytesTotal,
			mongoReconnectsTotal,
			mongoConnectionState,
		)
	})
}

// Middleware records request counts and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		requestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

// UploadSucceeded counts an accepted upload request and the bytes it stored.
func UploadSucceeded(bytes int64) {
	uploadsTotal.WithLabelValues("ok").Inc()
	uploadBytesTotal.Add(float64(bytes))
}

// UploadFailed counts a rejected or failed upload request.
func UploadFailed() {
	uploadsTotal.WithLabelValues("error").Inc()
}

// MongoReconnect counts a reconnect cycle.
func MongoReconnect() {
	mongoReconnectsTotal.Inc()
}

// SetMongoState exports the connection manager state.
func SetMongoState(state int) {
	mongoConnectionState.Set(float64(state))
}
