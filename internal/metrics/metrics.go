// Package metrics exposes Prometheus collectors for HTTP traffic and ledger activity.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kulapay"

// Collector owns a private registry so several collectors can coexist in tests.
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	salesTotal          *prometheus.CounterVec
	saleAmount          *prometheus.CounterVec
	pointsAwarded       prometheus.Counter
	ussdResponses       *prometheus.CounterVec
	chatCommands        *prometheus.CounterVec
	notificationsTotal  *prometheus.CounterVec
	loansIssued         prometheus.Counter
	notificationBacklog prometheus.Gauge
}

// New creates a collector with Go runtime and process metrics registered.
func New() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "endpoint", "status"})

	c.httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	c.salesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sales_total",
		Help:      "Sales recorded, by channel and payment kind",
	}, []string{"channel", "payment_kind"})

	c.saleAmount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sale_amount_total",
		Help:      "Sum of recorded sale amounts, by payment kind",
	}, []string{"payment_kind"})

	c.pointsAwarded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "points_awarded_total",
		Help:      "KulaPoints awarded to customers",
	})

	c.ussdResponses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ussd_responses_total",
		Help:      "USSD responses by flow and outcome (continue or end)",
	}, []string{"flow", "outcome"})

	c.chatCommands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chat_messages_total",
		Help:      "Chat messages by classification",
	}, []string{"kind"})

	c.notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Outbound notifications by channel and status",
	}, []string{"channel", "status"})

	c.loansIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "loans_issued_total",
		Help:      "Credit transactions recorded through loan acceptance",
	})

	c.notificationBacklog = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "notification_queue_depth",
		Help:      "Notifications waiting for a delivery worker",
	})

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.httpRequestsTotal,
		c.httpRequestDuration,
		c.salesTotal,
		c.saleAmount,
		c.pointsAwarded,
		c.ussdResponses,
		c.chatCommands,
		c.notificationsTotal,
		c.loansIssued,
		c.notificationBacklog,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Middleware records request counts and latency per route template.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		endpoint := ctx.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		method := ctx.Request.Method
		c.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.httpRequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
	return func(ctx *gin.Context) {
		h.ServeHTTP(ctx.Writer, ctx.Request)
	}
}

// Sale is called once per newly recorded sale.
func (c *Collector) Sale(channel, kind string, amount, points float64) {
	if c == nil {
		return
	}
	c.salesTotal.WithLabelValues(channel, kind).Inc()
	c.saleAmount.WithLabelValues(kind).Add(amount)
	if points > 0 {
		c.pointsAwarded.Add(points)
	}
}

// USSDResponse counts a rendered USSD screen.
func (c *Collector) USSDResponse(flow string, cont bool) {
	if c == nil {
		return
	}
	outcome := "end"
	if cont {
		outcome = "continue"
	}
	c.ussdResponses.WithLabelValues(flow, outcome).Inc()
}

// ChatMessage counts a classified chat message.
func (c *Collector) ChatMessage(kind string) {
	if c == nil {
		return
	}
	c.chatCommands.WithLabelValues(kind).Inc()
}

// Notification counts a delivery attempt outcome.
func (c *Collector) Notification(channel, status string) {
	if c == nil {
		return
	}
	c.notificationsTotal.WithLabelValues(channel, status).Inc()
}

// LoanIssued counts an accepted loan.
func (c *Collector) LoanIssued() {
	if c == nil {
		return
	}
	c.loansIssued.Inc()
}

// QueueDepth reports the notification backlog.
func (c *Collector) QueueDepth(n int) {
	if c == nil {
		return
	}
	c.notificationBacklog.Set(float64(n))
}
