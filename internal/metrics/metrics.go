package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the service's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pokedex",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pokedex",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route", "status"},
	)

	favoritesMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pokedex",
			Name:      "favorites_mutations_total",
			Help:      "Favorites list mutations by operation and outcome.",
		},
		[]string{"op", "result"},
	)

	catalogCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pokedex",
			Subsystem: "catalog",
			Name:      "cache_lookups_total",
			Help:      "Catalog cache lookups by result.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		favoritesMutations,
		catalogCacheLookups,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// UnmatchedRoute labels requests that no registered route handled.
const UnmatchedRoute = "unmatched"

// Middleware records request count and latency labelled by the matched route pattern.
// Label values are copied out of the request buffer, which fiber reuses.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/metrics" {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		// A request that only passed through middleware ends on a USE layer.
		route := UnmatchedRoute
		if r := c.Route(); r.Method != "USE" {
			route = utils.CopyString(r.Path)
		}
		method := utils.ToUpper(utils.CopyString(c.Method()))
		code := strconv.Itoa(status)

		httpRequests.WithLabelValues(method, route, code).Inc()
		httpDuration.WithLabelValues(method, route, code).Observe(time.Since(start).Seconds())
		return err
	}
}

// RecordFavoriteMutation counts an add or remove on a favorites list.
func RecordFavoriteMutation(op, result string) {
	favoritesMutations.WithLabelValues(op, result).Inc()
}

// RecordCacheLookup counts a catalog cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	catalogCacheLookups.WithLabelValues(result).Inc()
}
