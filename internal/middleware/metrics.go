package middleware

import (
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// InitMetrics creates the Prometheus HTTP collector for the given service name.
// Collectors go to reg so that several servers can live in one process.
func InitMetrics(reg prometheus.Registerer, serviceName string) *fiberprometheus.FiberPrometheus {
	return fiberprometheus.NewWithRegistry(reg, serviceName, "stackit", "http", nil)
}

// MetricsMiddleware records request counts and latencies, skipping the scrape endpoint itself.
func MetricsMiddleware(p *fiberprometheus.FiberPrometheus) fiber.Handler {
	record := p.Middleware
	return func(c *fiber.Ctx) error {
		if c.Path() == "/metrics" {
			return c.Next()
		}
		return record(c)
	}
}

// MetricsHandler serves every gatherer on one scrape endpoint.
func MetricsHandler(gatherers ...prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(prometheus.Gatherers(gatherers), promhttp.HandlerOpts{}))
}
