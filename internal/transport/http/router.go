package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/health"
)

// NewRouter собирает HTTP-маршруты сервиса: API заказов, health-пробы
// и Prometheus endpoint.
func NewRouter(h *OrderHandler, healthHandler *health.Handler, logger *log.Entry) *gin.Engine {
	if logger == nil {
		logger = log.WithField("component", "http")
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogging(logger))

	r.GET("/healthz", gin.WrapH(healthHandler))
	r.GET("/livez", gin.WrapF(health.LivenessHandler))
	r.GET("/readyz", gin.WrapF(healthHandler.ReadinessHandler))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.POST("/orders", h.PlaceOrder)
		v1.GET("/orders/:id", h.GetOrder)
		v1.GET("/customers/:id/orders", h.ListCustomerOrders)
	}

	return r
}
