package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/placement"
)

// OrderHandler обслуживает HTTP-операции размещения и чтения заказов.
type OrderHandler struct {
	engine *placement.Engine
	orders domain.OrderRepository
	logger *log.Entry
}

// NewOrderHandler создаёт хендлер поверх движка размещения.
func NewOrderHandler(engine *placement.Engine, orders domain.OrderRepository, logger *log.Entry) *OrderHandler {
	if logger == nil {
		logger = log.WithField("component", "http-orders")
	}
	return &OrderHandler{engine: engine, orders: orders, logger: logger}
}

type orderLineReq struct {
	SKU string `json:"sku"`
	Qty int32  `json:"qty"`
}

type placeOrderReq struct {
	CustomerID string         `json:"customer_id" binding:"required"`
	Lines      []orderLineReq `json:"lines" binding:"required"`
}

type orderItemResp struct {
	SKU        string `json:"sku"`
	Qty        int32  `json:"qty"`
	PriceMinor int64  `json:"price_minor"`
}

type orderResp struct {
	OrderID     string          `json:"order_id"`
	CustomerID  string          `json:"customer_id"`
	AmountMinor int64           `json:"amount_minor"`
	Items       []orderItemResp `json:"items"`
	CreatedAt   string          `json:"created_at"`
}

func toOrderResp(order domain.Order) orderResp {
	items := make([]orderItemResp, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResp{SKU: item.SKU, Qty: item.Qty, PriceMinor: item.PriceMinor})
	}
	return orderResp{
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		AmountMinor: order.AmountMinor,
		Items:       items,
		CreatedAt:   order.CreatedAt.Format(time.RFC3339Nano),
	}
}

// PlaceOrder принимает запрос на размещение и транслирует доменные ошибки в HTTP-статусы.
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req placeOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	lines := make([]domain.LineRequest, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, domain.LineRequest{SKU: line.SKU, Qty: line.Qty})
	}

	order, err := h.engine.PlaceOrder(c.Request.Context(), req.CustomerID, lines)
	if err != nil {
		status := placementErrorStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.WithError(err).Error("place order failed")
			c.JSON(status, gin.H{"error": "internal_error"})
			return
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, toOrderResp(order))
}

// GetOrder возвращает заказ по идентификатору.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orders.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		h.logger.WithError(err).Error("get order failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, toOrderResp(order))
}

// ListCustomerOrders возвращает заказы клиента, новые первыми.
func (h *OrderHandler) ListCustomerOrders(c *gin.Context) {
	limit := 50
	orders, err := h.orders.ListByCustomer(c.Param("id"), limit)
	if err != nil {
		h.logger.WithError(err).Error("list customer orders failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	result := make([]orderResp, 0, len(orders))
	for _, order := range orders {
		result = append(result, toOrderResp(order))
	}
	c.JSON(http.StatusOK, gin.H{"orders": result})
}

func placementErrorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrCustomerNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrStockConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrItemsRequired),
		errors.Is(err, domain.ErrLineSKURequired),
		errors.Is(err, domain.ErrLineQtyInvalid),
		errors.Is(err, domain.ErrInvalidProducts),
		errors.Is(err, domain.ErrProductNotFound):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
