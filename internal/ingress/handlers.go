package ingress

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tradsys/clob/internal/types"
)

// submitOrderRequest is the wire shape POST /orders decodes into before
// validation and translation into a types.OrderIntent.
type submitOrderRequest struct {
	TradingPair string `json:"trading_pair" binding:"required"`
	Side        string `json:"side" binding:"required,oneof=buy sell"`
	OrderType   string `json:"order_type" binding:"required,oneof=limit market"`
	Price       string `json:"price"`
	Quantity    string `json:"quantity" binding:"required"`
	TimeInForce string `json:"time_in_force"`
	UserID      string `json:"user_id" binding:"required"`
}

func (s *Server) handleSubmitOrder(c *gin.Context) {
	var req submitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	intent, err := toOrderIntent(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.validate.Struct(intent); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.engine.SubmitOrder(c.Request.Context(), intent)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "status": result.Status})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleCancelOrder(c *gin.Context) {
	pair := c.Query("trading_pair")
	if pair == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "trading_pair query parameter is required"})
		return
	}
	intent := types.CancelIntent{OrderID: c.Param("id"), TradingPair: pair}
	result, err := s.engine.CancelOrder(c.Request.Context(), intent)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetOrder(c *gin.Context) {
	pair := c.Query("trading_pair")
	if pair == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "trading_pair query parameter is required"})
		return
	}
	order, ok := s.engine.GetOrder(pair, c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) handleSnapshot(c *gin.Context) {
	depth := 20
	snapshot, err := s.engine.Snapshot(c.Param("pair"), depth)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}
