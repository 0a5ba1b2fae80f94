package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"execution-core/internal/engine"
	"execution-core/internal/fill"
	"execution-core/internal/model"
)

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// respondEngineError maps core errors onto HTTP statuses.
func respondEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, model.ErrNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, model.ErrStateConflict):
		respondError(c, http.StatusConflict, "STATE_CONFLICT", err.Error())
	case errors.Is(err, model.ErrEntitlement):
		respondError(c, http.StatusForbidden, "ENTITLEMENT_DENIED", err.Error())
	case errors.Is(err, model.ErrComplianceGate):
		respondError(c, http.StatusUnprocessableEntity, "COMPLIANCE_REJECTED", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

type orderRequestPayload struct {
	StrategyID string  `json:"strategy_id"`
	Symbol     string  `json:"symbol" binding:"required"`
	Side       string  `json:"side" binding:"required"`
	Type       string  `json:"type" binding:"required"`
	Quantity   float64 `json:"quantity" binding:"required"`
	Price      float64 `json:"price"`
	StopPrice  float64 `json:"stop_price"`
	Mode       string  `json:"mode"`
	ExchangeID string  `json:"exchange_id"`
}

func (p orderRequestPayload) toRequest(userID string) model.OrderRequest {
	mode := p.Mode
	if mode == "" {
		mode = string(model.ModePaper)
	}
	return model.OrderRequest{
		UserID:     userID,
		StrategyID: p.StrategyID,
		Symbol:     p.Symbol,
		Side:       model.Side(p.Side),
		Type:       model.OrderType(p.Type),
		Quantity:   p.Quantity,
		Price:      p.Price,
		StopPrice:  p.StopPrice,
		Mode:       model.TradeMode(mode),
		ExchangeID: p.ExchangeID,
	}
}

func (s *Server) createOrder(c *gin.Context) {
	userID := CurrentUserID(c)

	var payload orderRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid request payload: "+err.Error())
		return
	}

	order, err := s.Engine.CreateOrder(c.Request.Context(), payload.toRequest(userID))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": order})
}

func (s *Server) listOrders(c *gin.Context) {
	userID := CurrentUserID(c)

	limit := 100
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(c, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
			return
		}
		limit = n
	}

	orders, err := s.Engine.ListOrders(c.Request.Context(), userID, limit)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

func (s *Server) getOrder(c *gin.Context) {
	userID := CurrentUserID(c)

	order, err := s.Engine.GetOrder(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (s *Server) modifyOrder(c *gin.Context) {
	userID := CurrentUserID(c)

	var patch engine.OrderPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid request payload: "+err.Error())
		return
	}
	if patch.Price == nil && patch.Quantity == nil && patch.StopPrice == nil {
		respondError(c, http.StatusBadRequest, "EMPTY_PATCH", "at least one field must be provided")
		return
	}

	order, err := s.Engine.ModifyOrder(c.Request.Context(), userID, c.Param("id"), patch)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (s *Server) cancelOrder(c *gin.Context) {
	userID := CurrentUserID(c)

	order, err := s.Engine.CancelOrder(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (s *Server) expireOrder(c *gin.Context) {
	userID := CurrentUserID(c)

	order, err := s.Engine.ExpireOrder(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (s *Server) cancelAllOrders(c *gin.Context) {
	userID := CurrentUserID(c)

	count, err := s.Engine.CancelAllOrders(c.Request.Context(), userID, c.Query("symbol"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": count})
}

type executePayload struct {
	Price           float64  `json:"price" binding:"required"`
	SlippagePercent *float64 `json:"slippage_percent"`
	FeePercent      *float64 `json:"fee_percent"`
}

func (s *Server) executePaperOrder(c *gin.Context) {
	userID := CurrentUserID(c)

	var payload executePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid request payload: "+err.Error())
		return
	}

	// Per-field overrides fall back to engine defaults.
	var opts *fill.Options
	if payload.SlippagePercent != nil || payload.FeePercent != nil {
		o := fill.DefaultOptions
		if payload.SlippagePercent != nil {
			o.SlippagePercent = *payload.SlippagePercent
		}
		if payload.FeePercent != nil {
			o.FeePercent = *payload.FeePercent
		}
		opts = &o
	}

	order, err := s.Engine.ExecutePaperOrder(c.Request.Context(), userID, c.Param("id"), payload.Price, opts)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

type pricePayload struct {
	Price float64 `json:"price" binding:"required"`
}

func (s *Server) checkLimitOrder(c *gin.Context) {
	userID := CurrentUserID(c)

	var payload pricePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid request payload: "+err.Error())
		return
	}

	order, err := s.Engine.CheckLimitOrder(c.Request.Context(), userID, c.Param("id"), payload.Price)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "filled": order.Status == model.StatusFilled})
}

func (s *Server) checkStopOrder(c *gin.Context) {
	userID := CurrentUserID(c)

	var payload pricePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid request payload: "+err.Error())
		return
	}

	order, err := s.Engine.CheckStopOrder(c.Request.Context(), userID, c.Param("id"), payload.Price)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "filled": order.Status == model.StatusFilled})
}

type tickPayload struct {
	Symbol string  `json:"symbol" binding:"required"`
	Price  float64 `json:"price" binding:"required"`
}

func (s *Server) applyPriceTick(c *gin.Context) {
	var payload tickPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid request payload: "+err.Error())
		return
	}
	if payload.Price <= 0 {
		respondError(c, http.StatusBadRequest, "INVALID_PRICE", "price must be positive")
		return
	}

	filled, err := s.Engine.ApplyPriceTick(c.Request.Context(), payload.Symbol, payload.Price)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"filled": filled, "count": len(filled)})
}

func (s *Server) getOpenPositions(c *gin.Context) {
	userID := CurrentUserID(c)

	positions, err := s.Engine.GetOpenPositions(c.Request.Context(), userID)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions, "count": len(positions)})
}

func (s *Server) getClosedPositions(c *gin.Context) {
	userID := CurrentUserID(c)

	positions, err := s.Engine.GetClosedPositions(c.Request.Context(), userID)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions, "count": len(positions)})
}

type portfolioPayload struct {
	Prices map[string]float64 `json:"prices"`
}

func (s *Server) getPortfolioSummary(c *gin.Context) {
	userID := CurrentUserID(c)

	var payload portfolioPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid request payload: "+err.Error())
		return
	}

	summary, err := s.Engine.GetPortfolioSummary(c.Request.Context(), userID, payload.Prices)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"portfolio": summary})
}

func (s *Server) createApprovalRequest(c *gin.Context) {
	userID := CurrentUserID(c)

	var payload orderRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid request payload: "+err.Error())
		return
	}

	req, err := s.Engine.CreateApprovalRequest(c.Request.Context(), payload.toRequest(userID))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"approval": req})
}

func (s *Server) listApprovalRequests(c *gin.Context) {
	userID := CurrentUserID(c)

	requests, err := s.Engine.ListApprovalRequests(c.Request.Context(), userID)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"approvals": requests, "count": len(requests)})
}

func (s *Server) approveLiveOrder(c *gin.Context) {
	userID := CurrentUserID(c)

	req, order, err := s.Engine.ApproveLiveOrder(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"approval": req, "order": order})
}

func (s *Server) rejectLiveOrder(c *gin.Context) {
	userID := CurrentUserID(c)

	req, err := s.Engine.RejectLiveOrder(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"approval": req})
}

func (s *Server) getRiskMetrics(c *gin.Context) {
	userID := CurrentUserID(c)

	metrics := s.Engine.UserRiskMetrics(c.Request.Context(), userID)
	c.JSON(http.StatusOK, gin.H{"metrics": metrics})
}

func (s *Server) getSystemStatus(c *gin.Context) {
	status := s.Engine.Status(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"status":      status,
		"server_time": time.Now().UTC().Format(time.RFC3339),
	})
}

type connectionPayload struct {
	ExchangeType string `json:"exchange_type" binding:"required"`
	Name         string `json:"name" binding:"required"`
}

func (s *Server) createConnection(c *gin.Context) {
	userID := CurrentUserID(c)

	var payload connectionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid request payload: "+err.Error())
		return
	}

	conn := model.ExchangeConnection{
		ID:           uuid.NewString(),
		UserID:       userID,
		ExchangeType: payload.ExchangeType,
		Name:         payload.Name,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.DB.CreateConnection(c.Request.Context(), conn); err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"connection": conn})
}

func (s *Server) listConnections(c *gin.Context) {
	userID := CurrentUserID(c)

	conns, err := s.DB.FindConnectionsByUserID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"connections": conns, "count": len(conns)})
}
