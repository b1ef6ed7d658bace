package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/gigstage/settlement_api/internal/middleware"
	"github.com/gigstage/settlement_api/internal/service"
	"github.com/gigstage/settlement_api/internal/utils"
)

// SettlementHandler exposes the collaborator-facing settlement endpoints.
type SettlementHandler struct {
	escrowService  *service.EscrowService
	releaseService *service.ReleaseService
	disputeService *service.DisputeService
}

// NewSettlementHandler constructs a SettlementHandler.
func NewSettlementHandler(
	escrowService *service.EscrowService,
	releaseService *service.ReleaseService,
	disputeService *service.DisputeService,
) *SettlementHandler {
	return &SettlementHandler{
		escrowService:  escrowService,
		releaseService: releaseService,
		disputeService: disputeService,
	}
}

// CreateOrder handles POST /v1/bookings/:bookingId/orders
func (h *SettlementHandler) CreateOrder(c *gin.Context) {
	bookingID := c.Param("bookingId")

	payment, paymentURL, err := h.escrowService.CreateOrder(c.Request.Context(), bookingID)
	if err != nil {
		respondError(c, err)
		return
	}

	if client := middleware.GetClient(c); client != nil {
		log.Info().
			Str("booking_id", bookingID).
			Str("client_id", client.ClientID).
			Msg("escrow order created")
	}

	data := gin.H{"payment": payment}
	if paymentURL != "" {
		data["paymentUrl"] = paymentURL
	}
	utils.Success(c, 201, "Order created", data)
}

// GetEscrow handles GET /v1/bookings/:bookingId/escrow
func (h *SettlementHandler) GetEscrow(c *gin.Context) {
	state, err := h.escrowService.GetState(c.Param("bookingId"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, 200, "Escrow state", state)
}

// CompleteBooking handles POST /v1/bookings/:bookingId/complete
func (h *SettlementHandler) CompleteBooking(c *gin.Context) {
	var req struct {
		CompletedAt *time.Time `json:"completedAt"`
	}
	// Body is optional; an empty body means "completed now".
	_ = c.ShouldBindJSON(&req)

	at := time.Now()
	if req.CompletedAt != nil {
		at = *req.CompletedAt
	}

	if err := h.releaseService.CompleteBooking(c.Param("bookingId"), at); err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, 200, "Booking completed, release plan armed", nil)
}

// OpenDispute handles POST /v1/bookings/:bookingId/dispute
func (h *SettlementHandler) OpenDispute(c *gin.Context) {
	if err := h.disputeService.Open(c.Param("bookingId"), time.Now()); err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, 200, "Dispute opened", nil)
}

// Estimate handles POST /v1/estimate
func (h *SettlementHandler) Estimate(c *gin.Context) {
	var req struct {
		Amount int64 `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "MISSING_FIELD", "amount is required")
		return
	}

	estimate, err := h.escrowService.EstimateDistribution(req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, 200, "Distribution estimate", estimate)
}
