package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/gigstage/settlement_api/internal/service"
	"github.com/gigstage/settlement_api/internal/utils"
)

// AdminHandler exposes the operations surface: dispute resolution, payout
// holds, cancellation, ledger reads and dead-letter requeue.
type AdminHandler struct {
	escrowService    *service.EscrowService
	disputeService   *service.DisputeService
	payoutService    *service.PayoutService
	ledgerService    *service.LedgerService
	authService      *service.AuthService
	adminAuthService *service.AdminAuthService
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(
	escrowService *service.EscrowService,
	disputeService *service.DisputeService,
	payoutService *service.PayoutService,
	ledgerService *service.LedgerService,
	authService *service.AuthService,
	adminAuthService *service.AdminAuthService,
) *AdminHandler {
	return &AdminHandler{
		escrowService:    escrowService,
		disputeService:   disputeService,
		payoutService:    payoutService,
		ledgerService:    ledgerService,
		authService:      authService,
		adminAuthService: adminAuthService,
	}
}

// ResolveDispute handles POST /admin/bookings/:bookingId/dispute/resolve
func (h *AdminHandler) ResolveDispute(c *gin.Context) {
	var req struct {
		Resolution string `json:"resolution" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "MISSING_FIELD", "resolution is required")
		return
	}

	if err := h.disputeService.Resolve(c.Param("bookingId"), req.Resolution); err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, 200, "Dispute resolved", nil)
}

// SetPayoutHold handles POST /admin/bookings/:bookingId/hold
func (h *AdminHandler) SetPayoutHold(c *gin.Context) {
	var req struct {
		Hold *bool `json:"hold" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "MISSING_FIELD", "hold is required")
		return
	}

	if err := h.escrowService.SetPayoutHold(c.Param("bookingId"), *req.Hold); err != nil {
		respondError(c, err)
		return
	}
	message := "Payout hold set"
	if !*req.Hold {
		message = "Payout hold cleared"
	}
	utils.Success(c, 200, message, nil)
}

// CancelBooking handles POST /admin/bookings/:bookingId/cancel
func (h *AdminHandler) CancelBooking(c *gin.Context) {
	var req struct {
		Note string `json:"note"`
	}
	_ = c.ShouldBindJSON(&req)

	refunded, err := h.escrowService.CancelAfterAdvance(c.Request.Context(), c.Param("bookingId"), req.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, 200, "Booking cancelled, refund requested", gin.H{
		"refundAmount": refunded,
	})
}

// GetLedger handles GET /admin/bookings/:bookingId/ledger
func (h *AdminHandler) GetLedger(c *gin.Context) {
	ledger, err := h.ledgerService.Get(c.Param("bookingId"))
	if err != nil {
		utils.Error(c, 404, "NOT_FOUND", "No ledger for booking")
		return
	}
	utils.Success(c, 200, "Ledger", ledger)
}

// GetEscrow handles GET /admin/bookings/:bookingId/escrow
func (h *AdminHandler) GetEscrow(c *gin.Context) {
	state, err := h.escrowService.GetState(c.Param("bookingId"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, 200, "Escrow state", state)
}

// RequeueDeadJob handles POST /admin/payouts/:transferId/requeue
func (h *AdminHandler) RequeueDeadJob(c *gin.Context) {
	if err := h.payoutService.RequeueDead(c.Param("transferId")); err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, 200, "Payout job requeued", nil)
}

// CreateClient handles POST /admin/clients
func (h *AdminHandler) CreateClient(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "MISSING_FIELD", "name is required")
		return
	}

	client, err := h.authService.CreateClient(req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	// The plaintext key is shown only in this response.
	utils.Success(c, 201, "Client created", gin.H{
		"client": client,
		"apiKey": client.APIKey,
	})
}

// CreateAdminUser handles POST /admin/users
func (h *AdminHandler) CreateAdminUser(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=12"`
		Name     string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "email, name and a password of at least 12 characters are required")
		return
	}

	if err := h.adminAuthService.CreateAdmin(req.Email, req.Password, req.Name); err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, 201, "Admin user created", nil)
}
