package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/havenloop/haven/internal/domain/membership"
	"github.com/havenloop/haven/internal/interfaces/http/middleware"
)

// MembershipHandler serves the family group registry.
type MembershipHandler struct {
	svc membership.Service
}

func NewMembershipHandler(svc membership.Service) *MembershipHandler {
	return &MembershipHandler{svc: svc}
}

// CreateGroup handles POST /groups.  Idempotent per caller.
func (h *MembershipHandler) CreateGroup(c *gin.Context) {
	group, err := h.svc.CreateGroup(c.Request.Context(), middleware.MemberID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, group)
}

// GetGroup handles GET /groups/:groupID.
func (h *MembershipHandler) GetGroup(c *gin.Context) {
	group, err := h.svc.GetGroup(c.Request.Context(), c.Param("groupID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// ListMembers handles GET /groups/:groupID/members.
func (h *MembershipHandler) ListMembers(c *gin.Context) {
	members, err := h.svc.ListMembers(c.Request.Context(), c.Param("groupID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

type createInviteRequest struct {
	Contact string `json:"contact" binding:"required"`
	Billing string `json:"billing_responsibility" binding:"required"`
}

// CreateInvite handles POST /groups/:groupID/invites.  Owner only; fails
// with a conflict when the seat quota is exhausted.
func (h *MembershipHandler) CreateInvite(c *gin.Context) {
	var req createInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "contact and billing_responsibility are required")
		return
	}

	invite, err := h.svc.CreateInvite(c.Request.Context(),
		c.Param("groupID"), middleware.MemberID(c), req.Contact,
		membership.BillingResponsibility(req.Billing))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invite)
}

// AcceptInvite handles POST /invites/:inviteID/accept.  The caller becomes
// the member; membership starts active (owner-paid) or pending (self-paid).
func (h *MembershipHandler) AcceptInvite(c *gin.Context) {
	m, err := h.svc.AcceptInvite(c.Request.Context(), c.Param("inviteID"), middleware.MemberID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// RevokeInvite handles DELETE /invites/:inviteID.
func (h *MembershipHandler) RevokeInvite(c *gin.Context) {
	if err := h.svc.RevokeInvite(c.Request.Context(), c.Param("inviteID"), middleware.MemberID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CancelMembership handles DELETE /memberships/:membershipID.
func (h *MembershipHandler) CancelMembership(c *gin.Context) {
	if err := h.svc.CancelMembership(c.Request.Context(), c.Param("membershipID")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type paymentCallbackRequest struct {
	MemberID string `json:"member_id" binding:"required"`
}

// ConfirmPayment handles POST /groups/:groupID/payment/confirm, the billing
// collaborator's pending → active callback.
func (h *MembershipHandler) ConfirmPayment(c *gin.Context) {
	var req paymentCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "member_id is required")
		return
	}
	if err := h.svc.ConfirmPayment(c.Request.Context(), c.Param("groupID"), req.MemberID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// LapsePayment handles POST /groups/:groupID/payment/lapse, moving active →
// canceled on payment failure.
func (h *MembershipHandler) LapsePayment(c *gin.Context) {
	var req paymentCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "member_id is required")
		return
	}
	if err := h.svc.LapsePayment(c.Request.Context(), c.Param("groupID"), req.MemberID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type updateQuotaRequest struct {
	SeatQuota *int `json:"seat_quota" binding:"required"`
}

// UpdateSeatQuota handles PUT /groups/:groupID/quota, the billing
// collaborator's plan-change callback.
func (h *MembershipHandler) UpdateSeatQuota(c *gin.Context) {
	var req updateQuotaRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SeatQuota == nil {
		respondValidation(c, "seat_quota is required")
		return
	}
	if err := h.svc.UpdateSeatQuota(c.Request.Context(), c.Param("groupID"), *req.SeatQuota); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
