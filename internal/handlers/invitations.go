package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nferrante/accesshub/internal/models"
	"github.com/nferrante/accesshub/internal/services"
	appErrors "github.com/nferrante/accesshub/pkg/errors"
	"github.com/nferrante/accesshub/pkg/response"
)

// actorHeader carries the identity of the calling user. Authentication proper
// sits in front of this service; the header is trusted as-is.
const actorHeader = "X-User-ID"

// InvitationHandler exposes the invitation lifecycle over HTTP.
type InvitationHandler struct {
	invitations *services.InvitationService
}

// NewInvitationHandler constructs an InvitationHandler.
func NewInvitationHandler(invitations *services.InvitationService) (*InvitationHandler, error) {
	if invitations == nil {
		return nil, errors.New("invitation handler: invitation service is required")
	}
	return &InvitationHandler{invitations: invitations}, nil
}

type createInvitationRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=owner admin member"`
}

type invitationDTO struct {
	ID              string     `json:"id"`
	AccountID       string     `json:"account_id"`
	Email           string     `json:"email"`
	Role            string     `json:"role"`
	InvitedByUserID string     `json:"invited_by_user_id,omitempty"`
	SentAt          time.Time  `json:"sent_at"`
	ExpiresAt       time.Time  `json:"expires_at"`
	AcceptedAt      *time.Time `json:"accepted_at,omitempty"`
	DeclinedAt      *time.Time `json:"declined_at,omitempty"`
	RevokedAt       *time.Time `json:"revoked_at,omitempty"`
	Status          string     `json:"status"`
}

type invitationCreatedResponse struct {
	Invitation invitationDTO `json:"invitation"`
	Created    bool          `json:"created"`
}

type invitationListResponse struct {
	Invitations []invitationDTO `json:"invitations"`
}

func toInvitationDTO(inv *models.Invitation, now time.Time) invitationDTO {
	return invitationDTO{
		ID:              inv.ID,
		AccountID:       inv.AccountID,
		Email:           inv.Email,
		Role:            inv.Role.String(),
		InvitedByUserID: inv.InvitedByUserID,
		SentAt:          inv.SentAt,
		ExpiresAt:       inv.ExpiresAt,
		AcceptedAt:      inv.AcceptedAt,
		DeclinedAt:      inv.DeclinedAt,
		RevokedAt:       inv.RevokedAt,
		Status:          inv.StatusAt(now).String(),
	}
}

// POST /api/accounts/:accountID/invitations
func (h *InvitationHandler) Create(c *gin.Context) {
	var req createInvitationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	inv, created, err := h.invitations.Create(requestContext(c), services.CreateInvitationInput{
		AccountID:       c.Param("accountID"),
		Email:           req.Email,
		Role:            req.Role,
		InvitedByUserID: strings.TrimSpace(c.GetHeader(actorHeader)),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusCreated
	if !created {
		// The equivalent open invitation already existed; repeating the
		// request is a successful no-op.
		status = http.StatusOK
	}
	response.Success(c, status, invitationCreatedResponse{
		Invitation: toInvitationDTO(inv, h.invitations.Now()),
		Created:    created,
	})
}

// GET /api/accounts/:accountID/invitations
func (h *InvitationHandler) List(c *gin.Context) {
	rows, err := h.invitations.ListByAccount(requestContext(c), c.Param("accountID"))
	if err != nil {
		response.Error(c, err)
		return
	}

	now := h.invitations.Now()
	dtos := make([]invitationDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, toInvitationDTO(&rows[i], now))
	}
	response.Success(c, http.StatusOK, invitationListResponse{Invitations: dtos})
}

// GET /api/invitations/:invitationID
func (h *InvitationHandler) Get(c *gin.Context) {
	inv, err := h.invitations.GetByID(requestContext(c), c.Param("invitationID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, toInvitationDTO(inv, h.invitations.Now()))
}

// POST /api/invitations/:invitationID/accept
func (h *InvitationHandler) Accept(c *gin.Context) {
	userID := strings.TrimSpace(c.GetHeader(actorHeader))
	if userID == "" {
		response.Error(c, appErrors.NewBadRequest("the "+actorHeader+" header is required"))
		return
	}

	result, err := h.invitations.Accept(requestContext(c), c.Param("invitationID"), userID)
	if err != nil {
		response.Error(c, translateLifecycleError(err))
		return
	}
	response.Success(c, http.StatusOK, result)
}

// POST /api/invitations/:invitationID/decline
func (h *InvitationHandler) Decline(c *gin.Context) {
	if err := h.invitations.Decline(requestContext(c), c.Param("invitationID")); err != nil {
		response.Error(c, translateLifecycleError(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"declined": true})
}

// POST /api/accounts/:accountID/invitations/:invitationID/revoke
func (h *InvitationHandler) Revoke(c *gin.Context) {
	err := h.invitations.Revoke(requestContext(c), c.Param("invitationID"), c.Param("accountID"))
	if err != nil {
		response.Error(c, translateLifecycleError(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// translateLifecycleError maps NotPendingError to a conflict payload whose
// message names the terminal status, so clients can tell an expired invitation
// from a revoked one.
func translateLifecycleError(err error) error {
	var notPending *services.NotPendingError
	if errors.As(err, &notPending) {
		return appErrors.New(
			"INVITATION_NOT_PENDING",
			"Invitation is no longer pending: "+notPending.Status.String(),
			http.StatusConflict,
		)
	}
	return err
}
