package handlers

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/AnshRaj112/freshcart-backend/internal/logger"
	"github.com/AnshRaj112/freshcart-backend/internal/middleware"
	"github.com/AnshRaj112/freshcart-backend/internal/models"
	"github.com/AnshRaj112/freshcart-backend/pkg/utils"
)

type ReviewRequest struct {
	Email    string `json:"email"`
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

type PendingResponse struct {
	models.Response
	Registrations []models.RetailerRegistration `json:"registrations"`
	Count         int                           `json:"count"`
}

// PendingRetailers lists registrations awaiting review, oldest first.
func (h *Handler) PendingRetailers(w http.ResponseWriter, r *http.Request) {
	limit := int64(50)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, fail(models.CodeInvalidRequest, "limit must be a positive number"))
			return
		}
		limit = n
	}

	regs, err := h.Registrations.Pending(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if regs == nil {
		regs = []models.RetailerRegistration{}
	}
	writeJSON(w, http.StatusOK, PendingResponse{Response: ok(""), Registrations: regs, Count: len(regs)})
}

// ReviewRetailer approves or rejects a registration. Rejections need a
// reason; the retailer sees it on the dashboard banner.
func (h *Handler) ReviewRetailer(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := utils.ValidateEmail(req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if !req.Approved && req.Reason == "" {
		h.writeError(w, r, &utils.ValidationError{Field: "reason", Message: "A reason is required to reject a registration"})
		return
	}

	status, err := h.Registrations.Review(r.Context(), utils.NormalizeEmail(req.Email), req.Approved, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	reviewer := ""
	if p, found := middleware.PrincipalFrom(r.Context()); found {
		reviewer = p.Email
	}
	h.Log.Info().
		Str(logger.Email, req.Email).
		Str("status", string(status.VerificationStatus)).
		Str("reviewer", reviewer).
		Msg("retailer registration reviewed")

	writeJSON(w, http.StatusOK, RegistrationResponse{Response: ok("Registration " + string(status.VerificationStatus)), Status: status})
}

// UnblockIP lifts rate-limit blocks for the ip query parameter.
func (h *Handler) UnblockIP(w http.ResponseWriter, r *http.Request) {
	ip := strings.TrimSpace(r.URL.Query().Get("ip"))
	if net.ParseIP(ip) == nil {
		writeJSON(w, http.StatusBadRequest, fail(models.CodeValidationFailed, "A valid IP address is required"))
		return
	}
	for _, l := range h.Limits {
		if err := l.Unblock(r.Context(), ip); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, ok("IP address unblocked"))
}
