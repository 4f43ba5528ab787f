package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/AnshRaj112/freshcart-backend/internal/logger"
	"github.com/AnshRaj112/freshcart-backend/internal/middleware"
	"github.com/AnshRaj112/freshcart-backend/internal/models"
	"github.com/AnshRaj112/freshcart-backend/internal/regstatus"
	"github.com/AnshRaj112/freshcart-backend/internal/services"
	"github.com/AnshRaj112/freshcart-backend/pkg/utils"
)

// RegistrationStatusResponse flattens the gate inputs into the envelope.
type RegistrationStatusResponse struct {
	models.Response
	models.RegistrationStatus
}

type DashboardResponse struct {
	models.Response
	Restricted bool                      `json:"restricted"`
	Banner     *regstatus.Banner         `json:"banner,omitempty"`
	Status     models.RegistrationStatus `json:"registrationStatus"`
	Dashboard  *models.Dashboard         `json:"dashboard,omitempty"`
}

type RegistrationResponse struct {
	models.Response
	Status models.RegistrationStatus `json:"registrationStatus"`
}

// documentsFolder is the Cloudinary folder for registration uploads.
const documentsFolder = "freshcart/retailer-registrations"

const maxRegistrationForm = 2*services.MaxDocumentSize + 1<<20

// RegistrationStatus returns the signed-in retailer's status. The email query
// parameter, when given, must name that retailer.
func (h *Handler) RegistrationStatus(w http.ResponseWriter, r *http.Request) {
	p, found := middleware.PrincipalFrom(r.Context())
	if !found {
		writeJSON(w, http.StatusUnauthorized, fail(models.CodeUnauthorized, "Please log in to continue"))
		return
	}
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email != "" && !strings.EqualFold(email, p.Email) {
		writeJSON(w, http.StatusForbidden, fail(models.CodeForbidden, "You can only view your own registration"))
		return
	}

	status, err := h.Registrations.Status(r.Context(), p.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RegistrationStatusResponse{Response: ok(""), RegistrationStatus: status})
}

// SubmitRegistration accepts the multipart registration form with optional
// licence and ID documents and puts the retailer into review.
func (h *Handler) SubmitRegistration(w http.ResponseWriter, r *http.Request) {
	p, found := middleware.PrincipalFrom(r.Context())
	if !found {
		writeJSON(w, http.StatusUnauthorized, fail(models.CodeUnauthorized, "Please log in to continue"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRegistrationForm)
	if err := r.ParseMultipartForm(maxRegistrationForm); err != nil {
		writeJSON(w, http.StatusBadRequest, fail(models.CodeInvalidRequest, "Invalid form data"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	reg := &models.RetailerRegistration{
		Email:         p.Email,
		StoreName:     strings.TrimSpace(r.FormValue("store_name")),
		Phone:         strings.TrimSpace(r.FormValue("phone")),
		Street:        strings.TrimSpace(r.FormValue("street")),
		City:          strings.TrimSpace(r.FormValue("city")),
		State:         strings.TrimSpace(r.FormValue("state")),
		ZipCode:       strings.TrimSpace(r.FormValue("zip_code")),
		GSTNumber:     strings.ToUpper(strings.TrimSpace(r.FormValue("gst_number"))),
		LicenseNumber: strings.TrimSpace(r.FormValue("license_number")),
	}
	if err := validateRegistration(reg); err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	publicBase := strings.NewReplacer("@", "_at_", ".", "_").Replace(p.Email)
	for field, dst := range map[string]*string{
		"license_document": &reg.LicenseDocumentURL,
		"id_document":      &reg.IDDocumentURL,
	} {
		_, fh, err := r.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			writeJSON(w, http.StatusBadRequest, fail(models.CodeInvalidRequest, "Invalid "+field))
			return
		}
		if h.Uploader == nil {
			writeJSON(w, http.StatusServiceUnavailable, fail(models.CodeInternal, "Document uploads are not available"))
			return
		}
		url, err := h.Uploader.UploadDocument(ctx, fh, documentsFolder, publicBase+"_"+field)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		*dst = url
	}

	if err := h.Registrations.Submit(ctx, reg); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Log.Info().Str(logger.Email, reg.Email).Msg("retailer registration submitted")
	writeJSON(w, http.StatusOK, RegistrationResponse{
		Response: ok("Registration submitted. We will review it shortly."),
		Status:   reg.Status(),
	})
}

func validateRegistration(reg *models.RetailerRegistration) error {
	if reg.StoreName == "" {
		return &utils.ValidationError{Field: "store_name", Message: "Store name is required"}
	}
	if len(reg.StoreName) > utils.MaxNameLength {
		return &utils.ValidationError{Field: "store_name", Message: "Store name is too long"}
	}
	if err := utils.ValidatePhone(reg.Phone); err != nil {
		return err
	}
	if reg.Street == "" || reg.City == "" || reg.State == "" {
		return &utils.ValidationError{Field: "address", Message: "Street, city and state are required"}
	}
	if err := utils.ValidateZipCode(reg.ZipCode); err != nil {
		return err
	}
	if err := utils.ValidateGSTNumber(reg.GSTNumber); err != nil {
		return err
	}
	if reg.LicenseNumber == "" {
		return &utils.ValidationError{Field: "license_number", Message: "Licence number is required"}
	}
	return nil
}

// Dashboard returns only the banner while the retailer is restricted and the
// full dashboard once approved.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	p, found := middleware.PrincipalFrom(r.Context())
	if !found {
		writeJSON(w, http.StatusUnauthorized, fail(models.CodeUnauthorized, "Please log in to continue"))
		return
	}

	status, err := h.Registrations.Status(r.Context(), p.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view := regstatus.Evaluate(status)
	resp := DashboardResponse{
		Response:   ok(""),
		Restricted: view.Restricted,
		Banner:     view.Banner,
		Status:     status,
	}
	if !view.Restricted {
		d, err := h.Dashboards.Dashboard(r.Context(), p.Email)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		resp.Dashboard = d
	}
	writeJSON(w, http.StatusOK, resp)
}
