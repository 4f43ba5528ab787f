// Package regstatus maps a retailer's registration status onto what the
// dashboard may show.
package regstatus

import "github.com/AnshRaj112/freshcart-backend/internal/models"

// BannerKind selects the banner variant.
type BannerKind string

const (
	BannerIncomplete BannerKind = "incomplete"
	BannerPending    BannerKind = "pending"
	BannerRejected   BannerKind = "rejected"
	BannerApproved   BannerKind = "approved"
)

// Link is a banner call to action.
type Link struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

type Banner struct {
	Kind        BannerKind `json:"kind"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	Reason      string     `json:"reason,omitempty"`
	Action      *Link      `json:"action,omitempty"`
	Dismissible bool       `json:"dismissible"`
}

// View is the gate's verdict. Restricted dashboards show only the banner.
type View struct {
	Restricted bool                      `json:"restricted"`
	Banner     *Banner                   `json:"banner,omitempty"`
	Status     models.RegistrationStatus `json:"registrationStatus"`
}

// CompletionPath is the registration form.
const CompletionPath = "/retailer/registration"

// Evaluate applies the gate: anything short of an approved, completed
// registration restricts the dashboard.
func Evaluate(s models.RegistrationStatus) View {
	v := View{Status: s, Restricted: true}

	switch {
	case !s.RegistrationCompleted:
		v.Banner = &Banner{
			Kind:    BannerIncomplete,
			Title:   "Complete your registration",
			Message: "Add your store details and documents to start selling.",
			Action:  &Link{Label: "Complete registration", Href: CompletionPath},
		}
	case s.VerificationStatus == models.VerificationPending:
		v.Banner = &Banner{
			Kind:    BannerPending,
			Title:   "Registration under review",
			Message: "We are verifying your documents. This usually takes 1-2 business days.",
		}
	case s.VerificationStatus == models.VerificationRejected:
		v.Banner = &Banner{
			Kind:    BannerRejected,
			Title:   "Registration rejected",
			Message: "Please update your registration and submit it again.",
			Reason:  s.RejectionReason,
			Action:  &Link{Label: "Update registration", Href: CompletionPath},
		}
	case s.VerificationStatus == models.VerificationApproved:
		v.Restricted = false
		v.Banner = &Banner{
			Kind:        BannerApproved,
			Title:       "Your store is verified",
			Message:     "You now have full access to your dashboard.",
			Dismissible: true,
		}
	default:
		// unknown status from a newer server: stay restricted
		v.Banner = &Banner{
			Kind:    BannerPending,
			Title:   "Registration under review",
			Message: "Your registration status is being updated.",
		}
	}
	return v
}
