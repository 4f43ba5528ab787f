package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VerificationStatus is the admin review state of a retailer registration.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// Live feed event types.
const (
	RegistrationEventSnapshot = "registration_snapshot"
	RegistrationEventChanged  = "registration_status"
)

// RegistrationStatus is what the retailer dashboard is gated on.
type RegistrationStatus struct {
	RegistrationCompleted bool               `json:"registrationCompleted"`
	VerificationStatus    VerificationStatus `json:"verificationStatus"`
	RejectionReason       string             `json:"rejectionReason,omitempty"`
}

// RetailerRegistration holds the business details a retailer submits for review.
type RetailerRegistration struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`

	Email     string `bson:"email" json:"email"`
	StoreName string `bson:"store_name" json:"store_name"`
	Phone     string `bson:"phone" json:"phone"`

	// Store address
	Street  string `bson:"street" json:"street"`
	City    string `bson:"city" json:"city"`
	State   string `bson:"state" json:"state"`
	ZipCode string `bson:"zip_code" json:"zip_code"`

	GSTNumber     string `bson:"gst_number" json:"gst_number"`
	LicenseNumber string `bson:"license_number" json:"license_number"`

	// Document URLs (uploaded separately)
	LicenseDocumentURL string `bson:"license_document_url,omitempty" json:"license_document_url,omitempty"`
	IDDocumentURL      string `bson:"id_document_url,omitempty" json:"id_document_url,omitempty"`

	RegistrationCompleted bool               `bson:"registration_completed" json:"registration_completed"`
	VerificationStatus    VerificationStatus `bson:"verification_status" json:"verification_status"`
	RejectionReason       string             `bson:"rejection_reason,omitempty" json:"rejection_reason,omitempty"`
	SubmittedAt           *time.Time         `bson:"submitted_at,omitempty" json:"submitted_at,omitempty"`
	ReviewedAt            *time.Time         `bson:"reviewed_at,omitempty" json:"reviewed_at,omitempty"`
}

// Status projects the registration onto the gate inputs.
func (r *RetailerRegistration) Status() RegistrationStatus {
	return RegistrationStatus{
		RegistrationCompleted: r.RegistrationCompleted,
		VerificationStatus:    r.VerificationStatus,
		RejectionReason:       r.RejectionReason,
	}
}
