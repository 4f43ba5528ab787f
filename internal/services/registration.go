package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AnshRaj112/freshcart-backend/internal/models"
	"github.com/AnshRaj112/freshcart-backend/pkg/utils"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RegistrationStore persists retailer registrations.
type RegistrationStore interface {
	Find(ctx context.Context, email string) (*models.RetailerRegistration, error)
	Submit(ctx context.Context, reg *models.RetailerRegistration) error
	Pending(ctx context.Context, limit int64) ([]models.RetailerRegistration, error)
	Review(ctx context.Context, email string, status models.VerificationStatus, reason string) (*models.RetailerRegistration, error)
}

// MongoRegistrationStore keeps one document per retailer email.
type MongoRegistrationStore struct {
	coll *mongo.Collection
}

func NewMongoRegistrationStore(coll *mongo.Collection) *MongoRegistrationStore {
	return &MongoRegistrationStore{coll: coll}
}

func (s *MongoRegistrationStore) Find(ctx context.Context, email string) (*models.RetailerRegistration, error) {
	var reg models.RetailerRegistration
	err := s.coll.FindOne(ctx, bson.M{"email": utils.NormalizeEmail(email)}).Decode(&reg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find registration: %w", err)
	}
	return &reg, nil
}

// Submit upserts the registration and puts it back in the review queue.
func (s *MongoRegistrationStore) Submit(ctx context.Context, reg *models.RetailerRegistration) error {
	now := time.Now().UTC()
	reg.Email = utils.NormalizeEmail(reg.Email)
	reg.UpdatedAt = now
	reg.SubmittedAt = &now
	reg.RegistrationCompleted = true
	reg.VerificationStatus = models.VerificationPending
	reg.RejectionReason = ""
	reg.ReviewedAt = nil

	update := bson.M{
		"$set": bson.M{
			"updated_at":             reg.UpdatedAt,
			"store_name":             reg.StoreName,
			"phone":                  reg.Phone,
			"street":                 reg.Street,
			"city":                   reg.City,
			"state":                  reg.State,
			"zip_code":               reg.ZipCode,
			"gst_number":             reg.GSTNumber,
			"license_number":         reg.LicenseNumber,
			"license_document_url":   reg.LicenseDocumentURL,
			"id_document_url":        reg.IDDocumentURL,
			"registration_completed": true,
			"verification_status":    models.VerificationPending,
			"submitted_at":           now,
		},
		"$unset":       bson.M{"rejection_reason": "", "reviewed_at": ""},
		"$setOnInsert": bson.M{"created_at": now},
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var stored models.RetailerRegistration
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"email": reg.Email}, update, opts).Decode(&stored); err != nil {
		return fmt.Errorf("submit registration: %w", err)
	}
	reg.ID = stored.ID
	reg.CreatedAt = stored.CreatedAt
	return nil
}

func (s *MongoRegistrationStore) Pending(ctx context.Context, limit int64) ([]models.RetailerRegistration, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	opts := options.Find().SetSort(bson.D{{Key: "submitted_at", Value: 1}}).SetLimit(limit)
	cursor, err := s.coll.Find(ctx, bson.M{
		"registration_completed": true,
		"verification_status":    models.VerificationPending,
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("list pending registrations: %w", err)
	}
	defer cursor.Close(ctx)

	regs := []models.RetailerRegistration{}
	if err := cursor.All(ctx, &regs); err != nil {
		return nil, fmt.Errorf("decode pending registrations: %w", err)
	}
	return regs, nil
}

func (s *MongoRegistrationStore) Review(ctx context.Context, email string, status models.VerificationStatus, reason string) (*models.RetailerRegistration, error) {
	now := time.Now().UTC()
	set := bson.M{
		"verification_status": status,
		"reviewed_at":         now,
		"updated_at":          now,
	}
	update := bson.M{"$set": set}
	if status == models.VerificationRejected {
		set["rejection_reason"] = reason
	} else {
		update["$unset"] = bson.M{"rejection_reason": ""}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var reg models.RetailerRegistration
	err := s.coll.FindOneAndUpdate(ctx, bson.M{
		"email":                  utils.NormalizeEmail(email),
		"registration_completed": true,
	}, update, opts).Decode(&reg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("review registration: %w", err)
	}
	return &reg, nil
}

// StatusPublisher pushes status changes to live listeners.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, email string, status models.RegistrationStatus) error
}

// RegistrationService fronts the store with the Redis status cache and
// publishes every change.
type RegistrationService struct {
	store RegistrationStore
	cache *CacheService
	feed  StatusPublisher
	log   zerolog.Logger
}

func NewRegistrationService(store RegistrationStore, cache *CacheService, feed StatusPublisher, log zerolog.Logger) *RegistrationService {
	return &RegistrationService{
		store: store,
		cache: cache,
		feed:  feed,
		log:   log.With().Str("component", "registration").Logger(),
	}
}

func statusCacheKey(email string) string {
	return CacheKey("registration_status", email)
}

// IncompleteStatus is reported for retailers that never submitted the form.
var IncompleteStatus = models.RegistrationStatus{
	RegistrationCompleted: false,
	VerificationStatus:    models.VerificationPending,
}

// Status returns the retailer's gate inputs. A retailer without a document
// has not completed registration.
func (s *RegistrationService) Status(ctx context.Context, email string) (models.RegistrationStatus, error) {
	email = utils.NormalizeEmail(email)

	var status models.RegistrationStatus
	if hit, err := s.cache.Get(ctx, statusCacheKey(email), &status); err == nil && hit {
		return status, nil
	} else if err != nil {
		s.log.Warn().Err(err).Str("email", email).Msg("status cache read failed")
	}

	reg, err := s.store.Find(ctx, email)
	switch {
	case errors.Is(err, ErrRegistrationNotFound):
		status = IncompleteStatus
	case err != nil:
		return models.RegistrationStatus{}, err
	default:
		status = reg.Status()
	}

	if err := s.cache.Set(ctx, statusCacheKey(email), status); err != nil {
		s.log.Warn().Err(err).Str("email", email).Msg("status cache write failed")
	}
	return status, nil
}

// Submit stores the completed form and moves the retailer to pending review.
func (s *RegistrationService) Submit(ctx context.Context, reg *models.RetailerRegistration) error {
	if err := s.store.Submit(ctx, reg); err != nil {
		return err
	}
	s.changed(ctx, reg.Email, reg.Status())
	return nil
}

func (s *RegistrationService) Pending(ctx context.Context, limit int64) ([]models.RetailerRegistration, error) {
	return s.store.Pending(ctx, limit)
}

// Review approves or rejects a submitted registration.
func (s *RegistrationService) Review(ctx context.Context, email string, approved bool, reason string) (models.RegistrationStatus, error) {
	status := models.VerificationApproved
	if !approved {
		status = models.VerificationRejected
	}
	reg, err := s.store.Review(ctx, email, status, reason)
	if err != nil {
		return models.RegistrationStatus{}, err
	}
	st := reg.Status()
	s.changed(ctx, reg.Email, st)
	return st, nil
}

func (s *RegistrationService) changed(ctx context.Context, email string, status models.RegistrationStatus) {
	if err := s.cache.Delete(ctx, statusCacheKey(email)); err != nil {
		s.log.Warn().Err(err).Str("email", email).Msg("status cache delete failed")
	}
	if s.feed == nil {
		return
	}
	if err := s.feed.PublishStatus(ctx, email, status); err != nil {
		s.log.Warn().Err(err).Str("email", email).Msg("publish status change failed")
	}
}
