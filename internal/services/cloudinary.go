package services

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// MaxDocumentSize caps licence and ID uploads at 5 MB.
const MaxDocumentSize = 5 << 20

var allowedDocumentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"application/pdf": true,
}

// DocumentUploader stores a registration document and returns its URL.
type DocumentUploader interface {
	UploadDocument(ctx context.Context, fh *multipart.FileHeader, folder, publicID string) (string, error)
}

type CloudinaryService struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryService(cloudName, apiKey, apiSecret string) (*CloudinaryService, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &CloudinaryService{cld: cld}, nil
}

// UploadDocument validates fh and uploads it under folder/publicID,
// replacing an earlier upload with the same id.
func (s *CloudinaryService) UploadDocument(ctx context.Context, fh *multipart.FileHeader, folder, publicID string) (string, error) {
	if err := CheckDocument(fh); err != nil {
		return "", err
	}

	file, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	overwrite := true
	result, err := s.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:       folder,
		PublicID:     publicID,
		Overwrite:    &overwrite,
		ResourceType: "auto",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary: %s", result.Error.Message)
	}
	return result.SecureURL, nil
}

// CheckDocument enforces size and type limits before anything is uploaded.
func CheckDocument(fh *multipart.FileHeader) error {
	if fh == nil {
		return fmt.Errorf("%w: missing file", ErrUploadRejected)
	}
	if fh.Size > MaxDocumentSize {
		return fmt.Errorf("%w: %s is larger than 5 MB", ErrUploadRejected, fh.Filename)
	}

	ct := fh.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = contentTypeFromExt(fh.Filename)
	}
	if !allowedDocumentTypes[ct] {
		return fmt.Errorf("%w: %s must be a JPEG, PNG, WEBP or PDF", ErrUploadRejected, fh.Filename)
	}

	// sniff the first bytes so a renamed file cannot pass as a PDF
	file, err := fh.Open()
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	head := make([]byte, 512)
	n, _ := file.Read(head)
	sniffed := http.DetectContentType(head[:n])
	if !allowedDocumentTypes[sniffed] {
		return fmt.Errorf("%w: %s content does not match its type", ErrUploadRejected, fh.Filename)
	}
	return nil
}

func contentTypeFromExt(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	}
	return ""
}
