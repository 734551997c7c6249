package prescription

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careline/careline/internal/domain/patient"
	"github.com/careline/careline/internal/platform/apperr"
	"github.com/careline/careline/internal/platform/blobstore"
	"github.com/careline/careline/internal/platform/llm"
)

var (
	ErrFileTooLarge    = fmt.Errorf("file exceeds the maximum size of %d bytes", MaxFileSize)
	ErrUnsupportedType = errors.New("file type is not allowed")
)

// FallbackSummary is stored when the language model cannot produce one.
const FallbackSummary = "An automatic summary is not available right now. " +
	"Please review the original prescription, and ask your doctor or pharmacist if anything is unclear."

const summaryPrompt = "You summarize medical prescriptions for patients. " +
	"List each medication with its dosage, frequency and duration, then any other instructions. " +
	"Use plain language and only include information present in the document."

// ProfileLookup resolves prescription owners.
type ProfileLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Profile, error)
	GetByExternalID(ctx context.Context, externalID string) (*patient.Profile, error)
}

type Service struct {
	repo     Repository
	blobs    blobstore.Store
	llm      llm.Client
	profiles ProfileLookup
	logger   zerolog.Logger
}

func NewService(repo Repository, blobs blobstore.Store, client llm.Client, profiles ProfileLookup, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		blobs:    blobs,
		llm:      client,
		profiles: profiles,
		logger:   logger.With().Str("component", "prescription").Logger(),
	}
}

// Upload is one uploaded file.
type Upload struct {
	FileName    string
	ContentType string
	Body        io.Reader
	Notes       string
}

// mediaType strips parameters from the declared type and sniffs the content
// when the client sent none.
func mediaType(declared string, data []byte) string {
	if declared == "" || declared == "application/octet-stream" {
		declared = http.DetectContentType(data)
	}
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(declared))
	}
	return mt
}

func (s *Service) Upload(ctx context.Context, userID uuid.UUID, up Upload) (*Prescription, error) {
	if strings.TrimSpace(up.FileName) == "" {
		return nil, apperr.Validation("file name is required")
	}
	if _, err := s.profiles.Get(ctx, userID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Validation("user %s does not exist", userID)
		}
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(up.Body, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxFileSize {
		return nil, ErrFileTooLarge
	}
	if len(data) == 0 {
		return nil, apperr.Validation("file is empty")
	}
	ct := mediaType(up.ContentType, data)
	if !AllowedContentTypes[ct] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, ct)
	}

	sum := sha256.Sum256(data)
	p := &Prescription{
		ID:          uuid.New(),
		UserID:      userID,
		FileName:    up.FileName,
		ContentType: ct,
		Size:        int64(len(data)),
		Hash:        hex.EncodeToString(sum[:]),
		Status:      StatusUploaded,
		Notes:       strings.TrimSpace(up.Notes),
	}
	p.BlobKey = fmt.Sprintf("prescriptions/%s/%s", userID, p.ID)

	text, err := ExtractText(ct, data)
	if err != nil {
		s.logger.Warn().Err(err).Str("prescription_id", p.ID.String()).Msg("text extraction failed")
	}
	p.ExtractedText = text

	if err := s.blobs.Put(ctx, p.BlobKey, ct, data); err != nil {
		return nil, fmt.Errorf("store prescription file: %w", err)
	}
	if err := s.repo.Create(ctx, p); err != nil {
		if derr := s.blobs.Delete(ctx, p.BlobKey); derr != nil {
			s.logger.Warn().Err(derr).Str("blob_key", p.BlobKey).Msg("orphaned prescription blob")
		}
		return nil, err
	}

	s.logger.Info().
		Str("prescription_id", p.ID.String()).
		Str("user_id", userID.String()).
		Str("content_type", ct).
		Int64("size", p.Size).
		Msg("prescription uploaded")
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*Prescription, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Download returns the record and its bytes. The caller closes the reader.
func (s *Service) Download(ctx context.Context, id uuid.UUID) (*Prescription, io.ReadCloser, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Get(ctx, p.BlobKey)
	if errors.Is(err, blobstore.ErrBlobNotFound) {
		return nil, nil, apperr.NotFound("prescription file")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load prescription file: %w", err)
	}
	return p, rc, nil
}

// Delete removes the file and then the record.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, p.BlobKey); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
		return fmt.Errorf("delete prescription file: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("prescription_id", id.String()).Msg("prescription deleted")
	return nil
}

// Summarize asks the language model for a patient-facing summary of the
// extracted text. When the model fails the fallback summary is stored with
// status failed and no error is returned.
func (s *Service) Summarize(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.ExtractedText) == "" {
		return nil, apperr.Validation("prescription has no extractable text to summarize")
	}

	summary, err := s.llm.Complete(ctx, "summary", []llm.Message{
		{Role: llm.RoleSystem, Content: summaryPrompt},
		{Role: llm.RoleUser, Content: p.ExtractedText},
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("prescription_id", id.String()).Msg("prescription summary failed, storing fallback")
		p.Summary = FallbackSummary
		p.Status = StatusFailed
	} else {
		p.Summary = summary
		p.Status = StatusSummarized
	}

	if err := s.repo.SetSummary(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

