package prescription

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusUploaded   = "uploaded"
	StatusSummarized = "summarized"
	StatusFailed     = "failed"
)

// MaxFileSize is the largest accepted upload, in bytes.
const MaxFileSize = 10 << 20

// AllowedContentTypes lists the accepted upload media types.
var AllowedContentTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
	"text/plain":      true,
}

// Prescription is the metadata of an uploaded prescription document. The
// bytes live in the blob store under BlobKey.
type Prescription struct {
	ID            uuid.UUID `json:"id" bson:"_id"`
	UserID        uuid.UUID `json:"userId" bson:"userId"`
	FileName      string    `json:"fileName" bson:"fileName"`
	ContentType   string    `json:"contentType" bson:"contentType"`
	Size          int64     `json:"size" bson:"size"`
	BlobKey       string    `json:"-" bson:"blobKey"`
	Hash          string    `json:"hash" bson:"hash"`
	ExtractedText string    `json:"extractedText,omitempty" bson:"extractedText,omitempty"`
	Summary       string    `json:"summary,omitempty" bson:"summary,omitempty"`
	Status        string    `json:"status" bson:"status"`
	Notes         string    `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt" bson:"updatedAt"`
}
