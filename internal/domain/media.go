package domain

// MediaRef describes a staged upload attached to a note. The persisted shape must
// match these four fields exactly.
type MediaRef struct {
	URL          string `json:"url" validate:"required"`
	MimeType     string `json:"mime_type" validate:"required"`
	SizeBytes    int64  `json:"size_bytes" validate:"gte=0"`
	OriginalName string `json:"original_name" validate:"required"`
}
