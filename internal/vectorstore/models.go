package vectorstore

import "time"

// Metadata is the fixed schema stored alongside every chunk.
//
// Adapters translate this struct to whatever a specific store's native
// metadata representation requires; nothing else in the system handles
// loosely-typed metadata maps.
type Metadata struct {
	// ChunkID is the chunk identifier, {document_id}_chunk_{ordinal}.
	ChunkID string `json:"chunk_id"`

	// DocumentID identifies the parent document.
	DocumentID string `json:"document_id"`

	// OwnerID is the owning user. Injected by the isolation layer on
	// write; never supplied by callers.
	OwnerID string `json:"owner_id,omitempty"`

	// Filename is the source document's original filename.
	Filename string `json:"filename"`

	// Page is the estimated 1-indexed page number.
	Page int `json:"page"`

	// Ordinal is the chunk's 0-based position within the document.
	Ordinal int `json:"ordinal"`

	// TotalChunks is the parent document's final chunk count.
	TotalChunks int `json:"total_chunks"`

	// OCRUsed reports whether any page of the parent document was OCR'd.
	OCRUsed bool `json:"ocr_used"`

	// OCRPages is the number of pages that required OCR.
	OCRPages int `json:"ocr_pages"`

	// TotalPages is the parent document's page count.
	TotalPages int `json:"total_pages"`

	// UploadDate is when the document was ingested.
	UploadDate time.Time `json:"upload_date"`
}

// Document is one entry on the write path: a chunk's text, its embedding,
// and its metadata snapshot.
type Document struct {
	// ID is the unique identifier; a duplicate overwrites.
	ID string

	// Content is the chunk text.
	Content string

	// Vector is the embedding. Its length must equal the collection's
	// vector size.
	Vector []float32

	// Metadata is the chunk's metadata snapshot.
	Metadata Metadata
}

// SearchResult is one nearest neighbor on the read path.
type SearchResult struct {
	// ID is the stored document identifier.
	ID string

	// Content is the chunk text.
	Content string

	// Distance is the raw cosine distance (lower = closer). The caller
	// owns the similarity = 1 - distance conversion.
	Distance float32

	// Metadata is the chunk's metadata snapshot.
	Metadata Metadata
}

// Filter is the equality/conjunction filter the store contract supports.
// Zero-valued fields are unconstrained; set fields are ANDed together.
// Owner scoping is injected by the isolation layer, not set by callers.
type Filter struct {
	// OwnerID constrains results to one owner.
	OwnerID string

	// DocumentID constrains results to one document's chunks.
	DocumentID string
}

// IsZero reports whether the filter has no constraints.
func (f Filter) IsZero() bool {
	return f.OwnerID == "" && f.DocumentID == ""
}
