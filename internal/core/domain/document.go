package domain

import "time"

// DocumentKind partitions the corpus into normative framework documents
// and real-world artifact documents being audited against them.
type DocumentKind string

const (
	// KindFramework marks normative documents describing what should be disclosed
	KindFramework DocumentKind = "framework"

	// KindArtifact marks real-world documentation being audited
	KindArtifact DocumentKind = "artifact"
)

// Valid reports whether the kind is one of the known partitions
func (k DocumentKind) Valid() bool {
	return k == KindFramework || k == KindArtifact
}

// SourceDocument represents an indexed source document
type SourceDocument struct {
	ID    string       `json:"id"`
	Title string       `json:"title"`
	Kind  DocumentKind `json:"kind"`

	// DeclaredCategories holds explicit category metadata from the source.
	// When present, the tagger uses it verbatim instead of zero-shot tagging.
	DeclaredCategories []CategoryID `json:"declared_categories,omitempty"`

	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	IndexedAt time.Time         `json:"indexed_at"`
}

// Chunk represents a searchable passage of a document.
// Chunks are immutable once created; re-indexing a document replaces
// its chunks wholesale.
type Chunk struct {
	ID         string       `json:"id"`
	DocumentID string       `json:"document_id"`
	Kind       DocumentKind `json:"kind"`
	Content    string       `json:"content"`

	// Position is the chunk's ordinal within the document
	Position  int `json:"position"`
	StartChar int `json:"start_char"`
	EndChar   int `json:"end_char"`

	// Categories are the governance categories this chunk was tagged with.
	// Empty is legitimate: such chunks are excluded from category-restricted
	// retrieval but kept for corpus statistics.
	Categories []CategoryID `json:"categories,omitempty"`

	// Embedding is the chunk's vector. All embeddings in one index share
	// the same dimension.
	Embedding []float32 `json:"embedding,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// HasCategory reports whether the chunk carries the given tag
func (c *Chunk) HasCategory(id CategoryID) bool {
	for _, cat := range c.Categories {
		if cat == id {
			return true
		}
	}
	return false
}

// DocumentWithChunks combines a document with its chunks
type DocumentWithChunks struct {
	Document *SourceDocument `json:"document"`
	Chunks   []*Chunk        `json:"chunks"`
}

// CorpusStats summarizes the indexed corpus
type CorpusStats struct {
	FrameworkDocuments int `json:"framework_documents"`
	ArtifactDocuments  int `json:"artifact_documents"`
	Chunks             int `json:"chunks"`
	IndexedVectors     int `json:"indexed_vectors"`

	// UntaggedChunks counts chunks that matched no category
	UntaggedChunks int `json:"untagged_chunks"`
}
