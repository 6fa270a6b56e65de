// Package services wires the daemon's services together.
package services

import (
	"github.com/caselight/caselight/internal/catalog"
	"github.com/caselight/caselight/internal/embeddings"
	"github.com/caselight/caselight/internal/ingest"
	"github.com/caselight/caselight/internal/search"
	"github.com/caselight/caselight/internal/settings"
	"github.com/caselight/caselight/internal/synthesis"
	"github.com/caselight/caselight/internal/vectorstore"
)

// Registry provides access to all caselight services.
// Use accessor methods to retrieve individual services.
type Registry interface {
	Ingest() *ingest.Service
	Search() *search.Engine
	Synthesizer() *synthesis.Synthesizer
	Catalog() *catalog.Catalog
	Settings() *settings.Store
	VectorStore() vectorstore.Store
	Embedder() embeddings.Provider
}

// Options configures the registry with service instances.
type Options struct {
	Ingest      *ingest.Service
	Search      *search.Engine
	Synthesizer *synthesis.Synthesizer
	Catalog     *catalog.Catalog
	Settings    *settings.Store
	VectorStore vectorstore.Store
	Embedder    embeddings.Provider
}

// registry is the concrete implementation of Registry.
type registry struct {
	ingest      *ingest.Service
	search      *search.Engine
	synthesizer *synthesis.Synthesizer
	catalog     *catalog.Catalog
	settings    *settings.Store
	vectorStore vectorstore.Store
	embedder    embeddings.Provider
}

// NewRegistry creates a new service registry.
func NewRegistry(opts Options) Registry {
	return &registry{
		ingest:      opts.Ingest,
		search:      opts.Search,
		synthesizer: opts.Synthesizer,
		catalog:     opts.Catalog,
		settings:    opts.Settings,
		vectorStore: opts.VectorStore,
		embedder:    opts.Embedder,
	}
}

func (r *registry) Ingest() *ingest.Service             { return r.ingest }
func (r *registry) Search() *search.Engine              { return r.search }
func (r *registry) Synthesizer() *synthesis.Synthesizer { return r.synthesizer }
func (r *registry) Catalog() *catalog.Catalog           { return r.catalog }
func (r *registry) Settings() *settings.Store           { return r.settings }
func (r *registry) VectorStore() vectorstore.Store      { return r.vectorStore }
func (r *registry) Embedder() embeddings.Provider       { return r.embedder }
