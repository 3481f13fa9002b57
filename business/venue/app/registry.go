package app

import (
	"sort"
	"sync"

	"github.com/fd1az/dexarb/business/venue/domain"
	"github.com/fd1az/dexarb/internal/apperror"
)

// Registry maps venue IDs to their metadata and adapters. Registration
// validates the ID once; lookups afterwards are typed and cheap.
type Registry struct {
	mu       sync.RWMutex
	venues   map[domain.ID]*domain.Venue
	adapters map[domain.ID]Adapter
}

// NewRegistry creates an empty venue registry.
func NewRegistry() *Registry {
	return &Registry{
		venues:   make(map[domain.ID]*domain.Venue),
		adapters: make(map[domain.ID]Adapter),
	}
}

// Register adds a venue and its adapter. The adapter must serve the same
// venue ID it is registered under.
func (r *Registry) Register(v *domain.Venue, a Adapter) error {
	if v == nil {
		return apperror.New(apperror.CodeRequiredField, apperror.WithContext("venue is nil"))
	}
	if _, err := domain.ParseID(string(v.ID)); err != nil {
		return apperror.New(apperror.CodeInvalidInput,
			apperror.WithCause(err),
			apperror.WithContext("venue id"))
	}
	if a == nil {
		return apperror.New(apperror.CodeRequiredField,
			apperror.WithContext("adapter is nil for venue "+v.ID.String()))
	}
	if a.VenueID() != v.ID {
		return apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("adapter serves "+a.VenueID().String()+", registered as "+v.ID.String()))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.venues[v.ID]; exists {
		return apperror.New(apperror.CodeInvalidState,
			apperror.WithContext("venue "+v.ID.String()+" already registered"))
	}

	r.venues[v.ID] = v
	r.adapters[v.ID] = a
	return nil
}

// Adapter returns the adapter for id.
func (r *Registry) Adapter(id domain.ID) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[id]
	if !ok {
		return nil, apperror.New(apperror.CodeVenueNotFound, apperror.WithContext(id.String()))
	}
	return a, nil
}

// Venue returns the venue metadata for id.
func (r *Registry) Venue(id domain.ID) (*domain.Venue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.venues[id]
	if !ok {
		return nil, apperror.New(apperror.CodeVenueNotFound, apperror.WithContext(id.String()))
	}
	return v, nil
}

// Active returns all active venues sorted by ID, so scans iterate venues
// in a stable order.
func (r *Registry) Active() []*domain.Venue {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Venue, 0, len(r.venues))
	for _, v := range r.venues {
		if v.Active {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// All returns every registered venue sorted by ID.
func (r *Registry) All() []*domain.Venue {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Venue, 0, len(r.venues))
	for _, v := range r.venues {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetActive flips a venue's active flag.
func (r *Registry) SetActive(id domain.ID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.venues[id]
	if !ok {
		return apperror.New(apperror.CodeVenueNotFound, apperror.WithContext(id.String()))
	}
	v.Active = active
	return nil
}

// IsDenylisted reports whether the venue is flagged. Unknown venues count
// as denylisted so risk scoring treats them conservatively.
func (r *Registry) IsDenylisted(id domain.ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.venues[id]
	if !ok {
		return true
	}
	return v.Denylisted
}
