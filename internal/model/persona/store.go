package persona

// Store exposes persona retrieval for HTTP handlers and the wizard.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	return &MemoryStore{items: append([]Persona(nil), items...)}
}

// List returns the predefined persona list.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID looks up a persona by identifier.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Persona{}, false
}

// SuggestedNames returns the ordered name suggestions for id, falling back to
// the DefaultID list when id is unknown.
func SuggestedNames(s Store, id string) []string {
	if p, ok := s.FindByID(id); ok && len(p.SuggestedNames) > 0 {
		return append([]string(nil), p.SuggestedNames...)
	}
	if p, ok := s.FindByID(DefaultID); ok {
		return append([]string(nil), p.SuggestedNames...)
	}
	return nil
}
