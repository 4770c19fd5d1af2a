package resolver

import (
	"strings"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

// CanonicalID returns the form of id used for identity comparisons.
// Azure resource ids are case-insensitive.
func CanonicalID(kind domain.ProviderKind, id string) string {
	if kind == domain.ProviderAzure {
		return strings.ToLower(id)
	}
	return id
}

// Index is a per-run arena of resources keyed by type and canonical id. It is
// read-only once built.
type Index struct {
	provider  domain.ProviderKind
	resources []domain.Resource
	byType    map[domain.ResourceType]map[string]int
}

// NewIndex takes ownership of resources. Later entries replace earlier ones
// with the same type and canonical id.
func NewIndex(kind domain.ProviderKind, resources []domain.Resource) *Index {
	ix := &Index{
		provider: kind,
		byType:   make(map[domain.ResourceType]map[string]int),
	}
	for _, r := range resources {
		ids, ok := ix.byType[r.Type]
		if !ok {
			ids = make(map[string]int)
			ix.byType[r.Type] = ids
		}
		key := CanonicalID(kind, r.ID)
		if pos, dup := ids[key]; dup {
			ix.resources[pos] = r
			continue
		}
		ids[key] = len(ix.resources)
		ix.resources = append(ix.resources, r)
	}
	return ix
}

func (ix *Index) Lookup(t domain.ResourceType, id string) (domain.Resource, bool) {
	pos, ok := ix.byType[t][CanonicalID(ix.provider, id)]
	if !ok {
		return domain.Resource{}, false
	}
	return ix.resources[pos], true
}

func (ix *Index) Len() int {
	return len(ix.resources)
}

// Resources returns the indexed resources in insertion order.
func (ix *Index) Resources() []domain.Resource {
	out := make([]domain.Resource, len(ix.resources))
	copy(out, ix.resources)
	return out
}
