package images

import (
	"sort"
	"time"
)

// Entry is one recorded image.
type Entry interface {
	EntryID() string
	EntryRef() string
	EntryCreatedAt() time.Time
	// DigestHexes lists the artifacts the entry keeps alive.
	DigestHexes() []string
}

// Index is the on-disk document of an image store, keyed by normalized ref.
type Index[E Entry] struct {
	Images map[string]*E `json:"images"`
}

// Init implements storage.Initer.
func (idx *Index[E]) Init() {
	if idx.Images == nil {
		idx.Images = make(map[string]*E)
	}
}

// LookupRefs returns every ref id names: the ref itself, its normalized
// form, or any ref whose image ID is id. The result is sorted.
func LookupRefs[E Entry](entries map[string]*E, id string, normalize func(string) (string, bool)) []string {
	seen := make(map[string]struct{})
	if e, ok := entries[id]; ok && e != nil {
		seen[id] = struct{}{}
	}
	if normalize != nil {
		if n, ok := normalize(id); ok {
			if e, ok := entries[n]; ok && e != nil {
				seen[n] = struct{}{}
			}
		}
	}
	for ref, e := range entries {
		if e != nil && (*e).EntryID() == id {
			seen[ref] = struct{}{}
		}
	}
	refs := make([]string, 0, len(seen))
	for ref := range seen {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// ReferencedDigests returns every digest hex kept alive by entries.
func ReferencedDigests[E Entry](entries map[string]*E) map[string]struct{} {
	refs := make(map[string]struct{})
	for _, e := range entries {
		if e == nil {
			continue
		}
		for _, hex := range (*e).DigestHexes() {
			refs[hex] = struct{}{}
		}
	}
	return refs
}
