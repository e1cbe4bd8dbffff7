package registry

import (
	"time"

	"github.com/google/go-containerregistry/pkg/name"

	"github.com/projecteru2/pullwatch/images"
)

// imageIndex is the document stored in images.json.
type imageIndex struct {
	images.Index[imageEntry]
}

// LookupRefs returns the refs id names, accepting short refs such as
// "alpine" as well as manifest digests.
func (idx *imageIndex) LookupRefs(id string) []string {
	return images.LookupRefs(idx.Images, id, normalize)
}

// imageEntry records one pulled image. Paths derive from digests.
type imageEntry struct {
	Ref            string        `json:"ref"`
	ManifestDigest images.Digest `json:"manifest_digest"`
	Layers         []layerEntry  `json:"layers"`
	CreatedAt      time.Time     `json:"created_at"`
}

func (e imageEntry) EntryID() string           { return e.ManifestDigest.String() }
func (e imageEntry) EntryRef() string          { return e.Ref }
func (e imageEntry) EntryCreatedAt() time.Time { return e.CreatedAt }
func (e imageEntry) DigestHexes() []string {
	hexes := make([]string, len(e.Layers))
	for i, l := range e.Layers {
		hexes[i] = l.Digest.Hex()
	}
	return hexes
}

type layerEntry struct {
	Digest images.Digest `json:"digest"`
	Size   int64         `json:"size"`
}

func normalize(s string) (string, bool) {
	parsed, err := name.ParseReference(s)
	if err != nil {
		return "", false
	}
	return parsed.Name(), true
}
