package images

import "strings"

const shortLen = 12

// Digest is a content digest in "sha256:<hex>" form.
type Digest string

// NewDigest prefixes hex with "sha256:".
func NewDigest(hex string) Digest {
	return Digest("sha256:" + hex)
}

// Hex strips the algorithm prefix.
func (d Digest) Hex() string {
	return strings.TrimPrefix(string(d), "sha256:")
}

// Short is the 12-character hex prefix Docker uses to name layers.
func (d Digest) Short() string {
	hex := d.Hex()
	if len(hex) > shortLen {
		return hex[:shortLen]
	}
	return hex
}

func (d Digest) String() string {
	return string(d)
}
