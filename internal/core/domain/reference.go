package domain

// ReferenceSet is the whitelist material known for one identity claim and
// document type: accepted digests, fingerprints and an optional reference image.
type ReferenceSet struct {
	Digests      []string `json:"digests,omitempty"`
	Fingerprints []string `json:"fingerprints,omitempty"`
	Reference    []byte   `json:"-"`
}

func (r ReferenceSet) HasReference() bool {
	return len(r.Reference) > 0
}
