package domain

import "strconv"

// Product is a downloadable item sold by the fulfillment service.
type Product struct {
	ID             int64
	Name           string
	Price          int64 // cents
	Bundle         bool  // product is a bundle of other products
	VariablePrices bool  // product has more than one price tier
	Files          FileManifest
}

// EligibleForPack reports whether the product can be delivered from a
// download pack. Bundles and multi-price products never are.
func (p *Product) EligibleForPack() bool {
	return !p.Bundle && !p.VariablePrices
}

// DownloadFile is a single deliverable registered on a product.
type DownloadFile struct {
	Index      int    // registration order, 0-based
	Name       string // display name
	StorageKey string // object key in file storage
}

// FileManifest lists a product's files in registration order.
type FileManifest []DownloadFile

// First returns the earliest-registered file.
func (m FileManifest) First() (DownloadFile, bool) {
	if len(m) == 0 {
		return DownloadFile{}, false
	}
	return m[0], true
}

// ManifestEntry is the public view of a file in a fulfillment response.
type ManifestEntry struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// Public strips storage details from the manifest.
func (m FileManifest) Public() []ManifestEntry {
	entries := make([]ManifestEntry, 0, len(m))
	for _, f := range m {
		entries = append(entries, ManifestEntry{Index: f.Index, Name: f.Name})
	}
	return entries
}

// ProductKey returns the product ID as a string for log and form fields.
func (p *Product) ProductKey() string {
	return strconv.FormatInt(p.ID, 10)
}
