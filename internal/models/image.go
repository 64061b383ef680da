package models

import "io"

// ImageUpload is an image received from a client, not yet stored.
type ImageUpload struct {
	Filename    string
	ContentType string
	Data        io.Reader
}

// StoredImage identifies an image held by the object store.
type StoredImage struct {
	URL      string
	PublicID string
}
