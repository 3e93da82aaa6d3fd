package model

// Blob is an inline file payload (a base64 data URI). When the local mirror
// drops the payload to save space, Elided is set and Size keeps the original
// length; the data stays authoritative in the remote table.
type Blob struct {
	Data   string `json:"data,omitempty" gorm:"type:text"`
	Elided bool   `json:"elided,omitempty" gorm:"-"`
	Size   int    `json:"size,omitempty" gorm:"-"`

	// Pending marks a payload the backend has not received yet. It is
	// never elided.
	Pending bool `json:"pending,omitempty" gorm:"-"`
}

// Elide drops the payload when it is larger than threshold bytes.
// It reports whether the blob was changed.
func (b *Blob) Elide(threshold int) bool {
	if b.Pending || threshold <= 0 || len(b.Data) <= threshold {
		return false
	}
	b.Size = len(b.Data)
	b.Data = ""
	b.Elided = true
	return true
}

// Empty reports whether the blob carries neither data nor a remote reference.
func (b Blob) Empty() bool {
	return b.Data == "" && !b.Elided
}

// BlobCarrier is implemented (on the pointer) by records holding blobs.
// The map is keyed by the remote column that stores each payload.
type BlobCarrier interface {
	Blobs() map[string]*Blob
}
