package model

import (
	"time"

	"gorm.io/datatypes"
)

// DocumentType enumerates the generated artifacts.
type DocumentType string

const (
	DocARTEmergency DocumentType = "ART_EMERGENCIAL"
	DocARTActivity  DocumentType = "ART_ATIVIDADE"
	DocChecklist    DocumentType = "CHECKLIST"
	DocReport       DocumentType = "RELATORIO"
	DocSchedule     DocumentType = "CRONOGRAMA"
)

// Valid reports whether t is a known document type.
func (t DocumentType) Valid() bool {
	switch t {
	case DocARTEmergency, DocARTActivity, DocChecklist, DocReport, DocSchedule:
		return true
	}
	return false
}

// DocumentStatus is where a document sits in the archive lifecycle.
type DocumentStatus string

const (
	DocActive   DocumentStatus = "ATIVO"
	DocDraft    DocumentStatus = "RASCUNHO"
	DocArchived DocumentStatus = "ARQUIVADO"
	DocTrash    DocumentStatus = "LIXEIRA"
)

// Signature is one captured signature on a document.
type Signature struct {
	Name     string    `json:"name"`
	Badge    string    `json:"badge"`
	Role     string    `json:"role"`
	Image    string    `json:"image"`
	SignedAt time.Time `json:"signedAt"`
}

// DocumentRecord is a generated safety permit, checklist, report or
// schedule snapshot.
type DocumentRecord struct {
	ID         string         `json:"id" gorm:"primaryKey;size:64"`
	Type       DocumentType   `json:"type" gorm:"size:32;not null;index"`
	Header     Header         `json:"header" gorm:"embedded;embeddedPrefix:header_"`
	CreatedAt  time.Time      `json:"createdAt" gorm:"not null"`
	Status     DocumentStatus `json:"status" gorm:"size:16;not null;index"`
	Content    datatypes.JSON `json:"content,omitempty"`
	Signatures []Signature    `json:"signatures,omitempty" gorm:"serializer:json"`
	File       Blob           `json:"file" gorm:"embedded;embeddedPrefix:file_"`
	TrashedAt  *time.Time     `json:"trashedAt,omitempty"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

func (DocumentRecord) TableName() string { return string(TableDocuments) }

func (d DocumentRecord) RecordID() string { return d.ID }

func (d *DocumentRecord) Blobs() map[string]*Blob {
	return map[string]*Blob{"file_data": &d.File}
}
