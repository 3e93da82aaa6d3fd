package api

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"safemaint-backend/internal/model"
)

// ListDocuments returns documents, optionally filtered by ?status= and
// ?type=. Without a status the trash is left out.
func (h *Handler) ListDocuments(c *gin.Context) {
	docs := h.Documents.ListByStatus(model.DocumentStatus(c.Query("status")))
	if t := c.Query("type"); t != "" {
		filtered := docs[:0]
		for _, d := range docs {
			if string(d.Type) == t {
				filtered = append(filtered, d)
			}
		}
		docs = filtered
	}
	if docs == nil {
		docs = []model.DocumentRecord{}
	}
	c.JSON(http.StatusOK, docs)
}

// GetDocument returns one document.
func (h *Handler) GetDocument(c *gin.Context) {
	doc, err := h.Documents.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// CreateDocument stores a new document.
func (h *Handler) CreateDocument(c *gin.Context) {
	var doc model.DocumentRecord
	if err := c.ShouldBindJSON(&doc); err != nil {
		badRequest(c, "invalid request")
		return
	}
	created, err := h.Documents.Create(c.Request.Context(), doc)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// ArchiveDocument moves a document to the archive.
func (h *Handler) ArchiveDocument(c *gin.Context) {
	doc, err := h.Documents.Archive(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// TrashDocument moves a document to the trash.
func (h *Handler) TrashDocument(c *gin.Context) {
	doc, err := h.Documents.Trash(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// RestoreDocument brings a document back from the trash.
func (h *Handler) RestoreDocument(c *gin.Context) {
	doc, err := h.Documents.Restore(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// DeleteDocument permanently removes a trashed document.
func (h *Handler) DeleteDocument(c *gin.Context) {
	if err := h.Documents.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// EmptyTrash permanently removes every trashed document.
func (h *Handler) EmptyTrash(c *gin.Context) {
	removed, err := h.Documents.EmptyTrash(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// GetDocumentFile returns the document's attached file.
func (h *Handler) GetDocumentFile(c *gin.Context) {
	data, err := h.Documents.File(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeDataURI(c, data)
}

// writeDataURI decodes a base64 data URI into a binary response. Anything
// else is returned as JSON.
func writeDataURI(c *gin.Context, uri string) {
	meta, payload, ok := strings.Cut(uri, ",")
	if !ok || !strings.HasPrefix(meta, "data:") || !strings.HasSuffix(meta, ";base64") {
		c.JSON(http.StatusOK, gin.H{"data": uri})
		return
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"data": uri})
		return
	}
	mime := strings.TrimSuffix(strings.TrimPrefix(meta, "data:"), ";base64")
	if mime == "" {
		mime = "application/octet-stream"
	}
	c.Data(http.StatusOK, mime, raw)
}
