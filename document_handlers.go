package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pdit/models"
	"pdit/pkg/pipeline"
)

// maxDocumentSize caps uploads at 50MB per file.
const maxDocumentSize = 50 << 20

func createDocumentHandler(c *gin.Context) {
	userID := c.GetString("userId")

	name := c.PostForm("name")
	kind := c.PostForm("kind")
	variant := c.PostForm("variant")
	projectID := c.PostForm("project_id")
	targetLang := c.PostForm("target_language")

	// Legacy variant aliases from older clients.
	switch variant {
	case "m1":
		variant = string(models.VariantInline)
	case "m2":
		variant = string(models.VariantBackground)
	}

	original, err := readFormFile(c, "original_file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "original_file is required"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// Optional here; the intake validation decides whether it is required.
	modified, err := readFormFile(c, "modified_file")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc, err := docService.Create(c.Request.Context(), pipeline.IntakeRequest{
		Name:           name,
		Kind:           models.DocumentKind(kind),
		Variant:        models.DocumentVariant(variant),
		ProjectID:      projectID,
		UserID:         userID,
		TargetLanguage: targetLang,
		Original:       original,
		Modified:       modified,
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.Error("document intake", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "intake failed"})
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func getDocumentHandler(c *gin.Context) {
	doc, err := docService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pipeline.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch document"})
		return
	}
	c.JSON(http.StatusOK, doc)
}

func listProjectDocumentsHandler(c *gin.Context) {
	docs, err := docService.ListByProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch documents"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Documents fetched successfully", "data": docs})
}

// updateDocumentHandler handles both shapes: a multipart request replaces the
// source file (and optionally renames), a JSON request renames only.
func updateDocumentHandler(c *gin.Context) {
	id := c.Param("id")

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		name := c.PostForm("name")
		file, err := readFormFile(c, "file")
		if err != nil {
			if !errors.Is(err, http.ErrMissingFile) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if name == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "provide a file or a name"})
				return
			}
			doc, err := docService.Rename(c.Request.Context(), id, name)
			respondUpdated(c, doc, err)
			return
		}
		doc, err := docService.ReplaceFile(c.Request.Context(), id, name, file)
		respondUpdated(c, doc, err)
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	doc, err := docService.Rename(c.Request.Context(), id, req.Name)
	respondUpdated(c, doc, err)
}

func respondUpdated(c *gin.Context, doc *models.Document, err error) {
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		case errors.Is(err, pipeline.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			logger.Error("document update", "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		}
		return
	}
	c.JSON(http.StatusOK, doc)
}

func deleteDocumentHandler(c *gin.Context) {
	if err := docService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, pipeline.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Document and associated files deleted successfully"})
}

// readFormFile pulls one multipart file fully into memory.
// Missing files surface as http.ErrMissingFile so callers can treat them as
// optional.
func readFormFile(c *gin.Context, field string) (*pipeline.FileInput, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, fmt.Errorf("%s: %w", field, http.ErrMissingFile)
		}
		return nil, fmt.Errorf("read %s: %v", field, err)
	}
	if fh.Size > maxDocumentSize {
		return nil, fmt.Errorf("%s exceeds the 50MB limit", field)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %v", field, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %v", field, err)
	}
	ct := fh.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &pipeline.FileInput{Filename: fh.Filename, ContentType: ct, Data: data}, nil
}
