package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lingodesk/lingodesk/app/models"
	"github.com/lingodesk/lingodesk/app/repository"
	"github.com/lingodesk/lingodesk/internal/pkg/storage"
	"github.com/lingodesk/lingodesk/internal/pkg/usercontext"
)

// 50 MB upload cap for translation source files
const maxDocumentSize = 50 * 1024 * 1024

// HandleDocumentUpload accepts a multipart source file, stores the bytes in
// S3 and the metadata in the documents table. Re-uploading identical content
// returns the existing document instead of storing a second copy.
func HandleDocumentUpload(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "file is required")
	}
	if fileHeader.Size > maxDocumentSize {
		return jsonError(c, fiber.StatusRequestEntityTooLarge, "file exceeds the 50 MB limit")
	}

	client, err := storage.GetClient()
	if err != nil {
		log.Errorf("[Document] Storage unavailable: %v", err)
		return jsonError(c, fiber.StatusServiceUnavailable, "document storage unavailable")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "could not read uploaded file")
	}
	defer file.Close()

	docID := uuid.NewString()
	objectKey := client.ObjectKeyFor(docID, fileHeader.Filename, time.Now().UTC())

	result, err := client.UploadDocument(c.Context(), objectKey, fileHeader.Filename, file)
	if err != nil {
		log.Errorf("[Document] Upload failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "document upload failed")
	}

	docRepo := repository.GetGlobalFactory().GetDocumentRepository()

	// Same user, same content: keep the original, drop the fresh object.
	if existing, err := docRepo.GetByUserAndChecksum(userCtx.UserID, result.Checksum); err == nil {
		if delErr := client.DeleteDocument(c.Context(), objectKey); delErr != nil {
			log.Warnf("[Document] Failed to remove duplicate object %s: %v", objectKey, delErr)
		}
		return c.JSON(existing)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Errorf("[Document] Checksum lookup failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "document upload failed")
	}

	doc := &models.Document{
		ID:          docID,
		UserID:      userCtx.UserID,
		FileName:    fileHeader.Filename,
		ContentType: result.ContentType,
		Size:        result.Size,
		Checksum:    result.Checksum,
		ObjectKey:   result.ObjectKey,
		SourceLang:  c.FormValue("source_lang"),
		TargetLang:  c.FormValue("target_lang"),
		Status:      models.DocumentStatusUploaded,
	}
	if userCtx.CompanyID != 0 {
		companyID := userCtx.CompanyID
		doc.CompanyID = &companyID
	}

	if err := docRepo.Create(doc); err != nil {
		log.Errorf("[Document] Create failed: %v", err)
		if delErr := client.DeleteDocument(c.Context(), objectKey); delErr != nil {
			log.Warnf("[Document] Failed to remove orphaned object %s: %v", objectKey, delErr)
		}
		return jsonError(c, fiber.StatusInternalServerError, "document upload failed")
	}

	return c.Status(fiber.StatusCreated).JSON(doc)
}

// HandleDocumentList lists the caller's documents, paginated.
func HandleDocumentList(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	limit, skip := ParsePagination(c)

	documents, total, err := repository.GetGlobalFactory().GetDocumentRepository().
		ListByUser(userCtx.UserID, skip, limit)
	if err != nil {
		log.Errorf("[Document] List failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "document listing failed")
	}

	return c.JSON(fiber.Map{
		"documents": documents,
		"page_info": PageInfo(limit, skip, total),
	})
}

// HandleDocumentDownload streams a stored document back to its owner.
func HandleDocumentDownload(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	doc, err := repository.GetGlobalFactory().GetDocumentRepository().GetByID(c.Params("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "document not found")
		}
		log.Errorf("[Document] Get failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "document lookup failed")
	}
	if doc.UserID != userCtx.UserID && !userCtx.IsAdmin {
		return jsonError(c, fiber.StatusForbidden, "not your document")
	}

	client, err := storage.GetClient()
	if err != nil {
		log.Errorf("[Document] Storage unavailable: %v", err)
		return jsonError(c, fiber.StatusServiceUnavailable, "document storage unavailable")
	}

	body, contentType, err := client.DownloadDocument(c.Context(), doc.ObjectKey)
	if err != nil {
		log.Errorf("[Document] Download failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "document download failed")
	}

	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+doc.FileName+`"`)
	return c.SendStream(body)
}
