package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetObjectKey(t *testing.T) {
	cfg := &Config{BucketName: "lingodesk-docs"}
	uploadedAt := time.Date(2026, time.March, 7, 12, 0, 0, 0, time.UTC)

	key := cfg.GetObjectKey("3f2c9a4e", ".docx", uploadedAt)
	assert.Equal(t, "documents/2026/03/3f2c9a4e.docx", key)
}

func TestGetContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", getContentType(".pdf"))
	assert.Equal(t, "application/xml", getContentType(".xliff"))
	assert.Equal(t, "application/octet-stream", getContentType(".bin"))
}

func TestFileExtension(t *testing.T) {
	assert.Equal(t, ".docx", fileExtension("Contract_DE.DOCX"))
	assert.Equal(t, "", fileExtension("README"))
}
