package storage

import (
	"context"
	"strings"
	"testing"

	"enoriel/autos/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachmentKey(t *testing.T) {
	key := AttachmentKey(42, "../../etc/Car Photo (1).jpg")
	assert.True(t, strings.HasPrefix(key, "attachments/42/"))
	assert.True(t, strings.HasSuffix(key, "_Car_Photo_1_.jpg"), key)
	assert.NotContains(t, key, "..")
	assert.True(t, IsAttachmentKey(42, key))
	assert.False(t, IsAttachmentKey(7, key))

	assert.True(t, strings.HasSuffix(AttachmentKey(1, "..."), "_file"))
	assert.True(t, strings.HasSuffix(AttachmentKey(1, `C:\Users\ada\receipt.pdf`), "_receipt.pdf"))
	assert.False(t, IsAttachmentKey(1, "attachments/1/../2/x"))
}

func TestPresignUpload(t *testing.T) {
	s, err := NewS3Storage(&config.Config{
		AwsRegion:          "eu-west-1",
		AwsAccessKeyID:     "AKIDEXAMPLE",
		AwsSecretAccessKey: "secret",
		AwsS3Bucket:        "autos-attachments",
	})
	require.NoError(t, err)

	url, key, err := s.PresignUpload(context.Background(), 9, "receipt.pdf", "application/pdf")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "attachments/9/"))
	assert.True(t, strings.HasSuffix(key, "_receipt.pdf"))
	assert.Contains(t, url, "autos-attachments")
	assert.Contains(t, url, "X-Amz-Signature=")
	assert.Contains(t, url, "X-Amz-Expires=900")
}
