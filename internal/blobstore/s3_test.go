package blobstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseS3URI_ValidURI(t *testing.T) {
	bucket, key, err := parseS3URI("s3://my-bucket/docs/42-report.txt")
	require.NoError(t, err)
	assert.Equal(t, "my-bucket", bucket)
	assert.Equal(t, "docs/42-report.txt", key)
}

func TestParseS3URI_RejectsUnsupportedScheme(t *testing.T) {
	_, _, err := parseS3URI("local://docs/42-report.txt")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestParseS3URI_RejectsMalformedURI(t *testing.T) {
	_, _, err := parseS3URI("s3://bucket-only")
	assert.Error(t, err)
}
