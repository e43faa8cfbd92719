package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", time.Hour)

	token, expiresAt, err := signer.Generate("job-123", "2026/08/grades.csv")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	exportID, relPath, parsedExp, err := signer.Parse(token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-123", exportID)
	assert.Equal(t, "2026/08/grades.csv", relPath)
	assert.Equal(t, expiresAt.Unix(), parsedExp.Unix())
}

func TestSignedURLRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", time.Hour)

	token, _, err := signer.Generate("job-123", "grades.csv")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token+"x", false)
	assert.Error(t, err)

	other := NewSignedURLSigner("other-secret", time.Hour)
	_, _, _, err = other.Parse(token, false)
	assert.Error(t, err)
}

func TestSignedURLExpiry(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", time.Hour)
	signer.ttl = -time.Minute

	token, _, err := signer.Generate("job-123", "grades.csv")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token, false)
	assert.Error(t, err)

	_, relPath, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	assert.Equal(t, "grades.csv", relPath)
}

func TestSignedURLRequiresInput(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", time.Hour)
	_, _, err := signer.Generate("", "grades.csv")
	assert.Error(t, err)
	_, _, err = signer.Generate("job-123", "")
	assert.Error(t, err)
}
