package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("faculty-1", "proofs/task-1/student-1/a.png")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	subject, key, parsedExpiry, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "faculty-1", subject)
	require.Equal(t, "proofs/task-1/student-1/a.png", key)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	base := time.Now()
	signer.now = func() time.Time { return base }
	token, _, err := signer.Generate("faculty-1", "proofs/a.png")
	require.NoError(t, err)

	signer.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, _, _, err = signer.Parse(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("faculty-1", "proofs/a.png")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	other, _, err := signer.Generate("faculty-2", "proofs/b.png")
	require.NoError(t, err)
	parts[2] = strings.Split(other, ".")[2]

	_, _, _, err = signer.Parse(strings.Join(parts, "."))
	require.ErrorIs(t, err, ErrInvalidToken)

	_, _, _, err = NewSignedURLSigner("other", time.Hour).Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignedURLSignerRequiresInputs(t *testing.T) {
	_, _, err := NewSignedURLSigner("secret", time.Hour).Generate("", "key")
	require.Error(t, err)
	_, _, err = NewSignedURLSigner("", time.Hour).Generate("faculty-1", "key")
	require.Error(t, err)
}
