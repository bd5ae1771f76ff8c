package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "branchrate/pkg/domain-errors"
)

var (
	tokens    = NewService("test-signing-key", "branchrate", "branchrate-admin")
	sessionID = uuid.New()
)

func TestIssueAndValidate(t *testing.T) {
	expiresAt := time.Now().Add(time.Hour)
	tok, err := tokens.Issue(sessionID, "2", expiresAt)
	require.NoError(t, err)

	claims, err := tokens.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, sessionID.String(), claims.SessionID)
	assert.Equal(t, "2", claims.BranchID)
	assert.WithinDuration(t, expiresAt, claims.ExpiresAt.Time, time.Second)
}

func TestValidateRejects(t *testing.T) {
	t.Run("garbage", func(t *testing.T) {
		_, err := tokens.Validate("invalid-token-string")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("expired", func(t *testing.T) {
		tok, err := tokens.Issue(sessionID, "2", time.Now().Add(-time.Hour))
		require.NoError(t, err)
		_, err = tokens.Validate(tok)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "token has expired")
	})

	t.Run("other key", func(t *testing.T) {
		tok, err := NewService("other-key", "branchrate", "branchrate-admin").Issue(sessionID, "2", time.Now().Add(time.Hour))
		require.NoError(t, err)
		_, err = tokens.Validate(tok)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("other audience", func(t *testing.T) {
		tok, err := NewService("test-signing-key", "branchrate", "elsewhere").Issue(sessionID, "2", time.Now().Add(time.Hour))
		require.NoError(t, err)
		_, err = tokens.Validate(tok)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}
