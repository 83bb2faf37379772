package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CarriesCodeAndMessage(t *testing.T) {
	err := New(ErrCodeIncidentNotFound, "incident not found")
	assert.Equal(t, ErrCodeIncidentNotFound, err.Code)
	assert.Contains(t, err.Error(), "INC_001")
	assert.Contains(t, err.Error(), "incident not found")
	assert.NotEmpty(t, err.Stack)
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeDatabaseError, "query failed"))
}

func TestWrap_PreservesCodeOnUnknown(t *testing.T) {
	inner := New(ErrCodeSeatQuotaExceeded, "quota full")
	wrapped := Wrap(inner, CodeUnknown, "invite failed")
	assert.Equal(t, ErrCodeSeatQuotaExceeded, wrapped.Code)
	assert.True(t, stderrors.Is(wrapped, wrapped))
	assert.Equal(t, inner, stderrors.Unwrap(wrapped))
}

func TestWithDetail_DoesNotMutateOriginal(t *testing.T) {
	orig := NotFound("group not found")
	detailed := orig.WithDetail("id=g1")
	assert.Empty(t, orig.Detail)
	assert.Equal(t, "id=g1", detailed.Detail)
	assert.Contains(t, detailed.Error(), "id=g1")
}

func TestIsCode_TraversesChain(t *testing.T) {
	inner := New(ErrCodeIllegalTransition, "resolved incidents are final")
	outer := fmt.Errorf("handler: %w", Wrap(inner, CodeUnknown, "transition rejected"))
	assert.True(t, IsCode(outer, ErrCodeIllegalTransition))
	assert.False(t, IsCode(outer, ErrCodeIncidentAlreadyActive))
}

func TestIsNotFound_DomainVariants(t *testing.T) {
	assert.True(t, IsNotFound(New(ErrCodeGroupNotFound, "no group")))
	assert.True(t, IsNotFound(New(ErrCodeIdentityUnknown, "who?")))
	assert.False(t, IsNotFound(New(ErrCodeSeatQuotaExceeded, "full")))
	assert.False(t, IsNotFound(nil))
}

func TestIsConflict_DomainVariants(t *testing.T) {
	assert.True(t, IsConflict(New(ErrCodeSeatQuotaExceeded, "full")))
	assert.True(t, IsConflict(New(ErrCodeIncidentAlreadyActive, "already active")))
	assert.True(t, IsConflict(New(ErrCodeInviteAlreadyConsumed, "used")))
	assert.False(t, IsConflict(New(ErrCodeValidation, "bad")))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, CodeOK, GetCode(nil))
	assert.Equal(t, CodeUnknown, GetCode(stderrors.New("plain")))
	assert.Equal(t, ErrCodeInviteExpired, GetCode(New(ErrCodeInviteExpired, "expired")))
}

func TestHTTPStatus(t *testing.T) {
	require.Equal(t, 409, HTTPStatus(ErrCodeSeatQuotaExceeded))
	require.Equal(t, 410, HTTPStatus(ErrCodeInviteExpired))
	require.Equal(t, 500, HTTPStatus(ErrorCode("NOPE")))
}
