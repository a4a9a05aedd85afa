package service

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrMatchesAfterEnrich(t *testing.T) {
	err := fmt.Errorf("confirm: %w", ErrTxNotConfirmed.Enrich("timeout"))
	require.ErrorIs(t, err, ErrTxNotConfirmed)
	require.NotErrorIs(t, err, ErrProofNotFound)

	e, ok := AsErr(err)
	require.True(t, ok)
	require.Equal(t, "tx_not_confirmed", e.Code)
	require.Equal(t, http.StatusUnprocessableEntity, e.Status)
	require.Equal(t, CategoryChain, e.Category())
	require.Contains(t, e.Message, "timeout")
}

func TestDuplicateError(t *testing.T) {
	var err error = &DuplicateError{ExistingAssetID: "a1"}
	require.ErrorIs(t, err, ErrDuplicateContent)

	var dup *DuplicateError
	require.True(t, errors.As(fmt.Errorf("wrap: %w", err), &dup))
	require.Equal(t, "a1", dup.ExistingAssetID)
}

func TestTransient(t *testing.T) {
	require.Nil(t, Transient(nil))
	err := fmt.Errorf("prepare: %w", Transient(ErrChainUnavailable.Enrich("dial")))
	require.True(t, IsTransient(err))
	require.ErrorIs(t, err, ErrChainUnavailable)
	require.False(t, IsTransient(ErrChainUnavailable))
}
