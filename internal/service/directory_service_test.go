package service

import (
	"context"
	"errors"
	"testing"

	"gymaccess/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryService(t *testing.T) {
	ctx := context.Background()
	dir := new(mockDirectory)
	svc := NewDirectoryService(dir, testLogger())

	t.Run("States", func(t *testing.T) {
		dir.On("GetStates", ctx).Return([]string{"Abuja", "Lagos"}, nil).Once()
		states, err := svc.States(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Abuja", "Lagos"}, states)
	})

	t.Run("StatesFailure", func(t *testing.T) {
		dir.On("GetStates", ctx).Return(nil, errors.New("timeout")).Once()
		_, err := svc.States(ctx)
		assert.ErrorIs(t, err, models.ErrLookupFailure)
	})

	t.Run("Providers", func(t *testing.T) {
		dir.On("GetProvidersByState", ctx, "Lagos").Return([]string{"FitFam Ikoyi"}, nil).Once()
		providers, err := svc.Providers(ctx, " Lagos ")
		require.NoError(t, err)
		assert.Equal(t, []string{"FitFam Ikoyi"}, providers)

		_, err = svc.Providers(ctx, "")
		assert.ErrorIs(t, err, models.ErrSelectionMissing)
	})

	t.Run("ValidateSelection", func(t *testing.T) {
		dir.On("ProviderExists", ctx, "Lagos", "FitFam Ikoyi").Return(true, nil).Once()
		dir.On("ProviderExists", ctx, "Lagos", "Body Lab Wuse").Return(false, nil).Once()
		dir.On("ProviderExists", ctx, "Kano", "X").Return(false, errors.New("db down")).Once()

		assert.NoError(t, svc.ValidateSelection(ctx, "Lagos", "FitFam Ikoyi"))
		assert.ErrorIs(t, svc.ValidateSelection(ctx, "Lagos", "Body Lab Wuse"), models.ErrUnknownProvider)
		assert.ErrorIs(t, svc.ValidateSelection(ctx, "Kano", "X"), models.ErrLookupFailure)
		assert.ErrorIs(t, svc.ValidateSelection(ctx, "Lagos", " "), models.ErrSelectionMissing)
		dir.AssertExpectations(t)
	})
}
