package validation

import (
	"testing"

	"github.com/converso/converso/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func phoneFormat() *models.ValidationFormat {
	return &models.ValidationFormat{
		FormatCode: "phone_il",
		FormatName: "Israeli phone number",
		Regex:      `0\d{8,9}`,
		ErrorMessage: models.MultilingualText{
			models.LocaleFrench:  "Numéro de téléphone invalide",
			models.LocaleEnglish: "Invalid phone number",
		},
		Active: true,
	}
}

func TestRegistry_Validate_AnchoredMatch(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(phoneFormat()))

	result, err := registry.Validate("phone_il", "0501234567", models.LocaleFrench)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, "0501234567", result.Normalized)

	// Partial matches are failures: the expression is anchored.
	result, err = registry.Validate("phone_il", "call 0501234567 now", models.LocaleFrench)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "Numéro de téléphone invalide", result.ErrorMessage)
}

func TestRegistry_Validate_TrimsInput(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(phoneFormat()))

	result, err := registry.Validate("phone_il", "  0501234567  ", models.LocaleEnglish)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, "0501234567", result.Normalized)
}

func TestRegistry_Validate_LocaleFallback(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(phoneFormat()))

	// Hebrew message is missing: fall back to the default locale.
	result, err := registry.Validate("phone_il", "abc", models.LocaleHebrew)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "Numéro de téléphone invalide", result.ErrorMessage)
}

func TestRegistry_Validate_GenericMessageWhenNoLocalization(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&models.ValidationFormat{
		FormatCode: "digits",
		FormatName: "Digits",
		Regex:      `\d+`,
		Active:     true,
	}))

	result, err := registry.Validate("digits", "nope", models.LocaleFrench)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.ErrorMessage)
}

func TestRegistry_Validate_PassThroughFormat(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&models.ValidationFormat{
		FormatCode: "free_text",
		FormatName: "Free text",
		Active:     true,
	}))

	result, err := registry.Validate("free_text", "anything goes", models.LocaleFrench)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, "anything goes", result.Normalized)
}

func TestRegistry_Validate_UnknownFormat(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Validate("missing", "x", models.LocaleFrench)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestRegistry_Register_InvalidExpression(t *testing.T) {
	registry := NewRegistry()

	err := registry.Register(&models.ValidationFormat{
		FormatCode: "broken",
		FormatName: "Broken",
		Regex:      `([`,
	})
	assert.Error(t, err)
}

func TestRegistry_Load_SkipsInactive(t *testing.T) {
	registry := NewRegistry()

	inactive := phoneFormat()
	inactive.Active = false

	require.NoError(t, registry.Load([]*models.ValidationFormat{inactive}))

	_, err := registry.Validate("phone_il", "0501234567", models.LocaleFrench)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestRegistry_Validate_PreAnchoredExpression(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&models.ValidationFormat{
		FormatCode: "non_empty_text",
		FormatName: "Non-empty text",
		Regex:      `^.+$`,
		ErrorMessage: models.MultilingualText{
			models.LocaleFrench: "Veuillez saisir une réponse",
		},
		Active: true,
	}))

	result, err := registry.Validate("non_empty_text", "", models.LocaleFrench)
	require.NoError(t, err)
	assert.False(t, result.Valid)

	result, err = registry.Validate("non_empty_text", "Dana", models.LocaleFrench)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}
