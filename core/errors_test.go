package core

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError(
		errors.New(`invalid mode "merge"`),
		FieldError{Field: "mode", Error: "must be one of: ensure, replace"},
	)
	verr, ok := errors.Cause(errors.Wrap(err, "ingesting")).(*ValidationError)
	require.True(t, ok)
	assert.Equal(t, `invalid mode "merge"`, verr.Error())
	assert.Equal(t, "validation", verr.Kind())
	assert.Equal(t, map[string]string{"mode": "must be one of: ensure, replace"}, verr.FieldMap())

	assert.Equal(t, "validation failed", ValidationError{}.Error())
	assert.Nil(t, ValidationError{}.FieldMap())
}

func TestIsShutdown(t *testing.T) {
	cause := errors.New("terminating connection due to administrator command")
	err := errors.Wrap(NewShutdownError(cause), "loading table")
	assert.True(t, IsShutdown(err))
	assert.Equal(t, "loading table: shutting down: terminating connection due to administrator command", err.Error())
	assert.False(t, IsShutdown(cause))
	assert.False(t, IsShutdown(nil))
}

func TestTranslateValidationErrors(t *testing.T) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	InitValidators(validate, translator)

	filter := struct {
		Domain string `json:"domain" validate:"omitempty,alphanum_"`
		Status string `json:"status" validate:"omitempty,oneof=pending success failure"`
	}{Domain: "class-rooms", Status: "done"}

	err := validate.Struct(filter)
	require.Error(t, err)
	verr := TranslateValidationErrors(err.(validator.ValidationErrors), translator)
	assert.Equal(t, "invalid input", verr.Error())
	assert.Equal(t, map[string]string{
		"domain": "only alphanumeric characters and underscores are allowed",
		"status": "must be one of: pending, success, failure",
	}, verr.FieldMap())
}
