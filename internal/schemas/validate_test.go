package schemas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateConfig_Valid(t *testing.T) {
	doc := `{
		"schedule": {"interval_hours": 6, "enabled": true},
		"pipeline": {"max_concurrency": 4, "adapter_timeout": "90s"},
		"preferences": {"keywords": ["go"], "remote": "prefer", "salary_floor": 120000},
		"sources": [{"name": "acme", "type": "greenhouse", "params": {"board": "acme"}}]
	}`
	assert.NoError(t, ValidateConfig([]byte(doc)))
}

func TestValidateConfig_UnknownField(t *testing.T) {
	err := ValidateConfig([]byte(`{"schedule": {"every": 6}}`))
	require.Error(t, err)

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.NotEmpty(t, validationErr.Errors)
	assert.Contains(t, err.Error(), "schedule")
}

func TestValidateConfig_WrongType(t *testing.T) {
	err := ValidateConfig([]byte(`{"preferences": {"salary_floor": "lots"}}`))
	require.Error(t, err)

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "preferences.salary_floor", validationErr.Errors[0].Field)
}

func TestValidateConfig_BadDuration(t *testing.T) {
	err := ValidateConfig([]byte(`{"pipeline": {"adapter_timeout": "ten seconds"}}`))
	assert.Error(t, err)
}

func TestValidateConfig_SourceRequiresNameAndType(t *testing.T) {
	err := ValidateConfig([]byte(`{"sources": [{"params": {"board": "acme"}}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestValidateJSONString_InvalidSchema(t *testing.T) {
	err := ValidateJSONString(`{"type": 12}`, `{}`)
	require.Error(t, err)

	var loadErr *SchemaLoadError
	assert.True(t, errors.As(err, &loadErr))
}

func TestValidationError_Format(t *testing.T) {
	err := &ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}}
	assert.Equal(t, "validation failed:\n  1. a: bad\n  2. b: worse\n", err.Error())
}
