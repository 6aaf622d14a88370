package validation

import (
	stderrors "errors"
	"testing"

	"motocredito-workers/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const transitionSchema = `{
  "type": "object",
  "required": ["solicitudId", "nuevoEstado"],
  "properties": {
    "solicitudId": {"type": "string", "minLength": 1},
    "nuevoEstado": {"type": "string", "enum": ["en_revision_inicial", "cancelado"]}
  }
}`

func TestSchema_Validate(t *testing.T) {
	s, err := Compile("transition", transitionSchema)
	require.NoError(t, err)

	ok := s.Validate(map[string]interface{}{"solicitudId": "sol-1", "nuevoEstado": "cancelado"})
	assert.True(t, ok.Valid)
	assert.Empty(t, ok.Errors)

	bad := s.Validate([]byte(`{"nuevoEstado": "volando"}`))
	assert.False(t, bad.Valid)
	assert.Len(t, bad.Errors, 2)
}

func TestSchema_CheckReturnsTaxonomyError(t *testing.T) {
	s := MustCompile("transition", transitionSchema)

	err := s.Check(map[string]interface{}{"solicitudId": ""})
	require.Error(t, err)

	var stdErr *errors.StandardError
	require.True(t, stderrors.As(err, &stdErr))
	assert.Equal(t, errors.ErrCodeInputValidationFailed, stdErr.Code)
	assert.Contains(t, stdErr.Details, "transition")
}

func TestCompile_RejectsInvalidSchema(t *testing.T) {
	_, err := Compile("broken", `{"type": 12}`)
	assert.Error(t, err)
	assert.Panics(t, func() { MustCompile("broken", `{`) })
}
