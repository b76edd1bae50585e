package severity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverity_Codes(t *testing.T) {
	tests := []struct {
		level Level
		code  uint8
		text  string
	}{
		{TRACE, 0, "Trace"},
		{DEBUG, 1, "Debug"},
		{INFO, 2, "Info"},
		{NOTE, 3, "Note"},
		{WARNING, 4, "Warning"},
		{ERROR, 5, "Error"},
		{FATAL, 6, "Fatal"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.code, uint8(tt.level))
			got, err := Text(tt.level)
			require.NoError(t, err)
			assert.Equal(t, tt.text, got)
			back, err := Parse(got)
			require.NoError(t, err)
			assert.Equal(t, tt.level, back)
			assert.Equal(t, tt.text, tt.level.String())
		})
	}
	assert.Len(t, All(), 7)
}

func TestSeverity_Invalid(t *testing.T) {
	_, err := Text(Level(7))
	assert.ErrorIs(t, err, ErrInvalidCode)
	assert.Equal(t, "", TextOrEmpty(Level(42)))
	assert.Equal(t, "Level(42)", Level(42).String())

	_, err = Parse("warning")
	assert.ErrorIs(t, err, ErrInvalidText)
	assert.Equal(t, INVALID, ParseOrInvalid("Warn"))
	assert.Equal(t, NOTE, ParseOrInvalid("Note"))
	assert.Equal(t, INFO, Norm(Level(99), INFO))
	assert.Equal(t, ERROR, Norm(ERROR, INFO))
}

func TestSeverity_Urgent(t *testing.T) {
	for _, l := range All() {
		assert.Equal(t, l >= NOTE, l.Urgent(), l.String())
	}
	assert.False(t, INVALID.Urgent())
}

func TestSeverity_TextMarshaling(t *testing.T) {
	var l Level
	require.NoError(t, l.UnmarshalText([]byte("Error")))
	assert.Equal(t, ERROR, l)
	assert.Error(t, l.UnmarshalText([]byte("nope")))
	assert.Equal(t, ERROR, l)
	_, err := Level(9).MarshalText()
	assert.Error(t, err)
}
