package identity

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var idPattern = regexp.MustCompile(`^PAT-[0-9A-F]{8}$`)

func TestGenerateShape(t *testing.T) {
	g := NewGenerator()
	for _, name := range []string{"P1", "", "Ravi Kumar", "名前"} {
		id := g.Generate(name)
		assert.Regexp(t, idPattern, id)
		assert.True(t, Valid(id))
	}
}

func TestDeriveIsDeterministic(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.UTC)
	assert.Equal(t, Derive("P1", at), Derive("P1", at))
	assert.NotEqual(t, Derive("P1", at), Derive("P1", at.Add(time.Nanosecond)))
	assert.NotEqual(t, Derive("P1", at), Derive("P2", at))
}

func TestWithClock(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)
	g := NewGenerator(WithClock(func() time.Time { return at }))
	assert.Equal(t, Derive("P1", at), g.Generate("P1"))
}

func TestValid(t *testing.T) {
	assert.False(t, Valid("PAT-1234"))
	assert.False(t, Valid("PAT-abcdef12"))
	assert.False(t, Valid("XYZ-ABCDEF12"))
	assert.True(t, Valid("PAT-ABCDEF12"))
}
