package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextCyclesRoundRobin(t *testing.T) {
	p := NewNamePicker([]string{"Bruno", "Diego", "Rafael", "Thiago", "Gabriel"})
	assert.Equal(t, "Bruno", p.Suggestion())
	assert.False(t, p.CanConfirm())

	var seen []string
	for i := 0; i < 5; i++ {
		seen = append(seen, p.Next())
	}
	assert.Equal(t, []string{"Diego", "Rafael", "Thiago", "Gabriel", "Bruno"}, seen)
	assert.Equal(t, "Bruno", p.Candidate())
	assert.True(t, p.CanConfirm())
}

func TestUseSuggestionSelectsDisplayed(t *testing.T) {
	p := NewNamePicker([]string{"Sofia", "Carlos"})
	assert.Equal(t, "Sofia", p.UseSuggestion())
	assert.False(t, p.IsCustom())
}

func TestCustomNameOverrides(t *testing.T) {
	p := NewNamePicker([]string{"Sofia", "Carlos"})
	p.Next()
	p.SetCustom("Luna")
	assert.True(t, p.IsCustom())
	assert.Equal(t, "Luna", p.Candidate())
	assert.True(t, p.CanConfirm())

	p.SetCustom("   ")
	assert.False(t, p.CanConfirm())

	p.Next()
	assert.False(t, p.IsCustom())
}

func TestEmptyPicker(t *testing.T) {
	p := NewNamePicker(nil)
	assert.Equal(t, "", p.Next())
	assert.Equal(t, "", p.Suggestion())
	assert.False(t, p.CanConfirm())
}
