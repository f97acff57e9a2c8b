package wizard

import "strings"

// NamePicker drives the name step: cycling through suggestions or typing a custom name.
type NamePicker struct {
	names    []string
	index    int
	selected string
	custom   bool
}

// NewNamePicker starts on the first suggestion with nothing selected.
func NewNamePicker(names []string) *NamePicker {
	return &NamePicker{names: append([]string(nil), names...)}
}

// Suggestion is the suggestion currently on display.
func (p *NamePicker) Suggestion() string {
	if len(p.names) == 0 {
		return ""
	}
	return p.names[p.index]
}

// Next advances to the following suggestion, wrapping around, and selects it.
func (p *NamePicker) Next() string {
	if len(p.names) == 0 {
		return ""
	}
	p.index = (p.index + 1) % len(p.names)
	p.selected = p.names[p.index]
	p.custom = false
	return p.selected
}

// UseSuggestion selects the displayed suggestion.
func (p *NamePicker) UseSuggestion() string {
	p.selected = p.Suggestion()
	p.custom = false
	return p.selected
}

// SetCustom selects free text typed by the visitor.
func (p *NamePicker) SetCustom(text string) {
	p.selected = text
	p.custom = true
}

func (p *NamePicker) Candidate() string { return p.selected }

func (p *NamePicker) IsCustom() bool { return p.custom }

func (p *NamePicker) CanConfirm() bool {
	return strings.TrimSpace(p.selected) != ""
}

// Names returns the suggestion list.
func (p *NamePicker) Names() []string {
	return append([]string(nil), p.names...)
}

// View is the serialisable picker state.
type View struct {
	Suggestions []string `json:"suggestions"`
	Suggestion  string   `json:"suggestion"`
	Selected    string   `json:"selected"`
	IsCustom    bool     `json:"isCustom"`
	CanConfirm  bool     `json:"canConfirm"`
}

func (p *NamePicker) View() View {
	return View{
		Suggestions: p.Names(),
		Suggestion:  p.Suggestion(),
		Selected:    p.selected,
		IsCustom:    p.custom,
		CanConfirm:  p.CanConfirm(),
	}
}
