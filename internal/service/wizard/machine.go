// Package wizard holds the onboarding step machine: welcome, personality,
// name, phone and complete.
package wizard

import (
	"errors"
	"fmt"
	"strings"
)

// Step is one screen of the onboarding flow.
type Step string

const (
	StepWelcome     Step = "welcome"
	StepPersonality Step = "personality"
	StepName        Step = "name"
	StepPhone       Step = "phone"
	StepComplete    Step = "complete"
)

// MaxPhones is the number of phone fields offered by the phone step.
const MaxPhones = 3

var (
	ErrInvalidTransition   = errors.New("wizard: invalid transition")
	ErrPersonalityRequired = errors.New("wizard: personality is required")
	ErrNameRequired        = errors.New("wizard: name is required")
	ErrTooManyPhones       = fmt.Errorf("wizard: at most %d phone numbers", MaxPhones)
)

// State is the externally visible wizard state.
type State struct {
	Step        Step   `json:"currentStep"`
	Personality string `json:"selectedPersonality"`
	Name        string `json:"selectedName"`
}

// Machine enforces the legal step transitions. It is not safe for concurrent use.
type Machine struct {
	state State
}

func NewMachine() *Machine {
	return &Machine{state: State{Step: StepWelcome}}
}

func (m *Machine) State() State { return m.state }

func (m *Machine) transitionError(action string) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, m.state.Step)
}

// Continue leaves the welcome screen.
func (m *Machine) Continue() error {
	if m.state.Step != StepWelcome {
		return m.transitionError("continue")
	}
	m.state.Step = StepPersonality
	return nil
}

// SelectPersonality records the chosen personality and moves to naming.
func (m *Machine) SelectPersonality(id string) error {
	if m.state.Step != StepPersonality {
		return m.transitionError("select personality")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrPersonalityRequired
	}
	m.state.Personality = id
	m.state.Step = StepName
	return nil
}

// SelectName records the assistant name and moves to the phone step.
func (m *Machine) SelectName(name string) error {
	if m.state.Step != StepName {
		return m.transitionError("select name")
	}
	if m.state.Personality == "" {
		return ErrPersonalityRequired
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}
	m.state.Name = name
	m.state.Step = StepPhone
	return nil
}

// SubmitPhones finishes the wizard. Blank entries are dropped; the trimmed
// remaining entries are returned so the caller can forward them. Submitting
// no valid entries is the skip path.
func (m *Machine) SubmitPhones(entries []string) ([]string, error) {
	if m.state.Step != StepPhone {
		return nil, m.transitionError("submit phones")
	}
	if len(entries) > MaxPhones {
		return nil, ErrTooManyPhones
	}
	if m.state.Name == "" {
		return nil, ErrNameRequired
	}
	valid := FilterPhones(entries)
	m.state.Step = StepComplete
	return valid, nil
}

// ChangePersonality returns from the trial screen to personality selection.
// The chosen name is kept.
func (m *Machine) ChangePersonality() error {
	if m.state.Step != StepComplete {
		return m.transitionError("change personality")
	}
	m.state.Step = StepPersonality
	return nil
}

// Restart returns to the welcome screen and clears both selections.
func (m *Machine) Restart() {
	m.state = State{Step: StepWelcome}
}

// FilterPhones trims entries and drops the blank ones.
func FilterPhones(entries []string) []string {
	valid := make([]string, 0, len(entries))
	for _, e := range entries {
		if e = strings.TrimSpace(e); e != "" {
			valid = append(valid, e)
		}
	}
	return valid
}
