package wizard

import (
	"errors"
	"fmt"
)

// Step is one screen of the composition workflow.
type Step int

const (
	Upload Step = iota + 1
	Items
	Details
	Preview
)

var stepNames = map[Step]string{
	Upload:  "upload",
	Items:   "items",
	Details: "details",
	Preview: "preview",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Valid reports whether s is one of the four steps.
func (s Step) Valid() bool {
	return s >= Upload && s <= Preview
}

// Action is an input to the wizard.
type Action string

const (
	ExtractionSucceeded Action = "extraction_succeeded"
	StartBlank          Action = "start_blank"
	Next                Action = "next"
	Back                Action = "back"
	Jump                Action = "jump"
	Reset               Action = "reset"
)

// ErrActionNotAvailable is returned for an action the current step does not offer.
var ErrActionNotAvailable = errors.New("action not available at this step")

// ErrInvalidStep is returned when jumping outside steps 1..4.
var ErrInvalidStep = errors.New("invalid step")

// transitions maps each step to the actions it offers and their targets.
// Jump and Reset are offered everywhere and handled separately.
var transitions = map[Step]map[Action]Step{
	Upload: {
		ExtractionSucceeded: Items,
		StartBlank:          Items,
	},
	Items: {
		Next: Details,
		Back: Upload,
	},
	Details: {
		Next: Preview,
		Back: Items,
	},
	Preview: {
		Back: Details,
	},
}

// Wizard tracks the current step. It never reaches a step outside 1..4.
// A Wizard is not safe for concurrent use.
type Wizard struct {
	step Step
}

// New returns a wizard at Upload.
func New() *Wizard {
	return &Wizard{step: Upload}
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	return w.step
}

// Apply performs action. Back at Upload is a no-op, not an error.
func (w *Wizard) Apply(action Action) error {
	switch action {
	case Reset:
		w.step = Upload
		return nil
	case Jump:
		return fmt.Errorf("applying %s: use JumpTo", action)
	case Back:
		if w.step == Upload {
			return nil
		}
	}

	target, ok := transitions[w.step][action]
	if !ok {
		return fmt.Errorf("applying %s at %s: %w", action, w.step, ErrActionNotAvailable)
	}
	w.step = target
	return nil
}

// JumpTo moves directly to step regardless of completion.
func (w *Wizard) JumpTo(step Step) error {
	if !step.Valid() {
		return fmt.Errorf("jumping to %d: %w", int(step), ErrInvalidStep)
	}
	w.step = step
	return nil
}

// Available lists the actions offered at the current step.
func (w *Wizard) Available() []Action {
	var actions []Action
	for _, a := range []Action{ExtractionSucceeded, StartBlank, Next, Back} {
		if _, ok := transitions[w.step][a]; ok {
			actions = append(actions, a)
		}
	}
	return append(actions, Jump, Reset)
}

// CanExportPDF reports whether the rendered document is reachable.
func (w *Wizard) CanExportPDF() bool {
	return w.step == Preview
}

// CanExportFlat reports whether the flat and workbook exports are reachable.
func (w *Wizard) CanExportFlat() bool {
	return w.step > Upload
}
