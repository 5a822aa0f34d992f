package research

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type State string

const (
	StateCreated     State = "CREATED"
	StatePlanning    State = "PLANNING"
	StateResearching State = "RESEARCHING"
	StateEditing     State = "EDITING"
	StateDone        State = "DONE"
	StateFailed      State = "FAILED"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

var forward = map[State]State{
	StateCreated:     StatePlanning,
	StatePlanning:    StateResearching,
	StateResearching: StateEditing,
	StateEditing:     StateDone,
}

// Transition is emitted on every state change.
type Transition struct {
	RunID uuid.UUID `json:"run_id"`
	From  State     `json:"from"`
	To    State     `json:"to"`
	At    time.Time `json:"at"`
	Err   error     `json:"-"`
}

// Workflow is one research run. It only moves forward through
// Created -> Planning -> Researching -> Editing -> Done, or to Failed.
type Workflow struct {
	ID        uuid.UUID
	Topic     string
	StartedAt time.Time

	mu        sync.RWMutex
	state     State
	plan      *ResearchPlan
	summaries []string
	report    *ResearchReport
	err       error
	observers []func(Transition)
}

// NewWorkflow rejects blank topics before anything else happens.
func NewWorkflow(topic string) (*Workflow, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("%w: topic is empty", ErrUserInput)
	}
	return &Workflow{
		ID:        uuid.New(),
		Topic:     topic,
		StartedAt: time.Now(),
		state:     StateCreated,
	}, nil
}

// Observe registers fn for every later transition.
func (w *Workflow) Observe(fn func(Transition)) {
	w.mu.Lock()
	w.observers = append(w.observers, fn)
	w.mu.Unlock()
}

func (w *Workflow) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *Workflow) advance(to State) error {
	w.mu.Lock()
	from := w.state
	if next, ok := forward[from]; !ok || next != to {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	w.state = to
	observers := slices.Clone(w.observers)
	w.mu.Unlock()

	w.notify(observers, Transition{RunID: w.ID, From: from, To: to, At: time.Now()})
	return nil
}

// fail moves to Failed from any non-terminal state and keeps the first error.
func (w *Workflow) fail(err error) error {
	w.mu.Lock()
	from := w.state
	if from.Terminal() {
		w.mu.Unlock()
		return err
	}
	w.state = StateFailed
	w.err = err
	observers := slices.Clone(w.observers)
	w.mu.Unlock()

	w.notify(observers, Transition{RunID: w.ID, From: from, To: StateFailed, At: time.Now(), Err: err})
	return err
}

func (w *Workflow) notify(observers []func(Transition), t Transition) {
	for _, fn := range observers {
		fn(t)
	}
}

func (w *Workflow) setPlan(p ResearchPlan) {
	w.mu.Lock()
	c := p.clone()
	w.plan = &c
	w.mu.Unlock()
}

func (w *Workflow) setSummaries(s []string) {
	w.mu.Lock()
	w.summaries = append([]string(nil), s...)
	w.mu.Unlock()
}

func (w *Workflow) setReport(r ResearchReport) {
	w.mu.Lock()
	w.report = &r
	w.mu.Unlock()
}

// Snapshot is a copy of the run safe to hand to other goroutines.
type Snapshot struct {
	RunID     uuid.UUID       `json:"run_id"`
	Topic     string          `json:"topic"`
	State     State           `json:"state"`
	Plan      *ResearchPlan   `json:"plan,omitempty"`
	Summaries []string        `json:"summaries,omitempty"`
	Report    *ResearchReport `json:"report,omitempty"`
	Err       error           `json:"-"`
	StartedAt time.Time       `json:"started_at"`
}

func (w *Workflow) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	s := Snapshot{
		RunID:     w.ID,
		Topic:     w.Topic,
		State:     w.state,
		Summaries: append([]string(nil), w.summaries...),
		Err:       w.err,
		StartedAt: w.StartedAt,
	}
	if w.plan != nil {
		p := w.plan.clone()
		s.Plan = &p
	}
	if w.report != nil {
		r := *w.report
		r.Outline = append([]string(nil), r.Outline...)
		r.Sources = append([]string(nil), r.Sources...)
		s.Report = &r
	}
	return s
}
