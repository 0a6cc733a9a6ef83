package wizard

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/jobify/jobify/core"
)

var (
	ErrSubmitInFlight  = errors.New("the application is being submitted")
	ErrNotLastStep     = errors.New("the application can only be submitted from the last step")
	ErrSectionMismatch = errors.New("values do not belong to the current step")
	ErrSubmitFailed    = errors.New("the application could not be submitted, please try again")
)

// SubmissionError wraps a Submitter failure. The Wizard keeps its Draft and Cursor so the user may retry.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	if e.Err == nil {
		return ErrSubmitFailed.Error()
	}
	return ErrSubmitFailed.Error() + ": " + e.Err.Error()
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Submission is handed over to the Submitter once the whole Draft is valid.
type Submission struct {
	Draft       Draft
	Attachments []Attachment
}

// Submitter delivers a Submission to wherever applications are stored.
type Submitter interface {
	Submit(ctx context.Context, sub Submission) error
}

type SubmitterFunc func(ctx context.Context, sub Submission) error

func (f SubmitterFunc) Submit(ctx context.Context, sub Submission) error { return f(ctx, sub) }

// Snapshot is the persistable part of a Wizard. Attachment payloads are not included.
type Snapshot struct {
	Cursor int   `json:"cursor"`
	Draft  Draft `json:"draft"`
}

// State describes a Wizard for rendering.
type State struct {
	Cursor      int          `json:"cursor"`
	Step        Step         `json:"step"`
	Steps       []Step       `json:"steps"`
	IsLastStep  bool         `json:"isLastStep"`
	Ready       bool         `json:"ready"`
	Submitting  bool         `json:"submitting"`
	Draft       Draft        `json:"draft"`
	Attachments []Attachment `json:"attachments"`
}

type Option func(w *Wizard)

// WithDefaults sets the initial Draft, also restored after each successful submission.
func WithDefaults(d Draft) Option {
	return func(w *Wizard) { w.defaults = d.Merge(nil) }
}

// WithSubmitTimeout bounds the Submitter call.
func WithSubmitTimeout(timeout time.Duration) Option {
	return func(w *Wizard) { w.timeout = timeout }
}

// WithSnapshot restores a previously saved Snapshot.
func WithSnapshot(s Snapshot) Option {
	return func(w *Wizard) { w.snapshot = &s }
}

// Wizard is the multi-step application form state machine.
// It is safe for concurrent use; a Submit in flight blocks every other transition.
type Wizard struct {
	mu        sync.Mutex
	steps     []Step
	sections  []Section
	validator *Validator
	submitter Submitter
	defaults  Draft
	timeout   time.Duration
	snapshot  *Snapshot

	cursor   int
	draft    Draft
	payloads map[AttachmentField]Attachment
	inFlight bool
}

func New(steps []Step, v *Validator, sub Submitter, opts ...Option) (*Wizard, error) {
	if err := checkSteps(steps); err != nil {
		return nil, err
	}
	if v == nil || sub == nil {
		return nil, errors.New("wizard needs a validator and a submitter")
	}

	w := &Wizard{
		steps:     append([]Step(nil), steps...),
		sections:  Sections(steps),
		validator: v,
		submitter: sub,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.reset()

	if w.snapshot != nil {
		w.cursor = w.clamp(w.snapshot.Cursor)
		w.draft = w.snapshot.Draft
		w.snapshot = nil
		w.draft = w.merge(nil) // payloads did not survive, neither do their descriptors
	}
	return w, nil
}

func (w *Wizard) reset() {
	w.cursor = 0
	w.payloads = make(map[AttachmentField]Attachment)
	w.draft = w.defaults
	w.draft = w.merge(nil)
}

// merge returns the Draft with values applied. Attachment descriptors always follow the held payloads.
func (w *Wizard) merge(values Values) Draft {
	d := w.draft.Merge(values)
	for _, f := range AttachmentFields {
		if a, ok := w.payloads[f]; ok {
			setDescriptor(&d, f, a.Filename)
		} else {
			setDescriptor(&d, f, "")
		}
	}
	return d
}

func (w *Wizard) clamp(n int) int {
	if n < 0 {
		return 0
	}
	if last := len(w.steps) - 1; n > last {
		return last
	}
	return n
}

func (w *Wizard) isLastStep() bool { return w.cursor == len(w.steps)-1 }

// checkTransition must be called with w.mu held.
func (w *Wizard) checkTransition(values Values) error {
	if w.inFlight {
		return ErrSubmitInFlight
	}
	if values != nil && values.Section() != w.steps[w.cursor].Section {
		return errors.Wrapf(ErrSectionMismatch, "got %s, want %s", values.Section(), w.steps[w.cursor].Section)
	}
	return nil
}

// Next validates the current step only. When valid, values are merged and the cursor advances.
// nil values validate what is already committed for the step.
func (w *Wizard) Next(values Values) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkTransition(values); err != nil {
		return err
	}

	candidate := w.merge(values)
	committed, err := candidate.Values(w.steps[w.cursor].Section)
	if err != nil {
		return err
	}
	if err = w.validator.Section(committed); err != nil {
		return err
	}

	w.draft = candidate
	w.cursor = w.clamp(w.cursor + 1)
	return nil
}

// Previous merges values without validating them and moves back one step.
func (w *Wizard) Previous(values Values) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkTransition(values); err != nil {
		return err
	}
	w.draft = w.merge(values)
	w.cursor = w.clamp(w.cursor - 1)
	return nil
}

// JumpTo merges values without validating them and moves to step n (clamped).
func (w *Wizard) JumpTo(n int, values Values) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkTransition(values); err != nil {
		return err
	}
	w.draft = w.merge(values)
	w.cursor = w.clamp(n)
	return nil
}

// Submit validates the whole Draft, merged with the last step values, and hands it to the Submitter.
// On success the Wizard starts over. On any failure Draft and Cursor are kept.
func (w *Wizard) Submit(ctx context.Context, values Values) error {
	w.mu.Lock()
	if err := w.checkTransition(values); err != nil {
		w.mu.Unlock()
		return err
	}
	if !w.isLastStep() {
		w.mu.Unlock()
		return ErrNotLastStep
	}

	candidate := w.merge(values)
	if err := w.validator.Draft(candidate, w.sections...); err != nil {
		w.mu.Unlock()
		return err
	}
	w.draft = candidate
	w.inFlight = true
	sub := Submission{Draft: candidate, Attachments: w.attachments()}
	w.mu.Unlock()

	var cancel context.CancelFunc
	if w.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	err := w.submitter.Submit(ctx, sub)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.inFlight = false

	if err != nil {
		if _, ok := core.AsValidationError(err); ok {
			return err
		}
		return &SubmissionError{Err: err}
	}
	w.reset()
	return nil
}

// Reset discards the Draft and attachments and goes back to the first step.
func (w *Wizard) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.inFlight {
		return ErrSubmitInFlight
	}
	w.reset()
	return nil
}

// Attach stores a file payload and sets its descriptor in the Draft.
func (w *Wizard) Attach(a Attachment) error {
	if err := a.check(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.inFlight {
		return ErrSubmitInFlight
	}
	w.payloads[a.Field] = a
	setDescriptor(&w.draft, a.Field, a.Filename)
	return nil
}

// RemoveAttachment drops a file payload and clears its descriptor in the Draft.
func (w *Wizard) RemoveAttachment(f AttachmentField) error {
	if !f.IsValid() {
		return core.NewValidationError(errInvalidAttachment, core.FieldError{Field: string(f), Error: msgUnknownField})
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.inFlight {
		return ErrSubmitInFlight
	}
	delete(w.payloads, f)
	setDescriptor(&w.draft, f, "")
	return nil
}

// attachments must be called with w.mu held.
func (w *Wizard) attachments() []Attachment {
	atts := make([]Attachment, 0, len(w.payloads))
	for _, f := range AttachmentFields {
		if a, ok := w.payloads[f]; ok {
			atts = append(atts, a)
		}
	}
	return atts
}

// ready must be called with w.mu held.
func (w *Wizard) ready() bool {
	if !w.isLastStep() {
		return false
	}
	for _, s := range w.sections[:w.cursor] {
		values, err := w.draft.Values(s)
		if err != nil || w.validator.Section(values) != nil {
			return false
		}
	}
	return true
}

// Ready reports whether submitting should be offered: the cursor is on the last step
// and every earlier step is valid. Only committed values are considered.
func (w *Wizard) Ready() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ready()
}

func (w *Wizard) Cursor() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cursor
}

func (w *Wizard) Draft() Draft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

func (w *Wizard) Submitting() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inFlight
}

func (w *Wizard) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Snapshot{Cursor: w.cursor, Draft: w.draft}
}

func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return State{
		Cursor:      w.cursor,
		Step:        w.steps[w.cursor],
		Steps:       append([]Step(nil), w.steps...),
		IsLastStep:  w.isLastStep(),
		Ready:       w.ready(),
		Submitting:  w.inFlight,
		Draft:       w.draft,
		Attachments: w.attachments(),
	}
}
