// Package wizard drives the multi-step lead form: step-gated navigation,
// per-field error state, and a single submission of the aggregated record.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"golang.org/x/text/language"

	"github.com/helenaexplora/explora-platform/internal/i18n"
	"github.com/helenaexplora/explora-platform/internal/leads"
)

// Direction records how the last navigation moved, for transition effects.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// Submission phases.
const (
	PhaseEditing    = "editing"
	PhaseSubmitting = "submitting"
	PhaseSubmitted  = "submitted"
)

const (
	eventSubmit  = "submit"
	eventSucceed = "succeed"
	eventFail    = "fail"
)

// Submitter delivers a completed record to the lead relay.
type Submitter interface {
	SubmitLead(ctx context.Context, rec *leads.Record, captchaToken string) error
}

// CaptchaSource supplies the verification token for submission and can force
// re-verification.
type CaptchaSource interface {
	SubmissionToken() string
	Reset()
}

// Severity of a user-visible notification.
type Severity string

const (
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
)

// Notification is a toast-style message for the user. RetryAfter is set when
// the relay asked the user to wait before trying again.
type Notification struct {
	Severity   Severity
	Message    string
	RetryAfter time.Duration
}

// Notifier displays notifications.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Option configures a Controller.
type Option func(*Controller)

// WithCaptcha sets the verification token source checked on submit.
func WithCaptcha(c CaptchaSource) Option {
	return func(w *Controller) { w.captcha = c }
}

// WithNotifier sets where submission outcomes are reported.
func WithNotifier(n Notifier) Option {
	return func(w *Controller) { w.notifier = n }
}

// WithScrollHook sets the side effect run after a successful Advance.
func WithScrollHook(fn func()) Option {
	return func(w *Controller) { w.scrollTop = fn }
}

// WithLocale sets the localizer and locale used for user-facing messages.
func WithLocale(loc *i18n.Localizer, tag language.Tag) Option {
	return func(w *Controller) {
		w.loc = loc
		w.tag = tag
	}
}

// Controller holds the wizard state. It is safe for concurrent use; the UI
// layer is expected to call it from a single event loop anyway.
type Controller struct {
	mu sync.Mutex

	schema    *leads.Schema
	submitter Submitter
	captcha   CaptchaSource
	notifier  Notifier
	scrollTop func()
	loc       *i18n.Localizer
	tag       language.Tag

	record    *leads.Record
	current   int
	direction Direction
	valid     map[int]bool
	errors    map[string]leads.FieldError
	phase     *fsm.FSM
}

// New creates a controller on step 1 with an empty record.
func New(schema *leads.Schema, submitter Submitter, opts ...Option) *Controller {
	w := &Controller{
		schema:    schema,
		submitter: submitter,
		loc:       i18n.NewLocalizer(""),
		tag:       i18n.BaseLocale,
		record:    &leads.Record{},
		current:   1,
		valid:     make(map[int]bool),
		errors:    make(map[string]leads.FieldError),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.phase = fsm.NewFSM(
		PhaseEditing,
		fsm.Events{
			{Name: eventSubmit, Src: []string{PhaseEditing}, Dst: PhaseSubmitting},
			{Name: eventSucceed, Src: []string{PhaseSubmitting}, Dst: PhaseSubmitted},
			{Name: eventFail, Src: []string{PhaseSubmitting}, Dst: PhaseEditing},
		},
		fsm.Callbacks{},
	)
	return w
}

// Set assigns a single-valued field. Editing a field clears its error and
// invalidates the cached result of the current step.
func (w *Controller) Set(field, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.record.Set(field, value); err != nil {
		return err
	}
	w.touched(field)
	return nil
}

// Toggle flips one tag of a list field.
func (w *Controller) Toggle(field, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.record.Toggle(field, value); err != nil {
		return err
	}
	w.touched(field)
	return nil
}

func (w *Controller) touched(field string) {
	w.schema.Normalize(w.record)
	delete(w.errors, field)
	delete(w.valid, w.current)
}

// Record returns a copy of the record being edited.
func (w *Controller) Record() *leads.Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.record.Clone()
}

// Current returns the 1-based current step.
func (w *Controller) Current() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// StepCount returns the number of steps in the active variant.
func (w *Controller) StepCount() int {
	return w.schema.StepCount()
}

// Direction returns the direction of the last navigation.
func (w *Controller) Direction() Direction {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.direction
}

// Phase returns the submission phase.
func (w *Controller) Phase() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phase.Current()
}

// Progress is the fraction of steps reached, current/stepCount.
func (w *Controller) Progress() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return float64(w.current) / float64(w.schema.StepCount())
}

// StepValid reports the cached validation result of a step.
func (w *Controller) StepValid(step int) (valid, known bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	valid, known = w.valid[step]
	return valid, known
}

// FieldErrors returns the localized error of every field currently marked.
func (w *Controller) FieldErrors() map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]string, len(w.errors))
	for name, fe := range w.errors {
		out[name] = fe.Message(w.loc, w.tag)
	}
	return out
}

// ValidateStep validates one step and marks its field errors.
func (w *Controller) ValidateStep(step int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.validateStep(step)
}

func (w *Controller) validateStep(step int) bool {
	st, ok := w.schema.Step(step)
	if !ok {
		return false
	}
	for _, f := range st.Fields {
		delete(w.errors, f.Name)
	}
	errs := w.schema.ValidateStep(w.record, step)
	for _, fe := range errs {
		w.errors[fe.Field] = fe
	}
	w.valid[step] = len(errs) == 0
	return len(errs) == 0
}

// validateAll re-checks every step so that edits made after jumping back are
// caught before submission.
func (w *Controller) validateAll() bool {
	ok := true
	for n := 1; n <= w.schema.StepCount(); n++ {
		if !w.validateStep(n) {
			ok = false
		}
	}
	return ok
}

// Advance moves forward when the current step validates. On failure only
// the field errors change.
func (w *Controller) Advance() bool {
	w.mu.Lock()
	if w.phase.Current() != PhaseEditing || w.current >= w.schema.StepCount() {
		w.mu.Unlock()
		return false
	}
	if !w.validateStep(w.current) {
		w.mu.Unlock()
		return false
	}
	w.current++
	w.direction = Forward
	scroll := w.scrollTop
	w.mu.Unlock()

	if scroll != nil {
		scroll()
	}
	return true
}

// Retreat moves back one step without validating. Step 1 is the floor.
func (w *Controller) Retreat() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.phase.Current() != PhaseEditing {
		return
	}
	w.direction = Backward
	if w.current > 1 {
		w.current--
	}
}

// JumpTo revisits an already completed step. Targets at or past the current
// step are ignored.
func (w *Controller) JumpTo(step int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.phase.Current() != PhaseEditing || step < 1 || step >= w.current {
		return false
	}
	w.current = step
	w.direction = Backward
	return true
}

// Submit sends the record once. It must run on the final step with a
// verification token. On failure the user is notified, the CAPTCHA is reset
// and the wizard stays on the final step for a retry.
func (w *Controller) Submit(ctx context.Context) error {
	w.mu.Lock()
	switch w.phase.Current() {
	case PhaseSubmitting:
		w.mu.Unlock()
		return ErrSubmitting
	case PhaseSubmitted:
		w.mu.Unlock()
		return ErrAlreadySubmitted
	}
	if w.current != w.schema.StepCount() {
		w.mu.Unlock()
		return ErrNotFinalStep
	}
	if !w.validateAll() {
		w.mu.Unlock()
		return ErrStepInvalid
	}
	token := ""
	if w.captcha != nil {
		token = w.captcha.SubmissionToken()
	}
	if token == "" {
		msg := w.loc.Text(w.tag, i18n.KeyCaptchaPending)
		w.mu.Unlock()
		w.notify(SeverityError, msg)
		return ErrCaptchaPending
	}
	// fsm drops transitions on a cancelled context
	phaseCtx := context.WithoutCancel(ctx)
	if err := w.phase.Event(phaseCtx, eventSubmit); err != nil {
		w.mu.Unlock()
		return fmt.Errorf("wizard: begin submit: %w", err)
	}
	rec := w.record.Clone()
	w.mu.Unlock()

	err := w.submitter.SubmitLead(ctx, rec, token)

	w.mu.Lock()
	if err != nil {
		if perr := w.phase.Event(phaseCtx, eventFail); perr != nil {
			err = errors.Join(err, fmt.Errorf("reopen form: %w", perr))
		}
		note := w.failureNotice(err)
		w.mu.Unlock()
		if w.captcha != nil {
			w.captcha.Reset()
		}
		w.notifyWith(note)
		return fmt.Errorf("wizard: submit lead: %w", err)
	}
	if perr := w.phase.Event(phaseCtx, eventSucceed); perr != nil {
		w.mu.Unlock()
		return fmt.Errorf("wizard: finish submit: %w", perr)
	}
	w.record = &leads.Record{}
	msg := w.loc.Text(w.tag, i18n.KeySubmitSuccess)
	w.mu.Unlock()
	w.notify(SeveritySuccess, msg)
	return nil
}

// failureNotice shows the relay's rate-limit message as is, with its wait
// hint. Every other failure gets the generic localized text.
func (w *Controller) failureNotice(err error) Notification {
	var relayErr *RelayError
	if errors.As(err, &relayErr) && relayErr.Status == http.StatusTooManyRequests {
		msg := relayErr.Message
		if msg == "" {
			msg = w.loc.Text(w.tag, i18n.KeyRateLimited)
		}
		return Notification{Severity: SeverityError, Message: msg, RetryAfter: relayErr.RetryAfter}
	}
	return Notification{Severity: SeverityError, Message: w.loc.Text(w.tag, i18n.KeySubmitFailed)}
}

func (w *Controller) notify(sev Severity, msg string) {
	w.notifyWith(Notification{Severity: sev, Message: msg})
}

func (w *Controller) notifyWith(n Notification) {
	if w.notifier != nil {
		w.notifier.Notify(n)
	}
}
