package studio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/threadswap/threadswap/pipeline"
)

// State names every position in the studio flow.
type State string

const (
	StateIdle             State = "idle"
	StateImageSelected    State = "image_selected"
	StateCategorySelected State = "category_selected"
	StateModelSelected    State = "model_selected"
	StateAutoModel        State = "auto_model"
	StateGenerating       State = "generating"
	StateResolved         State = "resolved"
	StatePersisting       State = "persisting"
	StateDone             State = "done"
)

// Category is the garment slot the user declares before generating.
type Category string

const (
	CategoryTop      Category = "Top"
	CategoryBottom   Category = "Bottom"
	CategoryFullBody Category = "Full-body"
)

// ParseCategory validates a category label from the API.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryTop, CategoryBottom, CategoryFullBody:
		return Category(s), nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// pipelineLabel expands the studio shorthand into a label the garment
// classifier resolves to the intended slot; "Bottom" on its own matches
// no bottoms keyword.
func (c Category) pipelineLabel() string {
	switch c {
	case CategoryTop:
		return "top"
	case CategoryBottom:
		return "bottom trousers"
	case CategoryFullBody:
		return "full-body dress"
	}
	return string(c)
}

// noun is the word used in template listing copy.
func (c Category) noun() string {
	switch c {
	case CategoryTop:
		return "top"
	case CategoryBottom:
		return "bottoms"
	case CategoryFullBody:
		return "one-piece"
	}
	return "piece"
}

// Typed rejections the HTTP layer maps onto status codes.
var (
	ErrBusy               = errors.New("session is busy")
	ErrNoImage            = errors.New("no image selected")
	ErrNoCategory         = errors.New("no category selected")
	ErrGenerationInFlight = errors.New("a generation is already running")
	ErrNotResolved        = errors.New("no generation result to keep")
	ErrAlreadyKept        = errors.New("result already persisted")
	ErrNoDraft            = errors.New("no draft to update")
	ErrStaleResult        = errors.New("generation superseded by a newer session state")
)

// Outcome labels for a resolved result.
const (
	OutcomeSuccess  = "success"
	OutcomeDegraded = "degraded"
	OutcomeFailed   = "failed"
)

// DraftRecord is what the product store reports back after a create or
// patch. AIPreviewURL is server authoritative: when set it replaces
// whatever preview address the session was holding.
type DraftRecord struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Status       string `json:"status"`
	AIPreviewURL string `json:"aiPreviewUrl,omitempty"`
}

// Snapshot is a read-only view of a session for the API layer.
type Snapshot struct {
	State        State              `json:"state"`
	ImageKey     string             `json:"imageKey,omitempty"`
	SourceRef    string             `json:"sourceRef,omitempty"`
	Category     Category           `json:"category,omitempty"`
	Model        *pipeline.ModelRef `json:"model,omitempty"`
	Result       *pipeline.Result   `json:"result,omitempty"`
	Outcome      string             `json:"outcome,omitempty"`
	Draft        *DraftRecord       `json:"draft,omitempty"`
	GenerationID string             `json:"generationId,omitempty"`
	LastError    string             `json:"lastError,omitempty"`
}

// session is one user's studio flow. Every field is guarded by mu. The
// generation epoch is bumped by any transition that invalidates an
// in-flight pipeline run, and a run's result is only accepted if the
// epoch it started under is still current.
type session struct {
	mu sync.Mutex

	userID string
	state  State
	epoch  uint64

	source   pipeline.ImageSource
	imageKey string
	category Category
	model    *pipeline.ModelRef

	result       *pipeline.Result
	generationID string
	draft        *DraftRecord
	lastError    string
}

func newSession(userID string) *session {
	return &session{userID: userID, state: StateIdle}
}

// busy reports whether a transition must be refused right now. RunAgain is
// the one exception, it is allowed from anywhere.
func (s *session) busy() bool {
	return s.state == StateGenerating || s.state == StatePersisting
}

// hasPicks reports whether the prerequisites for generation are in place.
func (s *session) hasPicks() (bool, error) {
	if s.source.IsEmpty() {
		return false, ErrNoImage
	}
	if s.category == "" {
		return false, ErrNoCategory
	}
	return true, nil
}

// preGenerateState is the state the picks imply outside a run.
func (s *session) preGenerateState() State {
	switch {
	case s.source.IsEmpty():
		return StateIdle
	case s.category == "":
		return StateImageSelected
	case s.model != nil:
		return StateModelSelected
	default:
		if s.state == StateAutoModel {
			return StateAutoModel
		}
		return StateCategorySelected
	}
}

func (s *session) outcome() string {
	if s.result == nil {
		return ""
	}
	switch {
	case !s.result.Succeeded:
		return OutcomeFailed
	case s.result.Degraded:
		return OutcomeDegraded
	default:
		return OutcomeSuccess
	}
}

// snapshotLocked builds the API view. Pointers are copied so a snapshot
// stays stable after the session moves on. Caller holds mu.
func (s *session) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:        s.state,
		ImageKey:     s.imageKey,
		SourceRef:    s.source.Ref(),
		Category:     s.category,
		Outcome:      s.outcome(),
		GenerationID: s.generationID,
		LastError:    s.lastError,
	}
	if s.model != nil {
		m := *s.model
		snap.Model = &m
	}
	if s.result != nil {
		r := *s.result
		snap.Result = &r
	}
	if s.draft != nil {
		d := *s.draft
		snap.Draft = &d
	}
	return snap
}

// adoptPreviewLocked takes the store's canonical preview address when a
// draft write reports one. Caller holds mu.
func (s *session) adoptPreviewLocked(rec DraftRecord) {
	if rec.AIPreviewURL != "" && s.result != nil {
		s.result.FinalImageURL = rec.AIPreviewURL
	}
}

// resetLocked returns the session to Idle and invalidates any in-flight
// run. Persisted drafts survive in the database, only the linkage is
// dropped. Caller holds mu.
func (s *session) resetLocked() {
	s.epoch++
	s.state = StateIdle
	s.source = pipeline.ImageSource{}
	s.imageKey = ""
	s.category = ""
	s.model = nil
	s.result = nil
	s.generationID = ""
	s.draft = nil
	s.lastError = ""
}

// sessionStore hands out per-user sessions.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*session)}
}

func (st *sessionStore) get(userID string) *session {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[userID]; ok {
		return s
	}
	s := newSession(userID)
	st.sessions[userID] = s
	return s
}
