package flow

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/danchettos12/EntrevistIA/internal/auth"
	"github.com/danchettos12/EntrevistIA/internal/feedback"
	"github.com/danchettos12/EntrevistIA/internal/interview"
	"github.com/danchettos12/EntrevistIA/internal/metrics"
	"github.com/danchettos12/EntrevistIA/internal/models"
	"github.com/danchettos12/EntrevistIA/internal/store"
	"go.uber.org/zap"
)

//go:embed docs/documentation.md
var documentation string

type View string

const (
	ViewLanding       View = "landing"
	ViewAuth          View = "auth"
	ViewDashboard     View = "dashboard"
	ViewSetup         View = "setup"
	ViewInterview     View = "interview"
	ViewFeedback      View = "feedback"
	ViewDocumentation View = "documentation"
)

// requiresUser reports whether the view is only reachable while signed in.
func (v View) requiresUser() bool {
	return v != ViewLanding && v != ViewAuth
}

var (
	ErrInvalidTransition = errors.New("transition not allowed from the current view")
	ErrNotAuthenticated  = errors.New("a signed-in user is required")
	ErrSessionNotFound   = errors.New("session not found")
	ErrNoInterview       = errors.New("no interview in progress")
	ErrNothingToSave     = errors.New("no unsaved session to store")
	ErrSaveInProgress    = errors.New("session is already being saved")
	ErrDisposed          = errors.New("client has been disposed")
)

const saveTimeout = 30 * time.Second

// Deps are shared by every controller of a process.
type Deps struct {
	Auth   auth.Gateway
	Store  store.SessionStore
	AI     interview.AI
	Logger *zap.Logger
	// Tick is the countdown interval handed to runners
	Tick time.Duration
	Now  func() time.Time
}

// FeedbackState describes the record shown in the Feedback view.
type FeedbackState struct {
	SessionID string `json:"sessionId,omitempty"`
	Saved     bool   `json:"saved"`
	SaveError string `json:"saveError,omitempty"`
}

type Snapshot struct {
	ClientID     string                `json:"clientId"`
	View         View                  `json:"view"`
	AuthMode     string                `json:"authMode,omitempty"`
	User         *models.User          `json:"user,omitempty"`
	Notice       string                `json:"notice,omitempty"`
	Setup        *models.SessionConfig `json:"setup,omitempty"`
	SessionCount int                   `json:"sessionCount"`
	Interview    *interview.Snapshot   `json:"interview,omitempty"`
	Feedback     *FeedbackState        `json:"feedback,omitempty"`
}

type DashboardView struct {
	User     models.User            `json:"user"`
	Sessions []models.SessionRecord `json:"sessions"`
	Progress feedback.ProgressStats `json:"progress"`
}

// Controller is the per-client view state machine. Gateway and runner calls are made
// without holding mu, since both may call back into the controller.
type Controller struct {
	id     string
	deps   Deps
	logger *zap.Logger

	mu           sync.Mutex
	view         View
	authMode     string
	user         *models.User
	token        string
	pendingEmail string
	authInFlight bool
	notice       string
	setup        models.SessionConfig
	sessions     []models.SessionRecord
	runner       *interview.Runner
	viewing      *models.SessionRecord
	saved        bool
	saving       bool
	saveErr      string
	disposed     bool
	unsubscribe  func()

	watchMu   sync.Mutex
	nextWatch int
	watchers  map[int]func(Snapshot)

	// closed by Dispose
	done chan struct{}
}

func NewController(id string, deps Deps) *Controller {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	c := &Controller{
		id:       id,
		deps:     deps,
		logger:   deps.Logger.With(zap.String("client_id", id)),
		view:     ViewLanding,
		sessions: []models.SessionRecord{},
		watchers: make(map[int]func(Snapshot)),
		done:     make(chan struct{}),
	}
	c.unsubscribe = deps.Auth.OnIdentityChange(c.onIdentity)
	return c
}

func (c *Controller) ID() string { return c.id }

type resumer interface {
	Resume(ctx context.Context) (*auth.Session, error)
}

// Restore signs the client in from an existing token. Without a token, backends that remember
// the last local user resume it; otherwise the client stays on Landing.
func (c *Controller) Restore(ctx context.Context, token string) error {
	if token == "" {
		r, ok := c.deps.Auth.(resumer)
		if !ok {
			return nil
		}
		session, err := r.Resume(ctx)
		if errors.Is(err, auth.ErrUnauthenticated) {
			return nil
		}
		if err != nil {
			return err
		}
		return c.authSuccess(ctx, session.User, session.Token)
	}

	user, err := c.deps.Auth.Current(ctx, token)
	if err != nil {
		return err
	}
	return c.authSuccess(ctx, *user, token)
}

func (c *Controller) OpenAuth(mode string) error {
	c.mu.Lock()
	if c.user != nil || (c.view != ViewLanding && c.view != ViewAuth) {
		err := c.transitionErrLocked("openAuth")
		c.mu.Unlock()
		return err
	}
	c.view = ViewAuth
	c.authMode = mode
	c.notice = ""
	c.mu.Unlock()
	c.publish()
	return nil
}

// Register creates an account. A pending confirmation keeps the client on Auth until the
// matching sign-in event arrives.
func (c *Controller) Register(ctx context.Context, name, email, password string) (auth.RegisterResult, error) {
	c.mu.Lock()
	if c.view != ViewAuth {
		err := c.transitionErrLocked("register")
		c.mu.Unlock()
		return auth.RegisterResult{}, err
	}
	c.authInFlight = true
	c.mu.Unlock()

	res := c.deps.Auth.Register(ctx, name, email, password)

	c.mu.Lock()
	c.authInFlight = false
	switch res.Status {
	case auth.StatusSuccess:
		c.mu.Unlock()
		if res.Session == nil {
			return res, nil
		}
		return res, c.authSuccess(ctx, res.Session.User, res.Session.Token)
	case auth.StatusPendingConfirmation:
		c.pendingEmail = strings.ToLower(strings.TrimSpace(email))
		c.authMode = "login"
	}
	c.notice = res.Message
	c.mu.Unlock()
	c.publish()
	return res, nil
}

func (c *Controller) Login(ctx context.Context, email, password string) (*auth.Session, error) {
	c.mu.Lock()
	if c.view != ViewAuth {
		err := c.transitionErrLocked("login")
		c.mu.Unlock()
		return nil, err
	}
	c.authInFlight = true
	c.mu.Unlock()

	session, err := c.deps.Auth.Login(ctx, email, password)

	c.mu.Lock()
	c.authInFlight = false
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := c.authSuccess(ctx, session.User, session.Token); err != nil {
		return nil, err
	}
	return session, nil
}

// Logout always lands the client on Landing; a backend failure is only logged.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	if c.user == nil {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}
	token := c.token
	c.mu.Unlock()

	if err := c.deps.Auth.Logout(ctx, token); err != nil {
		c.logger.Warn("Logout failed at the auth backend", zap.Error(err))
	}
	c.toLanding("")
	return nil
}

func (c *Controller) UpdatePreferredRole(ctx context.Context, role string) (*models.User, error) {
	c.mu.Lock()
	if c.user == nil {
		c.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	userID := c.user.ID
	c.mu.Unlock()

	user, err := c.deps.Auth.UpdatePreferredRole(ctx, userID, role)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.user != nil && c.user.ID == user.ID {
		u := *user
		c.user = &u
	}
	c.mu.Unlock()
	c.publish()
	return user, nil
}

// OpenSetup pre-fills the form, using the preferred role when the user has one.
func (c *Controller) OpenSetup() error {
	c.mu.Lock()
	if c.view != ViewDashboard {
		err := c.transitionErrLocked("start")
		c.mu.Unlock()
		return err
	}
	c.setup = models.DefaultSessionConfig(c.user.PreferredRole)
	c.view = ViewSetup
	c.mu.Unlock()
	c.publish()
	return nil
}

func (c *Controller) OpenDocumentation() error {
	c.mu.Lock()
	if c.view != ViewDashboard {
		err := c.transitionErrLocked("openDocumentation")
		c.mu.Unlock()
		return err
	}
	c.view = ViewDocumentation
	c.mu.Unlock()
	c.publish()
	return nil
}

func (c *Controller) Documentation() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return "", ErrNotAuthenticated
	}
	return documentation, nil
}

// Back leaves Auth, Setup and Documentation.
func (c *Controller) Back(ctx context.Context) error {
	c.mu.Lock()
	switch c.view {
	case ViewAuth:
		c.view = ViewLanding
		c.authMode = ""
		c.notice = ""
		c.mu.Unlock()
		c.publish()
		return nil
	case ViewSetup, ViewDocumentation:
		c.mu.Unlock()
		return c.enterDashboard(ctx)
	default:
		err := c.transitionErrLocked("back")
		c.mu.Unlock()
		return err
	}
}

// Close returns to the dashboard from Setup, Interview or Feedback. A running interview is abandoned.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	switch c.view {
	case ViewDashboard, ViewSetup, ViewInterview, ViewFeedback:
		c.mu.Unlock()
		return c.enterDashboard(ctx)
	default:
		err := c.transitionErrLocked("close")
		c.mu.Unlock()
		return err
	}
}

// StartInterview begins a run with cfg and returns once the first question is shown.
func (c *Controller) StartInterview(ctx context.Context, cfg models.SessionConfig) (*interview.Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.view != ViewSetup {
		err := c.transitionErrLocked("start")
		c.mu.Unlock()
		return nil, err
	}
	runner := interview.New(interview.Options{
		Config:   cfg,
		UserID:   c.user.ID,
		AI:       c.deps.AI,
		OnFinish: c.finish,
		OnChange: func(interview.Snapshot) { c.publish() },
		Logger:   c.logger,
		Tick:     c.deps.Tick,
		Now:      c.deps.Now,
	})
	c.setup = cfg
	c.runner = runner
	c.viewing = nil
	c.view = ViewInterview
	c.mu.Unlock()

	if err := runner.Start(ctx); err != nil {
		return nil, err
	}
	return runner, nil
}

// Runner returns the active run.
func (c *Controller) Runner() (*interview.Runner, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.view != ViewInterview || c.runner == nil {
		return nil, ErrNoInterview
	}
	return c.runner, nil
}

// ViewSession opens a stored record from the dashboard list.
func (c *Controller) ViewSession(sessionID string) error {
	c.mu.Lock()
	if c.view != ViewDashboard {
		err := c.transitionErrLocked("viewSession")
		c.mu.Unlock()
		return err
	}
	var found *models.SessionRecord
	for i := range c.sessions {
		if c.sessions[i].ID == sessionID {
			rec := c.sessions[i]
			found = &rec
			break
		}
	}
	if found == nil {
		c.mu.Unlock()
		return ErrSessionNotFound
	}
	c.viewing = found
	c.saved = true
	c.saveErr = ""
	c.view = ViewFeedback
	c.mu.Unlock()
	c.publish()
	return nil
}

// Feedback returns a presenter over the record in the Feedback view.
func (c *Controller) Feedback() (*feedback.Presenter, FeedbackState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.view != ViewFeedback || c.viewing == nil {
		return nil, FeedbackState{}, c.transitionErrLocked("feedback")
	}
	return feedback.NewPresenter(*c.viewing), c.feedbackStateLocked(), nil
}

// RetrySave stores a finished record whose first save failed.
func (c *Controller) RetrySave(ctx context.Context) error {
	c.mu.Lock()
	if c.view != ViewFeedback {
		err := c.transitionErrLocked("save")
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()
	err := c.save(ctx)
	c.publish()
	return err
}

func (c *Controller) Dashboard() (DashboardView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return DashboardView{}, ErrNotAuthenticated
	}
	sessions := make([]models.SessionRecord, len(c.sessions))
	copy(sessions, c.sessions)
	return DashboardView{User: *c.user, Sessions: sessions, Progress: feedback.Progress(sessions)}, nil
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	if c.view.requiresUser() && c.user == nil {
		c.view = ViewLanding
	}
	s := Snapshot{
		ClientID:     c.id,
		View:         c.view,
		Notice:       c.notice,
		SessionCount: len(c.sessions),
	}
	if c.view == ViewAuth {
		s.AuthMode = c.authMode
	}
	if c.user != nil {
		u := *c.user
		s.User = &u
	}
	if c.view == ViewSetup {
		cfg := c.setup
		s.Setup = &cfg
	}
	if c.view == ViewFeedback && c.viewing != nil {
		fs := c.feedbackStateLocked()
		s.Feedback = &fs
	}
	runner := c.runner
	if c.view != ViewInterview {
		runner = nil
	}
	c.mu.Unlock()

	if runner != nil {
		rs := runner.Snapshot()
		s.Interview = &rs
	}
	return s
}

// Watch registers fn for every snapshot change until the returned cancel is called.
func (c *Controller) Watch(fn func(Snapshot)) func() {
	c.watchMu.Lock()
	id := c.nextWatch
	c.nextWatch++
	c.watchers[id] = fn
	c.watchMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.watchMu.Lock()
			delete(c.watchers, id)
			c.watchMu.Unlock()
		})
	}
}

// Dispose cancels the identity subscription and abandons any run. Safe to call twice.
func (c *Controller) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	close(c.done)
	runner := c.runner
	c.runner = nil
	unsubscribe := c.unsubscribe
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if runner != nil {
		runner.Abandon()
	}
	c.watchMu.Lock()
	c.watchers = make(map[int]func(Snapshot))
	c.watchMu.Unlock()
	c.logger.Debug("Client disposed")
}

// Done is closed once the controller is disposed.
func (c *Controller) Done() <-chan struct{} { return c.done }

func (c *Controller) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

func (c *Controller) onIdentity(ev auth.IdentityEvent) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	switch {
	case ev.SignedIn() && c.user != nil && c.user.ID == ev.UserID:
		u := *ev.User
		c.user = &u
		c.mu.Unlock()
		c.publish()
	case ev.SignedIn() && c.user == nil && !c.authInFlight &&
		c.pendingEmail != "" && strings.EqualFold(ev.Email, c.pendingEmail):
		user := *ev.User
		c.mu.Unlock()
		c.logger.Info("Pending registration confirmed", zap.String("user_id", user.ID))
		if err := c.authSuccess(context.Background(), user, ""); err != nil {
			c.logger.Warn("Failed to complete confirmed sign-in", zap.Error(err))
		}
	case !ev.SignedIn() && c.user != nil && c.user.ID == ev.UserID:
		c.mu.Unlock()
		c.toLanding("La sesión se cerró en otro dispositivo")
	default:
		c.mu.Unlock()
	}
}

func (c *Controller) authSuccess(ctx context.Context, user models.User, token string) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	c.user = &user
	c.token = token
	c.pendingEmail = ""
	c.authMode = ""
	c.notice = ""
	c.mu.Unlock()

	c.logger.Info("User signed in", zap.String("user_id", user.ID))
	return c.enterDashboard(ctx)
}

// enterDashboard abandons any run and replaces the session list from the store.
// A failed fetch keeps the previous list and sets a notice.
func (c *Controller) enterDashboard(ctx context.Context) error {
	c.mu.Lock()
	if c.user == nil {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}
	runner := c.runner
	c.runner = nil
	c.viewing = nil
	c.saveErr = ""
	c.view = ViewDashboard
	userID := c.user.ID
	c.mu.Unlock()

	if runner != nil {
		runner.Abandon()
	}

	records, err := c.deps.Store.ListSessionsForUser(ctx, userID)

	c.mu.Lock()
	if c.user != nil && c.user.ID == userID {
		if err != nil {
			c.logger.Warn("Failed to load session history", zap.String("user_id", userID), zap.Error(err))
			c.notice = "No se pudo cargar el historial de sesiones"
		} else {
			c.sessions = records
			c.notice = ""
		}
	}
	c.mu.Unlock()
	c.publish()
	return nil
}

func (c *Controller) toLanding(notice string) {
	c.mu.Lock()
	runner := c.runner
	c.runner = nil
	c.user = nil
	c.token = ""
	c.pendingEmail = ""
	c.authMode = ""
	c.sessions = []models.SessionRecord{}
	c.viewing = nil
	c.saved = false
	c.saveErr = ""
	c.view = ViewLanding
	c.notice = notice
	c.mu.Unlock()

	if runner != nil {
		runner.Abandon()
	}
	c.publish()
}

// finish receives a completed run. Results from a run that is no longer active are dropped.
func (c *Controller) finish(runID string, record models.SessionRecord) {
	c.mu.Lock()
	if c.view != ViewInterview || c.runner == nil || c.runner.ID() != runID {
		c.mu.Unlock()
		c.logger.Warn("Discarding result of an inactive interview", zap.String("run_id", runID))
		return
	}
	rec := record
	c.viewing = &rec
	c.saved = false
	c.saveErr = ""
	c.runner = nil
	c.view = ViewFeedback
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := c.save(ctx); err != nil {
		c.logger.Warn("Finished session shown unsaved", zap.Error(err))
	}
	c.publish()
}

func (c *Controller) save(ctx context.Context) error {
	c.mu.Lock()
	if c.viewing == nil || c.saved {
		c.mu.Unlock()
		return ErrNothingToSave
	}
	if c.saving {
		c.mu.Unlock()
		return ErrSaveInProgress
	}
	c.saving = true
	target := c.viewing
	pending := *target
	c.mu.Unlock()

	stored, err := c.deps.Store.CreateSession(ctx, pending)
	metrics.SessionPersisted(c.deps.Store.Backend(), err)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.saving = false
	if c.viewing != target {
		// the client moved on; the outcome only matters for the dashboard list
		return err
	}
	if err != nil {
		c.saveErr = "No se pudo guardar la sesión"
		return err
	}
	c.viewing = stored
	c.saved = true
	c.saveErr = ""
	return nil
}

func (c *Controller) feedbackStateLocked() FeedbackState {
	fs := FeedbackState{Saved: c.saved, SaveError: c.saveErr}
	if c.saved && c.viewing != nil {
		fs.SessionID = c.viewing.ID
	}
	return fs
}

func (c *Controller) transitionErrLocked(event string) error {
	if c.disposed {
		return ErrDisposed
	}
	if c.user == nil && event != "openAuth" && event != "register" && event != "login" && event != "back" {
		return ErrNotAuthenticated
	}
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, c.view)
}

func (c *Controller) publish() {
	c.watchMu.Lock()
	if len(c.watchers) == 0 {
		c.watchMu.Unlock()
		return
	}
	fns := make([]func(Snapshot), 0, len(c.watchers))
	for _, fn := range c.watchers {
		fns = append(fns, fn)
	}
	c.watchMu.Unlock()

	snap := c.Snapshot()
	for _, fn := range fns {
		fn(snap)
	}
}
