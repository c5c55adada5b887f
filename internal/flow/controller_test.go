package flow

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/danchettos12/EntrevistIA/internal/auth"
	"github.com/danchettos12/EntrevistIA/internal/interview"
	"github.com/danchettos12/EntrevistIA/internal/kv"
	"github.com/danchettos12/EntrevistIA/internal/models"
	"github.com/danchettos12/EntrevistIA/internal/store"
	"github.com/danchettos12/EntrevistIA/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubAI struct{}

func (stubAI) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	return "transcrito", nil
}

func (stubAI) GenerateQuestion(ctx context.Context, cfg models.SessionConfig, asked []string) string {
	return "¿Por qué " + cfg.Role + "?"
}

func (stubAI) AnalyzeResponse(ctx context.Context, question, answer string, cfg models.SessionConfig) (models.QuestionFeedback, error) {
	return models.QuestionFeedback{OriginalResponse: answer, IdealResponse: "mejor"}, nil
}

func (stubAI) SummarizeSession(ctx context.Context, questions []models.QuestionFeedback, cfg models.SessionConfig) (models.SessionSummary, error) {
	return models.SessionSummary{OverallSummary: "Bien", OverallScore: 80}, nil
}

// flakyStore fails the first failCreates writes.
type flakyStore struct {
	store.SessionStore
	mu          sync.Mutex
	failCreates int
}

func (f *flakyStore) CreateSession(ctx context.Context, rec models.SessionRecord) (*models.SessionRecord, error) {
	f.mu.Lock()
	if f.failCreates > 0 {
		f.failCreates--
		f.mu.Unlock()
		return nil, store.ErrStoreUnavailable
	}
	f.mu.Unlock()
	return f.SessionStore.CreateSession(ctx, rec)
}

type fixture struct {
	gateway *auth.LocalGateway
	store   *flakyStore
	deps    Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kvStore, err := kv.New(testhelpers.SetupTestDB(t))
	require.NoError(t, err)
	gw := auth.NewLocalGateway(kvStore, auth.NewTokenIssuer("secret", time.Hour), auth.NewLocalNotifier(), zap.NewNop())
	st := &flakyStore{SessionStore: store.NewLocalStore(kvStore, zap.NewNop())}
	return &fixture{
		gateway: gw,
		store:   st,
		deps:    Deps{Auth: gw, Store: st, AI: stubAI{}, Logger: zap.NewNop(), Tick: time.Hour},
	}
}

func (f *fixture) signedIn(t *testing.T, email string) *Controller {
	t.Helper()
	c := NewController("client-"+email, f.deps)
	t.Cleanup(c.Dispose)
	require.NoError(t, c.OpenAuth("register"))
	res, err := c.Register(context.Background(), "Ana", email, "hunter22")
	require.NoError(t, err)
	require.Equal(t, auth.StatusSuccess, res.Status, res.Message)
	require.Equal(t, ViewDashboard, c.Snapshot().View)
	return c
}

func runOneQuestion(t *testing.T, c *Controller, role string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.OpenSetup())
	runner, err := c.StartInterview(ctx, models.SessionConfig{Role: role, QuestionCount: 1, TimeLimit: 60, Pressure: 20, Focus: 80})
	require.NoError(t, err)
	require.Equal(t, interview.StateAnswering, runner.State())
	require.NoError(t, runner.SetResponse("Mi respuesta"))
	require.NoError(t, runner.Submit(ctx))
}

func TestController_GuardsUnauthenticatedViews(t *testing.T) {
	f := newFixture(t)
	c := NewController("c1", f.deps)
	defer c.Dispose()

	assert.Equal(t, ViewLanding, c.Snapshot().View)
	assert.ErrorIs(t, c.OpenSetup(), ErrNotAuthenticated)
	assert.ErrorIs(t, c.OpenDocumentation(), ErrNotAuthenticated)
	assert.ErrorIs(t, c.Close(context.Background()), ErrNotAuthenticated)
	assert.ErrorIs(t, c.Back(context.Background()), ErrInvalidTransition)
	_, err := c.Dashboard()
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = c.StartInterview(context.Background(), models.DefaultSessionConfig(""))
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestController_AuthBackReturnsToLanding(t *testing.T) {
	f := newFixture(t)
	c := NewController("c1", f.deps)
	defer c.Dispose()

	require.NoError(t, c.OpenAuth("login"))
	snap := c.Snapshot()
	assert.Equal(t, ViewAuth, snap.View)
	assert.Equal(t, "login", snap.AuthMode)

	require.NoError(t, c.Back(context.Background()))
	assert.Equal(t, ViewLanding, c.Snapshot().View)
}

func TestController_LoginFailureStaysOnAuth(t *testing.T) {
	f := newFixture(t)
	f.signedIn(t, "ana@example.com")

	c := NewController("c2", f.deps)
	defer c.Dispose()
	require.NoError(t, c.OpenAuth("login"))
	_, err := c.Login(context.Background(), "ana@example.com", "wrong-pass")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.Equal(t, ViewAuth, c.Snapshot().View)

	session, err := c.Login(context.Background(), "ana@example.com", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, ViewDashboard, c.Snapshot().View)
	assert.ErrorIs(t, c.OpenAuth("login"), ErrInvalidTransition)
}

func TestController_SetupUsesPreferredRole(t *testing.T) {
	f := newFixture(t)
	c := f.signedIn(t, "ana@example.com")

	require.NoError(t, c.OpenSetup())
	assert.Equal(t, models.DefaultRole, c.Snapshot().Setup.Role)
	require.NoError(t, c.Back(context.Background()))

	_, err := c.UpdatePreferredRole(context.Background(), "Product Manager")
	require.NoError(t, err)
	require.NoError(t, c.OpenSetup())
	setup := c.Snapshot().Setup
	require.NotNil(t, setup)
	assert.Equal(t, "Product Manager", setup.Role)
	assert.Equal(t, models.DefaultQuestionCount, setup.QuestionCount)
}

func TestController_InterviewToFeedbackAndDashboard(t *testing.T) {
	f := newFixture(t)
	c := f.signedIn(t, "ana@example.com")
	ctx := context.Background()

	runOneQuestion(t, c, "Data Analyst")

	snap := c.Snapshot()
	require.Equal(t, ViewFeedback, snap.View)
	require.NotNil(t, snap.Feedback)
	assert.True(t, snap.Feedback.Saved)
	assert.NotEmpty(t, snap.Feedback.SessionID)

	presenter, state, err := c.Feedback()
	require.NoError(t, err)
	assert.True(t, state.Saved)
	assert.Equal(t, 80, presenter.Overview().OverallScore)
	assert.Equal(t, "Mi respuesta", presenter.Mirror()[0].OriginalResponse)

	require.NoError(t, c.Close(ctx))
	dash, err := c.Dashboard()
	require.NoError(t, err)
	require.Len(t, dash.Sessions, 1)
	assert.Equal(t, 1, dash.Progress.Sessions)
	assert.Equal(t, 80, dash.Progress.AverageScore)

	require.NoError(t, c.ViewSession(dash.Sessions[0].ID))
	assert.Equal(t, ViewFeedback, c.Snapshot().View)
	assert.ErrorIs(t, c.RetrySave(ctx), ErrNothingToSave)

	require.NoError(t, c.Close(ctx))
	assert.ErrorIs(t, c.ViewSession("missing"), ErrSessionNotFound)
}

func TestController_SaveFailureShowsUnsavedRecord(t *testing.T) {
	f := newFixture(t)
	f.store.failCreates = 1
	c := f.signedIn(t, "ana@example.com")

	runOneQuestion(t, c, "QA")

	snap := c.Snapshot()
	require.Equal(t, ViewFeedback, snap.View)
	assert.False(t, snap.Feedback.Saved)
	assert.NotEmpty(t, snap.Feedback.SaveError)

	require.NoError(t, c.RetrySave(context.Background()))
	snap = c.Snapshot()
	assert.True(t, snap.Feedback.Saved)
	assert.Empty(t, snap.Feedback.SaveError)

	require.NoError(t, c.Close(context.Background()))
	dash, err := c.Dashboard()
	require.NoError(t, err)
	assert.Len(t, dash.Sessions, 1)
}

func TestController_CloseAbandonsInterview(t *testing.T) {
	f := newFixture(t)
	c := f.signedIn(t, "ana@example.com")
	ctx := context.Background()

	require.NoError(t, c.OpenSetup())
	runner, err := c.StartInterview(ctx, models.DefaultSessionConfig(""))
	require.NoError(t, err)
	require.NotNil(t, c.Snapshot().Interview)

	require.NoError(t, c.Close(ctx))
	assert.Equal(t, interview.StateAbandoned, runner.State())
	assert.Equal(t, ViewDashboard, c.Snapshot().View)
	_, err = c.Runner()
	assert.ErrorIs(t, err, ErrNoInterview)

	dash, err := c.Dashboard()
	require.NoError(t, err)
	assert.Empty(t, dash.Sessions)
}

func TestController_InvalidConfigRejected(t *testing.T) {
	f := newFixture(t)
	c := f.signedIn(t, "ana@example.com")
	require.NoError(t, c.OpenSetup())

	_, err := c.StartInterview(context.Background(), models.SessionConfig{Role: "QA", QuestionCount: 0, TimeLimit: 60})
	var errResp *models.ErrorResponse
	require.True(t, errors.As(err, &errResp))
	assert.Equal(t, "invalid_config", errResp.Code)
	assert.Equal(t, ViewSetup, c.Snapshot().View)
}

func TestController_DocumentationRoundTrip(t *testing.T) {
	f := newFixture(t)
	c := f.signedIn(t, "ana@example.com")

	require.NoError(t, c.OpenDocumentation())
	assert.Equal(t, ViewDocumentation, c.Snapshot().View)
	doc, err := c.Documentation()
	require.NoError(t, err)
	assert.Contains(t, doc, "STAR")

	require.NoError(t, c.Back(context.Background()))
	assert.Equal(t, ViewDashboard, c.Snapshot().View)
}

func TestController_SignOutElsewhereForcesLanding(t *testing.T) {
	f := newFixture(t)
	first := f.signedIn(t, "ana@example.com")

	second := NewController("second", f.deps)
	defer second.Dispose()
	require.NoError(t, second.OpenAuth("login"))
	_, err := second.Login(context.Background(), "ana@example.com", "hunter22")
	require.NoError(t, err)
	require.NoError(t, second.OpenSetup())

	require.NoError(t, first.Logout(context.Background()))
	assert.Equal(t, ViewLanding, first.Snapshot().View)

	snap := second.Snapshot()
	assert.Equal(t, ViewLanding, snap.View)
	assert.Nil(t, snap.User)
	assert.NotEmpty(t, snap.Notice)
}

func TestController_RestoreResumesRememberedLocalUser(t *testing.T) {
	f := newFixture(t)
	f.signedIn(t, "ana@example.com")

	c := NewController("restored", f.deps)
	defer c.Dispose()
	require.NoError(t, c.Restore(context.Background(), ""))

	snap := c.Snapshot()
	assert.Equal(t, ViewDashboard, snap.View)
	require.NotNil(t, snap.User)
	assert.Equal(t, "ana@example.com", snap.User.Email)
}

func TestController_RestoreWithBadTokenFails(t *testing.T) {
	f := newFixture(t)
	c := NewController("bad", f.deps)
	defer c.Dispose()
	assert.ErrorIs(t, c.Restore(context.Background(), "not-a-token"), auth.ErrUnauthenticated)
	assert.Equal(t, ViewLanding, c.Snapshot().View)
}

func TestController_WatchReceivesTransitions(t *testing.T) {
	f := newFixture(t)
	c := NewController("watched", f.deps)
	defer c.Dispose()

	var mu sync.Mutex
	var views []View
	cancel := c.Watch(func(s Snapshot) {
		mu.Lock()
		views = append(views, s.View)
		mu.Unlock()
	})

	require.NoError(t, c.OpenAuth("login"))
	require.NoError(t, c.Back(context.Background()))
	cancel()
	require.NoError(t, c.OpenAuth("register"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []View{ViewAuth, ViewLanding}, views)
}

func TestController_DoneClosedOnDispose(t *testing.T) {
	f := newFixture(t)
	c := NewController("done", f.deps)

	select {
	case <-c.Done():
		t.Fatal("done closed before dispose")
	default:
	}

	c.Dispose()
	c.Dispose()
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("done not closed after dispose")
	}
}

type recordingMailer struct {
	mu    sync.Mutex
	links []string
}

func (m *recordingMailer) SendConfirmation(to, name, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = append(m.links, link)
	return nil
}

func TestController_PendingConfirmationCompletesOnSignInEvent(t *testing.T) {
	mailer := &recordingMailer{}
	db := testhelpers.SetupTestDB(t)
	gw, err := auth.NewRemoteGateway(auth.RemoteOptions{
		DB:       db,
		Tokens:   auth.NewTokenIssuer("backend-key", time.Hour),
		Notifier: auth.NewLocalNotifier(),
		Mailer:   mailer,
		AppURL:   "http://app.test",
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err)
	sessions, err := store.NewPostgresStore(db, zap.NewNop())
	require.NoError(t, err)

	c := NewController("pending", Deps{Auth: gw, Store: sessions, AI: stubAI{}, Tick: time.Hour})
	defer c.Dispose()
	require.NoError(t, c.OpenAuth("register"))

	res, err := c.Register(context.Background(), "Luis", "luis@example.com", "secret123")
	require.NoError(t, err)
	require.Equal(t, auth.StatusPendingConfirmation, res.Status)
	snap := c.Snapshot()
	assert.Equal(t, ViewAuth, snap.View)
	assert.Equal(t, res.Message, snap.Notice)

	require.Len(t, mailer.links, 1)
	link, err := url.Parse(mailer.links[0])
	require.NoError(t, err)
	_, err = gw.Confirm(context.Background(), link.Query().Get("token"))
	require.NoError(t, err)

	snap = c.Snapshot()
	assert.Equal(t, ViewDashboard, snap.View)
	require.NotNil(t, snap.User)
	assert.Equal(t, "Luis", snap.User.Name)
}
