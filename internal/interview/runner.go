package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/danchettos12/EntrevistIA/internal/metrics"
	"github.com/danchettos12/EntrevistIA/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type State string

const (
	StateIdle            State = "idle"
	StateLoadingQuestion State = "loading_question"
	StateAnswering       State = "answering"
	StateSubmitting      State = "submitting"
	StateFinalizing      State = "finalizing"
	StateDone            State = "done"
	StateAbandoned       State = "abandoned"
)

var (
	ErrInvalidState          = errors.New("operation not allowed in the current interview state")
	ErrEmptyResponse         = errors.New("response text is required")
	ErrTranscriptionInFlight = errors.New("a transcription is still in progress")
	ErrBusy                  = errors.New("an AI request is already in progress")
	ErrAbandoned             = errors.New("interview was abandoned")
	ErrAnalysisFailed        = errors.New("answer analysis failed")
	ErrSummaryFailed         = errors.New("session summary failed")
)

// AI is what the runner needs from the AI gateway.
type AI interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
	GenerateQuestion(ctx context.Context, cfg models.SessionConfig, asked []string) string
	AnalyzeResponse(ctx context.Context, question, answer string, cfg models.SessionConfig) (models.QuestionFeedback, error)
	SummarizeSession(ctx context.Context, questions []models.QuestionFeedback, cfg models.SessionConfig) (models.SessionSummary, error)
}

// FinishFunc receives the completed record of run runID. It is called without runner locks held.
type FinishFunc func(runID string, record models.SessionRecord)

type Options struct {
	Config   models.SessionConfig
	UserID   string
	AI       AI
	OnFinish FinishFunc
	// OnChange is told about every state change and countdown tick
	OnChange func(Snapshot)
	Logger   *zap.Logger
	// Tick is the countdown interval; one second when zero
	Tick time.Duration
	Now  func() time.Time
}

// Snapshot is a copy of the runner state for display.
type Snapshot struct {
	RunID        string               `json:"runId"`
	State        State                `json:"state"`
	Config       models.SessionConfig `json:"config"`
	Number       int                  `json:"number"` // 1-based index of the current question
	Total        int                  `json:"total"`
	Question     string               `json:"question,omitempty"`
	Response     string               `json:"response"`
	Remaining    int                  `json:"remaining"`
	Recording    bool                 `json:"recording"`
	Transcribing bool                 `json:"transcribing"`
	Answered     int                  `json:"answered"`
	LastError    string               `json:"lastError,omitempty"`
}

// Runner drives one interview: question, answer, analysis, repeated, then a summary.
// At most one AI request per run is in flight; results that arrive after Abandon are dropped.
type Runner struct {
	id       string
	cfg      models.SessionConfig
	userID   string
	ai       AI
	onFinish FinishFunc
	onChange func(Snapshot)
	logger   *zap.Logger
	tick     time.Duration
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	state        State
	inFlight     bool
	question     string
	asked        []string
	results      []models.QuestionFeedback
	response     string
	lastError    string
	transcribing bool
	countdown    *Countdown
	recorder     Recorder
}

func New(opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	return &Runner{
		id:       id,
		cfg:      opts.Config,
		userID:   opts.UserID,
		ai:       opts.AI,
		onFinish: opts.OnFinish,
		onChange: opts.OnChange,
		logger:   opts.Logger.With(zap.String("run_id", id), zap.String("user_id", opts.UserID)),
		tick:     opts.Tick,
		now:      opts.Now,
		ctx:      ctx,
		cancel:   cancel,
		state:    StateIdle,
	}
}

func (r *Runner) ID() string { return r.id }

func (r *Runner) Config() models.SessionConfig { return r.cfg }

// Start loads the first question and blocks until it is shown.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateIdle {
		err := r.stateErr()
		r.mu.Unlock()
		return err
	}
	r.state = StateLoadingQuestion
	r.mu.Unlock()

	metrics.InterviewStarted()
	r.logger.Info("Interview started", zap.String("role", r.cfg.Role), zap.Int("questions", r.cfg.QuestionCount))
	r.notify()
	return r.loadQuestion(ctx)
}

func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Results returns a copy of the feedback gathered so far.
func (r *Runner) Results() []models.QuestionFeedback {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.QuestionFeedback, len(r.results))
	copy(out, r.results)
	return out
}

// SetResponse replaces the typed answer.
func (r *Runner) SetResponse(text string) error {
	r.mu.Lock()
	if r.state != StateAnswering {
		err := r.stateErr()
		r.mu.Unlock()
		return err
	}
	r.response = text
	r.mu.Unlock()
	r.notify()
	return nil
}

// StartRecording opens an audio capture. started is false when one was already open.
func (r *Runner) StartRecording(mimeType string) (started bool, err error) {
	r.mu.Lock()
	if r.state != StateAnswering {
		err := r.stateErr()
		r.mu.Unlock()
		return false, err
	}
	if r.transcribing {
		r.mu.Unlock()
		return false, ErrTranscriptionInFlight
	}
	started = r.recorder.Start(mimeType)
	r.mu.Unlock()
	if started {
		r.notify()
	}
	return started, nil
}

func (r *Runner) AppendAudio(chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateAnswering {
		return r.stateErr()
	}
	_, err := r.recorder.Write(chunk)
	return err
}

// StopRecording closes the capture and appends its transcription to the answer.
// Stopping with nothing recording is a no-op. A failed transcription leaves the answer unchanged.
func (r *Runner) StopRecording(ctx context.Context) (string, error) {
	r.mu.Lock()
	if r.state != StateAnswering {
		err := r.stateErr()
		r.mu.Unlock()
		return "", err
	}
	audio, mimeType, ok := r.recorder.Stop()
	if !ok {
		response := r.response
		r.mu.Unlock()
		return response, nil
	}
	r.transcribing = true
	r.mu.Unlock()
	r.notify()

	callCtx, cancel := r.callContext(ctx)
	text, err := r.ai.Transcribe(callCtx, audio, mimeType)
	cancel()

	r.mu.Lock()
	r.transcribing = false
	if r.state != StateAnswering {
		r.mu.Unlock()
		return "", ErrAbandoned
	}
	if err != nil {
		r.logger.Warn("Transcription failed", zap.Error(err))
		r.lastError = "No se pudo transcribir el audio"
	} else if text = strings.TrimSpace(text); text != "" {
		if strings.TrimSpace(r.response) == "" {
			r.response = text
		} else {
			r.response = strings.TrimRight(r.response, " ") + " " + text
		}
		r.lastError = ""
	}
	response := r.response
	r.mu.Unlock()
	r.notify()
	return response, nil
}

// Submit analyzes the current answer and then moves to the next question or the summary.
// An open recording is transcribed first.
func (r *Runner) Submit(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateAnswering {
		err := r.stateErr()
		r.mu.Unlock()
		return err
	}
	if r.transcribing {
		r.mu.Unlock()
		return ErrTranscriptionInFlight
	}
	recording := r.recorder.Active()
	r.mu.Unlock()

	if recording {
		if _, err := r.StopRecording(ctx); err != nil {
			return err
		}
	}

	r.mu.Lock()
	if r.state != StateAnswering {
		err := r.stateErr()
		r.mu.Unlock()
		return err
	}
	if r.transcribing {
		r.mu.Unlock()
		return ErrTranscriptionInFlight
	}
	answer := strings.TrimSpace(r.response)
	if answer == "" {
		r.mu.Unlock()
		return ErrEmptyResponse
	}
	question := r.question
	r.state = StateSubmitting
	r.inFlight = true
	r.lastError = ""
	r.stopCountdownLocked()
	r.mu.Unlock()
	r.notify()

	callCtx, cancel := r.callContext(ctx)
	fb, err := r.ai.AnalyzeResponse(callCtx, question, answer, r.cfg)
	cancel()

	r.mu.Lock()
	r.inFlight = false
	if r.state != StateSubmitting {
		r.mu.Unlock()
		return ErrAbandoned
	}
	if err != nil {
		r.logger.Warn("Answer analysis failed", zap.Int("question", len(r.results)+1), zap.Error(err))
		r.state = StateAnswering
		r.lastError = "No se pudo analizar la respuesta, inténtalo de nuevo"
		r.resumeCountdownLocked()
		r.mu.Unlock()
		r.notify()
		return fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}

	fb.Question = question
	r.results = append(r.results, fb)
	if len(r.results) < r.cfg.QuestionCount {
		r.state = StateLoadingQuestion
		r.response = ""
		r.question = ""
		r.mu.Unlock()
		r.notify()
		return r.loadQuestion(ctx)
	}

	r.state = StateFinalizing
	r.response = ""
	r.mu.Unlock()
	r.notify()
	return r.finalize(ctx)
}

// RetryFinalize repeats a failed summary request.
func (r *Runner) RetryFinalize(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateFinalizing {
		err := r.stateErr()
		r.mu.Unlock()
		return err
	}
	if r.inFlight {
		r.mu.Unlock()
		return ErrBusy
	}
	r.mu.Unlock()
	return r.finalize(ctx)
}

// Abandon stops the run. In-flight requests are cancelled and their results dropped.
func (r *Runner) Abandon() {
	r.mu.Lock()
	if r.state == StateDone || r.state == StateAbandoned {
		r.mu.Unlock()
		return
	}
	started := r.state != StateIdle
	r.state = StateAbandoned
	r.stopCountdownLocked()
	r.recorder.Stop()
	r.transcribing = false
	r.mu.Unlock()

	r.cancel()
	if started {
		metrics.InterviewEnded()
	}
	r.logger.Info("Interview abandoned")
	r.notify()
}

func (r *Runner) loadQuestion(ctx context.Context) error {
	r.mu.Lock()
	asked := make([]string, len(r.asked))
	copy(asked, r.asked)
	r.inFlight = true
	r.mu.Unlock()

	callCtx, cancel := r.callContext(ctx)
	question := r.ai.GenerateQuestion(callCtx, r.cfg, asked)
	cancel()

	r.mu.Lock()
	r.inFlight = false
	if r.state != StateLoadingQuestion {
		r.mu.Unlock()
		return ErrAbandoned
	}
	r.question = question
	r.asked = append(r.asked, question)
	r.response = ""
	r.state = StateAnswering
	r.countdown = NewCountdown(r.cfg.TimeLimit, r.tick, func(int) { r.notify() })
	r.countdown.Start()
	r.mu.Unlock()
	r.notify()
	return nil
}

func (r *Runner) finalize(ctx context.Context) error {
	r.mu.Lock()
	results := make([]models.QuestionFeedback, len(r.results))
	copy(results, r.results)
	r.inFlight = true
	r.lastError = ""
	r.mu.Unlock()

	callCtx, cancel := r.callContext(ctx)
	summary, err := r.ai.SummarizeSession(callCtx, results, r.cfg)
	cancel()

	r.mu.Lock()
	r.inFlight = false
	if r.state != StateFinalizing {
		r.mu.Unlock()
		return ErrAbandoned
	}
	if err != nil {
		r.logger.Warn("Session summary failed", zap.Error(err))
		r.lastError = "No se pudo generar el resumen, inténtalo de nuevo"
		r.mu.Unlock()
		r.notify()
		return fmt.Errorf("%w: %w", ErrSummaryFailed, err)
	}

	record := models.NewSessionRecord(r.userID, r.now().UnixMilli(), r.cfg, results, summary)
	r.state = StateDone
	r.mu.Unlock()

	metrics.InterviewEnded()
	r.logger.Info("Interview finished", zap.Int("overall_score", record.OverallScore))
	r.notify()
	if r.onFinish != nil {
		r.onFinish(r.id, record)
	}
	return nil
}

// callContext ends when either the caller's context or the run ends.
func (r *Runner) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	callCtx, cancel := context.WithCancel(r.ctx)
	if ctx == nil {
		return callCtx, cancel
	}
	stop := context.AfterFunc(ctx, cancel)
	return callCtx, func() {
		stop()
		cancel()
	}
}

func (r *Runner) stopCountdownLocked() {
	if r.countdown != nil {
		r.countdown.Stop()
	}
}

func (r *Runner) resumeCountdownLocked() {
	if r.countdown != nil {
		r.countdown.Start()
	}
}

func (r *Runner) stateErr() error {
	if r.state == StateAbandoned {
		return ErrAbandoned
	}
	return fmt.Errorf("%w (%s)", ErrInvalidState, r.state)
}

func (r *Runner) snapshotLocked() Snapshot {
	s := Snapshot{
		RunID:        r.id,
		State:        r.state,
		Config:       r.cfg,
		Total:        r.cfg.QuestionCount,
		Question:     r.question,
		Response:     r.response,
		Recording:    r.recorder.Active(),
		Transcribing: r.transcribing,
		Answered:     len(r.results),
		LastError:    r.lastError,
	}
	s.Number = len(r.results) + 1
	if s.Number > s.Total {
		s.Number = s.Total
	}
	if r.countdown != nil {
		s.Remaining = r.countdown.Remaining()
	} else {
		s.Remaining = r.cfg.TimeLimit
	}
	return s
}

func (r *Runner) notify() {
	if r.onChange == nil {
		return
	}
	r.onChange(r.Snapshot())
}
