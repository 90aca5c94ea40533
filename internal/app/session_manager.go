package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/voxrecap/internal/capture"
	"github.com/MrWong99/voxrecap/internal/config"
	"github.com/MrWong99/voxrecap/internal/observe"
	"github.com/MrWong99/voxrecap/internal/recording"
	"github.com/MrWong99/voxrecap/internal/summary"
	"github.com/MrWong99/voxrecap/internal/transcript"
	"github.com/MrWong99/voxrecap/pkg/audio"
	"github.com/MrWong99/voxrecap/pkg/provider/stt"
)

// ErrMicTestRunning is returned by [SessionManager.Stop] when the room's
// session is a microphone test, which ends on its own.
var ErrMicTestRunning = errors.New("app: microphone test in progress")

// errEmptyFile marks a participant file that received no audio at all.
var errEmptyFile = errors.New("app: file holds no audio")

// Transcoder converts a raw capture file into a waveform file.
type Transcoder interface {
	Transcode(ctx context.Context, rawPath string) (wavPath string, err error)
}

// Summarizer turns transcript text into a summary. It never fails.
type Summarizer interface {
	Generate(ctx context.Context, text string, style summary.Style) summary.Summary
}

// StartRequest identifies who asked for a session and where.
type StartRequest struct {
	// RoomID scopes the session (a Discord guild, or "local").
	RoomID string

	// ChannelID is the voice channel to join.
	ChannelID string

	// UserID is the member who issued the command.
	UserID string
}

// Status classifies the outcome of a stopped session.
type Status string

const (
	// StatusOK means speech was recognised and summarised.
	StatusOK Status = "ok"

	// StatusSilent means the captured audio was below the signal threshold.
	StatusSilent Status = "silent"

	// StatusNoSpeech means audio was captured but no words came out of it.
	StatusNoSpeech Status = "no-speech"
)

// Outcome is the result of [SessionManager.Stop].
type Outcome struct {
	SessionID  string
	RoomID     string
	Duration   time.Duration
	Files      []capture.FileRef
	Transcript transcript.Transcript
	Summary    summary.Summary
	Status     Status
}

// MicReport is the result of [SessionManager.MicTest].
type MicReport struct {
	Files      []capture.FileRef
	TotalBytes int64

	// Silent is true when less than [capture.MinSignalBytes] were captured
	// across all files.
	Silent bool

	// Text is the rendered transcript. Empty when Silent.
	Text string

	// HasWords reports whether recognition produced any words.
	HasWords bool

	// Err is set when the audio could not be processed at all.
	Err error
}

// SessionManagerConfig holds all dependencies for a [SessionManager].
type SessionManagerConfig struct {
	Registry   *recording.Registry
	Platforms  config.PlatformFunc
	Transcoder Transcoder
	Recognizer stt.Recognizer
	Summarizer Summarizer

	TempDir               string
	SilenceTimeout        time.Duration
	MicTestWindow         time.Duration
	DeleteAfterProcessing bool

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// SessionManager runs recording sessions from start to summary. Each room
// holds at most one session at a time; sessions in different rooms run
// independently. All exported methods are safe for concurrent use.
type SessionManager struct {
	registry   *recording.Registry
	platforms  config.PlatformFunc
	transcoder Transcoder
	recognizer stt.Recognizer
	summarizer Summarizer
	metrics    *observe.Metrics

	tempDir        string
	silenceTimeout time.Duration
	micTestWindow  time.Duration
	deleteAfter    atomic.Bool

	// watchers tracks the implicit-end goroutines so Shutdown can wait.
	watchers sync.WaitGroup
}

// NewSessionManager creates a SessionManager from cfg.
func NewSessionManager(cfg SessionManagerConfig) (*SessionManager, error) {
	var errs []error
	if cfg.Platforms == nil {
		errs = append(errs, errors.New("platforms must not be nil"))
	}
	if cfg.Transcoder == nil {
		errs = append(errs, errors.New("transcoder must not be nil"))
	}
	if cfg.Recognizer == nil {
		errs = append(errs, errors.New("recognizer must not be nil"))
	}
	if cfg.Summarizer == nil {
		errs = append(errs, errors.New("summarizer must not be nil"))
	}
	if cfg.TempDir == "" {
		errs = append(errs, errors.New("temp dir must not be empty"))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("app: session manager: %w", errors.Join(errs...))
	}

	m := &SessionManager{
		registry:       cfg.Registry,
		platforms:      cfg.Platforms,
		transcoder:     cfg.Transcoder,
		recognizer:     cfg.Recognizer,
		summarizer:     cfg.Summarizer,
		metrics:        cfg.Metrics,
		tempDir:        cfg.TempDir,
		silenceTimeout: cfg.SilenceTimeout,
		micTestWindow:  cmp.Or(cfg.MicTestWindow, config.DefaultMicTestWindow),
	}
	if m.registry == nil {
		m.registry = recording.NewRegistry()
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	m.deleteAfter.Store(cfg.DeleteAfterProcessing)
	return m, nil
}

// SetDeleteAfterProcessing changes the retention flag for files processed
// from now on.
func (m *SessionManager) SetDeleteAfterProcessing(v bool) {
	m.deleteAfter.Store(v)
}

// Registry returns the session registry.
func (m *SessionManager) Registry() *recording.Registry { return m.registry }

// IsActive reports whether the room has a session of any mode.
func (m *SessionManager) IsActive(roomID string) bool {
	_, ok := m.registry.Get(roomID)
	return ok
}

// Start joins the requested channel and begins capturing every speaker.
// It returns [recording.ErrAlreadyRecording] if the room is busy. The
// session ends with [SessionManager.Stop], or implicitly when the platform
// drops the connection.
func (m *SessionManager) Start(ctx context.Context, req StartRequest) (*recording.Session, error) {
	s, conn, rec, err := m.begin(ctx, req, recording.ModeRecording)
	if err != nil {
		return nil, err
	}

	slog.Info("app: recording started",
		"session_id", s.ID,
		"room_id", s.RoomID,
		"channel_id", s.ChannelID,
		"started_by", s.StartedBy,
	)

	m.watchers.Add(1)
	go m.watch(s, conn, rec)
	return s, nil
}

// begin reserves the room, connects, and starts the recorder. Every failure
// rolls back the steps already taken. If the session is ended while the
// platform is still connecting, the new connection and recorder are torn
// down and [recording.ErrNoActiveSession] is returned.
func (m *SessionManager) begin(ctx context.Context, req StartRequest, mode recording.Mode) (*recording.Session, audio.Connection, *capture.Recorder, error) {
	s, err := m.registry.Begin(req.RoomID, recording.BeginOptions{
		ChannelID: req.ChannelID,
		StartedBy: req.UserID,
		Mode:      mode,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	platform, err := m.platforms(req.RoomID)
	if err != nil {
		m.registry.Release(s)
		return nil, nil, nil, fmt.Errorf("app: platform for room %s: %w", req.RoomID, err)
	}
	conn, err := platform.Connect(ctx, req.ChannelID)
	if err != nil {
		m.registry.Release(s)
		return nil, nil, nil, fmt.Errorf("app: connect to channel %s: %w", req.ChannelID, err)
	}

	rec, err := capture.NewRecorder(capture.Config{
		TempDir:        m.tempDir,
		RoomID:         req.RoomID,
		SilenceTimeout: m.silenceTimeout,
		Metrics:        m.metrics,
	})
	if err == nil {
		// Capture outlives the request that started it.
		err = rec.Run(context.WithoutCancel(ctx), conn)
	}
	if err != nil {
		if dErr := conn.Disconnect(); dErr != nil {
			slog.Warn("app: disconnect after failed start", "room_id", req.RoomID, "err", dErr)
		}
		m.registry.Release(s)
		return nil, nil, nil, fmt.Errorf("app: start capture: %w", err)
	}

	if !m.registry.Attach(s, conn, rec) {
		refs := rec.Stop()
		if dErr := conn.Disconnect(); dErr != nil {
			slog.Warn("app: disconnect after cancelled start", "room_id", req.RoomID, "err", dErr)
		}
		removeFiles(refs)
		return nil, nil, nil, fmt.Errorf("app: session ended while connecting: %w (room=%s)", recording.ErrNoActiveSession, req.RoomID)
	}
	m.metrics.ActiveSessions.Add(ctx, 1, metric.WithAttributes(observe.Attr("mode", s.Mode.String())))
	return s, conn, rec, nil
}

// watch ends s when the connection terminates without a Stop. If Stop got
// there first, Release fails and nothing happens.
func (m *SessionManager) watch(s *recording.Session, conn audio.Connection, rec *capture.Recorder) {
	defer m.watchers.Done()
	<-conn.Done()
	if !m.registry.Release(s) {
		return
	}

	refs := rec.Stop()
	m.metrics.ActiveSessions.Add(context.Background(), -1, metric.WithAttributes(observe.Attr("mode", s.Mode.String())))
	discarded := 0
	if m.deleteAfter.Load() {
		discarded = removeFiles(refs)
	}
	slog.Warn("app: connection ended without stop, session discarded",
		"session_id", s.ID,
		"room_id", s.RoomID,
		"files", len(refs),
		"deleted", discarded,
		"elapsed", s.Elapsed().Round(time.Second),
	)
}

// Stop ends the room's recording and runs the post-capture pipeline:
// transcode, recognise, assemble and summarise. Per-file failures are
// skipped. It returns [recording.ErrNoActiveSession] if the room is idle.
func (m *SessionManager) Stop(ctx context.Context, roomID string, style summary.Style) (*Outcome, error) {
	s, err := m.registry.EndMode(roomID, recording.ModeRecording)
	if errors.Is(err, recording.ErrModeMismatch) {
		return nil, ErrMicTestRunning
	}
	if err != nil {
		return nil, err
	}

	ctx, span := observe.StartSpan(ctx, "app.Stop")
	defer span.End()
	log := observe.Logger(ctx).With("session_id", s.ID, "room_id", roomID)

	refs := m.finish(ctx, s)
	out := &Outcome{
		SessionID: s.ID,
		RoomID:    roomID,
		Duration:  s.Elapsed(),
		Files:     refs,
	}
	log.Info("app: recording stopped", "files", len(refs), "bytes", totalBytes(refs), "duration", out.Duration.Round(time.Second))

	if len(refs) == 0 || totalBytes(refs) < capture.MinSignalBytes {
		out.Status = StatusSilent
		if m.deleteAfter.Load() {
			removeFiles(refs)
		}
	} else {
		out.Transcript = m.process(ctx, refs)
		out.Status = StatusOK
		if out.Transcript.Unrecognizable || !out.Transcript.HasSpeech() {
			out.Status = StatusNoSpeech
		}
	}

	out.Summary = m.summarizer.Generate(ctx, out.Transcript.Plain(), style)
	log.Info("app: session processed", "status", out.Status, "words", out.Transcript.WordCount(), "tier", out.Summary.Tier)
	return out, nil
}

// MicTest records the requester's channel for the configured window and
// reports what was captured. It occupies the room's slot, so it cannot run
// alongside a recording.
func (m *SessionManager) MicTest(ctx context.Context, req StartRequest) (*MicReport, error) {
	s, conn, _, err := m.begin(ctx, req, recording.ModeMicTest)
	if err != nil {
		return nil, err
	}
	slog.Info("app: microphone test started", "session_id", s.ID, "room_id", s.RoomID, "window", m.micTestWindow)

	timer := time.NewTimer(m.micTestWindow)
	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-conn.Done():
	}
	timer.Stop()

	// Shutdown may have ended the session already.
	if !m.registry.Release(s) {
		return nil, fmt.Errorf("%w (room=%s)", recording.ErrNoActiveSession, req.RoomID)
	}

	ctx = context.WithoutCancel(ctx)
	refs := m.finish(ctx, s)
	report := &MicReport{Files: refs, TotalBytes: totalBytes(refs)}
	report.Silent = report.TotalBytes < capture.MinSignalBytes
	if report.Silent {
		if m.deleteAfter.Load() {
			removeFiles(refs)
		}
		return report, nil
	}

	t := m.process(ctx, refs)
	report.Text = t.String()
	report.HasWords = !t.Unrecognizable && t.HasSpeech()
	if t.Unrecognizable {
		report.Err = errors.New("app: no file could be recognised")
	}
	return report, nil
}

// Shutdown ends every active session without processing it and waits for
// the implicit-end watchers to exit or ctx to expire.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	for _, s := range m.registry.Active() {
		if !m.registry.Release(s) {
			continue
		}
		refs := m.finish(ctx, s)
		deleted := removeFiles(refs)
		slog.Info("app: session ended by shutdown", "session_id", s.ID, "room_id", s.RoomID, "files", len(refs), "deleted", deleted)
	}

	done := make(chan struct{})
	go func() {
		m.watchers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("app: shutdown: %w", ctx.Err())
	}
}

// finish stops capture and leaves the channel. The returned files are in
// capture-completion order. A session ended before it was attached has
// nothing to stop; its starter tears the connection down.
func (m *SessionManager) finish(ctx context.Context, s *recording.Session) []capture.FileRef {
	rec := s.Recorder()
	if rec == nil {
		return nil
	}
	refs := rec.Stop()
	if conn := s.Connection(); conn != nil {
		if err := conn.Disconnect(); err != nil {
			slog.Warn("app: disconnect failed", "room_id", s.RoomID, "err", err)
		}
	}
	m.metrics.ActiveSessions.Add(ctx, -1, metric.WithAttributes(observe.Attr("mode", s.Mode.String())))
	return refs
}

// process transcodes and recognises refs one after another and assembles
// the transcript. Files that fail are logged and left out.
func (m *SessionManager) process(ctx context.Context, refs []capture.FileRef) transcript.Transcript {
	results := make([]transcript.FileResult, 0, len(refs))
	for _, ref := range refs {
		res, err := m.processFile(ctx, ref)
		results = append(results, transcript.FileResult{
			Speaker: transcript.SpeakerLabel(ref.ParticipantID, ref.Label),
			Result:  res,
			Err:     err,
		})
	}
	return transcript.Assemble(results)
}

func (m *SessionManager) processFile(ctx context.Context, ref capture.FileRef) (*stt.Result, error) {
	log := slog.With("participant_id", ref.ParticipantID, "path", ref.Path)
	if ref.Err != nil {
		log.Warn("app: capture reported an error, processing what was written", "err", ref.Err)
	}
	if ref.Size == 0 {
		log.Warn("app: skipping empty file")
		return nil, errEmptyFile
	}
	if ref.Silent() {
		log.Warn("app: file is very small, may not contain audio", "bytes", ref.Size)
	}

	wav, err := m.transcoder.Transcode(ctx, ref.Path)
	if err != nil {
		m.metrics.RecordFileError(ctx, "transcode")
		log.Error("app: transcode failed, skipping file", "err", err)
		return nil, err
	}

	start := time.Now()
	res, err := m.recognizer.Recognize(ctx, wav)
	m.metrics.RecognizeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		m.metrics.RecordFileError(ctx, "recognize")
		log.Error("app: recognition failed, skipping file", "wav", wav, "err", err)
		return nil, err
	}
	if res == nil {
		res = &stt.Result{}
	}

	if m.deleteAfter.Load() {
		removeFiles([]capture.FileRef{{Path: ref.Path}, {Path: wav}})
	}
	return res, nil
}

func totalBytes(refs []capture.FileRef) int64 {
	var n int64
	for _, r := range refs {
		n += r.Size
	}
	return n
}

// removeFiles deletes the files of refs and returns how many were removed.
// Missing files are not an error.
func removeFiles(refs []capture.FileRef) int {
	n := 0
	for _, r := range refs {
		if r.Path == "" {
			continue
		}
		err := os.Remove(r.Path)
		switch {
		case err == nil:
			n++
		case errors.Is(err, os.ErrNotExist):
		default:
			slog.Warn("app: failed to delete file", "path", r.Path, "err", err)
		}
	}
	return n
}
