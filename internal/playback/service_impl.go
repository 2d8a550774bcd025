package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/soundleafapp/soundleaf-playback/internal/access"
	"github.com/soundleafapp/soundleaf-playback/internal/engine"
	"github.com/soundleafapp/soundleaf-playback/internal/errmsg"
	"github.com/soundleafapp/soundleaf-playback/internal/media"
	"github.com/soundleafapp/soundleaf-playback/internal/opqueue"
	"github.com/soundleafapp/soundleaf-playback/internal/progress"
	"github.com/soundleafapp/soundleaf-playback/internal/timing"
)

var (
	// ErrUnauthorized is returned when the access evaluator denies a
	// chapter transition.
	ErrUnauthorized = errors.New("playback: chapter not playable")

	// ErrNoItem is returned for commands that need loaded content.
	ErrNoItem = errors.New("playback: no item loaded")
)

// Options configures the playback service.
type Options struct {
	Policy   timing.Policy
	Logger   *slog.Logger
	Engine   engine.Engine
	Progress *progress.Manager // optional; nil disables persistence
	Local    LocalSource       // optional; nil means always stream
	UserID   string
	DeviceID string
}

// failedOp remembers the last failed operation for Retry.
type failedOp struct {
	op        opqueue.Op
	onSuccess func()
}

// completion pairs a queued operation with its pending result and the
// state mutation to apply on success.
type completion struct {
	op        opqueue.Op
	onSuccess func()
	res       <-chan error
}

// Verify serviceImpl implements Service at compile time.
var _ Service = (*serviceImpl)(nil)

type serviceImpl struct {
	mu    sync.RWMutex
	state *State
	sleep sleepTimer

	policy   timing.Policy
	logger   *slog.Logger
	engine   engine.Engine
	queue    *opqueue.Queue
	toggle   *opqueue.Debouncer
	detector *Detector
	detMu    sync.Mutex

	progressMgr *progress.Manager
	local       LocalSource
	userID      string
	deviceID    string

	failedMu   sync.Mutex
	lastFailed *failedOp

	subs   []*Subscription
	subsMu sync.Mutex

	completions chan completion
	compMu      sync.Mutex
	compClosed  bool
	compDone    chan struct{}

	done   chan struct{}
	closed bool
}

// New creates the playback service and starts its event loop.
func New(opts Options) Service {
	policy := opts.Policy.Normalized()
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	s := &serviceImpl{
		state:       &State{Speed: 1.0},
		policy:      policy,
		logger:      opts.Logger,
		engine:      opts.Engine,
		queue:       opqueue.New(policy, opts.Logger),
		toggle:      opqueue.NewDebouncer(policy.ToggleDebounce),
		detector:    NewDetector(policy),
		progressMgr: opts.Progress,
		local:       opts.Local,
		userID:      opts.UserID,
		deviceID:    opts.DeviceID,
		completions: make(chan completion, 64),
		compDone:    make(chan struct{}),
		done:        make(chan struct{}),
	}
	go s.run()
	go s.drainCompletions()
	return s
}

// Snapshot returns the current state copy.
func (s *serviceImpl) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.state
}

// update applies a mutation copy-on-write and notifies observers.
func (s *serviceImpl) update(mutate func(st *State)) {
	s.mu.Lock()
	prev := *s.state
	next := prev
	mutate(&next)
	next.Sleep = s.sleep.state()
	next.normalize()
	s.state = &next
	s.mu.Unlock()
	s.publishState(StateChange{Previous: prev, Current: next})
}

// --- Event loop ---

func (s *serviceImpl) run() {
	sleepTicker := time.NewTicker(s.policy.SleepTick)
	defer sleepTicker.Stop()
	progressTicker := time.NewTicker(s.policy.ProgressInterval)
	defer progressTicker.Stop()

	events := s.engine.Events()
	for {
		select {
		case <-s.done:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			s.handleEngineEvent(e)
		case <-sleepTicker.C:
			s.handleSleepTick()
		case <-progressTicker.C:
			if s.Snapshot().Playing {
				s.recordProgress()
			}
		}
	}
}

func (s *serviceImpl) handleEngineEvent(e engine.Event) {
	switch e.Kind {
	case engine.PositionTick:
		s.update(func(st *State) {
			st.Position = e.Position
			if e.Duration > 0 {
				st.Duration = e.Duration
			}
		})
		s.publishPosition(PositionChange{Position: e.Position, Duration: e.Duration})
		s.handleCompletion(SourceForeground, e.Position, e.Duration, false)
	case engine.DurationKnown:
		s.update(func(st *State) { st.Duration = e.Duration })
	case engine.BufferingChanged:
		s.update(func(st *State) { st.Buffering = e.Buffering })
	case engine.EndOfMedia:
		s.handleCompletion(SourceForeground, e.Position, e.Duration, true)
	case engine.EngineError:
		s.failWith(errmsg.OpPlay, ErrorPlaybackFailed, e.Err)
	}
}

// ReportChapterEnd feeds a completion signal from the background bridge.
// The bridge carries no position, so the signal is dropped until a
// duration is known; a spurious report before playback starts must not
// complete the chapter.
func (s *serviceImpl) ReportChapterEnd(src CompletionSource) {
	st := s.Snapshot()
	if st.Item == nil || st.Duration <= 0 {
		return
	}
	dur := st.Duration
	s.handleCompletion(src, dur, dur, true)
}

// handleCompletion runs the detector and, exactly once per completed
// chapter, either pauses for the sleep timer or advances. Sleep timer
// pause takes priority over auto-advance in the same tick.
func (s *serviceImpl) handleCompletion(src CompletionSource, pos, dur time.Duration, endOfMedia bool) {
	st := s.Snapshot()
	if st.Item == nil {
		return
	}

	s.detMu.Lock()
	trigger := s.detector.Observe(st.ChapterIndex, pos, dur, endOfMedia, src)
	s.detMu.Unlock()
	if !trigger {
		return
	}

	s.logger.Debug("chapter complete",
		"item_id", st.Item.ID, "chapter", st.ChapterIndex, "source", src.String())
	s.recordProgress()

	s.mu.Lock()
	sleepFired := s.sleep.onChapterComplete()
	s.mu.Unlock()
	if sleepFired {
		s.update(func(*State) {}) // refresh Sleep in the snapshot
		s.enqueuePause(errmsg.OpSleepPause)
		return
	}

	if st.HasNextPlayableChapter() {
		s.enqueueLoadChapter(st.ChapterIndex+1, true)
		return
	}

	// End of the last playable chapter: stop and record the book as
	// (near-)complete; the percent computation handles the rounding.
	s.update(func(st *State) { st.Playing = false })
	s.recordProgress()
}

func (s *serviceImpl) handleSleepTick() {
	s.mu.Lock()
	if s.sleep.mode != SleepTimed {
		s.mu.Unlock()
		return
	}
	fired := s.sleep.tick(s.policy.SleepTick)
	s.mu.Unlock()

	// Publish the new remaining time either way.
	s.update(func(*State) {})
	if fired {
		s.enqueuePause(errmsg.OpSleepPause)
	}
}

// --- Commands ---

func (s *serviceImpl) PlayItem(item *media.Item, startChapter int) error {
	if item == nil || len(item.Chapters) == 0 {
		return ErrNoItem
	}

	st := s.Snapshot()
	in := access.Input{
		Owned:              st.Owned,
		SubscriptionActive: st.SubscriptionActive,
		ItemFree:           item.IsFree,
		Chapters:           item.Chapters,
	}
	if !access.CanPlay(in, startChapter) {
		s.update(func(st *State) {
			st.Item = item
			st.ChapterIndex = startChapter
			st.Position = 0
			st.Duration = 0
			st.ErrorKind = ErrorUnauthorized
			st.ErrorMessage = "this chapter requires purchase or an active subscription"
		})
		s.publishError(ErrorEvent{Kind: ErrorUnauthorized, Operation: string(errmsg.OpLoadChapter), Err: ErrUnauthorized})
		return ErrUnauthorized
	}

	s.update(func(st *State) {
		st.Item = item
		st.ChapterIndex = startChapter
		st.Position = 0
		st.Duration = 0
		st.ErrorKind = ErrorNone
		st.ErrorMessage = ""
	})
	s.enqueueLoadChapter(startChapter, true)
	return nil
}

func (s *serviceImpl) AdvanceToNext() error {
	st := s.Snapshot()
	if st.Item == nil {
		return ErrNoItem
	}
	if !st.HasNextPlayableChapter() {
		if st.ChapterIndex+1 < len(st.Item.Chapters) {
			// Next chapter exists but is locked.
			s.failWith(errmsg.OpLoadChapter, ErrorUnauthorized, ErrUnauthorized)
			return ErrUnauthorized
		}
		return nil
	}
	s.enqueueLoadChapter(st.ChapterIndex+1, st.Playing)
	return nil
}

func (s *serviceImpl) AdvanceToPrevious() error {
	st := s.Snapshot()
	if st.Item == nil {
		return ErrNoItem
	}
	if !st.HasPreviousPlayableChapter() {
		if st.ChapterIndex > 0 {
			s.failWith(errmsg.OpLoadChapter, ErrorUnauthorized, ErrUnauthorized)
			return ErrUnauthorized
		}
		return nil
	}
	s.enqueueLoadChapter(st.ChapterIndex-1, st.Playing)
	return nil
}

func (s *serviceImpl) TogglePlayPause() error {
	st := s.Snapshot()
	if st.Item == nil {
		return ErrNoItem
	}
	if !s.toggle.Allow() {
		// Coalesced duplicate tap.
		return nil
	}
	if st.Playing {
		s.enqueuePause(errmsg.OpPause)
	} else {
		s.submit(opqueue.Op{
			Name: string(errmsg.OpPlay),
			Kind: opqueue.KindPlay,
			Run:  func(context.Context) error { return s.engine.Play() },
		}, func() {
			s.update(func(st *State) {
				st.Playing = true
				st.ErrorKind = ErrorNone
				st.ErrorMessage = ""
			})
		})
	}
	return nil
}

func (s *serviceImpl) SeekTo(pos time.Duration) error {
	st := s.Snapshot()
	if st.Item == nil {
		return ErrNoItem
	}
	s.enqueueSeek(pos)
	return nil
}

func (s *serviceImpl) SkipForward(d time.Duration) error {
	return s.skip(d)
}

func (s *serviceImpl) SkipBackward(d time.Duration) error {
	return s.skip(-d)
}

func (s *serviceImpl) skip(delta time.Duration) error {
	st := s.Snapshot()
	if st.Item == nil {
		return ErrNoItem
	}
	target := st.Position + delta
	if target < 0 {
		target = 0
	}
	if st.Duration > 0 && target > st.Duration {
		target = st.Duration
	}
	s.enqueueSeek(target)
	return nil
}

func (s *serviceImpl) SetSpeed(speed float64) error {
	if speed < 0.5 || speed > 3.0 {
		return fmt.Errorf("playback: speed %v out of range [0.5, 3.0]", speed)
	}
	s.update(func(st *State) { st.Speed = speed })
	return nil
}

func (s *serviceImpl) Retry() error {
	s.failedMu.Lock()
	failed := s.lastFailed
	s.lastFailed = nil
	s.failedMu.Unlock()
	if failed == nil {
		return nil
	}

	s.update(func(st *State) {
		st.ErrorKind = ErrorNone
		st.ErrorMessage = ""
	})
	op := failed.op
	if op.Kind == opqueue.KindLoad {
		// A stale token would make the retry superseded on arrival.
		op.Token = s.queue.NextLoadToken()
	}
	s.submit(op, failed.onSuccess)
	return nil
}

func (s *serviceImpl) SetSleepTimer(mode SleepMode, d time.Duration) error {
	if mode == SleepTimed && d <= 0 {
		return fmt.Errorf("playback: timed sleep requires a positive duration, got %v", d)
	}
	s.mu.Lock()
	s.sleep.set(mode, d)
	s.mu.Unlock()
	s.update(func(*State) {})
	return nil
}

func (s *serviceImpl) CancelSleepTimer() {
	s.mu.Lock()
	s.sleep.cancel()
	s.mu.Unlock()
	s.update(func(*State) {})
}

func (s *serviceImpl) SetEntitlements(owned, subscriptionActive bool) {
	s.update(func(st *State) {
		st.Owned = owned
		st.SubscriptionActive = subscriptionActive
	})
}

func (s *serviceImpl) SetPlaylistCursor(cursor *PlaylistCursor) {
	s.update(func(st *State) { st.Playlist = cursor })
}

func (s *serviceImpl) Flush() error {
	s.recordProgress()
	if s.progressMgr == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.progressMgr.Flush(ctx)
}

// --- Queue plumbing ---

// submit sends an operation to the queue and registers its result for
// ordered delivery, without blocking the caller.
func (s *serviceImpl) submit(op opqueue.Op, onSuccess func()) {
	res := s.queue.Submit(op)
	s.compMu.Lock()
	if s.compClosed {
		s.compMu.Unlock()
		return
	}
	// Send under the lock so Close cannot close the channel mid-send. The
	// drainer never takes this lock, so this cannot deadlock.
	s.completions <- completion{op: op, onSuccess: onSuccess, res: res}
	s.compMu.Unlock()
}

// drainCompletions applies operation results one at a time, in the order
// the operations were submitted. The queue executes in that same order,
// so state mutations land in execution order and the snapshot never
// settles on an earlier operation's outcome. Superseded and shutdown
// results are discarded.
func (s *serviceImpl) drainCompletions() {
	defer close(s.compDone)
	for c := range s.completions {
		err := <-c.res
		switch {
		case err == nil:
			if c.onSuccess != nil {
				c.onSuccess()
			}
		case errors.Is(err, opqueue.ErrSuperseded), errors.Is(err, opqueue.ErrClosed):
			// Result intentionally discarded.
		default:
			s.failOp(c.op, c.onSuccess, err)
		}
	}
}

func (s *serviceImpl) enqueueLoadChapter(index int, autoplay bool) {
	st := s.Snapshot()
	chapter := st.Item.Chapter(index)
	if chapter == nil {
		return
	}

	src := engine.Source{ChapterID: chapter.ID, URL: chapter.AudioURL}
	if s.local != nil {
		if path, ok := s.local.LocalPathFor(chapter.ID); ok {
			src.Path = path
		}
	}

	s.update(func(st *State) {
		st.Loading = true
		st.ErrorKind = ErrorNone
		st.ErrorMessage = ""
	})

	prevIndex := st.ChapterIndex
	op := opqueue.Op{
		Name:  fmt.Sprintf("load chapter %d", index),
		Kind:  opqueue.KindLoad,
		Token: s.queue.NextLoadToken(),
		Run: func(ctx context.Context) error {
			if err := s.engine.Load(ctx, src); err != nil {
				return err
			}
			if autoplay {
				return s.engine.Play()
			}
			return nil
		},
	}
	s.submit(op, func() {
		s.detMu.Lock()
		s.detector.ResetFor(index)
		s.detMu.Unlock()
		s.update(func(st *State) {
			st.ChapterIndex = index
			st.Position = 0
			st.Duration = chapter.Duration
			st.Loading = false
			st.Playing = autoplay
		})
		item := s.Snapshot().Item
		s.publishChapter(ChapterChange{
			Item:          item,
			PreviousIndex: prevIndex,
			Index:         index,
			Chapter:       chapter,
		})
	})
}

func (s *serviceImpl) enqueueSeek(pos time.Duration) {
	s.submit(opqueue.Op{
		Name: string(errmsg.OpSeek),
		Kind: opqueue.KindSeek,
		Run:  func(context.Context) error { return s.engine.Seek(pos) },
	}, func() {
		s.update(func(st *State) { st.Position = pos })
		st := s.Snapshot()
		s.publishPosition(PositionChange{Position: st.Position, Duration: st.Duration})
	})
}

func (s *serviceImpl) enqueuePause(name errmsg.Op) {
	s.submit(opqueue.Op{
		Name: string(name),
		Kind: opqueue.KindPause,
		Run:  func(context.Context) error { return s.engine.Pause() },
	}, func() {
		s.update(func(st *State) { st.Playing = false })
		// Position is persisted immediately on pause.
		s.recordProgress()
	})
}

// --- Failure handling ---

// classify maps an operation error onto the user-facing taxonomy.
func classify(err error) (ErrorKind, string) {
	var netErr net.Error
	switch {
	case errors.Is(err, opqueue.ErrBreakerOpen):
		return ErrorPlaybackFailed, "playback service degraded, retry shortly"
	case errors.Is(err, engine.ErrSourceNotFound):
		return ErrorAudioNotFound, "audio not found or expired"
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr):
		return ErrorNetwork, "network problem, check your connection"
	default:
		return ErrorPlaybackFailed, "playback failed"
	}
}

// failOp records the failed operation for Retry and surfaces the error on
// the snapshot. Errors never propagate past the service as panics.
func (s *serviceImpl) failOp(op opqueue.Op, onSuccess func(), err error) {
	s.failedMu.Lock()
	s.lastFailed = &failedOp{op: op, onSuccess: onSuccess}
	s.failedMu.Unlock()

	kind, message := classify(err)
	s.logger.Warn("playback operation failed", "op", op.Name, "kind", kind.String(), "error", err)
	s.update(func(st *State) {
		st.ErrorKind = kind
		st.ErrorMessage = message
		st.Loading = false
	})
	s.publishError(ErrorEvent{Kind: kind, Operation: op.Name, Message: message, Err: err})
}

// failWith surfaces a failure that did not come through the queue.
func (s *serviceImpl) failWith(op errmsg.Op, kind ErrorKind, err error) {
	if kind == ErrorUnauthorized {
		s.update(func(st *State) {
			st.ErrorKind = ErrorUnauthorized
			st.ErrorMessage = "this chapter requires purchase or an active subscription"
		})
		s.publishError(ErrorEvent{Kind: kind, Operation: string(op), Err: err})
		return
	}
	s.logger.Warn("playback error", "op", string(op), "kind", kind.String(), "error", err)
	s.update(func(st *State) {
		st.ErrorKind = kind
		st.ErrorMessage = errmsg.Format(op, err)
		st.Loading = false
	})
	s.publishError(ErrorEvent{Kind: kind, Operation: string(op), Message: errmsg.Format(op, err), Err: err})
}

// --- Progress ---

func (s *serviceImpl) recordProgress() {
	if s.progressMgr == nil {
		return
	}
	st := s.Snapshot()
	if st.Item == nil {
		return
	}
	s.progressMgr.Record(progress.Snapshot{
		UserID:       s.userID,
		ItemID:       st.Item.ID,
		ChapterIndex: st.ChapterIndex,
		Position:     st.Position,
		Percent:      progress.Percent(st.Item.Chapters, st.ChapterIndex, st.Position, s.policy),
		DeviceID:     s.deviceID,
		UpdatedAt:    time.Now(),
	})
}

// --- Subscriptions ---

func (s *serviceImpl) Subscribe() *Subscription {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	sub := newSubscription()
	s.subs = append(s.subs, sub)
	return sub
}

// Unsubscribe detaches an observer so no events dangle into torn-down UI.
func (s *serviceImpl) Unsubscribe(sub *Subscription) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for i, existing := range s.subs {
		if existing == sub {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			sub.close()
			return
		}
	}
}

func (s *serviceImpl) publishState(e StateChange) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, sub := range s.subs {
		sub.sendState(e)
	}
}

func (s *serviceImpl) publishChapter(e ChapterChange) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, sub := range s.subs {
		sub.sendChapter(e)
	}
}

func (s *serviceImpl) publishPosition(e PositionChange) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, sub := range s.subs {
		sub.sendPosition(e)
	}
}

func (s *serviceImpl) publishError(e ErrorEvent) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, sub := range s.subs {
		sub.sendError(e)
	}
}

// --- Lifecycle ---

func (s *serviceImpl) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	close(s.done)

	if err := s.queue.Close(); err != nil {
		return err
	}

	// The closed queue has answered every pending result, so the drainer
	// finishes the buffered completions and exits.
	s.compMu.Lock()
	s.compClosed = true
	close(s.completions)
	s.compMu.Unlock()
	<-s.compDone

	s.subsMu.Lock()
	for _, sub := range s.subs {
		sub.close()
	}
	s.subs = nil
	s.subsMu.Unlock()
	return nil
}
