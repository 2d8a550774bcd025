package playback

const eventBufferSize = 16

// Subscription provides event channels for one observer. Channels are
// buffered and sends never block; a slow observer misses intermediate
// events but always receives the latest eventually via StateChanged.
type Subscription struct {
	StateChanged    <-chan StateChange
	ChapterChanged  <-chan ChapterChange
	PositionChanged <-chan PositionChange
	Error           <-chan ErrorEvent
	Done            <-chan struct{}

	// Internal write channels
	stateCh    chan StateChange
	chapterCh  chan ChapterChange
	positionCh chan PositionChange
	errorCh    chan ErrorEvent
	doneCh     chan struct{}
}

// newSubscription creates a subscription with buffered channels.
func newSubscription() *Subscription {
	s := &Subscription{
		stateCh:    make(chan StateChange, eventBufferSize),
		chapterCh:  make(chan ChapterChange, eventBufferSize),
		positionCh: make(chan PositionChange, eventBufferSize),
		errorCh:    make(chan ErrorEvent, eventBufferSize),
		doneCh:     make(chan struct{}),
	}
	s.StateChanged = s.stateCh
	s.ChapterChanged = s.chapterCh
	s.PositionChanged = s.positionCh
	s.Error = s.errorCh
	s.Done = s.doneCh
	return s
}

// close signals the observer to stop by closing doneCh.
func (s *Subscription) close() {
	close(s.doneCh)
}

// sendState sends a state change event (non-blocking).
func (s *Subscription) sendState(e StateChange) {
	select {
	case s.stateCh <- e:
	default:
		// Drop if buffer full
	}
}

// sendChapter sends a chapter change event (non-blocking).
func (s *Subscription) sendChapter(e ChapterChange) {
	select {
	case s.chapterCh <- e:
	default:
	}
}

// sendPosition sends a position change event (non-blocking).
func (s *Subscription) sendPosition(e PositionChange) {
	select {
	case s.positionCh <- e:
	default:
	}
}

// sendError sends an error event (non-blocking).
func (s *Subscription) sendError(e ErrorEvent) {
	select {
	case s.errorCh <- e:
	default:
	}
}
