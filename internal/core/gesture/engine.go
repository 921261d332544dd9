package gesture

import (
	"errors"
	"fmt"
	"sync"
)

const defaultQueueSize = 256

type itemKind int

const (
	itemEvent itemKind = iota
	itemAttach
	itemDetach
)

type item struct {
	kind   itemKind
	source string
	event  Event
	err    error
}

// Engine funnels events from every source into one classifier goroutine,
// which is the only writer of classifier state and of the sink. Events,
// attaches and detaches share one queue so a source's detach is never
// processed ahead of its last events.
type Engine struct {
	classifier Classifier
	sink       Sink
	logger     Logger

	items    chan item
	active   map[string]struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	runOnce  sync.Once
	err      error
}

func NewEngine(classifier Classifier, sink Sink, logger Logger) (*Engine, error) {
	if classifier == nil {
		return nil, fmt.Errorf("classifier is nil")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink is nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	return &Engine{
		classifier: classifier,
		sink:       sink,
		logger:     logger,
		items:      make(chan item, defaultQueueSize),
		active:     make(map[string]struct{}),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}, nil
}

// Start launches the dispatch goroutine. Sources must be attached first.
func (e *Engine) Start() {
	e.runOnce.Do(func() { go e.run() })
}

// Attach adds a source to the active set.
func (e *Engine) Attach(source string) bool {
	return e.enqueue(item{kind: itemAttach, source: source})
}

// Detach removes a source after its reader failed or stopped. Removing the
// last source ends dispatch with ErrNoSources.
func (e *Engine) Detach(source string, cause error) bool {
	return e.enqueue(item{kind: itemDetach, source: source, err: cause})
}

// Submit queues one event from source. It returns false once the engine is
// stopping, which tells the reader to exit.
func (e *Engine) Submit(source string, event Event) bool {
	return e.enqueue(item{kind: itemEvent, source: source, event: event})
}

func (e *Engine) enqueue(it item) bool {
	select {
	case <-e.stopCh:
		return false
	case <-e.doneCh:
		return false
	default:
	}
	select {
	case e.items <- it:
		return true
	case <-e.stopCh:
		return false
	case <-e.doneCh:
		return false
	}
}

// Done is closed when dispatch has ended, either by Stop or because no
// sources are left.
func (e *Engine) Done() <-chan struct{} { return e.doneCh }

// Err reports why dispatch ended on its own. It is nil after a Stop.
func (e *Engine) Err() error {
	select {
	case <-e.doneCh:
		return e.err
	default:
		return nil
	}
}

func (e *Engine) run() {
	defer close(e.doneCh)
	for {
		select {
		case <-e.stopCh:
			return
		case it := <-e.items:
			if e.dispatch(it) {
				return
			}
		}
	}
}

// dispatch applies one queued item and reports whether the loop must end.
func (e *Engine) dispatch(it item) bool {
	switch it.kind {
	case itemAttach:
		e.active[it.source] = struct{}{}
		e.logger.Debug("Source attached", "source", it.source, "active", len(e.active))
	case itemDetach:
		if _, ok := e.active[it.source]; !ok {
			return false
		}
		delete(e.active, it.source)
		e.logger.Warn("Source removed", "source", it.source, "err", it.err, "active", len(e.active))
		if len(e.active) == 0 {
			e.err = ErrNoSources
			return true
		}
	case itemEvent:
		if err := e.classifier.Handle(it.event); err != nil {
			e.logger.Warn("Event handling failed", "source", it.source, "type", it.event.Type, "code", it.event.Code, "err", err)
		}
	}
	return false
}

// Stop ends dispatch, releases every synthesized key still held and closes
// the sink. Only the first call does any work.
func (e *Engine) Stop() error {
	var err error
	e.stopOnce.Do(func() {
		close(e.stopCh)
		// Never started: nothing will close doneCh otherwise.
		e.runOnce.Do(func() { close(e.doneCh) })
		<-e.doneCh
		var errs []error
		if releaseErr := e.classifier.Release(); releaseErr != nil {
			errs = append(errs, fmt.Errorf("release held keys: %w", releaseErr))
		}
		if closeErr := e.sink.Close(); closeErr != nil {
			errs = append(errs, fmt.Errorf("close virtual device: %w", closeErr))
		}
		err = errors.Join(errs...)
	})
	return err
}
