package animator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/springd/internal/core/events/bus"
	"github.com/zeusync/springd/internal/core/observability/log"
	"github.com/zeusync/springd/pkg/sequence"
	"github.com/zeusync/springd/pkg/spring"
)

// Event types published on the bus.
const (
	EventAdded   = "spring.added"
	EventRemoved = "spring.removed"
	EventMoving  = "spring.moving"
	EventSettled = "spring.settled"
)

const eventSource = "animator"

type ID = uuid.UUID

// Params are the construction parameters of one spring.
type Params struct {
	Stiffness float64
	Dampening float64
	// Precision is the linear settle threshold; zero keeps the library default.
	Precision float64
}

// Transition is the payload of every animator event.
type Transition struct {
	ID    ID           `json:"id"`
	Name  string       `json:"name,omitempty"`
	Value spring.Value `json:"value"`
	Frame uint64       `json:"frame"`
}

type entry struct {
	id      ID
	name    string
	spring  *spring.Spring
	settled bool
}

// Animator owns a set of springs and advances all of them once per Step.
// Springs are single-threaded; the animator's mutex serializes the frame
// clock with host calls arriving from other goroutines.
type Animator struct {
	mu      sync.Mutex
	springs map[ID]*entry
	byName  map[string]ID
	frame   uint64

	bus    bus.EventBus
	logger log.Log
}

func New(eventBus bus.EventBus, logger log.Log) *Animator {
	if logger == nil {
		logger = log.Nop()
	}
	return &Animator{
		springs: make(map[ID]*entry),
		byName:  make(map[string]ID),
		bus:     eventBus,
		logger:  logger.Named("animator"),
	}
}

// Add creates a spring at rest on initial. Name may be empty; non-empty
// names are unique.
func (a *Animator) Add(name string, p Params, initial spring.Value) (ID, error) {
	var opts []spring.Option
	if p.Precision > 0 {
		opts = append(opts, spring.WithPrecision(p.Precision))
	}
	s, err := spring.New(p.Stiffness, p.Dampening, initial, opts...)
	if err != nil {
		return uuid.Nil, err
	}

	a.mu.Lock()
	if name != "" {
		if _, taken := a.byName[name]; taken {
			a.mu.Unlock()
			return uuid.Nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
	}
	e := &entry{id: uuid.New(), name: name, spring: s, settled: true}
	a.springs[e.id] = e
	if name != "" {
		a.byName[name] = e.id
	}
	t := a.transitionLocked(e)
	a.mu.Unlock()

	a.logger.Debug("spring added",
		log.Stringer("id", e.id),
		log.String("name", name),
		log.Stringer("shape", s.Shape()),
	)
	a.publish(EventAdded, t)
	return e.id, nil
}

func (a *Animator) Remove(id ID) error {
	a.mu.Lock()
	e, ok := a.springs[id]
	if !ok {
		a.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSpringNotFound, id)
	}
	delete(a.springs, id)
	if e.name != "" {
		delete(a.byName, e.name)
	}
	t := a.transitionLocked(e)
	a.mu.Unlock()

	a.publish(EventRemoved, t)
	return nil
}

// SetDestination retargets a spring; see spring.Spring.SetDestination.
func (a *Animator) SetDestination(id ID, v spring.Value, animate bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.springs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSpringNotFound, id)
	}
	return e.spring.SetDestination(v, animate)
}

// Retune replaces a spring's stiffness and dampening without rebuilding it.
func (a *Animator) Retune(id ID, stiffness, dampening float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.springs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSpringNotFound, id)
	}
	if err := e.spring.SetParams(stiffness, dampening); err != nil {
		return err
	}
	a.logger.Debug("spring retuned",
		log.Stringer("id", id),
		log.String("name", e.name),
		log.Float64("stiffness", stiffness),
		log.Float64("dampening", dampening),
	)
	return nil
}

// Lookup resolves a spring name to its id.
func (a *Animator) Lookup(name string) (ID, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id, ok := a.byName[name]
	return id, ok
}

// Resolve accepts either a spring id or a spring name.
func (a *Animator) Resolve(ref string) (ID, error) {
	if id, ok := a.Lookup(ref); ok {
		return id, nil
	}
	id, err := uuid.Parse(ref)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrSpringNotFound, ref)
	}
	a.mu.Lock()
	_, ok := a.springs[id]
	a.mu.Unlock()
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrSpringNotFound, id)
	}
	return id, nil
}

func (a *Animator) Get(id ID) (Sample, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.springs[id]
	if !ok {
		return Sample{}, fmt.Errorf("%w: %s", ErrSpringNotFound, id)
	}
	return sampleOf(e), nil
}

func (a *Animator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.springs)
}

// Settled reports whether every spring is at its destination.
func (a *Animator) Settled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return sequence.FromMap(a.springs).All(func(e *entry) bool {
		return e.spring.IsAtDestination()
	})
}

// Step ticks every spring once and returns the resulting frame. Springs
// that started or stopped moving since the previous step are announced on
// the bus after the animator lock is released.
func (a *Animator) Step() Frame {
	a.mu.Lock()
	a.frame++
	var moving, settled []Transition
	for _, e := range a.springs {
		wasSettled := e.settled
		e.spring.Tick()
		e.settled = e.spring.IsAtDestination()
		switch {
		case wasSettled && !e.settled:
			moving = append(moving, a.transitionLocked(e))
		case !wasSettled && e.settled:
			settled = append(settled, a.transitionLocked(e))
		}
	}
	frame := a.frameLocked()
	a.mu.Unlock()

	for _, t := range moving {
		a.publish(EventMoving, t)
	}
	for _, t := range settled {
		a.logger.Debug("spring settled",
			log.Stringer("id", t.ID),
			log.String("name", t.Name),
			log.Uint64("frame", t.Frame),
		)
		a.publish(EventSettled, t)
	}
	return frame
}

// Snapshot returns the current frame without advancing it.
func (a *Animator) Snapshot() Frame {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frameLocked()
}

// Run steps the animator every interval until ctx is done, handing each
// frame to sink when it is non-nil.
func (a *Animator) Run(ctx context.Context, interval time.Duration, sink func(Frame)) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.logger.Info("frame clock started", log.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("frame clock stopped", log.Uint64("frame", a.Snapshot().Seq))
			return nil
		case <-ticker.C:
			frame := a.Step()
			if sink != nil {
				sink(frame)
			}
		}
	}
}

func (a *Animator) frameLocked() Frame {
	samples := sequence.From(sequence.ToArray(sequence.FromMap(a.springs), sampleOf)).
		Sort(func(x, y Sample) bool {
			if x.Name != y.Name {
				return x.Name < y.Name
			}
			return x.ID.String() < y.ID.String()
		}).
		Collect()
	return newFrame(a.frame, samples)
}

func (a *Animator) transitionLocked(e *entry) Transition {
	return Transition{ID: e.id, Name: e.name, Value: e.spring.Current(), Frame: a.frame}
}

func (a *Animator) publish(eventType string, t Transition) {
	if a.bus == nil {
		return
	}
	if err := a.bus.Publish(bus.NewEvent(eventType, eventSource, t)); err != nil {
		a.logger.Warn("event handler failed", log.String("event", eventType), log.Error(err))
	}
}

func sampleOf(e *entry) Sample {
	return Sample{
		ID:          e.id,
		Name:        e.name,
		Value:       e.spring.Current(),
		Destination: e.spring.Destination(),
		Settled:     e.spring.IsAtDestination(),
	}
}
