package libsio

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
)

// realtimeClient implements Client over a TransportFactory. All state is
// guarded by mu; listeners are always invoked with mu released.
type realtimeClient struct {
	logger                      logger
	baseLogger                  logger // without the client's own fields, for the layers below it
	metrics                     Metrics
	clock                       clock
	factory                     TransportFactory
	backoff                     BackoffFunc
	maxAttempts                 int
	cancelReconnectOnDisconnect bool

	listeners *EventEmitterCallback[Topic, Event]

	mu        sync.Mutex
	ctx       context.Context
	state     State
	attempts  int
	gen       uint64 // bumped whenever the current transport is replaced or dropped on purpose
	transport Transport
	pending   timer
	timerSeq  uint64 // bumped whenever a pending reconnect is cancelled
	subs      topicSet
}

// NewClient returns a disconnected client. Call Connect to start it.
func NewClient(factory TransportFactory, opts ...Option) Client {
	return newRealtimeClient(factory, opts...)
}

func newRealtimeClient(factory TransportFactory, opts ...Option) *realtimeClient {
	c := &realtimeClient{
		logger:                      NewNopLogger(),
		metrics:                     nopMetrics{},
		clock:                       realClock{},
		factory:                     factory,
		backoff:                     LinearBackoff(DefaultReconnectDelay),
		maxAttempts:                 DefaultMaxReconnectAttempts,
		cancelReconnectOnDisconnect: true,
		listeners:                   NewEventEmitter[Topic, Event](),
		ctx:                         context.Background(),
		subs:                        newTopicSet(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseLogger = c.logger
	c.logger = c.logger.WithField("type", "realtime_client")
	return c
}

func (c *realtimeClient) Connect(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Infof("connecting (state %s)", c.state)
	c.stopPendingLocked()
	c.attempts = 0
	c.ctx = ctx
	c.dialLocked()
}

func (c *realtimeClient) Disconnect() {
	c.mu.Lock()
	c.gen++
	t := c.transport
	c.transport = nil
	wasConnected := c.state == StateConnected
	c.state = StateDisconnected
	if c.cancelReconnectOnDisconnect {
		c.stopPendingLocked()
	}
	if wasConnected {
		c.metrics.IncDisconnects()
		c.metrics.SetConnectionStatus(0)
	}
	c.mu.Unlock()

	if t == nil {
		return
	}

	t.Close()
	c.logger.Infof("disconnected manually")

	if wasConnected {
		c.dispatch(Event{Topic: TopicDisconnect, Data: emptyPayload})
	}
}

func (c *realtimeClient) Subscribe(topic Topic) error {
	if err := validateTopic(topic); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.subs.add(topic)
	c.sendDirectiveLocked(directiveSubscribe, topic)
	return nil
}

func (c *realtimeClient) Unsubscribe(topic Topic) error {
	if err := validateTopic(topic); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.subs.remove(topic) {
		return nil
	}
	c.sendDirectiveLocked(directiveUnsubscribe, topic)
	return nil
}

func (c *realtimeClient) On(topic Topic, l *EventListener) {
	c.listeners.On(topic, l)
}

func (c *realtimeClient) Off(topic Topic, l *EventListener) {
	c.listeners.Off(topic, l)
}

func (c *realtimeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateConnected
}

func (c *realtimeClient) currentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *realtimeClient) currentAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func validateTopic(topic Topic) error {
	if topic == "" {
		return errors.Wrap(ErrInvalidTopic, "topic must not be empty")
	}
	if topic.IsLifecycle() {
		return errors.Wrapf(ErrInvalidTopic, "%s is raised by the client, not the server", topic)
	}
	return nil
}

// sendDirectiveLocked announces a subscription change when connected. While
// disconnected the set alone changes and the next connection replays it.
func (c *realtimeClient) sendDirectiveLocked(name string, topic Topic) {
	if c.state != StateConnected || c.transport == nil {
		c.logger.Debugf("%s %s recorded while %s", name, topic, c.state)
		return
	}
	if err := c.transport.Emit(name, directive{Event: topic}); err != nil {
		c.logger.Warnf("cannot send %s for %s: %s", name, topic, err)
	}
}

// dialLocked replaces the current transport with a new attempt.
func (c *realtimeClient) dialLocked() {
	c.gen++
	gen := c.gen

	if prev := c.transport; prev != nil {
		c.transport = nil
		go prev.Close()
	}
	if c.state == StateConnected {
		c.metrics.SetConnectionStatus(0)
	}

	c.state = StateConnecting
	ctx := c.ctx
	t := c.factory(ctx, func(s Signal) {
		c.onSignal(gen, s)
	})
	c.transport = t

	go c.open(ctx, gen, t)
}

func (c *realtimeClient) open(ctx context.Context, gen uint64, t Transport) {
	err := t.Open(ctx)

	c.mu.Lock()
	if gen != c.gen {
		// Superseded by Connect or Disconnect while dialing.
		c.mu.Unlock()
		t.Close()
		return
	}

	if err != nil {
		c.transport = nil
		c.state = StateDisconnected
		c.metrics.IncConnectFailures()
		c.logger.Errorf("connection attempt failed: %s", err)

		events := []Event{{Topic: TopicConnectError, Data: emptyPayload, Err: err}}
		if ctx.Err() == nil {
			if e, gaveUp := c.retryLocked(err); gaveUp {
				events = append(events, e)
			}
		}
		c.mu.Unlock()

		c.dispatchAll(events)
		return
	}

	c.state = StateConnected
	c.attempts = 0
	c.metrics.IncConnections()
	c.metrics.SetConnectionStatus(1)
	topics := c.subs.list()
	c.logger.Infof("connected, replaying %d subscriptions", len(topics))
	for _, topic := range topics {
		if err := t.Emit(directiveSubscribe, directive{Event: topic}); err != nil {
			c.logger.Warnf("cannot replay subscription %s: %s", topic, err)
		}
	}
	c.mu.Unlock()

	c.dispatch(Event{Topic: TopicConnect, Data: emptyPayload})
	c.watch(gen, t)
}

// watch waits for the transport to go away and starts the retry policy when
// the loss was not requested.
func (c *realtimeClient) watch(gen uint64, t Transport) {
	<-t.CloseChan()
	reason := t.CloseErr()

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}

	c.transport = nil
	c.state = StateDisconnected
	c.metrics.IncDisconnects()
	c.metrics.SetConnectionStatus(0)

	events := []Event{{Topic: TopicDisconnect, Data: emptyPayload, Err: reason}}
	if c.ctx.Err() != nil {
		c.logger.Infof("connection closed: %s", c.ctx.Err())
	} else {
		c.logger.Warnf("connection lost: %s", errString(reason))
		if e, gaveUp := c.retryLocked(reason); gaveUp {
			events = append(events, e)
		}
	}
	c.mu.Unlock()

	c.dispatchAll(events)
}

// retryLocked schedules the next attempt or gives up. When it gives up it
// returns the event announcing it.
func (c *realtimeClient) retryLocked(cause error) (Event, bool) {
	if c.attempts >= c.maxAttempts {
		c.state = StateGivenUp
		c.metrics.IncRetriesExhausted()
		c.logger.Errorf("max reconnect attempts reached (%d), giving up", c.maxAttempts)
		return Event{
			Topic: TopicReconnectFailed,
			Data:  emptyPayload,
			Err:   errors.Wrapf(ErrRetriesExhausted, "after %d attempts, last error: %s", c.attempts, errString(cause)),
		}, true
	}

	c.attempts++
	delay := c.backoff(c.attempts)
	seq := c.timerSeq
	c.metrics.IncReconnectAttempts()
	c.logger.Infof("reconnect attempt %d/%d in %s", c.attempts, c.maxAttempts, delay)
	c.pending = c.clock.AfterFunc(delay, func() {
		c.reconnect(seq)
	})

	return Event{}, false
}

func (c *realtimeClient) reconnect(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.timerSeq {
		return
	}
	c.pending = nil
	if c.ctx.Err() != nil {
		return
	}

	c.logger.Infof("reconnecting (attempt %d/%d)", c.attempts, c.maxAttempts)
	c.dialLocked()
}

func (c *realtimeClient) stopPendingLocked() {
	c.timerSeq++
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

func (c *realtimeClient) isCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}

func (c *realtimeClient) onSignal(gen uint64, s Signal) {
	if !c.isCurrent(gen) {
		return
	}

	switch s.Name {
	case signalEvent:
		var env eventEnvelope
		if err := json.Unmarshal(s.Data, &env); err != nil || env.Type == "" {
			c.logger.Warnf("dropping malformed event envelope: %s", s.Data)
			return
		}
		if env.Type.IsLifecycle() {
			c.logger.Warnf("dropping server event using reserved topic %s", env.Type)
			return
		}
		c.logger.Debugf("event received: %s", env.Type)
		c.metrics.IncEvents(string(env.Type))
		c.dispatch(Event{Topic: env.Type, Data: env.Data})
	case signalConnected:
		var body struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(s.Data, &body)
		c.logger.Infof("server: %s", body.Message)
	case signalSubscribed, signalUnsubscribed:
		var d directive
		_ = json.Unmarshal(s.Data, &d)
		c.logger.Debugf("%s: %s", s.Name, d.Event)
	default:
		c.logger.Debugf("ignoring signal %s", s.Name)
	}
}

func (c *realtimeClient) dispatchAll(events []Event) {
	for _, e := range events {
		c.dispatch(e)
	}
}

func (c *realtimeClient) dispatch(e Event) {
	c.listeners.EmitEach(e.Topic, e, c.callListener)
}

func (c *realtimeClient) callListener(l *EventListener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorf("listener for %s panicked: %v", e.Topic, r)
		}
	}()
	l.call(e)
}
