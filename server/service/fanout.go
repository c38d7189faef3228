package service

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultSendQueueSize = 64
	defaultWriteWait     = 10 * time.Second
)

// ErrViewerGone is returned when sending to a handle that is no longer
// registered.
var ErrViewerGone = errors.New("viewer is not registered")

// Conn is the part of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type ViewerHandle string

func NewViewerHandle() ViewerHandle {
	return ViewerHandle(uuid.New().String())
}

type frame struct {
	kind int
	data []byte
}

// Subscriber owns one connection's outbound queue and the goroutine that
// drains it. Only that goroutine writes to the connection.
type Subscriber struct {
	Handle ViewerHandle

	conn      Conn
	queue     chan frame
	done      chan struct{}
	closeOnce sync.Once
	final     []frame // written after the queue drains, set before done closes
	writeWait time.Duration
	logger    *zap.Logger
}

func (s *Subscriber) enqueue(f frame) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.queue <- f:
		return true
	default:
		return false
	}
}

func (s *Subscriber) close() {
	s.finish()
}

// finish stops the subscriber. Its writer drains the queue, writes final
// and closes the connection. Only the first call counts.
func (s *Subscriber) finish(final ...frame) {
	s.closeOnce.Do(func() {
		s.final = final
		close(s.done)
	})
}

func (s *Subscriber) writeLoop() {
	defer s.conn.Close()

	for {
		select {
		case f := <-s.queue:
			if err := s.write(f); err != nil {
				s.logger.Debug("write failed", zap.String("viewer", string(s.Handle)), zap.Error(err))
				s.close()
				return
			}
		case <-s.done:
			s.drain()
			return
		}
	}
}

func (s *Subscriber) drain() {
	for {
		select {
		case f := <-s.queue:
			if err := s.write(f); err != nil {
				return
			}
		default:
			for _, f := range s.final {
				if err := s.write(f); err != nil {
					return
				}
			}
			return
		}
	}
}

func (s *Subscriber) write(f frame) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(f.kind, f.data)
}

// Hub delivers every published event to every registered viewer. Viewers
// filter by game id on their side.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[ViewerHandle]*Subscriber

	queueSize int
	writeWait time.Duration
	metrics   *Metrics
	logger    *zap.Logger
}

func NewHub(queueSize int, writeWait time.Duration, metrics *Metrics, logger *zap.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = defaultSendQueueSize
	}
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subscribers: make(map[ViewerHandle]*Subscriber),
		queueSize:   queueSize,
		writeWait:   writeWait,
		metrics:     metrics,
		logger:      logger,
	}
}

// Register starts the writer for conn and returns its subscriber.
func (h *Hub) Register(conn Conn) *Subscriber {
	sub := &Subscriber{
		Handle:    NewViewerHandle(),
		conn:      conn,
		queue:     make(chan frame, h.queueSize),
		done:      make(chan struct{}),
		writeWait: h.writeWait,
		logger:    h.logger,
	}

	h.mu.Lock()
	h.subscribers[sub.Handle] = sub
	h.mu.Unlock()

	h.metrics.ViewerAdded()
	go sub.writeLoop()
	return sub
}

// Unregister removes the viewer and lets its writer flush and close the
// connection. Unknown handles are ignored.
func (h *Hub) Unregister(handle ViewerHandle) {
	h.remove(handle, nil)
}

// remove unregisters the viewer; final is written once its queue drains.
func (h *Hub) remove(handle ViewerHandle, final []frame) bool {
	h.mu.Lock()
	sub, ok := h.subscribers[handle]
	if ok {
		delete(h.subscribers, handle)
	}
	h.mu.Unlock()

	if ok {
		sub.finish(final...)
		h.metrics.ViewerRemoved()
	}
	return ok
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Publish never blocks: a viewer whose queue is full is dropped.
func (h *Hub) Publish(event Event) {
	data, err := event.ToJson()
	if err != nil {
		h.logger.Error("marshal event", zap.String("type", event.Type), zap.Error(err))
		return
	}
	f := frame{kind: websocket.TextMessage, data: data}

	var slow []ViewerHandle
	h.mu.RLock()
	for handle, sub := range h.subscribers {
		if !sub.enqueue(f) {
			slow = append(slow, handle)
		}
	}
	h.mu.RUnlock()

	for _, handle := range slow {
		h.logger.Warn("dropping slow viewer", zap.String("viewer", string(handle)), zap.Int64("gameId", event.GameID))
		h.metrics.BroadcastDrop()
		h.Unregister(handle)
	}
}

// Send queues event for one viewer only.
func (h *Hub) Send(handle ViewerHandle, event Event) error {
	data, err := event.ToJson()
	if err != nil {
		return err
	}
	return h.sendFrame(handle, frame{kind: websocket.TextMessage, data: data})
}

// Reject unregisters the viewer. Its writer sends event and a close frame
// carrying reason after whatever was already queued, even a full queue.
func (h *Hub) Reject(handle ViewerHandle, event Event, code int, reason string) {
	final := []frame{{kind: websocket.CloseMessage, data: websocket.FormatCloseMessage(code, reason)}}
	if data, err := event.ToJson(); err != nil {
		h.logger.Warn("reject notice", zap.String("viewer", string(handle)), zap.Error(err))
	} else {
		final = append([]frame{{kind: websocket.TextMessage, data: data}}, final...)
	}
	h.remove(handle, final)
}

// CloseAll unregisters every viewer with a going-away close frame.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	handles := make([]ViewerHandle, 0, len(h.subscribers))
	for handle := range h.subscribers {
		handles = append(handles, handle)
	}
	h.mu.RUnlock()

	closing := frame{kind: websocket.CloseMessage, data: websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown")}
	for _, handle := range handles {
		h.remove(handle, []frame{closing})
	}
}

func (h *Hub) sendFrame(handle ViewerHandle, f frame) error {
	h.mu.RLock()
	sub, ok := h.subscribers[handle]
	h.mu.RUnlock()
	if !ok {
		return ErrViewerGone
	}

	if !sub.enqueue(f) {
		h.metrics.BroadcastDrop()
		h.Unregister(handle)
		return ErrViewerGone
	}
	return nil
}
