package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/ivengine/internal/model"
)

// ErrStreamClosed is returned when connecting a stream that was closed.
var ErrStreamClosed = errors.New("client: stream closed")

// Stream receives table changes over the engine's websocket.
type Stream struct {
	url    string
	logger *slog.Logger

	conn *websocket.Conn

	changes chan model.TableChange
	errors  chan error
	done    chan struct{}

	mu     sync.Mutex
	closed bool
}

// Stream creates an unconnected table change stream. bufferSize bounds
// the changes channel; changes arriving while it is full are dropped.
func (c *Client) Stream(bufferSize int) *Stream {
	if bufferSize < 1 {
		bufferSize = 256
	}
	url := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/ws/table"
	return &Stream{
		url:     url,
		logger:  c.logger,
		changes: make(chan model.TableChange, bufferSize),
		errors:  make(chan error, 1),
		done:    make(chan struct{}),
	}
}

// Connect establishes the websocket connection and starts reading.
func (s *Stream) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	s.conn = conn

	go s.readLoop()

	s.logger.Debug("table stream connected", "url", s.url)
	return nil
}

// Changes returns the channel of received changes. It is closed when
// the connection ends.
func (s *Stream) Changes() <-chan model.TableChange {
	return s.changes
}

// Errors returns a channel carrying the error that ended the stream.
// A normal close from the engine is not reported.
func (s *Stream) Errors() <-chan error {
	return s.errors
}

// Close gracefully closes the connection.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.mu.Unlock()

	close(s.done)

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return conn.Close()
	}
	return nil
}

// readLoop decodes changes until the connection ends.
func (s *Stream) readLoop() {
	defer close(s.changes)

	for {
		var change model.TableChange
		err := s.conn.ReadJSON(&change)
		if err != nil {
			select {
			case <-s.done:
				// Ignore errors after Close() is called
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					select {
					case s.errors <- err:
					default:
					}
				}
			}
			return
		}

		select {
		case s.changes <- change:
		case <-s.done:
			return
		default:
			s.logger.Warn("change buffer full, dropping change", "version", change.Version)
		}
	}
}
