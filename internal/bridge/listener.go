package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	gosync "sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/nhle/mailassist/internal/logging"
	"github.com/nhle/mailassist/internal/model"
)

// MessageTypeEmailData is the only bridge message type that carries a
// mail record.
const MessageTypeEmailData = "VSTO_EMAIL_DATA"

// maxLineBytes bounds one bridge message; mail bodies can be large.
const maxLineBytes = 4 << 20

// Message is the wire form of one bridge message.
type Message struct {
	Type    string  `json:"type"`
	Payload Payload `json:"payload"`
}

// Payload carries the currently open mail item.
type Payload struct {
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	SenderName  string `json:"senderName"`
	SenderEmail string `json:"senderEmail"`
}

// Record converts a payload to an EmailRecord, filling the same defaults
// the desktop plugin would show for missing fields.
func (p Payload) Record() model.EmailRecord {
	rec := model.EmailRecord{
		Subject:       p.Subject,
		Body:          p.Body,
		SenderName:    p.SenderName,
		SenderAddress: p.SenderEmail,
	}
	if rec.Subject == "" {
		rec.Subject = "No Subject"
	}
	if rec.SenderName == "" {
		rec.SenderName = "Unknown"
	}
	if rec.SenderAddress == "" {
		rec.SenderAddress = "unknown@example.com"
	}
	return rec
}

// UpdateMsg is a tea.Msg sent when a new record arrives on the bridge.
type UpdateMsg struct {
	Record model.EmailRecord
}

// Listener accepts bridge connections and feeds decoded records into a
// Store. It has an explicit lifecycle: New, Start, Close.
type Listener struct {
	store    *Store
	addr     string
	logger   *log.Logger
	updateCh chan UpdateMsg
	stopCh   chan struct{}

	mu       gosync.Mutex
	ln       net.Listener
	conns    map[net.Conn]struct{}
	wg       gosync.WaitGroup
	running  bool
	closed   bool
	closeErr error
}

// NewListener creates a listener bound to addr once started.
func NewListener(store *Store, addr string, logger *log.Logger) *Listener {
	return &Listener{
		store:    store,
		addr:     addr,
		logger:   logging.OrDefault(logger).With("component", "bridge"),
		updateCh: make(chan UpdateMsg, 16),
		stopCh:   make(chan struct{}),
		conns:    make(map[net.Conn]struct{}),
	}
}

// Start binds the listen address and begins accepting connections in the
// background. It returns once the socket is bound. The listener stops when
// ctx is cancelled or Close is called.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return errors.New("bridge listener already closed")
	}
	if l.running {
		return nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", l.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", l.addr, err)
	}
	l.ln = ln
	l.running = true
	l.logger.Info("bridge listening", "addr", ln.Addr().String())

	l.wg.Add(2)
	go func() {
		defer l.wg.Done()
		l.acceptLoop(ctx, ln)
	}()
	go func() {
		defer l.wg.Done()
		select {
		case <-ctx.Done():
			_ = l.Close()
		case <-l.stopCh:
		}
	}()

	return nil
}

// Addr returns the bound address, or nil before Start.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Close stops accepting and closes open connections. Call Wait to block
// until the handlers have exited. It is safe to call more than once.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return l.closeErr
	}
	l.closed = true
	close(l.stopCh)
	if l.ln != nil {
		if err := l.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			l.closeErr = err
		}
	}
	for c := range l.conns {
		c.Close()
	}
	l.mu.Unlock()

	return l.closeErr
}

// Wait blocks until every background goroutine has exited.
func (l *Listener) Wait() {
	l.wg.Wait()
}

func (l *Listener) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				l.logger.Error("accepting bridge connection", "err", err)
			}
			return
		}

		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			conn.Close()
			return
		}
		l.conns[conn] = struct{}{}
		l.wg.Add(1)
		l.mu.Unlock()

		go func() {
			defer l.wg.Done()
			defer func() {
				l.mu.Lock()
				delete(l.conns, conn)
				l.mu.Unlock()
				conn.Close()
			}()
			if err := l.Serve(ctx, conn); err != nil {
				l.logger.Warn("bridge connection ended", "remote", conn.RemoteAddr().String(), "err", err)
			}
		}()
	}
}

// Serve decodes newline-delimited bridge messages from r until EOF or ctx
// is cancelled. Malformed lines and unrecognised types are logged and
// skipped.
func (l *Listener) Serve(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			l.logger.Warn("skipping malformed bridge message", "err", err)
			continue
		}
		if msg.Type != MessageTypeEmailData {
			l.logger.Debug("ignoring bridge message", "type", msg.Type)
			continue
		}

		rec := msg.Payload.Record()
		l.store.Set(rec)
		l.logger.Info("received bridge record", "subject", rec.Subject)
		l.publish(UpdateMsg{Record: rec})
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("reading bridge stream: %w", err)
	}
	return nil
}

// publish sends an update without blocking.
func (l *Listener) publish(msg UpdateMsg) {
	select {
	case l.updateCh <- msg:
	default:
		// Drop if nobody is listening; the store already has the record.
	}
}

// WaitForNextUpdate returns a tea.Cmd that waits for the next bridge
// record. Call it again after handling an UpdateMsg to keep listening.
func (l *Listener) WaitForNextUpdate() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-l.updateCh
		if !ok {
			return nil
		}
		return msg
	}
}

// Push dials a running listener at addr and sends one record. It is the
// client half used by desktop plugins and the `bridge push` command.
func Push(ctx context.Context, addr string, p Payload) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dialing bridge %s: %w", addr, err)
	}
	defer conn.Close()

	data, err := json.Marshal(Message{Type: MessageTypeEmailData, Payload: p})
	if err != nil {
		return fmt.Errorf("encoding bridge message: %w", err)
	}
	data = append(data, '\n')

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("writing bridge message: %w", err)
	}
	return nil
}
