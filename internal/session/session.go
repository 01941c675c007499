// Package session runs the read-dispatch-respond loop over one store
// connection.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/dotcommander/kvsh/internal/interp"
	"github.com/dotcommander/kvsh/internal/models"
	"github.com/dotcommander/kvsh/internal/store"
)

// maxLineBytes bounds a single input line.
const maxLineBytes = 1024 * 1024

// Store is everything a session needs from storage. *store.Adapter
// satisfies it.
type Store interface {
	interp.Storage
	BeginSession(ctx context.Context) (string, error)
	RecordCommand(ctx context.Context, sessionID, line string, ok bool) error
	EndSession(ctx context.Context, sessionID string) error
	Close() error
}

// Session owns one open store for the length of one Run.
type Session struct {
	store       Store
	interp      *interp.Interpreter
	prompt      string
	interactive *bool
	history     bool
	format      interp.Format
	logger      *slog.Logger
	interpOpts  []interp.Option
	storeOpts   []store.Option

	id        string
	closeOnce sync.Once
	closeErr  error
}

// Option configures a Session.
type Option func(*Session)

// WithPrompt sets the prompt written before each read on a terminal.
func WithPrompt(p string) Option {
	return func(s *Session) { s.prompt = p }
}

// WithInteractive forces prompting on or off instead of detecting a terminal.
func WithInteractive(on bool) Option {
	return func(s *Session) { s.interactive = &on }
}

// WithHistory turns per-command history recording on or off.
func WithHistory(on bool) Option {
	return func(s *Session) { s.history = on }
}

// WithFormat selects text or JSON responses.
func WithFormat(f interp.Format) Option {
	return func(s *Session) { s.format = f }
}

// WithLogger sets the diagnostics logger. Responses never go to it.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithInterpreterOptions passes options through to the interpreter.
func WithInterpreterOptions(opts ...interp.Option) Option {
	return func(s *Session) { s.interpOpts = append(s.interpOpts, opts...) }
}

// WithStoreOptions passes options through to store.Open. Only Open uses them.
func WithStoreOptions(opts ...store.Option) Option {
	return func(s *Session) { s.storeOpts = append(s.storeOpts, opts...) }
}

// New builds a session over an already open store. The session takes
// ownership: Run and Close release it.
func New(st Store, opts ...Option) *Session {
	s := &Session{
		store:   st,
		prompt:  "kvsh> ",
		history: true,
		format:  interp.FormatText,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.interp = interp.New(st, s.interpOpts...)
	return s
}

// Open opens the store at path and builds a session over it. A failure is a
// *models.ConnectionError.
func Open(ctx context.Context, path string, opts ...Option) (*Session, error) {
	pending := &Session{}
	for _, opt := range opts {
		opt(pending)
	}
	st, err := store.Open(ctx, path, pending.storeOpts...)
	if err != nil {
		return nil, err
	}
	return New(st, opts...), nil
}

// ID returns the history session id, or "" when history is off or Run has
// not started.
func (s *Session) ID() string {
	return s.id
}

// Close ends the session record and releases the store. Calling it again has
// no further effect.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.id != "" {
			// Teardown runs even after the caller's context is cancelled.
			if err := s.store.EndSession(context.Background(), s.id); err != nil {
				s.logger.Warn("end session failed", "session_id", s.id, "error", err)
			}
		}
		s.closeErr = s.store.Close()
	})
	return s.closeErr
}

type lineMsg struct {
	line string
	err  error
	eof  bool
}

// Run reads lines from in until end of input, quit, a fatal error or ctx
// cancellation, writing one response line to out per input line. Parse and
// query errors are reported and the loop continues. The store is closed
// before Run returns, on every path.
//
// Run returns nil on end of input or quit, a *models.ConnectionError when the
// store became unusable, ctx.Err() on cancellation, or a read/write error.
func (s *Session) Run(ctx context.Context, in io.Reader, out io.Writer) (err error) {
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close store: %w", cerr)
		}
	}()

	if s.history {
		id, berr := s.store.BeginSession(ctx)
		switch {
		case berr == nil:
			s.id = id
		case models.IsFatal(berr):
			return berr
		default:
			s.logger.Warn("history disabled: begin session failed", "error", berr)
		}
	}
	s.logger.Debug("session started", "session_id", s.id, "format", s.format.String())

	interactive := s.isInteractive(in)
	lines, stop := readLines(in)
	defer stop()

	for {
		if interactive {
			if _, werr := io.WriteString(out, s.currentPrompt()); werr != nil {
				return fmt.Errorf("write prompt: %w", werr)
			}
		}

		var msg lineMsg
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg = <-lines:
		}

		if msg.eof {
			if interactive {
				// Leave the terminal on a fresh line after ^D.
				_, _ = io.WriteString(out, "\n")
			}
			s.logger.Debug("session ended", "session_id", s.id, "reason", "eof")
			return nil
		}
		if msg.err != nil {
			return fmt.Errorf("read input: %w", msg.err)
		}

		quit, derr := s.dispatch(ctx, msg.line, out)
		if derr != nil {
			return derr
		}
		if quit {
			s.logger.Debug("session ended", "session_id", s.id, "reason", "quit")
			return nil
		}
	}
}

// currentPrompt prefixes the prompt with the namespace once the session has
// left the default one.
func (s *Session) currentPrompt() string {
	if ns := s.interp.Namespace(); ns != store.DefaultNamespace {
		return "(" + ns + ") " + s.prompt
	}
	return s.prompt
}

// dispatch runs one line and writes its response. It returns an error only
// when the session must end.
func (s *Session) dispatch(ctx context.Context, line string, out io.Writer) (bool, error) {
	resp, err := s.interp.Interpret(ctx, line)

	if _, werr := fmt.Fprintln(out, interp.Render(s.format, resp, err)); werr != nil {
		return false, fmt.Errorf("write response: %w", werr)
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return false, err
		}
		if models.IsFatal(err) {
			s.logger.Error("store unavailable", "error", err)
			return false, err
		}
		s.logger.Debug("command failed", "line", line, "error", err)
	}

	s.record(ctx, line, err == nil)
	return resp.Quit, nil
}

// record appends line to history. Failures are logged, never shown as a
// command response.
func (s *Session) record(ctx context.Context, line string, ok bool) {
	if s.id == "" || strings.TrimSpace(line) == "" {
		return
	}
	if err := s.store.RecordCommand(ctx, s.id, line, ok); err != nil {
		s.logger.Warn("record history failed", "error", err)
	}
}

func (s *Session) isInteractive(in io.Reader) bool {
	if s.interactive != nil {
		return *s.interactive
	}
	f, ok := in.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// readLines scans in on its own goroutine so a blocked read never holds up
// cancellation. The returned stop function releases the goroutine once it
// next tries to send; a read already blocked in the kernel stays blocked
// until input arrives or the process exits.
func readLines(in io.Reader) (<-chan lineMsg, func()) {
	lines := make(chan lineMsg)
	done := make(chan struct{})

	go func() {
		send := func(m lineMsg) bool {
			select {
			case lines <- m:
				return true
			case <-done:
				return false
			}
		}

		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for sc.Scan() {
			if !send(lineMsg{line: strings.TrimSuffix(sc.Text(), "\r")}) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			send(lineMsg{err: err})
			return
		}
		send(lineMsg{eof: true})
	}()

	var once sync.Once
	return lines, func() { once.Do(func() { close(done) }) }
}
