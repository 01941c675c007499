// Package interp turns one line of input into one storage operation and one
// line of output.
package interp

import (
	"context"
	"errors"
	"strings"

	"github.com/dotcommander/kvsh/internal/models"
	"github.com/dotcommander/kvsh/internal/store"
)

// Storage is the store surface the interpreter dispatches to.
// *store.Adapter satisfies it.
type Storage interface {
	Put(ctx context.Context, ns, key, value string) (bool, error)
	Get(ctx context.Context, ns, key string) (models.Record, error)
	Delete(ctx context.Context, ns, key string) error
	Exists(ctx context.Context, ns, key string) (bool, error)
	List(ctx context.Context, ns, prefix string, limit int) ([]models.Record, error)
	Count(ctx context.Context, ns, prefix string) (int64, error)
	UseNamespace(ctx context.Context, ns string) (bool, error)
	Namespaces(ctx context.Context) ([]store.NamespaceInfo, error)
	DropNamespace(ctx context.Context, ns string) (int64, error)
	History(ctx context.Context, limit int) ([]models.HistoryEntry, error)
	GetStatusCounts(ctx context.Context) (*store.StatusCounts, error)
	Verify(ctx context.Context) (store.VerifyReport, error)
}

// Response is the result of one command. Text is the single line shown in
// text mode; Data is what JSON mode encodes.
type Response struct {
	Text string
	Data any
	Quit bool
}

// Interpreter maps commands onto Storage operations. Record commands act on
// the current namespace, which use and drop change.
type Interpreter struct {
	store        Storage
	namespace    string
	listLimit    int
	historyLimit int
	commands     []*commandSpec
	lookup       map[string]*commandSpec
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithListLimit caps how many records list returns. Zero or less means no cap.
func WithListLimit(n int) Option {
	return func(in *Interpreter) {
		in.listLimit = n
	}
}

// WithHistoryLimit sets how many entries history shows without an argument.
func WithHistoryLimit(n int) Option {
	return func(in *Interpreter) {
		if n > 0 {
			in.historyLimit = n
		}
	}
}

// WithNamespace sets the namespace record commands start in. The name is
// checked when the first command uses it.
func WithNamespace(ns string) Option {
	return func(in *Interpreter) {
		if ns != "" {
			in.namespace = ns
		}
	}
}

// New builds an Interpreter over s.
func New(s Storage, opts ...Option) *Interpreter {
	in := &Interpreter{
		store:        s,
		namespace:    store.DefaultNamespace,
		listLimit:    1000,
		historyLimit: 10,
	}
	for _, opt := range opts {
		opt(in)
	}
	in.commands = builtinCommands()
	in.lookup = make(map[string]*commandSpec, len(in.commands)*2)
	for _, spec := range in.commands {
		in.lookup[spec.name] = spec
		for _, alias := range spec.aliases {
			in.lookup[alias] = spec
		}
	}
	return in
}

// Interpret parses line and runs it. Errors are one of *models.ParseError,
// *models.QueryError or *models.ConnectionError, or the context's error.
func (in *Interpreter) Interpret(ctx context.Context, line string) (Response, error) {
	cmd, spec, err := in.Parse(line)
	if err != nil {
		return Response{}, err
	}

	resp, err := spec.run(ctx, in, cmd)
	if err != nil {
		return Response{}, normalizeError(cmd.Name, err)
	}
	return resp, nil
}

// normalizeError keeps every failure inside the session error taxonomy.
func normalizeError(op string, err error) error {
	switch {
	case errors.Is(err, models.ErrParse),
		errors.Is(err, models.ErrQuery),
		errors.Is(err, models.ErrConnection),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return &models.QueryError{Op: op, Err: err}
	}
}

// Namespace returns the namespace record commands currently act on.
func (in *Interpreter) Namespace() string {
	return in.namespace
}

// Names lists the canonical command names in help order.
func (in *Interpreter) Names() []string {
	names := make([]string, 0, len(in.commands))
	for _, spec := range in.commands {
		names = append(names, spec.name)
	}
	return names
}

// Usage returns the one-line usage for a command name or alias.
func (in *Interpreter) Usage(name string) (string, bool) {
	spec, ok := in.lookup[strings.ToLower(name)]
	if !ok {
		return "", false
	}
	return spec.usage() + " - " + spec.summary, true
}
