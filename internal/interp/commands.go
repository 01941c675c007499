package interp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/tidwall/gjson"

	"github.com/dotcommander/kvsh/internal/models"
	"github.com/dotcommander/kvsh/internal/store"
)

type commandSpec struct {
	name    string
	aliases []string
	args    string
	summary string
	minArgs int
	maxArgs int // -1 = unbounded
	run     func(ctx context.Context, in *Interpreter, cmd Command) (Response, error)
}

func (s *commandSpec) usage() string {
	if s.args == "" {
		return s.name
	}
	return s.name + " " + s.args
}

func builtinCommands() []*commandSpec {
	return []*commandSpec{
		{name: "put", aliases: []string{"set"}, args: "<key> <value...>", summary: "store a value; extra words are joined with single spaces", minArgs: 2, maxArgs: -1, run: runPut},
		{name: "get", args: "<key> [json-path]", summary: "print a value, or the part of a JSON value at json-path", minArgs: 1, maxArgs: 2, run: runGet},
		{name: "delete", aliases: []string{"del", "rm"}, args: "<key>", summary: "remove a key", minArgs: 1, maxArgs: 1, run: runDelete},
		{name: "list", aliases: []string{"ls"}, args: "[prefix]", summary: "list key=value pairs, optionally under a key prefix", minArgs: 0, maxArgs: 1, run: runList},
		{name: "count", args: "[prefix]", summary: "count keys, optionally under a key prefix", minArgs: 0, maxArgs: 1, run: runCount},
		{name: "exists", args: "<key>", summary: "report whether a key is present", minArgs: 1, maxArgs: 1, run: runExists},
		{name: "use", args: "<namespace>", summary: "switch record commands to a namespace, creating it if needed", minArgs: 1, maxArgs: 1, run: runUse},
		{name: "tables", aliases: []string{"namespaces", "ns"}, summary: "list namespaces with their record counts; > marks the current one", minArgs: 0, maxArgs: 0, run: runTables},
		{name: "drop", args: "[namespace]", summary: "remove a namespace and all its records (default: the current one)", minArgs: 0, maxArgs: 1, run: runDrop},
		{name: "history", args: "[n]", summary: "show the last n commands", minArgs: 0, maxArgs: 1, run: runHistory},
		{name: "stats", summary: "show record, session and file sizes", minArgs: 0, maxArgs: 0, run: runStats},
		{name: "check", summary: "verify every value against its checksum", minArgs: 0, maxArgs: 0, run: runCheck},
		{name: "help", aliases: []string{"?"}, args: "[command]", summary: "list commands or describe one", minArgs: 0, maxArgs: 1, run: runHelp},
		{name: "quit", aliases: []string{"exit"}, summary: "end the session", minArgs: 0, maxArgs: 0, run: runQuit},
	}
}

func runPut(ctx context.Context, in *Interpreter, cmd Command) (Response, error) {
	key := cmd.Args[0]
	value := strings.Join(cmd.Args[1:], " ")

	created, err := in.store.Put(ctx, in.namespace, key, value)
	if err != nil {
		return Response{}, err
	}

	type resp struct {
		Key     string `json:"key"`
		Created bool   `json:"created"`
	}
	text := "OK"
	if !created {
		text = "OK (updated)"
	}
	return Response{Text: text, Data: resp{Key: key, Created: created}}, nil
}

type getResp struct {
	Key   string `json:"key"`
	Path  string `json:"path,omitempty"`
	Value any    `json:"value,omitempty"`
	Found bool   `json:"found"`
}

func runGet(ctx context.Context, in *Interpreter, cmd Command) (Response, error) {
	key, path := cmd.Arg(0), cmd.Arg(1)

	rec, err := in.store.Get(ctx, in.namespace, key)
	if errors.Is(err, store.ErrNotFound) {
		return notFound(key, path), nil
	}
	if err != nil {
		return Response{}, err
	}

	if path == "" {
		return Response{Text: rec.Value, Data: getResp{Key: key, Value: rec.Value, Found: true}}, nil
	}

	if !gjson.Valid(rec.Value) {
		return Response{}, &models.QueryError{Op: "get", Err: fmt.Errorf("%s: %w", key, store.ErrNotJSON)}
	}
	res := gjson.Get(rec.Value, path)
	if !res.Exists() {
		return notFound(key, path), nil
	}
	return Response{Text: res.String(), Data: getResp{Key: key, Path: path, Value: res.Value(), Found: true}}, nil
}

func notFound(key, path string) Response {
	text := "not found: " + key
	if path != "" {
		text += " " + path
	}
	return Response{Text: text, Data: getResp{Key: key, Path: path, Found: false}}
}

func runDelete(ctx context.Context, in *Interpreter, cmd Command) (Response, error) {
	key := cmd.Args[0]

	type resp struct {
		Key     string `json:"key"`
		Deleted bool   `json:"deleted"`
	}
	err := in.store.Delete(ctx, in.namespace, key)
	if errors.Is(err, store.ErrNotFound) {
		return Response{Text: "not found: " + key, Data: resp{Key: key}}, nil
	}
	if err != nil {
		return Response{}, err
	}
	return Response{Text: "deleted: " + key, Data: resp{Key: key, Deleted: true}}, nil
}

func runList(ctx context.Context, in *Interpreter, cmd Command) (Response, error) {
	prefix := cmd.Arg(0)

	// One extra row tells us whether the listing was cut short.
	limit := in.listLimit
	fetch := 0
	if limit > 0 {
		fetch = limit + 1
	}
	recs, err := in.store.List(ctx, in.namespace, prefix, fetch)
	if err != nil {
		return Response{}, err
	}
	truncated := limit > 0 && len(recs) > limit
	if truncated {
		recs = recs[:limit]
	}

	type pair struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	type resp struct {
		Prefix    string `json:"prefix,omitempty"`
		Records   []pair `json:"records"`
		Truncated bool   `json:"truncated,omitempty"`
	}

	data := resp{Prefix: prefix, Records: make([]pair, 0, len(recs)), Truncated: truncated}
	parts := make([]string, 0, len(recs)+1)
	for _, r := range recs {
		data.Records = append(data.Records, pair{Key: r.Key, Value: r.Value})
		parts = append(parts, quoteIfNeeded(r.Key)+"="+quoteIfNeeded(r.Value))
	}
	if len(parts) == 0 {
		return Response{Text: "(empty)", Data: data}, nil
	}
	if truncated {
		parts = append(parts, fmt.Sprintf("... (first %d shown)", limit))
	}
	return Response{Text: strings.Join(parts, " "), Data: data}, nil
}

// quoteIfNeeded keeps list output to one line and unambiguous.
func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\r\n\"=\\") || !strconv.CanBackquote(s) {
		return strconv.Quote(s)
	}
	return s
}

func runCount(ctx context.Context, in *Interpreter, cmd Command) (Response, error) {
	prefix := cmd.Arg(0)
	n, err := in.store.Count(ctx, in.namespace, prefix)
	if err != nil {
		return Response{}, err
	}

	type resp struct {
		Prefix string `json:"prefix,omitempty"`
		Count  int64  `json:"count"`
	}
	return Response{Text: strconv.FormatInt(n, 10), Data: resp{Prefix: prefix, Count: n}}, nil
}

func runExists(ctx context.Context, in *Interpreter, cmd Command) (Response, error) {
	key := cmd.Args[0]
	ok, err := in.store.Exists(ctx, in.namespace, key)
	if err != nil {
		return Response{}, err
	}

	type resp struct {
		Key    string `json:"key"`
		Exists bool   `json:"exists"`
	}
	return Response{Text: strconv.FormatBool(ok), Data: resp{Key: key, Exists: ok}}, nil
}

func runUse(ctx context.Context, in *Interpreter, cmd Command) (Response, error) {
	ns := cmd.Args[0]
	if err := store.ValidateNamespace(ns); err != nil {
		return Response{}, models.NewParseError(cmd.Raw, "use: %v", err)
	}

	created, err := in.store.UseNamespace(ctx, ns)
	if err != nil {
		return Response{}, err
	}
	in.namespace = ns

	type resp struct {
		Namespace string `json:"namespace"`
		Created   bool   `json:"created"`
	}
	text := "using " + ns
	if created {
		text += " (new)"
	}
	return Response{Text: text, Data: resp{Namespace: ns, Created: created}}, nil
}

func runTables(ctx context.Context, in *Interpreter, _ Command) (Response, error) {
	infos, err := in.store.Namespaces(ctx)
	if err != nil {
		return Response{}, err
	}

	type entry struct {
		Name    string `json:"name"`
		Records int64  `json:"records"`
		Current bool   `json:"current,omitempty"`
	}
	type resp struct {
		Current    string  `json:"current"`
		Namespaces []entry `json:"namespaces"`
	}

	data := resp{Current: in.namespace, Namespaces: make([]entry, 0, len(infos)+1)}
	seen := false
	for _, info := range infos {
		cur := info.Name == in.namespace
		seen = seen || cur
		data.Namespaces = append(data.Namespaces, entry{Name: info.Name, Records: info.Records, Current: cur})
	}
	// The starting namespace is only created by its first write.
	if !seen {
		data.Namespaces = append(data.Namespaces, entry{Name: in.namespace, Current: true})
	}

	parts := make([]string, 0, len(data.Namespaces))
	for _, e := range data.Namespaces {
		mark := ""
		if e.Current {
			mark = "> "
		}
		parts = append(parts, fmt.Sprintf("%s%s: %d", mark, e.Name, e.Records))
	}
	return Response{Text: strings.Join(parts, "; "), Data: data}, nil
}

func runDrop(ctx context.Context, in *Interpreter, cmd Command) (Response, error) {
	ns := cmd.Arg(0)
	if ns == "" {
		ns = in.namespace
	}
	if err := store.ValidateNamespace(ns); err != nil {
		return Response{}, models.NewParseError(cmd.Raw, "drop: %v", err)
	}

	type resp struct {
		Namespace string `json:"namespace"`
		Dropped   bool   `json:"dropped"`
		Records   int64  `json:"records"`
		Current   string `json:"current"`
	}
	removed, err := in.store.DropNamespace(ctx, ns)
	if errors.Is(err, store.ErrNotFound) {
		return Response{Text: "not found: " + ns, Data: resp{Namespace: ns, Current: in.namespace}}, nil
	}
	if err != nil {
		return Response{}, err
	}

	text := fmt.Sprintf("dropped: %s (%s)", ns, plural(removed, "record"))
	if ns == in.namespace && ns != store.DefaultNamespace {
		in.namespace = store.DefaultNamespace
		text += ", now using " + store.DefaultNamespace
	}
	return Response{Text: text, Data: resp{Namespace: ns, Dropped: true, Records: removed, Current: in.namespace}}, nil
}

func plural(n int64, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.FormatInt(n, 10) + " " + noun + "s"
}

func runHistory(ctx context.Context, in *Interpreter, cmd Command) (Response, error) {
	limit := in.historyLimit
	if raw := cmd.Arg(0); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Response{}, models.NewParseError(cmd.Raw, "history: n must be a positive integer, got %q", raw)
		}
		limit = n
	}

	entries, err := in.store.History(ctx, limit)
	if err != nil {
		return Response{}, err
	}
	if len(entries) == 0 {
		return Response{Text: "(empty)", Data: entries}, nil
	}

	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		mark := ""
		if !e.OK {
			mark = " [failed]"
		}
		parts = append(parts, fmt.Sprintf("#%d %s%s (%s)", e.ID, e.Line, mark, humanize.Time(e.CreatedAt)))
	}
	return Response{Text: strings.Join(parts, "; "), Data: entries}, nil
}

func runStats(ctx context.Context, in *Interpreter, _ Command) (Response, error) {
	counts, err := in.store.GetStatusCounts(ctx)
	if err != nil {
		return Response{}, err
	}
	text := fmt.Sprintf("records=%d namespaces=%d values=%s sessions=%d commands=%d file=%s",
		counts.Records,
		counts.Namespaces,
		humanize.Bytes(uint64(max(counts.ValueBytes, 0))),
		counts.Sessions,
		counts.Commands,
		humanize.Bytes(uint64(max(counts.FileBytes, 0))),
	)
	return Response{Text: text, Data: counts}, nil
}

func runCheck(ctx context.Context, in *Interpreter, _ Command) (Response, error) {
	report, err := in.store.Verify(ctx)
	if err != nil {
		return Response{}, err
	}
	if report.OK() {
		return Response{Text: fmt.Sprintf("ok: %d records verified", report.Checked), Data: report}, nil
	}
	text := fmt.Sprintf("corrupt: %s (%d of %d records)", strings.Join(report.Corrupt, ", "), len(report.Corrupt), report.Checked)
	return Response{Text: text, Data: report}, nil
}

func runHelp(_ context.Context, in *Interpreter, cmd Command) (Response, error) {
	if name := cmd.Arg(0); name != "" {
		usage, ok := in.Usage(name)
		if !ok {
			return Response{}, models.NewParseError(cmd.Raw, "unknown command %q", name)
		}
		return Response{Text: usage, Data: map[string]string{"usage": usage}}, nil
	}
	names := in.Names()
	return Response{Text: "commands: " + strings.Join(names, ", "), Data: map[string][]string{"commands": names}}, nil
}

func runQuit(context.Context, *Interpreter, Command) (Response, error) {
	return Response{Text: "bye", Quit: true}, nil
}
