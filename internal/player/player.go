// Package player implements the single-owner event loop of spec.md §4.K:
// one goroutine that owns the Queue and the Library, receives Requests
// from connection handlers, dispatches to the audio facade, and replies.
//
// Grounded on the teacher's handler/service two-layer split
// (internal/radio/handler/*.go parses and validates a request,
// internal/radio/service/*.go holds the business logic it calls into);
// musingd collapses the split into Actor.dispatch, which routes each
// command to a cmd* method, since there is no longer an HTTP router to own
// the parsing half separately — spec.md §4.K describes exactly one layer.
package player

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/yumeno-dev/musingd/internal/audio/device"
	"github.com/yumeno-dev/musingd/internal/audio/facade"
	"github.com/yumeno-dev/musingd/internal/comparator"
	"github.com/yumeno-dev/musingd/internal/errkind"
	"github.com/yumeno-dev/musingd/internal/filter"
	"github.com/yumeno-dev/musingd/internal/library"
	"github.com/yumeno-dev/musingd/internal/protocol"
	"github.com/yumeno-dev/musingd/internal/queue"
	"github.com/yumeno-dev/musingd/internal/tag"
)

// Request is one command mailbox entry: its tokenized arguments (command
// name included as Args[0]) and a one-shot reply channel.
type Request struct {
	Args  []string
	Reply chan<- protocol.Reply
}

// Actor is the single-threaded dispatcher: it owns Library, Queue, and
// the audio Facade, and is the only goroutine allowed to mutate them
// (spec.md §3 ownership, §5 "the player actor serializes all state
// mutations").
type Actor struct {
	lib   *library.Index
	q     *queue.Queue
	audio *facade.Facade

	mailbox chan Request
}

// New constructs an Actor around the given library, queue, and facade.
func New(lib *library.Index, q *queue.Queue, audio *facade.Facade) *Actor {
	return &Actor{lib: lib, q: q, audio: audio, mailbox: make(chan Request, 32)}
}

// Mailbox returns the channel connection handlers send Requests on.
func (a *Actor) Mailbox() chan<- Request { return a.mailbox }

// Run is the cooperative event loop; it returns when ctx is cancelled,
// after draining the mailbox and stopping any active decoder (spec.md §5
// shutdown semantics).
func (a *Actor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			a.drainOnShutdown()
			_ = a.audio.Stop()
			return
		case req := <-a.mailbox:
			reply := a.dispatch(ctx, req.Args)
			req.Reply <- reply
		case ev := <-a.audio.Events():
			if ev.Kind == device.EventOver {
				a.handleSongEvent(ctx)
			}
		}
	}
}

func (a *Actor) drainOnShutdown() {
	for {
		select {
		case req := <-a.mailbox:
			req.Reply <- protocol.Err(string(errkind.Playback) + ": shutting down")
		default:
			return
		}
	}
}

// handleSongEvent advances the queue on Over (respecting shuffle) and
// either plays the next entry or transitions to Stopped — the
// generalization of the teacher's Broadcaster.Start "track ends -> fetch
// next from MasterPlaylist.Next()" loop, moved into the actor so queue
// mutation and audio control stay serialized (spec.md §4.K).
func (a *Actor) handleSongEvent(ctx context.Context) {
	entry, ok := a.q.MoveNext()
	if !ok {
		if err := a.audio.Stop(); err != nil {
			slog.Warn("stop after queue end failed", "error", err)
		}
		return
	}
	s, ok := a.lib.Lookup(entry.DBID)
	if !ok {
		slog.Warn("queue entry refers to a missing library row, skipping", "db_id", entry.DBID)
		a.handleSongEvent(ctx)
		return
	}
	if err := a.audio.Play(ctx, s.Ref()); err != nil {
		slog.Warn("auto-advance play failed", "error", err)
	}
}

// dispatch routes one tokenized command to its handler. args[0] is the
// command name; errors are converted to ERR replies here so they never
// unwind past the actor (spec.md §7).
func (a *Actor) dispatch(ctx context.Context, args []string) protocol.Reply {
	if len(args) == 0 {
		return protocol.Err(string(errkind.Syntax) + ": empty command")
	}
	cmd := args[0]
	rest := args[1:]

	var reply protocol.Reply
	var err error

	switch cmd {
	case "play":
		reply, err = a.cmdPlay(ctx, rest)
	case "pause":
		err = a.audio.Pause()
	case "resume":
		err = a.audio.Resume()
	case "toggle":
		err = a.audio.Toggle()
	case "stop":
		err = a.audio.Stop()
	case "next":
		reply, err = a.cmdNext(ctx)
	case "prev":
		reply, err = a.cmdPrev(ctx)
	case "seek":
		err = a.cmdSeek(rest)
	case "volume":
		reply, err = a.cmdVolume(rest)
	case "speed":
		reply, err = a.cmdSpeed(rest)
	case "gapless":
		reply = protocol.OK(map[string]any{"gapless": a.audio.ToggleGapless()})
	case "add":
		reply, err = a.cmdAdd(rest)
	case "remove":
		reply, err = a.cmdRemove(rest)
	case "clear":
		a.q.Clear()
		reply = protocol.OK(nil)
	case "random":
		reply = protocol.OK(map[string]any{"shuffling": a.q.ToggleShuffle()})
	case "queue":
		reply = a.cmdQueue()
	case "devices":
		reply = protocol.OK(map[string]any{"devices": a.audio.ListDevices()})
	case "enable":
		err = oneArg(rest, func(name string) error { return a.audio.EnableDevice(name) })
	case "disable":
		err = oneArg(rest, func(name string) error { return a.audio.DisableDevice(name) })
	case "metadata":
		reply, err = a.cmdMetadata(rest)
	case "select":
		reply, err = a.cmdSelect(rest)
	case "unique":
		reply, err = a.cmdUnique(rest)
	case "update":
		reply, err = a.cmdUpdate(ctx)
	case "reset":
		err = a.lib.Reset(ctx)
		if err == nil {
			a.q.Clear()
			reply = protocol.OK(nil)
		}
	default:
		err = errkind.Newf(errkind.Syntax, "unknown command: %s", cmd)
	}

	if err != nil {
		return protocol.Err(err.Error())
	}
	if reply.Status == "" {
		reply = protocol.OK(nil)
	}
	return reply
}

func oneArg(args []string, f func(string) error) error {
	if len(args) != 1 {
		return errkind.Newf(errkind.Syntax, "expected exactly one argument")
	}
	return f(args[0])
}

func (a *Actor) cmdPlay(ctx context.Context, args []string) (protocol.Reply, error) {
	if len(args) == 1 {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return protocol.Reply{}, errkind.Newf(errkind.Syntax, "bad queue_id: %s", args[0])
		}
		if !a.q.MoveTo(id) {
			return protocol.Reply{}, errkind.Newf(errkind.Syntax, "unknown queue_id: %d", id)
		}
	}
	entry, ok := a.q.Current()
	if !ok {
		entry, ok = a.q.MoveNext()
		if !ok {
			return protocol.Reply{}, errkind.Newf(errkind.Playback, "queue is empty")
		}
	}
	s, ok := a.lib.Lookup(entry.DBID)
	if !ok {
		return protocol.Reply{}, errkind.Newf(errkind.Database, "library row %d no longer exists", entry.DBID)
	}
	if err := a.audio.Play(ctx, s.Ref()); err != nil {
		return protocol.Reply{}, err
	}
	return protocol.OK(map[string]any{"queue_id": entry.QueueID, "db_id": entry.DBID}), nil
}

func (a *Actor) cmdNext(ctx context.Context) (protocol.Reply, error) {
	entry, ok := a.q.MoveNext()
	if !ok {
		_ = a.audio.Stop()
		return protocol.OK(nil), nil
	}
	s, ok := a.lib.Lookup(entry.DBID)
	if !ok {
		return protocol.Reply{}, errkind.Newf(errkind.Database, "library row %d no longer exists", entry.DBID)
	}
	if err := a.audio.Play(ctx, s.Ref()); err != nil {
		return protocol.Reply{}, err
	}
	return protocol.OK(map[string]any{"queue_id": entry.QueueID, "db_id": entry.DBID}), nil
}

func (a *Actor) cmdPrev(ctx context.Context) (protocol.Reply, error) {
	entry, ok := a.q.MovePrev()
	if !ok {
		_ = a.audio.Stop()
		return protocol.OK(nil), nil
	}
	s, ok := a.lib.Lookup(entry.DBID)
	if !ok {
		return protocol.Reply{}, errkind.Newf(errkind.Database, "library row %d no longer exists", entry.DBID)
	}
	if err := a.audio.Play(ctx, s.Ref()); err != nil {
		return protocol.Reply{}, err
	}
	return protocol.OK(map[string]any{"queue_id": entry.QueueID, "db_id": entry.DBID}), nil
}

func (a *Actor) cmdSeek(args []string) error {
	if len(args) != 1 {
		return errkind.Newf(errkind.Syntax, "seek requires exactly one ±seconds argument")
	}
	secs, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return errkind.Newf(errkind.Syntax, "bad seek offset: %s", args[0])
	}
	return a.audio.Seek(secs)
}

func (a *Actor) cmdVolume(args []string) (protocol.Reply, error) {
	if len(args) != 2 {
		return protocol.Reply{}, errkind.Newf(errkind.Syntax, "volume requires set|change <n>")
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return protocol.Reply{}, errkind.Newf(errkind.Syntax, "bad volume value: %s", args[1])
	}
	var v int
	switch args[0] {
	case "set":
		v = a.audio.SetVolume(n)
	case "change":
		v = a.audio.ChangeVolume(n)
	default:
		return protocol.Reply{}, errkind.Newf(errkind.Syntax, "volume subcommand must be set or change")
	}
	return protocol.OK(map[string]any{"volume": v}), nil
}

func (a *Actor) cmdSpeed(args []string) (protocol.Reply, error) {
	if len(args) != 1 {
		return protocol.Reply{}, errkind.Newf(errkind.Syntax, "speed requires exactly one argument")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return protocol.Reply{}, errkind.Newf(errkind.Syntax, "bad speed value: %s", args[0])
	}
	return protocol.OK(map[string]any{"speed": a.audio.SetSpeed(n)}), nil
}

func (a *Actor) cmdAdd(args []string) (protocol.Reply, error) {
	if len(args) != 1 {
		return protocol.Reply{}, errkind.Newf(errkind.Syntax, "add requires exactly one db_id")
	}
	id, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return protocol.Reply{}, errkind.Newf(errkind.Syntax, "bad db_id: %s", args[0])
	}
	if _, ok := a.lib.Lookup(uint32(id)); !ok {
		return protocol.Reply{}, errkind.Newf(errkind.Database, "no such library row: %d", id)
	}
	qid := a.q.Add(uint32(id), nil)
	return protocol.OK(map[string]any{"queue_id": qid}), nil
}

func (a *Actor) cmdRemove(args []string) (protocol.Reply, error) {
	if len(args) != 1 {
		return protocol.Reply{}, errkind.Newf(errkind.Syntax, "remove requires exactly one queue_id")
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return protocol.Reply{}, errkind.Newf(errkind.Syntax, "bad queue_id: %s", args[0])
	}
	removed, wasCurrent := a.q.Remove(id)
	if wasCurrent {
		_ = a.audio.Stop()
	}
	return protocol.OK(map[string]any{"removed": removed, "was_current": wasCurrent}), nil
}

func (a *Actor) cmdQueue() protocol.Reply {
	entries := a.q.Entries()
	items := make([]map[string]any, len(entries))
	for i, e := range entries {
		items[i] = map[string]any{"queue_id": e.QueueID, "db_id": e.DBID}
	}
	return protocol.OK(map[string]any{"entries": items, "shuffling": a.q.Shuffling()})
}

func (a *Actor) cmdMetadata(args []string) (protocol.Reply, error) {
	if len(args) != 2 {
		return protocol.Reply{}, errkind.Newf(errkind.Syntax, "metadata requires <ids> <tags>")
	}
	ids, err := parseUint32List(args[0])
	if err != nil {
		return protocol.Reply{}, err
	}
	tags, err := parseTagList(args[1])
	if err != nil {
		return protocol.Reply{}, err
	}
	rows := a.lib.Metadata(ids, tags)
	items := make([]map[string]any, len(rows))
	for i, row := range rows {
		m := make(map[string]any, len(row))
		for k, v := range row {
			if v == nil {
				m[k.String()] = nil
			} else {
				m[k.String()] = *v
			}
		}
		items[i] = m
	}
	return protocol.OK(map[string]any{"values": items}), nil
}

func (a *Actor) cmdSelect(args []string) (protocol.Reply, error) {
	var exprText string
	var sortArgs []string
	i := 0
	if len(args) > 0 && !isKeyword(args[0]) {
		exprText = args[0]
		i = 1
	}
	if i < len(args) && args[i] == "sort" {
		if i+1 >= len(args) {
			return protocol.Reply{}, errkind.Newf(errkind.Syntax, "sort requires a comma-separated tag list")
		}
		sortArgs = strings.Split(args[i+1], ",")
	}

	expr, err := filter.Compile(exprText)
	if err != nil {
		return protocol.Reply{}, errkind.Wrap(errkind.Syntax, err)
	}
	var cmps []comparator.Comparator
	if len(sortArgs) > 0 {
		cmps, err = comparator.ParseAll(strings.Join(sortArgs, ","))
		if err != nil {
			return protocol.Reply{}, errkind.Wrap(errkind.Syntax, err)
		}
	}
	ids := a.lib.Select(expr, cmps)
	return protocol.OK(map[string]any{"ids": ids}), nil
}

func isKeyword(s string) bool {
	return s == "sort" || s == "group"
}

func (a *Actor) cmdUnique(args []string) (protocol.Reply, error) {
	if len(args) == 0 {
		return protocol.Reply{}, errkind.Newf(errkind.Syntax, "unique requires a target tag")
	}
	target, err := tag.Lookup(args[0])
	if err != nil {
		return protocol.Reply{}, errkind.Wrap(errkind.Syntax, err)
	}

	rest := args[1:]
	var groupBy []tag.Key
	var exprText string
	i := 0
	if i < len(rest) && rest[i] == "group" {
		if i+1 >= len(rest) {
			return protocol.Reply{}, errkind.Newf(errkind.Syntax, "group requires a comma-separated tag list")
		}
		groupBy, err = parseTagList(rest[i+1])
		if err != nil {
			return protocol.Reply{}, err
		}
		i += 2
	}
	if i < len(rest) {
		exprText = rest[i]
	}

	expr, err := filter.Compile(exprText)
	if err != nil {
		return protocol.Reply{}, errkind.Wrap(errkind.Syntax, err)
	}

	rows := a.lib.Unique(target, groupBy, expr)
	items := make([]map[string]any, len(rows))
	for i, r := range rows {
		group := make(map[string]any, len(r.Group))
		for k, v := range r.Group {
			group[k.String()] = v
		}
		values := make([]any, len(r.Values))
		for j, v := range r.Values {
			if v == nil {
				values[j] = nil
			} else {
				values[j] = *v
			}
		}
		items[i] = map[string]any{"group": group, "values": values}
	}
	return protocol.OK(map[string]any{"values": items}), nil
}

func (a *Actor) cmdUpdate(ctx context.Context) (protocol.Reply, error) {
	n, err := a.lib.Update(ctx)
	if err != nil {
		return protocol.Reply{}, err
	}
	return protocol.OK(map[string]any{"new_files": n}), nil
}

func parseUint32List(s string) ([]uint32, error) {
	parts := strings.Split(s, ",")
	out := make([]uint32, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return nil, errkind.Newf(errkind.Syntax, "bad id: %s", p)
		}
		out[i] = uint32(n)
	}
	return out, nil
}

func parseTagList(s string) ([]tag.Key, error) {
	parts := strings.Split(s, ",")
	out := make([]tag.Key, len(parts))
	for i, p := range parts {
		k, err := tag.Lookup(strings.TrimSpace(p))
		if err != nil {
			return nil, errkind.Wrap(errkind.Syntax, err)
		}
		out[i] = k
	}
	return out, nil
}
