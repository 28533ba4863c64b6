// Package toolsurface implements the tool-dispatch surface the
// conversational front-end calls through: a closed set of named commands
// over the memory engine, wired over the retriever, sbire and store
// packages.
package toolsurface

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"memoire/internal/retriever"
	"memoire/internal/sbire"
	"memoire/internal/store"
)

// Command is a canonical tool name. Go has no closed string enum, so this
// follows the usual const-block-of-named-type convention.
type Command string

const (
	CmdSearchMemory    Command = "search_memory"
	CmdSearchFiles     Command = "search_files"
	CmdReadKnowledge   Command = "read_knowledge"
	CmdAppendKnowledge Command = "append_knowledge"
	CmdUpdateKnowledge Command = "update_knowledge"
	CmdExploreLinks    Command = "explore_links"
	CmdInspectMemory   Command = "inspect_memory"
)

// Commands lists every canonical command, in the order an unknown-command
// error should present them.
var Commands = []Command{
	CmdSearchMemory,
	CmdSearchFiles,
	CmdReadKnowledge,
	CmdAppendKnowledge,
	CmdUpdateKnowledge,
	CmdExploreLinks,
	CmdInspectMemory,
}

type aliasTarget struct {
	canonical Command
	defaults  map[string]any
}

// aliases maps alternate/deprecated names to a canonical command plus any
// parameter defaults the alias implies. search_recent_files and
// search_segments both alias search_files with scope="week".
var aliases = map[string]aliasTarget{
	"search_recent_files": {CmdSearchFiles, map[string]any{"scope": "week"}},
	"search_segments":     {CmdSearchFiles, map[string]any{"scope": "week"}},
}

// UnknownCommandError reports a dispatch name outside the closed
// enumeration, carrying the allowed set so the caller can self-correct.
type UnknownCommandError struct {
	Name    string
	Allowed []Command
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("toolsurface: unknown command %q (allowed: %v)", e.Name, e.Allowed)
}

// Response is the closed response envelope every command returns: a single
// flat shape with explicit status/error fields, shared across every
// command rather than a typed hierarchy per command.
type Response struct {
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

func errorResponse(err error) Response {
	return Response{Status: "error", Error: err.Error(), Timestamp: time.Now().UTC()}
}

func successResponse(data any) Response {
	return Response{Status: "success", Timestamp: time.Now().UTC(), Data: data}
}

// Dispatcher resolves a command name (or alias) and routes it to the
// matching handler. Every dependency is passed explicitly through the
// constructor rather than held as package-level mutable state.
type Dispatcher struct {
	retriever    *retriever.Retriever
	sb           *sbire.Sbire
	segments     *store.SegmentRepository
	edges        *store.EdgeRepository
	piliers      *store.PilierRepository
	textBaseDir  string
	knowledgeDir string
	log          *logrus.Logger
}

// New wires a Dispatcher over every store this tool surface reads or writes.
func New(
	r *retriever.Retriever,
	sb *sbire.Sbire,
	segments *store.SegmentRepository,
	edges *store.EdgeRepository,
	piliers *store.PilierRepository,
	textBaseDir, knowledgeDir string,
	log *logrus.Logger,
) *Dispatcher {
	return &Dispatcher{
		retriever:    r,
		sb:           sb,
		segments:     segments,
		edges:        edges,
		piliers:      piliers,
		textBaseDir:  textBaseDir,
		knowledgeDir: knowledgeDir,
		log:          log,
	}
}

// resolve maps a raw command name through the alias table to its canonical
// form plus any defaults the alias implies.
func resolve(name string) (Command, map[string]any, error) {
	for _, c := range Commands {
		if string(c) == name {
			return c, nil, nil
		}
	}
	if target, ok := aliases[name]; ok {
		return target.canonical, target.defaults, nil
	}
	return "", nil, &UnknownCommandError{Name: name, Allowed: Commands}
}

// Dispatch resolves name (or an alias of it) and runs the matching handler.
// params holds the command's named arguments; defaults implied by an alias
// are applied before the caller's own params, so an explicit param always
// wins.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, params map[string]any) Response {
	canonical, defaults, err := resolve(name)
	if err != nil {
		return errorResponse(err)
	}

	merged := map[string]any{}
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}

	switch canonical {
	case CmdSearchMemory:
		return d.searchMemory(ctx, merged)
	case CmdSearchFiles:
		return d.searchFiles(ctx, merged)
	case CmdReadKnowledge:
		return d.readKnowledge(merged)
	case CmdAppendKnowledge:
		return d.appendKnowledge(merged)
	case CmdUpdateKnowledge:
		return d.updateKnowledge(merged)
	case CmdExploreLinks:
		return d.exploreLinks(ctx, merged)
	case CmdInspectMemory:
		return d.inspectMemory(ctx, merged)
	default:
		return errorResponse(&UnknownCommandError{Name: name, Allowed: Commands})
	}
}

func paramString(p map[string]any, key, def string) string {
	if v, ok := p[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}

func paramInt(p map[string]any, key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

func paramBool(p map[string]any, key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

func paramStringSlice(p map[string]any, key string) []string {
	v, ok := p[key]
	if !ok {
		return nil
	}
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}
