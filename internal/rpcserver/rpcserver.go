// Package rpcserver implements the line-delimited JSON-RPC-over-stdio
// tool interface: one request per line in, one pretty-printed JSON text
// response per line out, matching the protocol an editor or agent harness
// speaks to a local tool process.
package rpcserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"sync"

	"golang.org/x/time/rate"

	"github.com/attention-matters/am/internal/logger"
	"github.com/attention-matters/am/internal/manifold"
	"github.com/attention-matters/am/internal/query"
	"github.com/attention-matters/am/internal/store"
	"github.com/attention-matters/am/internal/surface"
	"github.com/attention-matters/am/internal/tokenize"
	"github.com/attention-matters/am/internal/wire"
)

// Request is one line of the stdio protocol: a tool name and its
// arguments, passed through untyped so each handler decodes its own
// shape. "initialize" and "initialized" are handled before any tool
// dispatch and never reach a tool handler.
type Request struct {
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args"`
}

// contentBlock is a single text content block, the unit every tool
// response and the initialize handshake reply are wrapped in.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Response wraps a successful result or an error message, never both. A
// successful result is always exactly one pretty-printed JSON text
// content block.
type Response struct {
	Content []contentBlock `json:"content,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func textResponse(v any) (Response, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return Response{}, err
	}
	return Response{Content: []contentBlock{{Type: "text", Text: string(data)}}}, nil
}

// serverName, serverVersion, and instructions describe this tool server
// during the initialize handshake, mirroring the rmcp ServerInfo the
// original Rust implementation returns from get_info().
const (
	serverName    = "attention-matters"
	serverVersion = "1"
	instructions  = "Geometric associative memory tool server. Query memories, " +
		"strengthen connections, mark salient insights, buffer conversations, " +
		"ingest documents, and manage state."
)

// Server holds one mutex-guarded system and the store it persists to. All
// tool handlers run with the mutex held; the pipeline itself is not
// safe for concurrent mutation.
type Server struct {
	mu          sync.Mutex
	system      *manifold.System
	brain       *store.BrainStore
	rng         *rand.Rand
	limiter     *rate.Limiter
	initialized bool
}

// New builds a server over an already-open brain store, loading its
// current system into memory.
func New(brain *store.BrainStore) (*Server, error) {
	sys, err := brain.LoadSystem()
	if err != nil {
		return nil, fmt.Errorf("load system: %w", err)
	}
	return &Server{
		system:  sys,
		brain:   brain,
		rng:     rand.New(rand.NewSource(1)),
		limiter: rate.NewLimiter(rate.Limit(50), 10),
	}, nil
}

// Serve reads one JSON request per line from r and writes one JSON
// response per line to w, until r is exhausted or ctx is canceled.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		var req Request
		resp := Response{}
		if err := json.Unmarshal(line, &req); err != nil {
			resp.Error = fmt.Sprintf("invalid request: %v", err)
		} else {
			result, err := s.dispatch(req)
			if err != nil {
				resp.Error = err.Error()
			} else {
				wrapped, err := textResponse(result)
				if err != nil {
					resp.Error = err.Error()
				} else {
					resp = wrapped
				}
			}
		}

		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
	}
	return scanner.Err()
}

// dispatch handles the initialize/initialized handshake and, once
// initialized, routes tool calls. A tool call before initialize is
// rejected, matching the handshake spec.md §6 requires.
func (s *Server) dispatch(req Request) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.Tool {
	case "initialize":
		s.initialized = true
		return map[string]any{
			"name":         serverName,
			"version":      serverVersion,
			"instructions": instructions,
			"capabilities": map[string]any{"tools": true},
		}, nil
	case "initialized":
		if !s.initialized {
			return nil, fmt.Errorf("initialized received before initialize")
		}
		return map[string]any{"ok": true}, nil
	}

	if !s.initialized {
		return nil, fmt.Errorf("tool %q called before initialize handshake", req.Tool)
	}

	switch req.Tool {
	case "am_query":
		return s.amQuery(req.Args)
	case "am_activate_response":
		return s.amActivateResponse(req.Args)
	case "am_salient":
		return s.amSalient(req.Args)
	case "am_buffer":
		return s.amBuffer(req.Args)
	case "am_ingest":
		return s.amIngest(req.Args)
	case "am_stats":
		return s.amStats()
	case "am_export":
		return s.amExport()
	case "am_import":
		return s.amImport(req.Args)
	default:
		return nil, fmt.Errorf("unknown tool %q", req.Tool)
	}
}

func (s *Server) statsJSON() map[string]any {
	return map[string]any{
		"n":         s.system.N(),
		"episodes":  len(s.system.Episodes),
		"conscious": len(s.system.ConsciousEpisode.Neighborhoods),
	}
}

func (s *Server) persist() {
	if err := s.brain.SaveSystem(s.system); err != nil {
		logger.Error("failed to persist system", "error", err)
	}
}

type queryArgs struct {
	Text string `json:"text"`
}

func (s *Server) amQuery(raw json.RawMessage) (any, error) {
	var args queryArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}

	result := query.ProcessQuery(s.system, args.Text)
	surfaced := surface.ComputeSurface(s.system, result)
	composed := surface.ComposeFixed(s.system, surfaced, result)
	s.persist()

	return map[string]any{
		"context": composed.Context,
		"metrics": map[string]any{
			"conscious":    composed.Metrics.Conscious,
			"subconscious": composed.Metrics.Subconscious,
			"novel":        composed.Metrics.Novel,
		},
		"stats": s.statsJSON(),
	}, nil
}

type activateResponseArgs struct {
	Text string `json:"text"`
}

func (s *Server) amActivateResponse(raw json.RawMessage) (any, error) {
	var args activateResponseArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}

	activation := query.ActivateResponse(s.system, args.Text)
	s.persist()

	return map[string]any{
		"activated": len(activation.Subconscious) + len(activation.Conscious),
		"stats":     s.statsJSON(),
	}, nil
}

type salientArgs struct {
	Text string `json:"text"`
}

func (s *Server) amSalient(raw json.RawMessage) (any, error) {
	var args salientArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}

	stored := surface.ExtractSalient(args.Text, func(content string) {
		s.system.AddToConscious(tokenize.Tokenize(content), content, s.rng)
	})
	if stored == 0 {
		if _, err := s.brain.MarkSalient(s.system, args.Text, s.rng); err != nil {
			return nil, err
		}
		stored = 1
	} else {
		s.persist()
	}

	return map[string]any{
		"stored": stored,
		"stats":  s.statsJSON(),
	}, nil
}

type bufferArgs struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

func (s *Server) amBuffer(raw json.RawMessage) (any, error) {
	var args bufferArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}

	st := s.brain.Store()
	if err := st.AppendBuffer(args.User, args.Assistant); err != nil {
		return nil, err
	}
	count, err := st.BufferCount()
	if err != nil {
		return nil, err
	}

	var episodeCreated any
	if count >= store.BufferThreshold {
		drained, err := store.ConsolidateBuffer(st, s.system, s.rng)
		if err != nil {
			return nil, err
		}
		if drained {
			episodeCreated = "conversation"
			s.persist()
		}
	}

	return map[string]any{
		"buffer_size":     count,
		"episode_created": episodeCreated,
	}, nil
}

type ingestArgs struct {
	Text string  `json:"text"`
	Name *string `json:"name"`
}

func (s *Server) amIngest(raw json.RawMessage) (any, error) {
	var args ingestArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}

	name := "document"
	if args.Name != nil && *args.Name != "" {
		name = *args.Name
	}

	ep := tokenize.IngestText(args.Text, name, s.rng)
	occurrences := 0
	for _, n := range ep.Neighborhoods {
		occurrences += n.Count()
	}
	s.system.AddEpisode(ep)
	s.persist()

	return map[string]any{
		"episode":       ep.Name,
		"neighborhoods": len(ep.Neighborhoods),
		"occurrences":   occurrences,
	}, nil
}

func (s *Server) amStats() (any, error) {
	return s.statsJSON(), nil
}

func (s *Server) amExport() (any, error) {
	data, err := wire.Marshal(s.system)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage = data
	return raw, nil
}

type importArgs struct {
	State json.RawMessage `json:"state"`
}

func (s *Server) amImport(raw json.RawMessage) (any, error) {
	var args importArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}

	sys, err := wire.Unmarshal(args.State)
	if err != nil {
		return nil, fmt.Errorf("invalid state JSON: %w", err)
	}
	s.system = sys
	s.persist()

	return map[string]any{
		"imported": true,
		"stats":    s.statsJSON(),
	}, nil
}
