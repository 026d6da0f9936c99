// Package mcpserver exposes the store as Model Context Protocol tools so
// an agent can save, search, tag and inspect saved entities. Every tool is
// generated from a kind descriptor; each configured kind gets the same set.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/agentic-research/shelf/api"
	"github.com/agentic-research/shelf/internal/ingest"
	"github.com/agentic-research/shelf/internal/report"
	"github.com/agentic-research/shelf/internal/store"
	"github.com/agentic-research/shelf/internal/tags"
)

// listCap bounds how many entities a search result lists in full.
const listCap = 10

// tagCap bounds the tag vocabulary shown by the info tools.
const tagCap = 20

// Server holds the MCP server and its tool handlers.
type Server struct {
	mcp *server.MCPServer
	log *slog.Logger

	handlers map[string]server.ToolHandlerFunc
}

// New registers the tools for every collection in lib.
func New(lib *store.Library, version string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		mcp:      server.NewMCPServer("shelf", version, server.WithToolCapabilities(false), server.WithRecovery()),
		log:      log,
		handlers: make(map[string]server.ToolHandlerFunc),
	}
	for _, c := range lib.Collections() {
		s.register(c)
	}
	return s
}

// ServeStdio serves MCP over stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	s.log.Info("serving MCP over stdio", "tools", len(s.handlers))
	return server.ServeStdio(s.mcp)
}

// Tools returns the registered tool names, sorted.
func (s *Server) Tools() []string {
	names := make([]string, 0, len(s.handlers))
	for n := range s.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *Server) add(tool mcp.Tool, h server.ToolHandlerFunc) {
	s.handlers[tool.Name] = h
	s.mcp.AddTool(tool, h)
}

func (s *Server) register(c *store.Collection) {
	k := c.Kind
	s.add(saveTool(k), s.save(c))
	s.add(findTool(k), s.find(c))
	s.add(tagTool(k), s.tag(c))
	s.add(infoTool(k), s.info(c))
	s.add(getTool(k), s.get(c))
	s.add(deleteTool(k), s.remove(c))
}

func idParam(k *api.Kind) mcp.ToolOption {
	return mcp.WithString("id", mcp.Required(),
		mcp.Description(fmt.Sprintf("%s identifier: %s, or #<id> for the database id", k.Label(), strings.Join(k.NaturalKeys, " or "))))
}

func saveTool(k *api.Kind) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(fmt.Sprintf("Save %s to the local database. Duplicates (same %s) are skipped and never overwritten.",
			k.Plural, strings.Join(k.NaturalKeys, "/"))),
		mcp.WithString(k.Plural+"_json", mcp.Required(),
			mcp.Description(fmt.Sprintf("JSON array (or single object) of %s, usually from search results", k.Plural))),
		mcp.WithString("tags", mcp.Description("Comma-separated tags to attach to every saved item")),
		mcp.WithString("notes", mcp.Description("Notes to attach to every saved item")),
	}
	if k.HasStatus() {
		opts = append(opts, mcp.WithString("status", mcp.Enum(k.Statuses...),
			mcp.Description("Initial status (default "+k.DefaultStatus+")")))
	}
	for _, f := range k.Fields {
		if f.Default != nil {
			opts = append(opts, mcp.WithString(f.Name,
				mcp.Description(fmt.Sprintf("Value for %s when an item has none (default %v)", f.Name, f.Default))))
		}
	}
	return mcp.NewTool("save_"+k.Plural+"_to_db", opts...)
}

func findTool(k *api.Kind) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(fmt.Sprintf("Search saved %s in the local database.", k.Plural)),
		mcp.WithString("keywords", mcp.Description("Case-insensitive text matched against "+strings.Join(k.KeywordFields, ", "))),
		mcp.WithString("tags", mcp.Description(fmt.Sprintf("Comma-separated tags; %s must match", tagMatchWord(k)))),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default all)")),
	}
	for _, g := range k.Groups {
		opts = append(opts, mcp.WithString(g.Field, mcp.Description("Exact "+g.Field+" to match")))
	}
	opts = append(opts,
		mcp.WithString("range_field", mcp.Description("Numeric or date field to bound")),
		mcp.WithString("min", mcp.Description("Lower bound for range_field")),
		mcp.WithString("max", mcp.Description("Upper bound for range_field")),
	)
	return mcp.NewTool("find_saved_"+k.Plural, opts...)
}

func tagMatchWord(k *api.Kind) string {
	if k.TagMatch == api.MatchAny {
		return "any"
	}
	return "all"
}

func tagTool(k *api.Kind) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(fmt.Sprintf("Update the tags, notes or status of a saved %s.", k.Name)),
		idParam(k),
		mcp.WithString("tags", mcp.Description("Tag edit: +tag adds, -tag removes, plain tags replace the whole set")),
		mcp.WithString("notes", mcp.Description("Replacement notes")),
	}
	if k.HasStatus() {
		opts = append(opts, mcp.WithString("status", mcp.Enum(k.Statuses...), mcp.Description("New status")))
	}
	return mcp.NewTool("tag_saved_"+k.Name, opts...)
}

func infoTool(k *api.Kind) mcp.Tool {
	return mcp.NewTool("get_"+k.Name+"_database_info",
		mcp.WithDescription(fmt.Sprintf("Statistics about saved %s: totals, breakdowns and tags in use.", k.Plural)))
}

func getTool(k *api.Kind) mcp.Tool {
	return mcp.NewTool("get_saved_"+k.Name,
		mcp.WithDescription(fmt.Sprintf("Show one saved %s with all stored fields.", k.Name)),
		idParam(k))
}

func deleteTool(k *api.Kind) mcp.Tool {
	return mcp.NewTool("delete_saved_"+k.Name,
		mcp.WithDescription(fmt.Sprintf("Remove a saved %s from the local database.", k.Name)),
		idParam(k))
}

// failure turns an error into a tool-level error result; the protocol call
// itself succeeds.
func (s *Server) failure(tool string, err error) (*mcp.CallToolResult, error) {
	s.log.Warn("tool failed", "tool", tool, "err", err)
	return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
}

func (s *Server) save(c *store.Collection) server.ToolHandlerFunc {
	name := "save_" + c.Kind.Plural + "_to_db"
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString(c.Kind.Plural + "_json")
		if err != nil {
			return s.failure(name, err)
		}
		items, err := ingest.Parse([]byte(raw), ingest.JSON, ingest.DefaultSelector, c.Kind.Plural+"_json")
		if err != nil {
			return s.failure(name, err)
		}

		a := store.Annotation{
			Tags:   tags.SplitList(req.GetString("tags", "")),
			Notes:  req.GetString("notes", ""),
			Status: req.GetString("status", ""),
		}
		for _, f := range c.Kind.Fields {
			if v := req.GetString(f.Name, ""); f.Default != nil && v != "" {
				if a.Defaults == nil {
					a.Defaults = store.Record{}
				}
				a.Defaults[f.Name] = v
			}
		}

		res, err := ingest.Import(ctx, c, items, a)
		if err != nil {
			return s.failure(name, err)
		}
		var b strings.Builder
		b.WriteString(report.Saved(c.Kind, res))
		for _, f := range res.Failures {
			fmt.Fprintf(&b, "\n  %v", f.Err)
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func (s *Server) find(c *store.Collection) server.ToolHandlerFunc {
	name := "find_saved_" + c.Kind.Plural
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		f := store.Filter{
			Keywords: req.GetString("keywords", ""),
			Tags:     tags.SplitList(req.GetString("tags", "")),
			Limit:    req.GetInt("limit", 0),
			Equals:   map[string]any{},
		}
		for _, g := range c.Kind.Groups {
			if v := req.GetString(g.Field, ""); v != "" {
				f.Equals[g.Field] = v
			}
		}
		if field := req.GetString("range_field", ""); field != "" {
			r := store.Range{Field: field}
			if v := req.GetString("min", ""); v != "" {
				r.Min = v
			}
			if v := req.GetString("max", ""); v != "" {
				r.Max = v
			}
			f.Ranges = append(f.Ranges, r)
		}

		es, err := c.Search(ctx, f)
		if err != nil {
			return s.failure(name, err)
		}
		var b strings.Builder
		if err := report.List(&b, c.Kind, es, listCap); err != nil {
			return s.failure(name, err)
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func (s *Server) tag(c *store.Collection) server.ToolHandlerFunc {
	name := "tag_saved_" + c.Kind.Name
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return s.failure(name, err)
		}
		e := store.Edit{
			Tags:   tags.ParseEditSpec(req.GetString("tags", "")),
			Status: req.GetString("status", ""),
		}
		if notes := req.GetString("notes", ""); notes != "" {
			e.Notes = &notes
		}
		if e.IsZero() {
			return s.failure(name, errors.New("nothing to update: give tags, notes or status"))
		}

		ref := store.ParseRef(id)
		updated, err := c.Annotate(ctx, ref, e)
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("%s %s not found in database", c.Kind.Label(), ref)), nil
		}
		if err != nil {
			return s.failure(name, err)
		}
		msg := fmt.Sprintf("Updated %s %s with tags: %s", c.Kind.Name, ref, strings.Join(updated.Tags, ", "))
		if c.Kind.HasStatus() {
			msg += " (status: " + updated.Status + ")"
		}
		return mcp.NewToolResultText(msg), nil
	}
}

func (s *Server) info(c *store.Collection) server.ToolHandlerFunc {
	name := "get_" + c.Kind.Name + "_database_info"
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		st, err := c.Stats(ctx)
		if err != nil {
			return s.failure(name, err)
		}
		var b strings.Builder
		if err := report.Stats(&b, c.Kind, st, tagCap); err != nil {
			return s.failure(name, err)
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func (s *Server) get(c *store.Collection) server.ToolHandlerFunc {
	name := "get_saved_" + c.Kind.Name
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return s.failure(name, err)
		}
		ref := store.ParseRef(id)
		e, err := c.Get(ctx, ref)
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("%s %s not found in database", c.Kind.Label(), ref)), nil
		}
		if err != nil {
			return s.failure(name, err)
		}
		return mcp.NewToolResultText(report.EntityJSON(e)), nil
	}
}

func (s *Server) remove(c *store.Collection) server.ToolHandlerFunc {
	name := "delete_saved_" + c.Kind.Name
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return s.failure(name, err)
		}
		ref := store.ParseRef(id)
		if err := c.Delete(ctx, ref); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return mcp.NewToolResultError(fmt.Sprintf("%s %s not found in database", c.Kind.Label(), ref)), nil
			}
			return s.failure(name, err)
		}
		return mcp.NewToolResultText(fmt.Sprintf("Deleted %s %s", c.Kind.Name, ref)), nil
	}
}
