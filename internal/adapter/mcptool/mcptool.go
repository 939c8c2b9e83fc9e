// Package mcptool bridges tools exposed by MCP servers into the local tool
// registry. Discovered tools are namespaced as server__tool and gated by a
// server-and-tool confirmation prompt.
package mcptool

import (
	"context"
	"fmt"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpprotocol "github.com/mark3labs/mcp-go/mcp"

	"github.com/kestrel-sh/kestrel/internal/bus"
	"github.com/kestrel-sh/kestrel/internal/domain/confirm"
	"github.com/kestrel-sh/kestrel/internal/domain/toolcall"
	"github.com/kestrel-sh/kestrel/internal/tools"
)

// Transport selects how to reach an MCP server.
type Transport string

const (
	TransportStdio          Transport = "stdio"
	TransportSSE            Transport = "sse"
	TransportStreamableHTTP Transport = "http"
)

// ServerDef describes one configured MCP server.
type ServerDef struct {
	Name      string            `yaml:"name"`
	Transport Transport         `yaml:"transport"`
	Command   string            `yaml:"command,omitempty"`
	Args      []string          `yaml:"args,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
	URL       string            `yaml:"url,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`
}

// Validate checks that the definition names a server and carries the fields
// its transport needs.
func (d *ServerDef) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("mcptool: server name is required")
	}
	switch d.Transport {
	case TransportStdio:
		if d.Command == "" {
			return fmt.Errorf("mcptool: server %q: stdio transport requires a command", d.Name)
		}
	case TransportSSE, TransportStreamableHTTP:
		if d.URL == "" {
			return fmt.Errorf("mcptool: server %q: %s transport requires a url", d.Name, d.Transport)
		}
	default:
		return fmt.Errorf("mcptool: server %q: unsupported transport %q", d.Name, d.Transport)
	}
	return nil
}

// caller is the slice of the mcp-go client used after the handshake.
type caller interface {
	CallTool(ctx context.Context, req mcpprotocol.CallToolRequest) (*mcpprotocol.CallToolResult, error)
}

// Connect performs the MCP handshake against def, lists the server's tools,
// and registers each one into reg under the name <server>__<tool>. The
// returned close function tears down the connection.
func Connect(ctx context.Context, def *ServerDef, reg *tools.Registry) (func() error, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	client, err := createClient(def)
	if err != nil {
		return nil, fmt.Errorf("mcptool: server %q: create client: %w", def.Name, err)
	}

	initReq := mcpprotocol.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpprotocol.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpprotocol.Implementation{
		Name:    "kestrel",
		Version: "1.0.0",
	}
	if _, err := client.Initialize(ctx, initReq); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("mcptool: server %q: initialize: %w", def.Name, err)
	}

	listed, err := client.ListTools(ctx, mcpprotocol.ListToolsRequest{})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("mcptool: server %q: tools/list: %w", def.Name, err)
	}

	for i := range listed.Tools {
		remote := &remoteTool{
			server:      def.Name,
			tool:        listed.Tools[i].Name,
			description: listed.Tools[i].Description,
			readOnly:    isReadOnly(&listed.Tools[i]),
			client:      client,
		}
		if err := reg.Register(remote); err != nil {
			_ = client.Close()
			return nil, err
		}
	}

	return client.Close, nil
}

// createClient builds an mcp-go client for the given server definition.
func createClient(def *ServerDef) (*mcpclient.Client, error) {
	switch def.Transport {
	case TransportStdio:
		return mcpclient.NewStdioMCPClient(def.Command, envMapToSlice(def.Env), def.Args...)

	case TransportSSE:
		var opts []transport.ClientOption
		if len(def.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(def.Headers))
		}
		return mcpclient.NewSSEMCPClient(def.URL, opts...)

	case TransportStreamableHTTP:
		var opts []transport.StreamableHTTPCOption
		if len(def.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(def.Headers))
		}
		return mcpclient.NewStreamableHttpClient(def.URL, opts...)

	default:
		return nil, fmt.Errorf("unsupported transport: %s", def.Transport)
	}
}

func isReadOnly(t *mcpprotocol.Tool) bool {
	return t.Annotations.ReadOnlyHint != nil && *t.Annotations.ReadOnlyHint
}

// envMapToSlice converts a map to the KEY=VALUE slice format expected by exec.Cmd.
func envMapToSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// remoteTool adapts one discovered MCP tool to the local tool contract.
type remoteTool struct {
	server      string
	tool        string
	description string
	readOnly    bool
	client      caller
}

func (t *remoteTool) Name() string        { return t.server + "__" + t.tool }
func (t *remoteTool) Description() string { return t.description }

// Kind honors the server's read-only annotation so annotated tools skip the
// mutating-call gate.
func (t *remoteTool) Kind() tools.Kind {
	if t.readOnly {
		return tools.KindRead
	}
	return tools.KindMcp
}

// Validate accepts any parameter bag: the server owns the schema and rejects
// bad arguments itself.
func (t *remoteTool) Validate(_ map[string]any) error { return nil }

func (t *remoteTool) Confirmation(_ context.Context, _ map[string]any) (confirm.Details, error) {
	if t.readOnly {
		return nil, nil
	}
	return confirm.Mcp{
		Server:      t.server,
		Tool:        t.tool,
		DisplayName: t.Name(),
	}, nil
}

func (t *remoteTool) Execute(ctx context.Context, args map[string]any, _ *bus.Resolution, _ func(string)) (toolcall.Result, error) {
	req := mcpprotocol.CallToolRequest{}
	req.Params.Name = t.tool
	req.Params.Arguments = args

	result, err := t.client.CallTool(ctx, req)
	if err != nil {
		return toolcall.Result{}, fmt.Errorf("mcptool: %s: %w", t.Name(), err)
	}

	text := flattenContent(result.Content)
	if result.IsError {
		return toolcall.Result{Content: text, Display: text},
			toolcall.NewError(toolcall.ErrorTransport, "mcptool: %s: server reported an error: %s", t.Name(), text)
	}
	return toolcall.Result{Content: text, Display: text}, nil
}

// flattenContent joins the text blocks of a tool result. Non-text content is
// noted by type rather than dropped silently.
func flattenContent(content []mcpprotocol.Content) string {
	var sb strings.Builder
	for _, c := range content {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		if tc, ok := c.(mcpprotocol.TextContent); ok {
			sb.WriteString(tc.Text)
		} else {
			fmt.Fprintf(&sb, "[non-text content: %T]", c)
		}
	}
	return sb.String()
}
