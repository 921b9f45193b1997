// Package tools executes external tools over a stdio JSON-RPC 2.0
// subprocess transport. Every failure mode comes back as error text in
// the tool result, never as a Go error: the pipeline inlines tool
// results into the conversation and must not abort an exchange because
// a tool misbehaved.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"chorale/internal/config"
	"chorale/internal/logging"
)

const protocolVersion = "2024-11-05"

// Server describes one stdio tool server.
type Server struct {
	Command string
	Args    []string
	Env     map[string]string
	Tools   []string
}

// Transport runs a tool server to completion, feeding it input on stdin
// and returning its stdout. The exec transport is the real one; tests
// substitute an in-process fake.
type Transport interface {
	Run(ctx context.Context, srv Server, input []byte) ([]byte, error)
}

type execTransport struct{}

func (execTransport) Run(ctx context.Context, srv Server, input []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, srv.Command, srv.Args...)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Env = os.Environ()
	for k, v := range srv.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if stderr.Len() > 0 {
		logging.Tools("server stderr: %s", strings.TrimSpace(stderr.String()))
	}
	// A tool server may exit non-zero after writing its response; the
	// response on stdout wins if it parses.
	if err != nil && stdout.Len() == 0 {
		return nil, err
	}
	return stdout.Bytes(), nil
}

// Runner routes tool calls to their servers.
type Runner struct {
	servers      map[string]Server
	toolToServer map[string]string
	transport    Transport
	timeout      time.Duration
}

// NewRunner builds a runner from configured servers.
func NewRunner(servers map[string]config.ToolServerConfig, timeout time.Duration) *Runner {
	r := &Runner{
		servers:      make(map[string]Server),
		toolToServer: make(map[string]string),
		transport:    execTransport{},
		timeout:      timeout,
	}
	for name, sc := range servers {
		r.servers[name] = Server{Command: sc.Command, Args: sc.Args, Tools: sc.Tools}
		for _, tool := range sc.Tools {
			r.toolToServer[tool] = name
		}
	}
	return r
}

// Knows reports whether any configured server answers the tool.
func (r *Runner) Knows(tool string) bool {
	_, ok := r.toolToServer[tool]
	return ok
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *int   `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     *int            `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type callResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Call invokes a tool and returns its text result. The server is
// spawned per call: initialize handshake, initialized notification,
// then the tools/call request, all on stdin; the response is the last
// stdout line carrying the call's request ID.
func (r *Runner) Call(ctx context.Context, tool string, params map[string]any) string {
	serverName, ok := r.toolToServer[tool]
	if !ok {
		return fmt.Sprintf("Error: Unknown tool '%s'", tool)
	}
	srv := r.servers[serverName]

	input, err := buildInput(tool, params)
	if err != nil {
		return fmt.Sprintf("Error calling %s: %v", tool, err)
	}

	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	stdout, err := r.transport.Run(callCtx, srv, input)
	logging.Tools("%s via %s took %dms", tool, serverName, time.Since(start).Milliseconds())

	if callCtx.Err() == context.DeadlineExceeded {
		return fmt.Sprintf("Error: %s server timed out", serverName)
	}
	if err != nil {
		return fmt.Sprintf("Error calling %s: %v", tool, err)
	}

	return extractResult(serverName, stdout)
}

func buildInput(tool string, params map[string]any) ([]byte, error) {
	initID, callID := 0, 1
	messages := []rpcRequest{
		{
			JSONRPC: "2.0",
			ID:      &initID,
			Method:  "initialize",
			Params: map[string]any{
				"protocolVersion": protocolVersion,
				"capabilities":    map[string]any{},
				"clientInfo":      map[string]string{"name": "chorale", "version": "1.0.0"},
			},
		},
		{JSONRPC: "2.0", Method: "notifications/initialized"},
		{
			JSONRPC: "2.0",
			ID:      &callID,
			Method:  "tools/call",
			Params:  map[string]any{"name": tool, "arguments": params},
		},
	}

	var buf bytes.Buffer
	for _, msg := range messages {
		line, err := json.Marshal(msg)
		if err != nil {
			return nil, err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// extractResult scans stdout bottom-up for the tools/call response and
// pulls the text content out of it.
func extractResult(serverName string, stdout []byte) string {
	lines := strings.Split(strings.TrimSpace(string(stdout)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		var resp rpcResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			continue
		}
		if resp.ID == nil || *resp.ID != 1 {
			continue
		}
		if resp.Error != nil {
			return "Error: " + resp.Error.Message
		}

		var result callResult
		if err := json.Unmarshal(resp.Result, &result); err == nil {
			var texts []string
			for _, c := range result.Content {
				if c.Type == "text" {
					texts = append(texts, c.Text)
				}
			}
			if len(texts) > 0 {
				return strings.Join(texts, "\n")
			}
		}
		return string(resp.Result)
	}

	preview := string(stdout)
	if len(preview) > 500 {
		preview = preview[:500]
	}
	return fmt.Sprintf("Error: No valid response from %s server. stdout: %s", serverName, preview)
}
