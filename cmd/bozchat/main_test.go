package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/agenciaboz-dev/bozchat-sub001/internal/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validGraph = `{
  "nodes": [
    {"id": "node_0", "type": "response", "position": {"x": 0, "y": 0}, "data": {"value": "oi"}},
    {"id": "node_1", "type": "message", "position": {"x": 0, "y": 0}, "data": {"value": "Olá!", "loopTargetId": "node_0"}}
  ],
  "edges": [{"id": "enode_0-node_1", "source": "node_0", "target": "node_1"}],
  "viewport": {"x": 0, "y": 0, "zoom": 1}
}`

const invalidGraph = `{
  "nodes": [
    {"id": "node_0", "type": "response", "data": {"value": "oi"}},
    {"id": "node_1", "type": "message", "data": {"value": "a"}},
    {"id": "node_2", "type": "message", "data": {"value": "b"}}
  ],
  "edges": [
    {"id": "e1", "source": "node_0", "target": "node_2"},
    {"id": "e2", "source": "node_1", "target": "node_2"}
  ],
  "viewport": {"x": 0, "y": 0, "zoom": 1}
}`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "none.yaml")))
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "bozchat version ")
}

func TestValidateCommand(t *testing.T) {
	out, err := run(t, "validate", writeFile(t, validGraph))
	require.NoError(t, err)
	assert.Contains(t, out, "valid (2 nodes, 1 edges)")

	out, err = run(t, "validate", writeFile(t, invalidGraph))
	require.Error(t, err)
	assert.ErrorIs(t, err, errInvalid)
	assert.Contains(t, out, "✗")
	assert.Contains(t, out, "opening repairs")
}

func TestExportCommand(t *testing.T) {
	path := writeFile(t, validGraph)

	out, err := run(t, "export", path, "--format", "mermaid")
	require.NoError(t, err)
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, `node_1 -. "loop" .-> node_0`)

	out, err = run(t, "export", path, "--format", "dot")
	require.NoError(t, err)
	assert.Contains(t, out, "digraph G {")

	out, err = run(t, "export", path, "--format", "md")
	require.NoError(t, err)
	assert.Contains(t, out, "- **node_0** _response_: oi")

	_, err = run(t, "export", path, "--format", "pdf")
	assert.Error(t, err)
}

func TestLayoutCommand(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out.json")
	_, err := run(t, "layout", writeFile(t, invalidGraph), "--output", target)
	require.NoError(t, err)

	f, err := cli.ReadGraphFile(target)
	require.NoError(t, err)
	assert.Len(t, f.Graph.Nodes, 3)
	assert.Len(t, f.Graph.Edges, 1, "the second incoming edge is dropped")
	assert.NotEqual(t, f.Graph.Nodes[0].Position, f.Graph.Nodes[1].Position, "roots share a rank without overlapping")
}

func TestShowCommand(t *testing.T) {
	out, err := run(t, "show", writeFile(t, `{"id":"b1","name":"Support","trigger":"menu"}`))
	require.NoError(t, err)
	assert.Contains(t, out, "# Support")
	assert.Contains(t, out, "menu")
}

func TestCommandsRequireASource(t *testing.T) {
	_, err := run(t, "show", "--bot", "")
	assert.Error(t, err)
}
