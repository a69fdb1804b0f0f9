// Package mcp exposes Chroma collection and document operations as MCP tools.
//
// A Registry holds the chroma_* tools, each with a JSON schema derived from
// its input struct. Registry.CallTool validates arguments, fills in schema
// defaults and runs the handler against a lazily built vectorstore client.
// Every failure comes back as a *ToolError carrying a Kind and a message of
// the form "Error executing tool <name>: <detail>".
//
// Server mounts a Registry on the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// for the stdio transport; internal/http mounts the same SDK server over
// streamable HTTP.
package mcp
