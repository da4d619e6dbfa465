// Package docsmcp implements a session-oriented Model Context Protocol (MCP)
// client for subprocess-hosted documentation tool servers. The protocol framing
// follows the official specification from https://spec.modelcontextprotocol.io/specification/.
//
// A session launches the server as a child process and speaks newline-delimited
// JSON-RPC 2.0 over its stdin/stdout. The client performs the mandatory
// initialize/initialized handshake before accepting operations, correlates
// concurrent request/response pairs by monotonic integer ids, and exposes the
// server's tools through ListTools and CallTool. An SSE transport is available
// for servers reachable over HTTP instead of a local pipe.
package docsmcp
