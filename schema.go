package docsmcp

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// JSONRPCVersion is the only protocol version accepted on the wire.
const JSONRPCVersion = "2.0"

// protocolVersion is the single MCP revision this client speaks. There is no
// version negotiation; servers announcing a different revision are logged but
// not rejected.
const protocolVersion = "2024-11-05"

const (
	methodInitialize               = "initialize"
	methodNotificationsInitialized = "notifications/initialized"
	methodPing                     = "ping"

	// MethodToolsList is the method name for retrieving a list of available tools.
	MethodToolsList = "tools/list"
	// MethodToolsCall is the method name for invoking a specific tool.
	MethodToolsCall = "tools/call"
)

// MessageKind classifies a decoded wire message.
type MessageKind int

const (
	// KindInvalid marks a message that fits none of the three JSON-RPC shapes.
	KindInvalid MessageKind = iota
	// KindRequest is a method call carrying an id; a response is expected.
	KindRequest
	// KindNotification is a method call without an id; fire-and-forget.
	KindNotification
	// KindResponse carries an id and either a result or an error.
	KindResponse
)

func (k MessageKind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	case KindResponse:
		return "response"
	default:
		return "invalid"
	}
}

// Message represents a JSON-RPC 2.0 message used for communication in the MCP
// protocol. It is a tagged union of three shapes, distinguished by Kind:
//   - Request: ID and Method are set
//   - Notification: Method is set, ID is absent
//   - Response: ID and either Result or Error are set, Method is absent
type Message struct {
	// JSONRPC must always be "2.0" per the JSON-RPC specification.
	JSONRPC string `json:"jsonrpc"`
	// ID uniquely identifies request-response pairs. It is a pointer so a
	// notification (absent id) is distinguishable from id 0.
	ID *int64 `json:"id,omitempty"`
	// Method contains the RPC method name for requests and notifications.
	Method string `json:"method,omitempty"`
	// Params contains the parameters for the method call as a raw JSON message.
	Params json.RawMessage `json:"params,omitempty"`
	// Result contains the successful response data as a raw JSON message.
	Result json.RawMessage `json:"result,omitempty"`
	// Error contains error details if the request failed.
	Error *JSONRPCError `json:"error,omitempty"`
}

// Kind reports which of the three JSON-RPC shapes the message has, validated
// structurally rather than by duck-typed field access.
func (m Message) Kind() MessageKind {
	switch {
	case m.Method != "" && m.ID != nil:
		return KindRequest
	case m.Method != "":
		return KindNotification
	case m.ID != nil && (m.Result != nil || m.Error != nil):
		return KindResponse
	default:
		return KindInvalid
	}
}

// JSONRPCError represents an error response in the JSON-RPC 2.0 protocol.
type JSONRPCError struct {
	// Code indicates the error type that occurred.
	Code int `json:"code"`
	// Message provides a short description of the error.
	Message string `json:"message"`
	// Data contains additional unstructured information about the error.
	Data map[string]any `json:"data,omitempty"`
}

func (e JSONRPCError) Error() string {
	return fmt.Sprintf("request error, code: %d, message: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes.
const (
	jsonRPCParseErrorCode     = -32700
	jsonRPCInvalidRequestCode = -32600
	jsonRPCMethodNotFoundCode = -32601
)

// Info contains metadata about a server or client instance including its name and version.
type Info struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ToolsCapability indicates support for tool listing and invocation.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ClientCapabilities advertises what this client supports in the initialize
// request. The default client advertises the tools capability only.
type ClientCapabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// ServerCapabilities describes what the connected server supports, as reported
// in the initialize result.
type ServerCapabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// Tool defines a callable tool with its input schema.
// InputSchema defines the expected format of arguments for CallTool.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ListToolsResult represents the list of tools returned by tools/list.
type ListToolsResult struct {
	Tools      []Tool `json:"tools"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// CallToolParams contains parameters for executing a specific tool.
type CallToolParams struct {
	// Name is the unique identifier of the tool to execute.
	Name string `json:"name"`
	// Arguments is a JSON object of argument name-value pairs. It must satisfy
	// the tool's InputSchema.
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolContent is a single content item in a tool result.
type ToolContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// CallToolResult is the conventional shape of a tools/call result. CallTool
// itself returns the raw result; this type is for callers that expect the
// content-list convention.
type CallToolResult struct {
	Content []ToolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type initializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      Info               `json:"clientInfo"`
}

type initializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Info               `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

// ToolInputSchema derives a JSON schema for a tool's arguments from a Go
// struct type. It is a convenience for stub and test servers that describe
// their tools from native types.
func ToolInputSchema(v any) (json.RawMessage, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := r.Reflect(v)
	bs, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool schema: %w", err)
	}
	return bs, nil
}
