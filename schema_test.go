package docsmcp_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pptxagent/docsmcp"
)

func TestMessageKind(t *testing.T) {
	id := int64(5)
	zero := int64(0)

	cases := []struct {
		name string
		msg  docsmcp.Message
		want docsmcp.MessageKind
	}{
		{"request", docsmcp.Message{ID: &id, Method: "tools/list"}, docsmcp.KindRequest},
		{"request with id zero", docsmcp.Message{ID: &zero, Method: "ping"}, docsmcp.KindRequest},
		{"notification", docsmcp.Message{Method: "notifications/initialized"}, docsmcp.KindNotification},
		{"result response", docsmcp.Message{ID: &id, Result: json.RawMessage(`{}`)}, docsmcp.KindResponse},
		{"error response", docsmcp.Message{ID: &id, Error: &docsmcp.JSONRPCError{Code: -32600}}, docsmcp.KindResponse},
		{"id without payload", docsmcp.Message{ID: &id}, docsmcp.KindInvalid},
		{"empty", docsmcp.Message{}, docsmcp.KindInvalid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.msg.Kind())
		})
	}
}

func TestMessageKindString(t *testing.T) {
	assert.Equal(t, "request", docsmcp.KindRequest.String())
	assert.Equal(t, "notification", docsmcp.KindNotification.String())
	assert.Equal(t, "response", docsmcp.KindResponse.String())
	assert.Equal(t, "invalid", docsmcp.KindInvalid.String())
}

func TestJSONRPCErrorMessage(t *testing.T) {
	err := docsmcp.JSONRPCError{Code: -32601, Message: "method not found"}
	assert.Contains(t, err.Error(), "-32601")
	assert.Contains(t, err.Error(), "method not found")
}

func TestToolInputSchema(t *testing.T) {
	type searchArgs struct {
		SearchPhrase string `json:"search_phrase" jsonschema:"description=Phrase to search for"`
		Limit        int    `json:"limit,omitempty"`
	}

	bs, err := docsmcp.ToolInputSchema(searchArgs{})
	require.NoError(t, err)

	var schema struct {
		Type       string                     `json:"type"`
		Properties map[string]json.RawMessage `json:"properties"`
		Required   []string                   `json:"required"`
	}
	require.NoError(t, json.Unmarshal(bs, &schema))
	assert.Equal(t, "object", schema.Type)
	assert.Contains(t, schema.Properties, "search_phrase")
	assert.Contains(t, schema.Properties, "limit")
	assert.Contains(t, schema.Required, "search_phrase")
}

func TestSessionStateString(t *testing.T) {
	cases := map[docsmcp.State]string{
		docsmcp.StateUnstarted:    "unstarted",
		docsmcp.StateInitializing: "initializing",
		docsmcp.StateReady:        "ready",
		docsmcp.StateClosed:       "closed",
		docsmcp.StateFailed:       "failed",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}
