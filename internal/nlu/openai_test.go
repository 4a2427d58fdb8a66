package nlu

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cannedTransport struct {
	body string
}

func (c cannedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		_, _ = io.Copy(io.Discard, req.Body)
		req.Body.Close()
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(c.body)),
		Request:    req,
	}, nil
}

const badArgsCompletion = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 0,
  "model": "gpt-5-nano",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "message": {
      "role": "assistant",
      "content": null,
      "tool_calls": [
        {"id": "c1", "type": "function", "function": {"name": "addMedication", "arguments": "{\"name\": \"Aspirin\""}},
        {"id": "c2", "type": "function", "function": {"name": "getDailySummary", "arguments": "{}"}}
      ]
    }
  }]
}`

func TestOpenAIKeepsCallsWithBadArguments(t *testing.T) {
	c, err := NewOpenAIClient("sk-test", "", &http.Client{Transport: cannedTransport{body: badArgsCompletion}}, nil)
	require.NoError(t, err)

	resp, err := c.Understand(context.Background(), Request{Transcript: "add aspirin and tell me my day"})
	require.NoError(t, err)

	require.Len(t, resp.Calls, 2)
	assert.Equal(t, "addMedication", resp.Calls[0].Name)
	assert.Empty(t, resp.Calls[0].Args)
	assert.Equal(t, "getDailySummary", resp.Calls[1].Name)
	assert.Empty(t, resp.Text)

	assert.Equal(t, AddMedication{}, FromCall(resp.Calls[0]))
}

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	_, err := NewOpenAIClient("", "", nil, nil)
	assert.Error(t, err)
}
