package sse

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcourtman/octopilot/internal/ai/tools"
)

func testAssembler() *Assembler {
	a := NewAssembler("")
	a.now = func() time.Time { return time.Unix(1700000000, 0) }
	a.newID = func() string { return "chatcmpl-test" }
	return a
}

// dataLines returns the data payload of each event, joined per event.
func dataLines(t *testing.T, body []byte) (events []string, payloads []string) {
	t.Helper()
	scanner := bufio.NewScanner(bytes.NewReader(body))
	var event string
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			events = append(events, event)
			payloads = append(payloads, strings.Join(data, "\n"))
			event, data = "", nil
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = append(data, strings.TrimPrefix(line, "data: "))
		}
	}
	require.NoError(t, scanner.Err())
	return events, payloads
}

func TestEncodeTextAsCompletionChunks(t *testing.T) {
	body, err := testAssembler().Encode(tools.NewTextResult("line one\nline two"))
	require.NoError(t, err)
	require.True(t, bytes.HasSuffix(body, []byte("data: [DONE]\n\n")))

	events, payloads := dataLines(t, body)
	require.Len(t, payloads, 3)
	assert.Equal(t, []string{"", "", ""}, events)
	assert.Equal(t, "[DONE]", payloads[2])

	var first chunk
	require.NoError(t, json.Unmarshal([]byte(payloads[0]), &first))
	assert.Equal(t, "chatcmpl-test", first.ID)
	assert.Equal(t, "chat.completion.chunk", first.Object)
	assert.Equal(t, "octopilot", first.Model)
	assert.Equal(t, int64(1700000000), first.Created)
	require.Len(t, first.Choices, 1)
	assert.Equal(t, "assistant", first.Choices[0].Delta.Role)
	assert.Equal(t, "line one\nline two", first.Choices[0].Delta.Content)
	assert.Nil(t, first.Choices[0].FinishReason)

	var last chunk
	require.NoError(t, json.Unmarshal([]byte(payloads[1]), &last))
	require.NotNil(t, last.Choices[0].FinishReason)
	assert.Equal(t, "stop", *last.Choices[0].FinishReason)
	assert.Empty(t, last.Choices[0].Delta.Content)
}

func TestEncodeStructuredAsNamedEvent(t *testing.T) {
	result, err := tools.NewJSONResult(map[string]any{"projects": []string{"Web"}})
	require.NoError(t, err)

	body, err := testAssembler().Encode(result)
	require.NoError(t, err)

	events, payloads := dataLines(t, body)
	require.Len(t, payloads, 2)
	assert.Equal(t, StructuredEvent, events[0])
	assert.JSONEq(t, `{"projects":["Web"]}`, payloads[0])
	assert.Equal(t, "[DONE]", payloads[1])
}

func TestWriteSetsHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, testAssembler().Write(rec, http.StatusOK, tools.NewTextResult("hello")))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.True(t, rec.Flushed)
	assert.Contains(t, rec.Body.String(), `"content":"hello"`)
}

func TestAccepts(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, Accepts(req))
	req.Header.Set("Accept", "text/event-stream, */*")
	assert.True(t, Accepts(req))
}

func TestEncodeTextUsesFreshIDs(t *testing.T) {
	a := NewAssembler("gpt-4o")
	first := string(a.EncodeText("a"))
	second := string(a.EncodeText("a"))
	assert.NotEqual(t, first, second)
	assert.Contains(t, first, `"model":"gpt-4o"`)
}
