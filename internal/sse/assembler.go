// Package sse frames answers as server-sent events.
//
// Prose answers are sent as chat completion chunks, the format chat clients already
// stream. Structured answers are sent as a single "structured" event carrying the raw
// JSON so consumers can tell the two apart without parsing the text.
package sse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rcourtman/octopilot/internal/ai/tools"
)

const (
	// ContentType is the media type of every response the assembler writes.
	ContentType = "text/event-stream"

	// StructuredEvent names the event carrying a machine readable answer.
	StructuredEvent = "structured"

	doneFrame = "data: [DONE]\n\n"
)

type delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type choice struct {
	Index        int     `json:"index"`
	Delta        delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

type chunk struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
}

// Assembler turns tool results into event stream bodies.
type Assembler struct {
	model string
	now   func() time.Time
	newID func() string
}

// NewAssembler creates an assembler that reports model as the chunk author.
func NewAssembler(model string) *Assembler {
	if model == "" {
		model = "octopilot"
	}
	return &Assembler{
		model: model,
		now:   time.Now,
		newID: func() string { return "chatcmpl-" + uuid.NewString() },
	}
}

// Encode renders result as a complete event stream body, terminated by [DONE].
func (a *Assembler) Encode(result tools.Result) ([]byte, error) {
	var b bytes.Buffer
	if result.Structured() {
		if err := writeEvent(&b, StructuredEvent, []byte(result.Text)); err != nil {
			return nil, err
		}
		b.WriteString(doneFrame)
		return b.Bytes(), nil
	}

	id := a.newID()
	created := a.now().Unix()
	stop := "stop"
	frames := []chunk{
		{
			ID: id, Object: "chat.completion.chunk", Created: created, Model: a.model,
			Choices: []choice{{Delta: delta{Role: "assistant", Content: result.Text}}},
		},
		{
			ID: id, Object: "chat.completion.chunk", Created: created, Model: a.model,
			Choices: []choice{{Delta: delta{}, FinishReason: &stop}},
		},
	}
	for _, frame := range frames {
		data, err := json.Marshal(frame)
		if err != nil {
			return nil, err
		}
		if err := writeEvent(&b, "", data); err != nil {
			return nil, err
		}
	}
	b.WriteString(doneFrame)
	return b.Bytes(), nil
}

// EncodeText is Encode for a plain prose answer.
func (a *Assembler) EncodeText(text string) []byte {
	// A chunk holding only strings always marshals.
	body, _ := a.Encode(tools.NewTextResult(text))
	return body
}

// Write sends result with the event stream headers and flushes it.
func (a *Assembler) Write(w http.ResponseWriter, status int, result tools.Result) error {
	body, err := a.Encode(result)
	if err != nil {
		return err
	}
	SetHeaders(w)
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		return err
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

// SetHeaders sets the event stream response headers.
func SetHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// Accepts reports whether the request asked for an event stream.
func Accepts(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), ContentType)
}

// writeEvent writes one event. Multi-line data is split over several data fields so
// the client rejoins it with newlines.
func writeEvent(b *bytes.Buffer, event string, data []byte) error {
	if event != "" {
		if strings.ContainsAny(event, "\r\n") {
			return fmt.Errorf("invalid event name %q", event)
		}
		fmt.Fprintf(b, "event: %s\n", event)
	}
	for _, line := range strings.Split(string(data), "\n") {
		fmt.Fprintf(b, "data: %s\n", line)
	}
	b.WriteString("\n")
	return nil
}
