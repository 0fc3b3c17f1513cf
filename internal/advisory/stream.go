package advisory

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
)

var (
	errEmptyOutput    = errors.New("model produced no output")
	errOutputTooLarge = errors.New("model output too large")
)

const (
	eventTextDelta = "response.output_text.delta"
	eventCompleted = "response.completed"
)

// sseData yields the data payload of every server-sent event in body,
// multi-line payloads joined with newlines.
func sseData(body io.Reader, maxLine int) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		sc := bufio.NewScanner(body)
		sc.Buffer(make([]byte, 0, 4096), maxLine)
		var pending []string
		flush := func() bool {
			if len(pending) == 0 {
				return true
			}
			data := strings.Join(pending, "\n")
			pending = pending[:0]
			return yield(data, nil)
		}
		for sc.Scan() {
			line := sc.Text()
			if line == "" {
				if !flush() {
					return
				}
				continue
			}
			if v, ok := strings.CutPrefix(line, "data:"); ok {
				pending = append(pending, strings.TrimSpace(v))
			}
		}
		if err := sc.Err(); err != nil {
			yield("", err)
			return
		}
		flush()
	}
}

// streamText assembles the model reply from a Responses stream. Text deltas
// take precedence; the completed response body is read only when no delta
// arrived.
func streamText(body io.Reader, limit int) (string, error) {
	var text strings.Builder
	add := func(s string) error {
		if text.Len()+len(s) > limit {
			return fmt.Errorf("%w: over %d bytes", errOutputTooLarge, limit)
		}
		text.WriteString(s)
		return nil
	}

	for data, err := range sseData(body, limit+64*1024) {
		if err != nil {
			return "", fmt.Errorf("read stream: %w", err)
		}
		if data == "" || data == "[DONE]" {
			continue
		}
		var ev streamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return "", fmt.Errorf("decode stream event: %w", err)
		}
		if msg, failed := ev.failure(); failed {
			return "", fmt.Errorf("model stream failed: %s", msg)
		}
		switch {
		case ev.Type == eventTextDelta:
			err = add(ev.Delta)
		case ev.Type == eventCompleted && text.Len() == 0 && ev.Response != nil:
			err = add(ev.Response.text())
		}
		if err != nil {
			return "", err
		}
	}

	out := strings.TrimSpace(text.String())
	if out == "" {
		return "", errEmptyOutput
	}
	return out, nil
}

// streamEvent keeps only the fields the advisor reads.
type streamEvent struct {
	Type     string          `json:"type"`
	Delta    string          `json:"delta"`
	Response *streamResponse `json:"response"`
	Error    *streamError    `json:"error"`
}

func (e streamEvent) failure() (string, bool) {
	switch {
	case e.Error != nil:
		return e.Error.String(), true
	case e.Response != nil && e.Response.Error != nil:
		return e.Response.Error.String(), true
	}
	return "", false
}

type streamResponse struct {
	Error  *streamError `json:"error"`
	Output []struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

func (r *streamResponse) text() string {
	var b strings.Builder
	for _, item := range r.Output {
		for _, part := range item.Content {
			if part.Type == "output_text" || part.Type == "text" {
				b.WriteString(part.Text)
			}
		}
	}
	return b.String()
}

type streamError struct {
	Message string `json:"message"`
}

func (e *streamError) String() string {
	if e.Message == "" {
		return "unspecified error"
	}
	return e.Message
}
