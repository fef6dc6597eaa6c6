package chatrelay

import (
	"encoding/json"
	"fmt"
	"io"
)

// DoneFrame terminates every relayed stream.
const DoneFrame = "data: [DONE]\n\n"

type chunk struct {
	Choices []chunkChoice `json:"choices"`
}

type chunkChoice struct {
	Delta chunkDelta `json:"delta"`
}

type chunkDelta struct {
	Content string `json:"content"`
}

// WriteDelta writes one content fragment as an OpenAI-style SSE chunk.
func WriteDelta(w io.Writer, content string) error {
	raw, err := json.Marshal(chunk{Choices: []chunkChoice{{Delta: chunkDelta{Content: content}}}})
	if err != nil {
		return fmt.Errorf("chatrelay: encode chunk: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", raw); err != nil {
		return err
	}
	return nil
}

// emitFunc forwards one fragment of model output.
type emitFunc func(content string) error

// pipeFrames runs produce in a goroutine and exposes its output as an SSE
// body. A nil return from produce appends the done frame; an error closes the
// reader with that error.
func pipeFrames(produce func(emit emitFunc) error) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		emit := func(content string) error {
			if content == "" {
				return nil
			}
			return WriteDelta(pw, content)
		}
		if err := produce(emit); err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.WriteString(pw, DoneFrame); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.Close()
	}()
	return pr
}
