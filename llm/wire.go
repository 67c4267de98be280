package llm

import (
	"encoding/json"
	"fmt"
	"io"
)

// wire.go encodes the client-facing SSE format for backends that do not
// emit it natively.

type tokenEvent struct {
	Response string `json:"response"`
}

// WriteTokenEvent writes one token as a wire-format SSE event.
func WriteTokenEvent(w io.Writer, token string) error {
	payload, err := json.Marshal(tokenEvent{Response: token})
	if err != nil {
		return fmt.Errorf("encode token event: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}

// WriteDoneEvent writes the terminal sentinel event.
func WriteDoneEvent(w io.Writer) error {
	_, err := io.WriteString(w, "data: [DONE]\n\n")
	return err
}
