package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// Wizard stream event names.
const (
	eventState    = "state"
	eventComplete = "complete"
	eventError    = "error"
)

// sessionStream writes wizard transitions as Server-Sent Events. Each event
// carries an increasing id so clients can tell dropped events apart.
type sessionStream struct {
	w         http.ResponseWriter
	flusher   http.Flusher
	sessionID uuid.UUID
	seq       int
}

// newSessionStream prepares w for streaming. Nothing is written until the
// first event, so the caller can still answer with a plain error.
func newSessionStream(w http.ResponseWriter, sessionID uuid.UUID) (*sessionStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	return &sessionStream{w: w, flusher: flusher, sessionID: sessionID}, nil
}

func (s *sessionStream) send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.seq++
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.seq, event, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// State sends the session view after a transition.
func (s *sessionStream) State(view sessionView) error {
	return s.send(eventState, view)
}

// Fail ends the stream with an error message.
func (s *sessionStream) Fail(message string) {
	_ = s.send(eventError, map[string]string{"error": message})
}

// Complete ends the stream with the phase the session settled in.
func (s *sessionStream) Complete(phase string) {
	_ = s.send(eventComplete, map[string]string{
		"sessionId": s.sessionID.String(),
		"phase":     phase,
	})
}
