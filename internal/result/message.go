package result

import "encoding/json"

// Message is the JSON value sent to the host for one frame, or the
// error envelope for a fatal start-up failure.
type Message struct {
	kind       Kind
	isError    bool
	detections []Detection
	meshes     []Mesh
	err        string
}

type errorEnvelope struct {
	Error string `json:"error"`
}

// Project converts a Result into its outbound form. Coordinates pass
// through unchanged; the host scales them to its own surface.
func Project(r Result) Message {
	m := Message{kind: r.Kind}
	switch r.Kind {
	case KindMeshes:
		m.meshes = r.Meshes
		if m.meshes == nil {
			m.meshes = []Mesh{}
		}
	default:
		m.kind = KindDetections
		m.detections = r.Detections
		if m.detections == nil {
			m.detections = []Detection{}
		}
	}
	return m
}

// ErrorMessage builds the error envelope
func ErrorMessage(reason string) Message {
	return Message{isError: true, err: reason}
}

// IsError reports whether m is an error envelope
func (m Message) IsError() bool {
	return m.isError
}

// MarshalJSON encodes detection messages as an array of detections,
// mesh messages as an array of meshes, and errors as {"error": ...}.
func (m Message) MarshalJSON() ([]byte, error) {
	if m.isError {
		return json.Marshal(errorEnvelope{Error: m.err})
	}
	if m.kind == KindMeshes {
		return json.Marshal(m.meshes)
	}
	return json.Marshal(m.detections)
}
