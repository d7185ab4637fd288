package server

import (
	"encoding/json"

	"github.com/menta2k/image-cropper/pkg/frame"
	"github.com/menta2k/image-cropper/pkg/interaction"
	"github.com/menta2k/image-cropper/pkg/messages"
	"github.com/menta2k/image-cropper/pkg/ratio"
	"github.com/menta2k/image-cropper/pkg/types"
)

// Message is the websocket envelope in both directions.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	// Client to server
	TypePointer = "pointer"
	TypeZoom    = "zoom"
	TypeResize  = "resize"
	TypeTarget  = "target"

	// Server to client
	TypeWelcome  = "welcome"
	TypeEvent    = "event"
	TypeMessages = "messages"
	TypeScale    = "scale"
	TypeError    = "error"

	// Both directions: a client request for, or a push of, the full state.
	TypeState = "state"
)

// Pointer phases.
const (
	PhaseStart  = "start"
	PhaseMove   = "move"
	PhaseStop   = "stop"
	PhaseCancel = "cancel"
)

// PointerPayload carries one pointer event in displayed pixels.
type PointerPayload struct {
	Phase string `json:"phase"`
	// Target is the handle tag for the start phase ("box", "n", "se", ...).
	Target  string  `json:"target,omitempty"`
	ClientX float64 `json:"clientX"`
	ClientY float64 `json:"clientY"`
}

type ZoomPayload struct {
	DeltaY float64 `json:"deltaY"`
}

type ScalePayload struct {
	Scale float64 `json:"scale"`
}

type ResizePayload struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type TargetPayload struct {
	Target types.Target `json:"target"`
}

// EventPayload mirrors a widget event together with the resulting crop.
type EventPayload struct {
	Name    string        `json:"name"`
	Session string        `json:"session,omitempty"`
	Pointer types.Pointer `json:"pointer"`
	Data    types.Output  `json:"data"`
	Visual  types.Rect    `json:"visual"`
}

type MessagesPayload struct {
	Messages []messages.Message `json:"messages"`
}

type WelcomePayload struct {
	ConnectionID string `json:"connectionId"`
	State        State  `json:"state"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

// State is the full view of one crop.
type State struct {
	ID       string               `json:"id"`
	Data     types.Output         `json:"data"`
	Visual   types.Rect           `json:"visual"`
	Frame    frame.Frame          `json:"frame"`
	Policy   ratio.Policy         `json:"policy"`
	Dragging bool                 `json:"dragging"`
	Handles  []interaction.Action `json:"handles"`
	Messages []messages.Message   `json:"messages"`
}

func encode(typ string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: typ, Payload: raw})
}
