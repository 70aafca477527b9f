// Package worker runs the physics engine on a dedicated goroutine and
// defines the message types exchanged with the owning thread. The messages
// are JSON-tagged because the same shapes serve as the tick-snapshot dump
// format.
package worker

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Vec3 is the wire form of a vector. r3.Vec marshals with capitalized
// field names, so the protocol carries its own lowercase-tagged shape.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// FromR3 converts an r3.Vec to wire form.
func FromR3(v r3.Vec) Vec3 { return Vec3{X: v.X, Y: v.Y, Z: v.Z} }

// R3 converts back to the math type.
func (v Vec3) R3() r3.Vec { return r3.Vec{X: v.X, Y: v.Y, Z: v.Z} }

// ParticleState is one particle in a tick request.
type ParticleState struct {
	ID         uint32  `json:"id"`
	Position   Vec3    `json:"position"`
	Velocity   Vec3    `json:"velocity"`
	Mass       float64 `json:"mass"`
	Charge     float64 `json:"charge"`
	LiquidType uint8   `json:"liquidType"`
	Active     bool    `json:"active"`
	Age        float64 `json:"age"`
}

// ParticleResult is one particle in a tick result. Particles deactivated
// during the tick are omitted entirely; the owner marks absentees inactive.
type ParticleResult struct {
	ID       uint32  `json:"id"`
	Position Vec3    `json:"position"`
	Velocity Vec3    `json:"velocity"`
	Active   bool    `json:"active"`
	Age      float64 `json:"age"`
	Density  float64 `json:"density"`
	Pressure float64 `json:"pressure"`
}

// WellState is one gravity well in a tick request. Type is cosmetic and
// travels only so snapshot dumps replay faithfully.
type WellState struct {
	Position Vec3    `json:"position"`
	Mass     float64 `json:"mass"`
	Radius   float64 `json:"radius"`
	Type     string  `json:"type"`
	Active   bool    `json:"active"`
}

// Request is one full tick snapshot posted to the worker. Per-tick data is
// fully replaced from each request; the worker keeps no particle state
// between ticks.
type Request struct {
	Particles []ParticleState `json:"particles"`
	DeltaTime float64         `json:"deltaTime"`
	Wells     []WellState     `json:"gravityWells"`
}

// Result carries post-tick particle states back to the owner.
type Result struct {
	Particles []ParticleResult `json:"particles"`
}

// ErrorPayload reports a failed tick: request validation or a recovered
// panic. The owning side logs it and keeps the previous canonical state.
type ErrorPayload struct {
	Message   string    `json:"message"`
	Phase     string    `json:"phase"`
	Timestamp time.Time `json:"timestamp"`
}

// Response is the union posted back per tick: exactly one field is set.
type Response struct {
	Result *Result
	Err    *ErrorPayload
}
