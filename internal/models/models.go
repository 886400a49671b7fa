package models

import "time"

// OperationKind names the generation mode that produced a history entry
type OperationKind string

const (
	OperationInitial    OperationKind = "initial"
	OperationInpaint    OperationKind = "inpaint"
	OperationControlnet OperationKind = "controlnet-edit"
)

// DesignSession is one design and its version history
type DesignSession struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	CreatedAt   time.Time      `json:"createdAt"`
	LatestImage *string        `json:"latestImage"`
	History     []HistoryEntry `json:"history"`
}

// HistoryEntry records one generation step, enough to audit or replay it
type HistoryEntry struct {
	Timestamp time.Time        `json:"timestamp"`
	ImageURL  string           `json:"imageUrl"`
	Operation OperationKind    `json:"operation"`
	Prompt    string           `json:"prompt"`
	Model     string           `json:"model,omitempty"`
	Params    GenerationParams `json:"params"`
	Width     int              `json:"width,omitempty"`
	Height    int              `json:"height,omitempty"`
}

// GenerationParams are the model inputs sent for a generation.
// Field names follow the remote model's input schema.
type GenerationParams struct {
	Prompt            string  `json:"prompt" yaml:"prompt"`
	Image             string  `json:"image,omitempty" yaml:"image,omitempty"`
	Mask              string  `json:"mask,omitempty" yaml:"mask,omitempty"`
	ControlImage      string  `json:"control_image,omitempty" yaml:"control_image,omitempty"`
	NumInferenceSteps int     `json:"num_inference_steps" yaml:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale,omitempty" yaml:"guidance_scale,omitempty"`
	NumSamples        int     `json:"num_samples" yaml:"num_samples"`
	Scheduler         string  `json:"scheduler" yaml:"scheduler"`
	Strength          float64 `json:"strength,omitempty" yaml:"strength,omitempty"`
}

// Clone returns a deep copy of the session
func (s DesignSession) Clone() DesignSession {
	out := s
	if s.LatestImage != nil {
		img := *s.LatestImage
		out.LatestImage = &img
	}
	out.History = CloneHistory(s.History)
	return out
}

// CloneHistory copies a history slice, returning an empty non-nil slice for nil input
func CloneHistory(h []HistoryEntry) []HistoryEntry {
	out := make([]HistoryEntry, len(h))
	copy(out, h)
	return out
}
