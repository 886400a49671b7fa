// Package dispatch turns a user's generation request into exactly one remote
// model call: it picks the mode, builds and validates the model inputs, runs
// the call once and unwraps the resulting image reference.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/lehigh-university-libraries/studio/internal/models"
	"github.com/lehigh-university-libraries/studio/internal/providers"
)

var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrGenerationFailed = errors.New("failed to generate image")
)

// RemoteError wraps a failure reported by the generation provider
type RemoteError struct {
	Err error
}

func (e *RemoteError) Error() string {
	return e.Err.Error()
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Request is the user-facing generation request
type Request struct {
	Prompt     string `json:"prompt"`
	Image      string `json:"image,omitempty"`
	Mask       string `json:"mask,omitempty"`
	Controlnet bool   `json:"controlnet,omitempty"`
	Inpaint    bool   `json:"inpaint,omitempty"`
}

// Plan is a validated request ready to send
type Plan struct {
	Mode   models.OperationKind
	Model  string
	Params models.GenerationParams
}

// Outcome is a successful dispatch
type Outcome struct {
	Plan
	ImageURL string
}

// Config holds the fixed generation parameters and model ids
type Config struct {
	InitialModel    string   `yaml:"initial_model"`
	InpaintModel    string   `yaml:"inpaint_model"`
	ControlnetModel string   `yaml:"controlnet_model"`
	PromptSuffix    string   `yaml:"prompt_suffix"`
	Steps           int      `yaml:"steps"`
	GuidanceScale   float64  `yaml:"guidance_scale"`
	NumSamples      int      `yaml:"num_samples"`
	Scheduler       string   `yaml:"scheduler"`
	InpaintStrength float64  `yaml:"inpaint_strength"`
	ExtensionHosts  []string `yaml:"extension_hosts"`
	DefaultExt      string   `yaml:"default_extension"`
}

// DefaultConfig returns the Flux models and sampling parameters
func DefaultConfig() Config {
	return Config{
		InitialModel:    "black-forest-labs/flux-1.1-pro",
		InpaintModel:    "black-forest-labs/flux-fill-pro",
		ControlnetModel: "black-forest-labs/flux-depth-pro",
		PromptSuffix:    ", super detailed, realistic, 8k",
		Steps:           30,
		GuidanceScale:   7.5,
		NumSamples:      1,
		Scheduler:       "DPM++ 2M Karras",
		InpaintStrength: 0.99,
		ExtensionHosts:  []string{"i.ibb.co"},
		DefaultExt:      ".jpg",
	}
}

// Dispatcher selects and runs generation modes
type Dispatcher struct {
	cfg       Config
	generator providers.Generator
}

func New(cfg Config, generator providers.Generator) *Dispatcher {
	return &Dispatcher{cfg: cfg, generator: generator}
}

// Plan selects the mode for req and builds its parameters. Priority:
// no image → initial; inpaint with a mask → inpaint; controlnet → controlnet edit.
func (d *Dispatcher) Plan(req Request) (Plan, error) {
	image := d.normalizeURL(req.Image)
	mask := d.normalizeURL(req.Mask)
	prompt := req.Prompt + d.cfg.PromptSuffix

	switch {
	case image == "":
		return Plan{
			Mode:  models.OperationInitial,
			Model: d.cfg.InitialModel,
			Params: models.GenerationParams{
				Prompt:            prompt,
				NumInferenceSteps: d.cfg.Steps,
				GuidanceScale:     d.cfg.GuidanceScale,
				NumSamples:        d.cfg.NumSamples,
				Scheduler:         d.cfg.Scheduler,
			},
		}, nil

	case req.Inpaint && mask != "":
		if err := validateURL("image", image); err != nil {
			return Plan{}, err
		}
		if err := validateURL("mask", mask); err != nil {
			return Plan{}, err
		}
		return Plan{
			Mode:  models.OperationInpaint,
			Model: d.cfg.InpaintModel,
			Params: models.GenerationParams{
				Prompt:            prompt,
				Image:             image,
				Mask:              mask,
				NumInferenceSteps: d.cfg.Steps,
				NumSamples:        d.cfg.NumSamples,
				Scheduler:         d.cfg.Scheduler,
				Strength:          d.cfg.InpaintStrength,
			},
		}, nil

	case req.Controlnet:
		if err := validateURL("image", image); err != nil {
			return Plan{}, err
		}
		return Plan{
			Mode:  models.OperationControlnet,
			Model: d.cfg.ControlnetModel,
			Params: models.GenerationParams{
				Prompt:            prompt,
				ControlImage:      image,
				NumInferenceSteps: d.cfg.Steps,
				GuidanceScale:     d.cfg.GuidanceScale,
				NumSamples:        d.cfg.NumSamples,
				Scheduler:         d.cfg.Scheduler,
			},
		}, nil
	}

	return Plan{}, fmt.Errorf("%w: must provide either a prompt for initial generation, inpaint with mask, or controlnet edit", ErrInvalidRequest)
}

// Dispatch plans req and makes a single remote call. There is no retry.
// On a remote failure the returned Outcome still carries the plan.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Outcome, error) {
	plan, err := d.Plan(req)
	if err != nil {
		return Outcome{}, err
	}

	slog.Info("Running generation", "mode", plan.Mode, "model", plan.Model)
	slog.Debug("Generation inputs", "params", plan.Params)

	out, err := d.generator.Run(ctx, plan.Model, plan.Params)
	if err != nil {
		return Outcome{Plan: plan}, &RemoteError{Err: err}
	}

	imageURL, ok := firstImage(out)
	if !ok {
		slog.Warn("Generation returned no usable image", "mode", plan.Mode, "output", string(out))
		return Outcome{Plan: plan}, ErrGenerationFailed
	}

	slog.Info("Generation finished", "mode", plan.Mode, "image_url", imageURL)
	return Outcome{Plan: plan, ImageURL: imageURL}, nil
}

// firstImage unwraps a scalar output or the first element of a list output
func firstImage(out json.RawMessage) (string, bool) {
	if len(out) == 0 {
		return "", false
	}

	var single string
	if err := json.Unmarshal(out, &single); err == nil {
		return single, single != ""
	}

	var list []string
	if err := json.Unmarshal(out, &list); err == nil && len(list) > 0 {
		return list[0], list[0] != ""
	}

	return "", false
}

var imageExt = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif)$`)

// normalizeURL appends the default extension to image-host links that lack one,
// since the models reject extensionless inputs
func (d *Dispatcher) normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || !d.isExtensionHost(u.Hostname()) {
		return raw
	}
	if imageExt.MatchString(path.Base(u.Path)) {
		return raw
	}
	u.Path += d.cfg.DefaultExt
	return u.String()
}

func (d *Dispatcher) isExtensionHost(host string) bool {
	for _, h := range d.cfg.ExtensionHosts {
		if strings.EqualFold(host, h) {
			return true
		}
	}
	return false
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s must be an absolute http(s) URL", ErrInvalidRequest, field)
	}
	return nil
}
