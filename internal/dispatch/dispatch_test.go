package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/lehigh-university-libraries/studio/internal/models"
)

type fakeGenerator struct {
	out   json.RawMessage
	err   error
	calls int
	model string
	input any
}

func (f *fakeGenerator) Run(_ context.Context, model string, input any) (json.RawMessage, error) {
	f.calls++
	f.model = model
	f.input = input
	return f.out, f.err
}

func TestPlanModeSelection(t *testing.T) {
	d := New(DefaultConfig(), nil)

	tests := []struct {
		name     string
		req      Request
		expected models.OperationKind
		invalid  bool
	}{
		{
			name:     "no image is initial",
			req:      Request{Prompt: "a red car"},
			expected: models.OperationInitial,
		},
		{
			name:     "no image ignores inpaint and controlnet flags",
			req:      Request{Prompt: "a red car", Inpaint: true, Controlnet: true, Mask: "https://example.com/m.png"},
			expected: models.OperationInitial,
		},
		{
			name:     "inpaint with mask",
			req:      Request{Prompt: "p", Image: "https://example.com/a.png", Mask: "https://example.com/m.png", Inpaint: true},
			expected: models.OperationInpaint,
		},
		{
			name:     "inpaint wins over controlnet when mask present",
			req:      Request{Prompt: "p", Image: "https://example.com/a.png", Mask: "https://example.com/m.png", Inpaint: true, Controlnet: true},
			expected: models.OperationInpaint,
		},
		{
			name:     "inpaint without mask falls through to controlnet",
			req:      Request{Prompt: "p", Image: "https://example.com/a.png", Inpaint: true, Controlnet: true},
			expected: models.OperationControlnet,
		},
		{
			name:     "controlnet",
			req:      Request{Prompt: "p", Image: "https://example.com/a.png", Controlnet: true},
			expected: models.OperationControlnet,
		},
		{
			name:    "image without any mode",
			req:     Request{Prompt: "p", Image: "https://example.com/a.png"},
			invalid: true,
		},
		{
			name:    "inpaint without mask and no controlnet",
			req:     Request{Prompt: "p", Image: "https://example.com/a.png", Inpaint: true},
			invalid: true,
		},
		{
			name:    "malformed mask",
			req:     Request{Prompt: "p", Image: "https://example.com/a.png", Mask: "mask.png", Inpaint: true},
			invalid: true,
		},
		{
			name:    "malformed inpaint image",
			req:     Request{Prompt: "p", Image: "ftp://example.com/a.png", Mask: "https://example.com/m.png", Inpaint: true},
			invalid: true,
		},
		{
			name:    "malformed controlnet image",
			req:     Request{Prompt: "p", Image: "not-a-url", Controlnet: true},
			invalid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := d.Plan(tt.req)
			if tt.invalid {
				if !errors.Is(err, ErrInvalidRequest) {
					t.Errorf("Expected ErrInvalidRequest, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if plan.Mode != tt.expected {
				t.Errorf("Expected mode %s, got %s", tt.expected, plan.Mode)
			}
		})
	}
}

func TestPlanInitialParams(t *testing.T) {
	d := New(DefaultConfig(), nil)

	plan, err := d.Plan(Request{Prompt: "a red car"})
	if err != nil {
		t.Fatal(err)
	}
	if plan.Params.Prompt != "a red car, super detailed, realistic, 8k" {
		t.Errorf("Expected suffixed prompt, got %q", plan.Params.Prompt)
	}
	if plan.Params.NumInferenceSteps != 30 {
		t.Errorf("Expected 30 steps, got %d", plan.Params.NumInferenceSteps)
	}
	if plan.Params.GuidanceScale != 7.5 {
		t.Errorf("Expected guidance 7.5, got %v", plan.Params.GuidanceScale)
	}
	if plan.Params.NumSamples != 1 || plan.Params.Scheduler != "DPM++ 2M Karras" {
		t.Errorf("Unexpected sampling params: %+v", plan.Params)
	}
	if plan.Model != "black-forest-labs/flux-1.1-pro" {
		t.Errorf("Expected initial model, got %s", plan.Model)
	}
}

func TestPlanInpaintNormalizesHostURL(t *testing.T) {
	d := New(DefaultConfig(), nil)

	plan, err := d.Plan(Request{
		Prompt:  "add a hat",
		Image:   "https://i.ibb.co/abc/x",
		Mask:    "https://i.ibb.co/def/y.png",
		Inpaint: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if plan.Mode != models.OperationInpaint {
		t.Fatalf("Expected inpaint, got %s", plan.Mode)
	}
	if plan.Params.Image != "https://i.ibb.co/abc/x.jpg" {
		t.Errorf("Expected normalized image URL, got %s", plan.Params.Image)
	}
	if plan.Params.Mask != "https://i.ibb.co/def/y.png" {
		t.Errorf("Expected mask untouched, got %s", plan.Params.Mask)
	}
	if plan.Params.Strength != 0.99 {
		t.Errorf("Expected strength 0.99, got %v", plan.Params.Strength)
	}
	if plan.Params.GuidanceScale != 0 {
		t.Errorf("Expected no guidance scale for inpaint, got %v", plan.Params.GuidanceScale)
	}
}

func TestPlanControlnetUsesControlImage(t *testing.T) {
	d := New(DefaultConfig(), nil)

	plan, err := d.Plan(Request{Prompt: "p", Image: "https://example.com/a.png", Controlnet: true})
	if err != nil {
		t.Fatal(err)
	}
	if plan.Params.ControlImage != "https://example.com/a.png" || plan.Params.Image != "" {
		t.Errorf("Expected image as control input, got %+v", plan.Params)
	}
	if plan.Model != "black-forest-labs/flux-depth-pro" {
		t.Errorf("Expected depth model, got %s", plan.Model)
	}
}

func TestNormalizeURL(t *testing.T) {
	d := New(DefaultConfig(), nil)

	tests := []struct {
		in       string
		expected string
	}{
		{"https://i.ibb.co/abc/x", "https://i.ibb.co/abc/x.jpg"},
		{"https://i.ibb.co/abc/x.PNG", "https://i.ibb.co/abc/x.PNG"},
		{"https://i.ibb.co/abc/x.jpeg", "https://i.ibb.co/abc/x.jpeg"},
		{"https://example.com/abc/x", "https://example.com/abc/x"},
		{"not-a-url", "not-a-url"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := d.normalizeURL(tt.in); got != tt.expected {
			t.Errorf("normalizeURL(%q): expected %q, got %q", tt.in, tt.expected, got)
		}
	}
}

func TestDispatchUnwrapsFirstImage(t *testing.T) {
	gen := &fakeGenerator{out: json.RawMessage(`["https://img/1.png","https://img/2.png"]`)}
	d := New(DefaultConfig(), gen)

	outcome, err := d.Dispatch(context.Background(), Request{Prompt: "a red car"})
	if err != nil {
		t.Fatal(err)
	}
	if outcome.ImageURL != "https://img/1.png" {
		t.Errorf("Expected first image, got %s", outcome.ImageURL)
	}
	if gen.model != "black-forest-labs/flux-1.1-pro" {
		t.Errorf("Expected initial model to be called, got %s", gen.model)
	}
	if _, ok := gen.input.(models.GenerationParams); !ok {
		t.Errorf("Expected GenerationParams input, got %T", gen.input)
	}
}

func TestDispatchScalarOutput(t *testing.T) {
	gen := &fakeGenerator{out: json.RawMessage(`"https://img/only.webp"`)}
	d := New(DefaultConfig(), gen)

	outcome, err := d.Dispatch(context.Background(), Request{Prompt: "p"})
	if err != nil {
		t.Fatal(err)
	}
	if outcome.ImageURL != "https://img/only.webp" {
		t.Errorf("Expected scalar image, got %s", outcome.ImageURL)
	}
}

func TestDispatchEmptyOutput(t *testing.T) {
	for _, out := range []string{``, `null`, `[]`, `""`, `{"x":1}`} {
		gen := &fakeGenerator{out: json.RawMessage(out)}
		d := New(DefaultConfig(), gen)

		_, err := d.Dispatch(context.Background(), Request{Prompt: "p"})
		if !errors.Is(err, ErrGenerationFailed) {
			t.Errorf("output %q: expected ErrGenerationFailed, got %v", out, err)
		}
	}
}

func TestDispatchRemoteError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("prediction failed: NSFW content detected")}
	d := New(DefaultConfig(), gen)

	_, err := d.Dispatch(context.Background(), Request{Prompt: "p"})
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("Expected RemoteError, got %v", err)
	}
	if remote.Error() != "prediction failed: NSFW content detected" {
		t.Errorf("Expected provider message, got %s", remote.Error())
	}
	if gen.calls != 1 {
		t.Errorf("Expected a single attempt, got %d", gen.calls)
	}
}

func TestDispatchInvalidSkipsRemote(t *testing.T) {
	gen := &fakeGenerator{}
	d := New(DefaultConfig(), gen)

	_, err := d.Dispatch(context.Background(), Request{Prompt: "p", Image: "not-a-url", Controlnet: true})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest, got %v", err)
	}
	if gen.calls != 0 {
		t.Error("Expected no remote call for an invalid request")
	}
}
