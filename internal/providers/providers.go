package providers

import (
	"context"
	"encoding/json"
)

// Generator runs a hosted generative model.
// The output is the model's raw result: a single image URL or a list of them.
type Generator interface {
	Run(ctx context.Context, model string, input any) (json.RawMessage, error)
}

// Host stores an image remotely and returns a stable https URL.
// image is base64 data, optionally with a data: URL prefix.
type Host interface {
	Upload(ctx context.Context, image string) (string, error)
}
