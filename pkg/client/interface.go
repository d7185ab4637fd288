// Package client defines the contract vision model backends implement.
package client

import "context"

// VisionClient sends one prompt with an image to a vision model and returns
// the raw text of the answer.
type VisionClient interface {
	Complete(ctx context.Context, model, prompt, imgB64 string) (string, error)
}

// Func adapts a function to VisionClient.
type Func func(ctx context.Context, model, prompt, imgB64 string) (string, error)

// Complete calls f.
func (f Func) Complete(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	return f(ctx, model, prompt, imgB64)
}
