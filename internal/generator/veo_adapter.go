package generator

import (
	"context"
	"fmt"

	"github.com/reframelab/reframe-api/internal/veo"
)

// Compile-time check that VeoAdapter implements Backend.
var _ Backend = (*VeoAdapter)(nil)

// VeoAdapter adapts the Veo client to the Backend port.
type VeoAdapter struct {
	client veo.Client
}

// NewVeoAdapter creates a new Veo backend adapter.
func NewVeoAdapter(client veo.Client) *VeoAdapter {
	return &VeoAdapter{client: client}
}

// Submit starts a generation operation and returns its name as the handle.
func (a *VeoAdapter) Submit(ctx context.Context, imagePNG []byte, opts SubmitOptions) (string, error) {
	name, err := a.client.StartGeneration(ctx, imagePNG, opts.Prompt)
	if err != nil {
		return "", fmt.Errorf("veo adapter submit: %w", err)
	}
	return name, nil
}

// CheckStatus polls the operation behind handle. Veo does not declare the
// output resolution in the operation response, so Width and Height stay zero
// and the caller probes the downloaded asset.
func (a *VeoAdapter) CheckStatus(ctx context.Context, handle string) (StatusResult, error) {
	op, err := a.client.FetchOperation(ctx, handle)
	if err != nil {
		return StatusResult{}, fmt.Errorf("veo adapter check status: %w", err)
	}

	switch {
	case !op.Done:
		return StatusResult{State: StateRunning}, nil
	case op.ErrorMessage != "":
		return StatusResult{State: StateFailed, Detail: op.ErrorMessage}, nil
	default:
		return StatusResult{State: StateSucceeded, ResultRef: op.VideoURI}, nil
	}
}

// Fetch downloads the generated video from its gs:// reference.
func (a *VeoAdapter) Fetch(ctx context.Context, resultRef string) ([]byte, error) {
	data, err := a.client.Download(ctx, resultRef)
	if err != nil {
		return nil, fmt.Errorf("veo adapter fetch: %w", err)
	}
	return data, nil
}
