package executor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
)

// AnthropicBackend executes tasks against the Anthropic API, directly
// or through AWS Bedrock.
type AnthropicBackend struct {
	client anthropic.Client
	model  anthropic.Model

	// perMTokIn / perMTokOut are dollar prices per million tokens,
	// used to attribute a cost to each call.
	perMTokIn  float64
	perMTokOut float64
}

// AnthropicConfig configures the Anthropic backend.
type AnthropicConfig struct {
	// Model is the default model; agents can override per request.
	Model string
	// APIKey is the Anthropic API key. Empty falls back to the
	// ANTHROPIC_API_KEY environment variable.
	APIKey string
	// UseAWSBedrock routes calls through AWS Bedrock instead of the
	// direct API.
	UseAWSBedrock bool
	// AWSRegion is the Bedrock region.
	AWSRegion string
	// AWSProfile is the optional shared-config profile.
	AWSProfile string
}

// NewAnthropicBackend creates the backend.
func NewAnthropicBackend(cfg AnthropicConfig) (*AnthropicBackend, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		ctx := context.Background()
		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("anthropic api key not configured")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}

	return &AnthropicBackend{
		client:     anthropic.NewClient(opts...),
		model:      model,
		perMTokIn:  3.0,
		perMTokOut: 15.0,
	}, nil
}

// Execute runs one prompt and returns the text output with its cost.
// Rate limits, server errors, and timeouts come back as transient.
func (b *AnthropicBackend) Execute(ctx context.Context, req *Request) (*Result, error) {
	model := b.model
	if req.Model != "" {
		model = anthropic.Model(req.Model)
	}

	resp, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: 8192,
		System: []anthropic.TextBlockParam{
			{Text: req.System},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		return nil, classifyError(err)
	}

	var output string
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			output += text.Text
		}
	}

	cost := float64(resp.Usage.InputTokens)/1_000_000*b.perMTokIn +
		float64(resp.Usage.OutputTokens)/1_000_000*b.perMTokOut
	return &Result{Output: output, Cost: cost}, nil
}

// classifyError sorts backend errors into transient and task-level.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransientError{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransientError{Err: err}
	}
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		if apierr.StatusCode == 429 || apierr.StatusCode >= 500 {
			return &TransientError{Err: err}
		}
	}
	return err
}
