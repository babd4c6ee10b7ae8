package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"

	"github.com/ignite/audience-segments/internal/pkg/retry"
)

const defaultBedrockModel = "anthropic.claude-3-haiku-20240307-v1:0"

// BedrockInvoker is the subset of the Bedrock runtime client used here.
type BedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockClient completes prompts with an Anthropic model on AWS Bedrock.
type BedrockClient struct {
	client  BedrockInvoker
	modelID string
	timeout time.Duration
}

// NewBedrockClient loads the default AWS credential chain for region.
func NewBedrockClient(ctx context.Context, region, modelID string, timeout time.Duration) (*BedrockClient, error) {
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewBedrockClientWith(bedrockruntime.NewFromConfig(cfg), modelID, timeout), nil
}

// NewBedrockClientWith wraps an existing invoker.
func NewBedrockClientWith(client BedrockInvoker, modelID string, timeout time.Duration) *BedrockClient {
	if modelID == "" {
		modelID = defaultBedrockModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &BedrockClient{client: client, modelID: modelID, timeout: timeout}
}

type bedrockContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type bedrockMessage struct {
	Role    string           `json:"role"`
	Content []bedrockContent `json:"content"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature"`
}

type bedrockResponse struct {
	Content []bedrockContent `json:"content"`
}

// Complete invokes the model once, bounded by the client timeout.
func (b *BedrockClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}
	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		System:           req.System,
		Messages: []bedrockMessage{{
			Role:    "user",
			Content: []bedrockContent{{Type: "text", Text: req.User}},
		}},
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("marshal Bedrock request: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", classifyBedrockError(err)
	}

	var resp bedrockResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse Bedrock response: %w", err)
	}
	var text string
	for _, c := range resp.Content {
		if c.Type == "text" {
			text += c.Text
		}
	}
	return text, nil
}

// Throttling and server-side Bedrock exceptions are worth another attempt.
var retryableBedrockCodes = map[string]bool{
	"ThrottlingException":         true,
	"ServiceUnavailableException": true,
	"InternalServerException":     true,
	"ModelNotReadyException":      true,
	"ModelTimeoutException":       true,
}

// classifyBedrockError marks client faults such as AccessDenied or
// ValidationException permanent. Network errors stay retryable.
func classifyBedrockError(err error) error {
	wrapped := fmt.Errorf("Bedrock API error: %w", err)

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if retryableBedrockCodes[apiErr.ErrorCode()] {
			return wrapped
		}
		if apiErr.ErrorFault() == smithy.FaultClient {
			return retry.Permanent(wrapped)
		}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		code := respErr.HTTPStatusCode()
		if code >= 400 && code < 500 && code != http.StatusTooManyRequests && code != http.StatusRequestTimeout {
			return retry.Permanent(wrapped)
		}
	}
	return wrapped
}
