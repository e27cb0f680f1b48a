package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jonwraymond/airelay/apierr"
	"github.com/jonwraymond/airelay/cache"
	"github.com/jonwraymond/airelay/observe"
)

// DefaultModel is used when neither the request nor the client names one.
const DefaultModel = string(anthropic.ModelClaudeSonnet4_5_20250929)

// ErrMissingAPIKey is returned by NewAnthropicClient without a key.
var ErrMissingAPIKey = errors.New("completion: api key is required")

// AnthropicConfig configures an AnthropicClient.
type AnthropicConfig struct {
	// APIKey authenticates every request. Required.
	APIKey string

	// BaseURL overrides the API endpoint.
	BaseURL string

	// Model is used when a request names none.
	// Default: DefaultModel
	Model string

	// MaxTokens is used when a request sets none.
	// Default: 1024
	MaxTokens int

	// Timeout bounds each HTTP request.
	// Default: 60s
	Timeout time.Duration

	// HTTPClient replaces the SDK's HTTP client.
	HTTPClient *http.Client
}

// AnthropicClient is a Completer backed by the Anthropic Messages API. The
// SDK's own retries are disabled; retrying belongs to the reliability
// facade wrapping this client.
type AnthropicClient struct {
	client anthropic.Client
	config AnthropicConfig
}

// NewAnthropicClient creates a client from config.
func NewAnthropicClient(config AnthropicConfig) (*AnthropicClient, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 1024
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(config.Timeout),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(config.HTTPClient))
	}

	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		config: config,
	}, nil
}

// Complete sends req as one Messages call. Streaming requests are
// accumulated into a single Response.
func (c *AnthropicClient) Complete(ctx context.Context, req cache.Request) (Response, error) {
	opts := apierr.Options{CorrelationID: observe.CorrelationIDFromContext(ctx)}

	params, err := c.params(req, opts)
	if err != nil {
		return Response{}, err
	}

	var msg *anthropic.Message
	if req.Stream {
		msg, err = c.stream(ctx, params, opts)
	} else {
		msg, err = c.client.Messages.New(ctx, params)
		if err != nil {
			err = classify(err, opts)
		}
	}
	if err != nil {
		return Response{}, err
	}
	return toResponse(msg, opts)
}

func (c *AnthropicClient) params(req cache.Request, opts apierr.Options) (anthropic.MessageNewParams, error) {
	model := req.Model
	if model == "" {
		model = c.config.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.config.MaxTokens
	}

	msgs := make([]anthropic.MessageParam, 0, len(req.Messages))
	for i, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		switch m.Role {
		case cache.RoleUser:
			msgs = append(msgs, anthropic.NewUserMessage(block))
		case cache.RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantMessage(block))
		default:
			return anthropic.MessageNewParams{}, apierr.NewValidation(
				fmt.Sprintf("message %d has unsupported role %q", i, m.Role), opts)
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	return params, nil
}

func (c *AnthropicClient) stream(ctx context.Context, params anthropic.MessageNewParams, opts apierr.Options) (*anthropic.Message, error) {
	stream := c.client.Messages.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	msg := anthropic.Message{}
	for stream.Next() {
		if err := msg.Accumulate(stream.Current()); err != nil {
			opts.Cause = err
			return nil, apierr.NewResponseParsing("malformed stream event", opts)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, classify(err, opts)
	}
	return &msg, nil
}

// classify maps SDK failures into the error taxonomy: API status errors by
// status code, everything else as a transport failure.
func classify(err error, opts apierr.Options) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		var header http.Header
		if apiErr.Response != nil {
			header = apiErr.Response.Header
		}
		opts.Cause = err
		return apierr.FromStatus(apiErr.StatusCode, header, apiErr.RawJSON(), opts)
	}
	return apierr.FromTransport(err, opts)
}

func toResponse(msg *anthropic.Message, opts apierr.Options) (Response, error) {
	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return Response{}, apierr.NewResponseParsing("completion contained no text", opts)
	}

	return Response{
		Text:         text.String(),
		Model:        string(msg.Model),
		StopReason:   string(msg.StopReason),
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}, nil
}

// Ensure AnthropicClient implements Completer
var _ Completer = (*AnthropicClient)(nil)
