// Package provider exposes a uniform completion/stream facade over the
// vendor transports. Translation to and from vendor wire formats is
// delegated to the transform layer; this package owns HTTP, SSE, and SDK
// plumbing only.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/MLGBJDLW/vellum-sub012/internal/llm"
	"github.com/MLGBJDLW/vellum-sub012/internal/llm/transform"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Options configures a client before use.
type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Headers map[string]string
}

// CompletionParams is one completion or stream request.
type CompletionParams struct {
	Model         string
	Messages      []llm.Message
	Tools         []transform.ToolDef
	MaxTokens     int
	Temperature   float32
	EnableCaching bool
}

// Client is the uniform facade for one provider. Initialize must be
// called before any other method.
type Client struct {
	provider    string
	opts        Options
	transforms  *transform.Registry
	anthropic   *anthropic.Client
	openai      *openai.Client
	httpClient  *http.Client
	initialized bool
}

// New creates an uninitialized client for the given provider name.
func New(provider string, transforms *transform.Registry) *Client {
	return &Client{provider: strings.ToLower(provider), transforms: transforms}
}

// Initialize wires credentials and transports. It is required before
// Complete, Stream, ListModels, or ValidateCredential.
func (c *Client) Initialize(opts Options) error {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	c.opts = opts
	c.httpClient = &http.Client{Timeout: opts.Timeout}

	switch c.provider {
	case "anthropic":
		if opts.APIKey == "" {
			return llm.NewError(llm.ErrInvalidArgument, fmt.Errorf("anthropic requires an API key"))
		}
		c.anthropic = anthropic.NewClient(opts.APIKey)
	case "gemini":
		if opts.APIKey == "" {
			return llm.NewError(llm.ErrInvalidArgument, fmt.Errorf("gemini requires an API key"))
		}
	default:
		// OpenAI and every OpenAI-compatible vendor.
		key := opts.APIKey
		if key == "" {
			if !isLocalVendor(c.provider) {
				return llm.NewError(llm.ErrInvalidArgument, fmt.Errorf("%s requires an API key", c.provider))
			}
			key = "not-needed" // local servers ignore the key
		}
		cfg := openai.DefaultConfig(key)
		if opts.BaseURL != "" {
			cfg.BaseURL = opts.BaseURL
		} else if base := transform.VendorBaseURL(c.provider); base != "" {
			cfg.BaseURL = base
		}
		c.openai = openai.NewClientWithConfig(cfg)
	}

	c.initialized = true
	return nil
}

func isLocalVendor(provider string) bool {
	return provider == "ollama" || provider == "lmstudio"
}

func (c *Client) ensureInitialized() error {
	if !c.initialized {
		return llm.NewError(llm.ErrInternal, fmt.Errorf("provider %s used before Initialize", c.provider))
	}
	return nil
}

// Provider returns the provider name this client drives.
func (c *Client) Provider() string { return c.provider }

// CountTokens estimates the token count of input for the given model.
// Synchronous; never touches the network.
func (c *Client) CountTokens(input string, _ string) int {
	return llm.EstimateTokens(input)
}

// Complete runs one non-streaming completion.
func (c *Client) Complete(ctx context.Context, params CompletionParams) (llm.ParsedResponse, []transform.Warning, error) {
	if err := c.ensureInitialized(); err != nil {
		return llm.ParsedResponse{}, nil, err
	}
	tf, err := c.transforms.Get(c.provider)
	if err != nil {
		return llm.ParsedResponse{}, nil, err
	}

	cfg := transform.Config{
		ModelID:       params.Model,
		EnableCaching: params.EnableCaching,
		MaxTokens:     params.MaxTokens,
		Temperature:   params.Temperature,
	}

	payload, warnings, err := tf.TransformMessages(params.Messages, cfg)
	if err != nil {
		return llm.ParsedResponse{}, warnings, err
	}
	tools, toolWarnings, err := tf.TransformTools(params.Tools, cfg)
	warnings = append(warnings, toolWarnings...)
	if err != nil {
		return llm.ParsedResponse{}, warnings, err
	}
	if cacher, ok := tf.(transform.Cacher); ok {
		warnings = append(warnings, cacher.ApplyCaching(&payload, &tools, cfg)...)
	}

	var response any
	switch c.provider {
	case "anthropic":
		response, err = c.completeAnthropic(ctx, payload, tools, params)
	case "gemini":
		response, err = c.completeGemini(ctx, payload, tools, params)
	default:
		response, err = c.completeOpenAI(ctx, payload, tools, params)
	}
	if err != nil {
		return llm.ParsedResponse{}, warnings, wrapProviderError(c.provider, err)
	}

	parsed, parseWarnings, err := tf.ParseResponse(response, cfg)
	warnings = append(warnings, parseWarnings...)
	return parsed, warnings, err
}

func (c *Client) completeAnthropic(ctx context.Context, payload transform.MessagesPayload, tools transform.ToolsPayload, params CompletionParams) (any, error) {
	data, ok := payload.Data.(*transform.AnthropicMessages)
	if !ok {
		return nil, fmt.Errorf("unexpected anthropic payload %T", payload.Data)
	}

	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	req := anthropic.MessagesRequest{
		Model:     anthropic.Model(params.Model),
		Messages:  data.Messages,
		MaxTokens: maxTokens,
	}
	if params.Temperature > 0 {
		temp := params.Temperature
		req.Temperature = &temp
	}
	if len(data.System) > 0 {
		req.MultiSystem = data.System
	}
	if defs, ok := tools.Data.([]anthropic.ToolDefinition); ok && len(defs) > 0 {
		req.Tools = defs
	}

	resp, err := c.anthropic.CreateMessages(ctx, req)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) completeOpenAI(ctx context.Context, payload transform.MessagesPayload, tools transform.ToolsPayload, params CompletionParams) (any, error) {
	msgs, ok := payload.Data.([]openai.ChatCompletionMessage)
	if !ok {
		return nil, fmt.Errorf("unexpected openai payload %T", payload.Data)
	}

	req := openai.ChatCompletionRequest{
		Model:    params.Model,
		Messages: msgs,
	}
	if params.MaxTokens > 0 {
		req.MaxTokens = params.MaxTokens
	}
	if params.Temperature > 0 {
		temp := params.Temperature
		req.Temperature = &temp
	}
	if defs, ok := tools.Data.([]openai.Tool); ok && len(defs) > 0 {
		req.Tools = defs
	}

	resp, err := c.openai.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// geminiRequest is the Generate Content request body.
type geminiRequest struct {
	Contents          []transform.GeminiContent `json:"contents"`
	SystemInstruction *transform.GeminiContent  `json:"systemInstruction,omitempty"`
	Tools             []transform.GeminiTool    `json:"tools,omitempty"`
	GenerationConfig  *geminiGenerationConfig   `json:"generationConfig,omitempty"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float32 `json:"temperature,omitempty"`
}

func (c *Client) buildGeminiRequest(payload transform.MessagesPayload, tools transform.ToolsPayload, params CompletionParams) (*geminiRequest, error) {
	contents, ok := payload.Data.([]transform.GeminiContent)
	if !ok {
		return nil, fmt.Errorf("unexpected gemini payload %T", payload.Data)
	}
	req := &geminiRequest{Contents: contents}
	if sys, ok := payload.System.(*transform.GeminiContent); ok && sys != nil {
		req.SystemInstruction = sys
	}
	if defs, ok := tools.Data.([]transform.GeminiTool); ok && len(defs) > 0 && len(defs[0].FunctionDeclarations) > 0 {
		req.Tools = defs
	}
	if params.MaxTokens > 0 || params.Temperature > 0 {
		req.GenerationConfig = &geminiGenerationConfig{
			MaxOutputTokens: params.MaxTokens,
			Temperature:     params.Temperature,
		}
	}
	return req, nil
}

func (c *Client) geminiBaseURL() string {
	if c.opts.BaseURL != "" {
		return strings.TrimSuffix(c.opts.BaseURL, "/")
	}
	return defaultGeminiBaseURL
}

func (c *Client) completeGemini(ctx context.Context, payload transform.MessagesPayload, tools transform.ToolsPayload, params CompletionParams) (any, error) {
	req, err := c.buildGeminiRequest(payload, tools, params)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.geminiBaseURL(), url.PathEscape(params.Model), url.QueryEscape(c.opts.APIKey))

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range c.opts.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, &llm.Error{
			Kind:       llm.ErrProvider,
			Err:        fmt.Errorf("gemini returned %d: %s", httpResp.StatusCode, truncateBody(respBody)),
			HTTPStatus: httpResp.StatusCode,
			Retryable:  httpResp.StatusCode == 429 || httpResp.StatusCode >= 500,
			RetryAfter: httpResp.Header.Get("Retry-After"),
		}
	}

	var resp transform.GeminiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding gemini response: %w", err)
	}
	return &resp, nil
}

func truncateBody(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// Stream runs one streaming completion. The returned channel carries the
// normalized event sequence and is closed after Done. Provider failures
// mid-stream terminate with an Error event followed by Done{error}.
func (c *Client) Stream(ctx context.Context, params CompletionParams) (<-chan llm.StreamEvent, error) {
	if err := c.ensureInitialized(); err != nil {
		return nil, err
	}
	tf, err := c.transforms.Get(c.provider)
	if err != nil {
		return nil, err
	}

	cfg := transform.Config{
		ModelID:       params.Model,
		EnableCaching: params.EnableCaching,
		MaxTokens:     params.MaxTokens,
		Temperature:   params.Temperature,
	}
	payload, _, err := tf.TransformMessages(params.Messages, cfg)
	if err != nil {
		return nil, err
	}
	tools, _, err := tf.TransformTools(params.Tools, cfg)
	if err != nil {
		return nil, err
	}
	if cacher, ok := tf.(transform.Cacher); ok {
		cacher.ApplyCaching(&payload, &tools, cfg)
	}

	events := make(chan llm.StreamEvent, 16)
	switch c.provider {
	case "anthropic":
		go c.streamAnthropic(ctx, payload, tools, params, events)
	case "gemini":
		gt, ok := tf.(*transform.GeminiTransform)
		if !ok {
			close(events)
			return nil, llm.NewError(llm.ErrInternal, fmt.Errorf("gemini transform has unexpected type %T", tf))
		}
		go c.streamGemini(ctx, gt, payload, tools, params, events)
	default:
		ot, ok := tf.(*transform.OpenAITransform)
		if !ok {
			close(events)
			return nil, llm.NewError(llm.ErrInternal, fmt.Errorf("%s transform has unexpected type %T", c.provider, tf))
		}
		go c.streamOpenAI(ctx, ot, payload, tools, params, events)
	}
	return events, nil
}

func emitStreamFailure(events chan<- llm.StreamEvent, provider string, err error) {
	wrapped := wrapProviderError(provider, err)
	var code string
	retryable := false
	if e, ok := wrapped.(*llm.Error); ok {
		code = e.Code
		retryable = e.Retryable || llm.ClassifyProviderError(e) == llm.RetryClassRetryable
	}
	events <- llm.StreamEvent{
		Type:      llm.EventError,
		ErrCode:   code,
		ErrText:   err.Error(),
		Retryable: retryable,
	}
	events <- llm.StreamEvent{Type: llm.EventDone, StopReason: llm.StopError}
}

func (c *Client) streamAnthropic(ctx context.Context, payload transform.MessagesPayload, tools transform.ToolsPayload, params CompletionParams, events chan<- llm.StreamEvent) {
	defer close(events)

	data, ok := payload.Data.(*transform.AnthropicMessages)
	if !ok {
		emitStreamFailure(events, c.provider, fmt.Errorf("unexpected anthropic payload %T", payload.Data))
		return
	}

	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	req := anthropic.MessagesStreamRequest{
		MessagesRequest: anthropic.MessagesRequest{
			Model:     anthropic.Model(params.Model),
			Messages:  data.Messages,
			MaxTokens: maxTokens,
		},
	}
	if params.Temperature > 0 {
		temp := params.Temperature
		req.Temperature = &temp
	}
	if len(data.System) > 0 {
		req.MultiSystem = data.System
	}
	if defs, ok := tools.Data.([]anthropic.ToolDefinition); ok && len(defs) > 0 {
		req.Tools = defs
	}

	acc := transform.NewToolInputAccumulators()

	req.OnContentBlockDelta = func(delta anthropic.MessagesEventContentBlockDeltaData) {
		if delta.Delta.Type == "text_delta" && delta.Delta.Text != nil {
			select {
			case events <- llm.StreamEvent{Type: llm.EventText, Text: *delta.Delta.Text}:
			case <-ctx.Done():
			}
		}
	}
	req.OnContentBlockStop = func(_ anthropic.MessagesEventContentBlockStopData, content anthropic.MessageContent) {
		if content.Type != anthropic.MessagesContentTypeToolUse || content.MessageContentToolUse == nil {
			return
		}
		tu := content.MessageContentToolUse
		input := string(tu.Input)
		if input == "" {
			input = "{}"
		}
		delta := acc.Push(tu.ID, tu.Name, input)
		for _, ev := range append([]llm.StreamEvent{delta}, acc.FlushAll()...) {
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}

	resp, err := c.anthropic.CreateMessagesStream(ctx, req)
	if err != nil {
		emitStreamFailure(events, c.provider, err)
		return
	}

	if resp.Usage.InputTokens > 0 || resp.Usage.OutputTokens > 0 {
		acc.SetUsage(llm.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		})
	}
	acc.SetStopReason(anthropicStreamStopReason(string(resp.StopReason), acc.SawToolCalls()))

	for _, ev := range acc.Finish() {
		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func anthropicStreamStopReason(reason string, sawTools bool) llm.StopReason {
	switch reason {
	case "max_tokens":
		return llm.StopMaxTokens
	case "stop_sequence":
		return llm.StopSequence
	case "tool_use":
		return llm.StopToolUse
	default:
		if sawTools {
			return llm.StopToolUse
		}
		return llm.StopEndTurn
	}
}

func (c *Client) streamOpenAI(ctx context.Context, tf *transform.OpenAITransform, payload transform.MessagesPayload, tools transform.ToolsPayload, params CompletionParams, events chan<- llm.StreamEvent) {
	defer close(events)

	msgs, ok := payload.Data.([]openai.ChatCompletionMessage)
	if !ok {
		emitStreamFailure(events, c.provider, fmt.Errorf("unexpected openai payload %T", payload.Data))
		return
	}

	req := openai.ChatCompletionRequest{
		Model:    params.Model,
		Messages: msgs,
		Stream:   true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}
	if params.MaxTokens > 0 {
		req.MaxTokens = params.MaxTokens
	}
	if params.Temperature > 0 {
		temp := params.Temperature
		req.Temperature = &temp
	}
	if defs, ok := tools.Data.([]openai.Tool); ok && len(defs) > 0 {
		req.Tools = defs
	}

	stream, err := c.openai.CreateChatCompletionStream(ctx, req)
	if err != nil {
		emitStreamFailure(events, c.provider, err)
		return
	}
	defer stream.Close()

	acc := transform.NewToolInputAccumulators()
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			emitStreamFailure(events, c.provider, err)
			return
		}
		for _, ev := range tf.ParseStreamChunk(chunk, acc) {
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}

	for _, ev := range acc.Finish() {
		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) streamGemini(ctx context.Context, tf *transform.GeminiTransform, payload transform.MessagesPayload, tools transform.ToolsPayload, params CompletionParams, events chan<- llm.StreamEvent) {
	defer close(events)

	req, err := c.buildGeminiRequest(payload, tools, params)
	if err != nil {
		emitStreamFailure(events, c.provider, err)
		return
	}
	endpoint := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s",
		c.geminiBaseURL(), url.PathEscape(params.Model), url.QueryEscape(c.opts.APIKey))

	body, err := json.Marshal(req)
	if err != nil {
		emitStreamFailure(events, c.provider, err)
		return
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		emitStreamFailure(events, c.provider, err)
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	for k, v := range c.opts.Headers {
		httpReq.Header.Set(k, v)
	}

	// Streams outlive the request timeout; rely on ctx for cancellation.
	streamClient := &http.Client{}
	httpResp, err := streamClient.Do(httpReq)
	if err != nil {
		emitStreamFailure(events, c.provider, err)
		return
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		emitStreamFailure(events, c.provider, &llm.Error{
			Kind:       llm.ErrProvider,
			Err:        fmt.Errorf("gemini returned %d: %s", httpResp.StatusCode, truncateBody(respBody)),
			HTTPStatus: httpResp.StatusCode,
			Retryable:  httpResp.StatusCode == 429 || httpResp.StatusCode >= 500,
		})
		return
	}

	acc := transform.NewToolInputAccumulators()
	err = parseSSE(httpResp.Body, func(data string) error {
		var chunk transform.GeminiResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil // tolerate malformed keep-alive payloads
		}
		for _, ev := range tf.ParseStreamChunk(&chunk, acc) {
			select {
			case events <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	if err != nil {
		emitStreamFailure(events, c.provider, err)
		return
	}

	for _, ev := range acc.Finish() {
		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// wrapProviderError attaches HTTP status and Retry-After metadata gleaned
// from the vendor error so the retry loop can classify it.
func wrapProviderError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var existing *llm.Error
	if ok := asLLMError(err, &existing); ok {
		return err
	}
	status, retryAfter := extractErrorMetadata(err)
	return &llm.Error{
		Kind:       llm.ErrProvider,
		Err:        fmt.Errorf("%s: %w", provider, err),
		HTTPStatus: status,
		RetryAfter: retryAfter,
		Retryable:  status == 429 || status >= 500,
	}
}

func asLLMError(err error, target **llm.Error) bool {
	for e := err; e != nil; {
		if le, ok := e.(*llm.Error); ok {
			*target = le
			return true
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		e = u.Unwrap()
	}
	return false
}

// extractErrorMetadata pulls an HTTP status code and Retry-After value out
// of a vendor error message.
func extractErrorMetadata(err error) (int, string) {
	if err == nil {
		return 0, ""
	}
	errStr := err.Error()
	var status int
	switch {
	case strings.Contains(errStr, "429"):
		status = http.StatusTooManyRequests
	case strings.Contains(errStr, "500"):
		status = http.StatusInternalServerError
	case strings.Contains(errStr, "502"):
		status = http.StatusBadGateway
	case strings.Contains(errStr, "503"):
		status = http.StatusServiceUnavailable
	case strings.Contains(errStr, "504"):
		status = http.StatusGatewayTimeout
	case strings.Contains(errStr, "401"):
		status = http.StatusUnauthorized
	case strings.Contains(errStr, "403"):
		status = http.StatusForbidden
	case strings.Contains(errStr, "400"):
		status = http.StatusBadRequest
	}

	var retryAfter string
	lower := strings.ToLower(errStr)
	if idx := strings.Index(lower, "retry-after"); idx != -1 {
		parts := strings.Fields(errStr[idx+len("retry-after"):])
		if len(parts) > 0 {
			retryAfter = strings.Trim(parts[0], ":,")
		}
	}
	return status, retryAfter
}
