// Package translate implements the LLM translation stage against the OpenAI
// chat-completions API. One call translates a whole batch of text blocks,
// optionally attaching a page image as visual context for vision models.
package translate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/comictl/comictl/internal/textblock"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o"
	defaultTimeout = 120 * time.Second
	baseRetryDelay = 2 * time.Second
	maxTokens      = 5000
)

// Options configures the OpenAI translator.
type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	SendImage  bool // attach the context image to the request
	Timeout    time.Duration
	MaxRetries int
}

// OpenAI translates text blocks through the chat-completions endpoint.
type OpenAI struct {
	opts       Options
	client     *http.Client
	apiURL     string
	retryDelay time.Duration
}

// New creates an OpenAI translator.
func New(opts Options) *OpenAI {
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	return &OpenAI{
		opts:       opts,
		client:     &http.Client{Timeout: opts.Timeout},
		apiURL:     normalizeAPIURL(opts.BaseURL),
		retryDelay: baseRetryDelay,
	}
}

// ForLanguages binds the client to a language pair, satisfying the
// pipeline's stage.Translator contract. The pipeline constructs one bound
// translator per batch from the batch's first record.
func (o *OpenAI) ForLanguages(srcLang, dstLang string) *Bound {
	return &Bound{client: o, srcLang: srcLang, dstLang: dstLang}
}

// Bound is an OpenAI client fixed to one source/target language pair.
type Bound struct {
	client  *OpenAI
	srcLang string
	dstLang string
}

// Translate implements stage.Translator.
func (b *Bound) Translate(ctx context.Context, blocks []textblock.TextBlock,
	contextImage image.Image, extraContext string,
) ([]textblock.TextBlock, error) {
	return b.client.TranslateBlocks(ctx, blocks, b.srcLang, b.dstLang, contextImage, extraContext)
}

// normalizeAPIURL ensures the endpoint ends with /chat/completions.
func normalizeAPIURL(url string) string {
	url = strings.TrimSuffix(url, "/")
	if strings.HasSuffix(url, "/chat/completions") {
		return url
	}
	return url + "/chat/completions"
}

// Translate translates every block from srcLang to dstLang in one API call.
// The returned slice has exactly the input's length and order with
// Translation populated; the input is not mutated.
func (o *OpenAI) TranslateBlocks(ctx context.Context, blocks []textblock.TextBlock,
	srcLang, dstLang string, contextImage image.Image, extraContext string,
) ([]textblock.TextBlock, error) {
	if o.opts.APIKey == "" {
		return nil, errors.New("translator API key is not configured")
	}
	if len(blocks) == 0 {
		return nil, nil
	}

	raw, err := textblock.RawText(blocks)
	if err != nil {
		return nil, err
	}

	payload, err := o.buildPayload(raw, srcLang, dstLang, contextImage, extraContext)
	if err != nil {
		return nil, err
	}

	content, err := o.completeWithRetry(ctx, payload)
	if err != nil {
		return nil, err
	}

	translations, err := parseTranslations(content, len(blocks))
	if err != nil {
		return nil, err
	}

	out := make([]textblock.TextBlock, len(blocks))
	copy(out, blocks)
	for i := range out {
		out[i].Translation = translations[i]
	}
	return out, nil
}

func systemPrompt(srcLang, dstLang string) string {
	return fmt.Sprintf(
		"You are an expert comic and manga translator. Translate the given "+
			"speech-bubble texts from %s to %s. The input is a JSON object whose "+
			"keys are block identifiers; respond with a JSON object using exactly "+
			"the same keys, where each value is the translation. Keep the tone "+
			"natural for comics, preserve honorifics where appropriate, and do "+
			"not add commentary outside the JSON object.", srcLang, dstLang)
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []chatContent `json:"content"`
}

type chatContent struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	ResponseFmt *respFormat   `json:"response_format,omitempty"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

func (o *OpenAI) buildPayload(raw, srcLang, dstLang string,
	contextImage image.Image, extraContext string,
) ([]byte, error) {
	userText := raw
	if extraContext != "" {
		userText = extraContext + "\n\n" + raw
	}

	userContent := []chatContent{{Type: "text", Text: userText}}
	if o.opts.SendImage && contextImage != nil {
		encoded, err := encodePNGBase64(contextImage)
		if err != nil {
			return nil, err
		}
		userContent = append(userContent, chatContent{
			Type:     "image_url",
			ImageURL: &imageURL{URL: "data:image/png;base64," + encoded},
		})
	}

	req := chatRequest{
		Model: o.opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: []chatContent{{Type: "text", Text: systemPrompt(srcLang, dstLang)}}},
			{Role: "user", Content: userContent},
		},
		Temperature: 1.0,
		MaxTokens:   maxTokens,
		ResponseFmt: &respFormat{Type: "json_object"},
	}
	return json.Marshal(req)
}

func encodePNGBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode context image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// completeWithRetry posts the payload, retrying transient failures
// (rate limits and server errors) with linear backoff.
func (o *OpenAI) completeWithRetry(ctx context.Context, payload []byte) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= o.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := o.retryDelay * time.Duration(attempt)
			slog.Debug("retrying translation call", "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		content, retryable, err := o.complete(ctx, payload)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
	}
	return "", fmt.Errorf("translation failed after %d attempts: %w", o.opts.MaxRetries+1, lastErr)
}

func (o *OpenAI) complete(ctx context.Context, payload []byte) (content string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.opts.APIKey)

	resp, err := o.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		return "", true, fmt.Errorf("translation request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", true, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retryable, fmt.Errorf("translation API returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", false, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", false, fmt.Errorf("translation API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", false, errors.New("translation API returned no choices")
	}
	return parsed.Choices[0].Message.Content, false, nil
}

// parseTranslations extracts block_i keys from the model's JSON reply.
// Every input block must have a corresponding translation so callers can
// redistribute results by index range.
func parseTranslations(content string, count int) ([]string, error) {
	content = stripCodeFence(content)

	var obj map[string]string
	if err := json.Unmarshal([]byte(content), &obj); err != nil {
		return nil, fmt.Errorf("translation reply is not a JSON object: %w", err)
	}

	out := make([]string, count)
	for i := 0; i < count; i++ {
		v, ok := obj[fmt.Sprintf("block_%d", i)]
		if !ok {
			return nil, fmt.Errorf("translation reply is missing block_%d (%d blocks expected)", i, count)
		}
		out[i] = v
	}
	return out, nil
}

// stripCodeFence removes a ```json ... ``` wrapper some models add.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
