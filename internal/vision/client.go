package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"khoj/internal/config"
	"khoj/internal/logging"
	"khoj/internal/services"
)

// openAIAnalyzer talks to an OpenAI-compatible endpoint. Requests are rate
// limited client-side so a burst of sighting uploads cannot exhaust the
// account quota.
type openAIAnalyzer struct {
	client         *openai.Client
	model          string
	embeddingModel string
	timeout        time.Duration
	limiter        *rate.Limiter
	logger         *slog.Logger
}

func newOpenAIAnalyzer(cfg config.Vision, logger *slog.Logger) *openAIAnalyzer {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	perMinute := cfg.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 20
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &openAIAnalyzer{
		client:         openai.NewClientWithConfig(clientConfig),
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		timeout:        timeout,
		limiter:        rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		logger:         logger.With(logging.String(logging.FieldComponent, "vision")),
	}
}

func (a *openAIAnalyzer) AnalyzeImage(ctx context.Context, imageData []byte, prompt string) (Analysis, error) {
	if len(imageData) == 0 {
		return Analysis{Status: StatusError, Confidence: DefaultConfidence},
			services.Wrap(services.ErrInput, "vision", "analyze image", "empty image payload", nil)
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return Analysis{Status: StatusError, Confidence: DefaultConfidence},
			services.Wrap(services.ErrUpstream, "vision", "analyze image", "rate limiter wait", err)
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	imageURL := fmt.Sprintf("data:image/jpeg;base64,%s", base64.StdEncoding.EncodeToString(imageData))
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: imageURL, Detail: openai.ImageURLDetailAuto},
					},
				},
			},
		},
	})
	if err != nil {
		a.logger.Warn("image analysis call failed", logging.Error(err))
		return Analysis{Status: StatusError, Confidence: DefaultConfidence},
			services.Wrap(services.ErrUpstream, "vision", "analyze image", "chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return Analysis{Status: StatusError, Confidence: DefaultConfidence},
			services.Wrap(services.ErrUpstream, "vision", "analyze image", "model returned no choices", nil)
	}
	text := resp.Choices[0].Message.Content
	return Analysis{
		Status:     StatusSuccess,
		Text:       text,
		Confidence: ParseConfidence(text),
	}, nil
}

func (a *openAIAnalyzer) GenerateText(ctx context.Context, prompt string) (string, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return "", services.Wrap(services.ErrUpstream, "vision", "generate text", "rate limiter wait", err)
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", services.Wrap(services.ErrUpstream, "vision", "generate text", "chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", services.Wrap(services.ErrUpstream, "vision", "generate text", "model returned no choices", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

func (a *openAIAnalyzer) Embedding(ctx context.Context, text string) ([]float32, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, services.Wrap(services.ErrUpstream, "vision", "embedding", "rate limiter wait", err)
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(a.embeddingModel),
		Input: []string{text},
	})
	if err != nil {
		return nil, services.Wrap(services.ErrUpstream, "vision", "embedding", "create embeddings", err)
	}
	if len(resp.Data) == 0 {
		return nil, services.Wrap(services.ErrUpstream, "vision", "embedding", "model returned no vectors", nil)
	}
	return resp.Data[0].Embedding, nil
}
