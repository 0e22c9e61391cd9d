package translator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/valpere/bilingua/internal/placeholder"
	"github.com/valpere/bilingua/internal/postprocess"
)

const (
	DefaultChatBaseURL = "https://api.deepseek.com"
	DefaultChatModel   = "deepseek-chat"
	DefaultTargetLang  = "zh-CN"
)

// ChatService translates a batch with a single chat completion against an
// OpenAI-compatible endpoint (DeepSeek by default). Segments travel as one
// message separated by "---" lines and are split back from the reply.
type ChatService struct {
	client *openai.Client
	apiKey string
	model  string
	logger *zap.Logger
}

// NewChatService builds a chat backend from cfg.
func NewChatService(cfg ServiceConfig, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultChatBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultChatModel
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = baseURL
	if cfg.Timeout > 0 {
		oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &ChatService{
		client: openai.NewClientWithConfig(oc),
		apiKey: cfg.APIKey,
		model:  model,
		logger: logger,
	}
}

func (s *ChatService) Name() string {
	return "chat"
}

func (s *ChatService) Translate(ctx context.Context, req Request) (*Response, error) {
	if len(req.Segments) == 0 {
		return &Response{Translations: []string{}}, nil
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildSystemPrompt(req)},
			{Role: openai.ChatMessageRoleUser, Content: strings.Join(req.Segments, "\n---\n")},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", normalizeError(err))
	}
	if len(resp.Choices) == 0 {
		return nil, &ProtocolError{Reason: "empty completion"}
	}

	content := resp.Choices[0].Message.Content
	parts := postprocess.SplitSegments(content, len(req.Segments))
	s.logger.Debug("chat completion parsed",
		zap.String("model", s.model),
		zap.Int("chars", len(content)),
		zap.Int("segments", len(req.Segments)),
		zap.Int("parsed", len(parts)),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	if len(parts) != len(req.Segments) {
		return nil, countMismatch(len(parts), len(req.Segments))
	}
	for i, p := range parts {
		parts[i] = postprocess.Clean(p)
	}
	return &Response{Translations: parts}, nil
}

func (s *ChatService) IsAvailable(ctx context.Context) error {
	if s.apiKey == "" {
		return errors.New("chat API key not configured")
	}
	return nil
}

// buildSystemPrompt assembles the instructions for one batch.
func buildSystemPrompt(req Request) string {
	target := req.TargetLang
	if target == "" {
		target = DefaultTargetLang
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a translation engine. Translate the provided text segments into %s.\n", languageName(target))
	sb.WriteString("Rules:\n")
	sb.WriteString("1. Return exactly as many segments as you received.\n")
	sb.WriteString("2. Separate translated segments with a line containing only \"---\".\n")
	sb.WriteString("3. Leave technical terms and code identifiers as they are.\n")
	sb.WriteString("4. Return only the translations.\n")
	sb.WriteString("5. " + placeholder.InstructionHint())
	if strings.Contains(req.URL, "github.com") {
		sb.WriteString("\n6. This is a GitHub page: keep terms such as PR, Issue and Commit untranslated.")
	}
	return sb.String()
}

// languageName renders a BCP 47 tag as an English language name, falling
// back to the tag itself.
func languageName(tag string) string {
	t, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	if name := display.English.Tags().Name(t); name != "" {
		return name
	}
	return tag
}
