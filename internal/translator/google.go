package translator

import (
	"context"
	"fmt"

	translate "cloud.google.com/go/translate"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"google.golang.org/api/option"
)

// GoogleService translates batches through Google Cloud Translation.
type GoogleService struct {
	credentials string
	projectID   string
	logger      *zap.Logger
}

func NewGoogleService(cfg ServiceConfig, logger *zap.Logger) *GoogleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleService{credentials: cfg.Credentials, projectID: cfg.ProjectID, logger: logger}
}

func (s *GoogleService) Name() string {
	return "google"
}

func (s *GoogleService) Translate(ctx context.Context, req Request) (*Response, error) {
	if len(req.Segments) == 0 {
		return &Response{Translations: []string{}}, nil
	}

	target := req.TargetLang
	if target == "" {
		target = DefaultTargetLang
	}
	targetTag, err := language.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid target language: %w", err)
	}

	client, err := s.newClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	// Segments are plain text with {{n}} tokens; Text format keeps the
	// service from treating them as markup.
	translations, err := client.Translate(ctx, req.Segments, targetTag, &translate.Options{
		Format: translate.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("translation failed: %w", normalizeError(err))
	}
	if len(translations) != len(req.Segments) {
		return nil, countMismatch(len(translations), len(req.Segments))
	}

	out := make([]string, len(translations))
	for i, t := range translations {
		out[i] = t.Text
	}
	s.logger.Debug("google batch translated", zap.Int("segments", len(out)))
	return &Response{Translations: out}, nil
}

// IsAvailable checks that a client can be created with the configured
// credentials.
func (s *GoogleService) IsAvailable(ctx context.Context) error {
	client, err := s.newClient(ctx)
	if err != nil {
		return err
	}
	return client.Close()
}

func (s *GoogleService) newClient(ctx context.Context) (*translate.Client, error) {
	var opts []option.ClientOption
	if s.credentials != "" {
		opts = append(opts, option.WithCredentialsFile(s.credentials))
	}
	if s.projectID != "" {
		opts = append(opts, option.WithQuotaProject(s.projectID))
	}
	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}
