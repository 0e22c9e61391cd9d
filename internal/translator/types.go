package translator

import (
	"context"
	"time"
)

// ServiceConfig carries backend credentials and endpoints.
type ServiceConfig struct {
	Credentials string        `mapstructure:"credentials" json:"credentials"`
	APIKey      string        `mapstructure:"api_key" json:"api_key"`
	Model       string        `mapstructure:"model" json:"model"`
	BaseURL     string        `mapstructure:"base_url" json:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`
	ProjectID   string        `mapstructure:"project_id" json:"project_id"`
}

// Request is one batch translation request. Segments are plain text with
// {{n}} tokens; URL is the address of the page they came from and only
// serves as context for the backend.
type Request struct {
	URL        string   `json:"url"`
	Segments   []string `json:"segments"`
	TargetLang string   `json:"targetLang,omitempty"`
}

// Response holds one translation per request segment, in request order.
type Response struct {
	Translations []string `json:"translations"`
}

// Service is a batch translation backend.
type Service interface {
	Name() string
	Translate(ctx context.Context, req Request) (*Response, error)
	IsAvailable(ctx context.Context) error
}
