// Package translator provides the text-translation backends behind one
// interface: the managed endpoint and Google Cloud Translation.
package translator

import (
	"context"
	"time"
)

const (
	BackendEndpoint = "endpoint"
	BackendGoogle   = "google"
)

type ServiceConfig struct {
	Credentials string        `mapstructure:"google_credentials" json:"credentials"`
	ProjectID   string        `mapstructure:"google_project" json:"project_id"`
	Timeout     time.Duration `mapstructure:"http_timeout" json:"timeout"`
}

type TranslateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang,omitempty"`
	TargetLang string `json:"target_lang"`
}

type ServiceResult struct {
	ServiceName    string            `json:"service_name"`
	TranslatedText string            `json:"translated_text"`
	SourceLang     string            `json:"source_lang,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Latency        time.Duration     `json:"latency"`
	Error          string            `json:"error,omitempty"`
}

type TranslationService interface {
	Name() string
	Translate(ctx context.Context, req TranslateRequest) (*ServiceResult, error)
	IsAvailable(ctx context.Context) error
	SupportedLanguages(ctx context.Context) ([]string, error)
}
