package translator

import (
	"context"
	"fmt"
	"os"
	"time"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"

	"github.com/valpere/cloudtran/internal/languages"
)

type GoogleService struct {
	cfg ServiceConfig
}

func NewGoogleService(cfg ServiceConfig) *GoogleService {
	return &GoogleService{cfg: cfg}
}

func (s *GoogleService) Name() string {
	return BackendGoogle
}

func (s *GoogleService) clientOptions() []option.ClientOption {
	var opts []option.ClientOption
	if s.cfg.Credentials != "" {
		opts = append(opts, option.WithCredentialsFile(s.cfg.Credentials))
	}
	if s.cfg.ProjectID != "" {
		opts = append(opts, option.WithQuotaProject(s.cfg.ProjectID))
	}
	return opts
}

func (s *GoogleService) Translate(ctx context.Context, req TranslateRequest) (*ServiceResult, error) {
	result := &ServiceResult{ServiceName: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	targetLangTag, err := language.Parse(req.TargetLang)
	if err != nil {
		result.Error = fmt.Sprintf("invalid target language: %v", err)
		return result, fmt.Errorf("invalid target language: %w", err)
	}

	var opts *translate.Options
	if req.SourceLang != "" && req.SourceLang != "auto" {
		sourceLangTag, err := language.Parse(req.SourceLang)
		if err != nil {
			result.Error = fmt.Sprintf("invalid source language: %v", err)
			return result, fmt.Errorf("invalid source language: %w", err)
		}
		opts = &translate.Options{Source: sourceLangTag, Format: translate.Text}
	} else {
		opts = &translate.Options{Format: translate.Text}
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	client, err := translate.NewClient(ctx, s.clientOptions()...)
	if err != nil {
		result.Error = fmt.Sprintf("failed to create client: %v", err)
		return result, fmt.Errorf("failed to create client: %w", err)
	}
	defer client.Close()

	translations, err := client.Translate(ctx, []string{req.Text}, targetLangTag, opts)
	if err != nil {
		result.Error = fmt.Sprintf("translation failed: %v", err)
		return result, fmt.Errorf("translation failed: %w", err)
	}
	if len(translations) == 0 {
		result.Error = "no translation returned"
		return result, fmt.Errorf("no translation returned")
	}

	result.TranslatedText = translations[0].Text
	if src := translations[0].Source; src != language.Und {
		result.SourceLang = src.String()
	}
	return result, nil
}

// IsAvailable checks that credentials can be found, without calling the API.
func (s *GoogleService) IsAvailable(ctx context.Context) error {
	if s.cfg.Credentials != "" {
		if _, err := os.Stat(s.cfg.Credentials); err != nil {
			return fmt.Errorf("google credentials: %w", err)
		}
		return nil
	}
	if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		return fmt.Errorf("google credentials are not configured")
	}
	return nil
}

func (s *GoogleService) SupportedLanguages(ctx context.Context) ([]string, error) {
	return languages.Codes(), nil
}
