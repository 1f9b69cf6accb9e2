package translator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valpere/cloudtran/internal/api"
	"github.com/valpere/cloudtran/internal/languages"
)

// TextClient is the part of api.Client the endpoint backend uses.
type TextClient interface {
	Endpoint() string
	Translate(ctx context.Context, req api.TextRequest) (*api.TextResponse, error)
}

// EndpointService translates through the managed endpoint's "text" request.
// The endpoint detects the source language itself, so SourceLang is not sent.
type EndpointService struct {
	client TextClient
}

func NewEndpointService(client TextClient) *EndpointService {
	return &EndpointService{client: client}
}

func (s *EndpointService) Name() string {
	return BackendEndpoint
}

func (s *EndpointService) Translate(ctx context.Context, req TranslateRequest) (*ServiceResult, error) {
	result := &ServiceResult{ServiceName: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	resp, err := s.client.Translate(ctx, api.TextRequest{Text: req.Text, TargetLang: req.TargetLang})
	if err != nil {
		result.Error = err.Error()
		return result, err
	}

	result.TranslatedText = resp.TranslatedText
	return result, nil
}

func (s *EndpointService) IsAvailable(ctx context.Context) error {
	if s.client.Endpoint() == "" {
		return errors.New("endpoint is not configured")
	}
	return nil
}

func (s *EndpointService) SupportedLanguages(ctx context.Context) ([]string, error) {
	return languages.Codes(), nil
}

// New returns the backend registered under name.
func New(name string, client TextClient, cfg ServiceConfig) (TranslationService, error) {
	switch name {
	case "", BackendEndpoint:
		return NewEndpointService(client), nil
	case BackendGoogle:
		return NewGoogleService(cfg), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (available: %s, %s)", name, BackendEndpoint, BackendGoogle)
	}
}
