// Package orchestrator sequences calls to the translation endpoint: text
// translation, and the upload-then-start protocol for documents.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/valpere/cloudtran/internal/api"
	"github.com/valpere/cloudtran/internal/chunker"
	"github.com/valpere/cloudtran/internal/detector"
	"github.com/valpere/cloudtran/internal/languages"
	"github.com/valpere/cloudtran/internal/translator"
	"github.com/valpere/cloudtran/internal/upload"
	"github.com/valpere/cloudtran/internal/validator"
)

// Backend is the document side of the endpoint.
type Backend interface {
	GetUploadURL(ctx context.Context, req api.UploadURLRequest) (*api.UploadTarget, error)
	Upload(ctx context.Context, target api.UploadTarget, body io.Reader, size int64) error
	StartDocumentJob(ctx context.Context, req api.DocumentRequest) (*api.JobHandle, error)
	CheckStatus(ctx context.Context, jobID string) (*api.Job, error)
}

// Cache is the translation memory consulted before calling a backend.
type Cache interface {
	GetCachedTranslation(ctx context.Context, sourceText, targetLang, service string) (string, bool, error)
	SaveToMemory(ctx context.Context, sourceText, sourceLang, targetLang, finalText, service string) error
}

type Step string

const (
	StepUploadURL Step = "upload_url"
	StepUpload    Step = "upload"
	StepStartJob  Step = "start_job"
)

func (s Step) describe() string {
	switch s {
	case StepUploadURL:
		return "getting upload URL"
	case StepUpload:
		return "uploading document"
	case StepStartJob:
		return "starting translation job"
	}
	return string(s)
}

// StepError reports which step of a document submission failed.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step.describe(), e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type Config struct {
	// Cache may be nil.
	Cache Cache
	// Detector may be nil, in which case the source language is not reported.
	Detector *detector.Detector
	// Chunking splits text longer than MaxChars instead of rejecting it.
	Chunking       bool
	MaxChars       int
	SkipValidation bool
	Logger         zerolog.Logger
}

type Orchestrator struct {
	backend   Backend
	service   translator.TranslationService
	validator *validator.Validator
	config    Config
}

func New(backend Backend, service translator.TranslationService, config Config) *Orchestrator {
	if config.MaxChars <= 0 {
		config.MaxChars = chunker.MaxChars
	}
	o := &Orchestrator{
		backend: backend,
		service: service,
		config:  config,
	}
	if !config.SkipValidation && config.Detector != nil {
		o.validator = validator.New(config.Detector)
	}
	return o
}

// Backend returns the document backend, which also serves status checks.
func (o *Orchestrator) Backend() Backend {
	return o.backend
}

// TextResult is the outcome of a text translation.
type TextResult struct {
	TranslatedText string        `json:"translatedText"`
	SourceLang     string        `json:"detectedSource,omitempty"`
	SourceName     string        `json:"detectedSourceName,omitempty"`
	Warning        string        `json:"warning,omitempty"`
	Service        string        `json:"service"`
	Cached         bool          `json:"cached"`
	Chunks         int           `json:"chunks"`
	Latency        time.Duration `json:"latency"`
}

// TranslateText validates text and targetLang, then translates through the
// configured backend, consulting the translation memory first.
func (o *Orchestrator) TranslateText(ctx context.Context, text, targetLang string) (*TextResult, error) {
	start := time.Now()

	if strings.TrimSpace(text) == "" {
		return nil, &upload.ValidationError{Field: "text", Reason: "text is required"}
	}
	if err := languages.Validate(targetLang); err != nil {
		return nil, &upload.ValidationError{Field: "target_lang", Reason: err.Error()}
	}
	targetLang = strings.ToLower(strings.TrimSpace(targetLang))

	if n := utf8.RuneCountInString(text); n > o.config.MaxChars && !o.config.Chunking {
		return nil, &upload.ValidationError{
			Field:  "text",
			Reason: fmt.Sprintf("text is %d characters, limit is %d (enable chunking to split it)", n, o.config.MaxChars),
		}
	}

	result := &TextResult{Service: o.service.Name()}
	log := o.config.Logger.With().Str("service", result.Service).Str("target_lang", targetLang).Logger()

	if o.config.Detector != nil {
		if code, ok := o.config.Detector.DetectISO(text); ok {
			result.SourceLang = code
			result.SourceName, _ = o.config.Detector.Name(text)
		}
	}

	if o.config.Cache != nil {
		cached, found, err := o.config.Cache.GetCachedTranslation(ctx, text, targetLang, result.Service)
		if err != nil {
			log.Warn().Err(err).Msg("translation memory lookup failed")
		} else if found {
			log.Debug().Msg("translation memory hit")
			result.TranslatedText = cached
			result.Cached = true
			result.Chunks = 1
			result.Latency = time.Since(start)
			return result, nil
		}
	}

	chunks := []string{text}
	if o.config.Chunking {
		chunks = chunker.Chunk(text, o.config.MaxChars)
	}
	result.Chunks = len(chunks)

	translated := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		// The backends detect the source themselves; the local guess is
		// only reported.
		res, err := o.service.Translate(ctx, translator.TranslateRequest{
			Text:       chunk,
			TargetLang: targetLang,
		})
		if err != nil {
			if len(chunks) > 1 {
				return nil, fmt.Errorf("translate chunk %d/%d: %w", i+1, len(chunks), err)
			}
			return nil, err
		}
		if result.SourceLang == "" && res.SourceLang != "" {
			result.SourceLang = res.SourceLang
		}
		translated = append(translated, res.TranslatedText)
	}
	result.TranslatedText = chunker.Join(translated)

	if o.validator != nil {
		if warning := o.validator.Check(result.TranslatedText, targetLang); warning != "" {
			result.Warning = warning
			log.Warn().Str("warning", warning).Msg("translation language check")
		}
	}

	if o.config.Cache != nil {
		if err := o.config.Cache.SaveToMemory(ctx, text, result.SourceLang, targetLang, result.TranslatedText, result.Service); err != nil {
			log.Warn().Err(err).Msg("failed to save to translation memory")
		}
	}

	result.Latency = time.Since(start)
	log.Info().Int("chunks", result.Chunks).Dur("latency", result.Latency).Msg("text translated")
	return result, nil
}

// SubmitDocument runs the three document steps in order: request an upload
// URL, PUT the document to it with the returned MIME type, and start the
// job. The first failure aborts the sequence and is returned as a
// *StepError. report, if not nil, receives a message before each step.
func (o *Orchestrator) SubmitDocument(ctx context.Context, doc *upload.Document, targetLang string, report func(string)) (*api.JobHandle, error) {
	if report == nil {
		report = func(string) {}
	}
	if doc == nil {
		return nil, &upload.ValidationError{Field: "file", Reason: "please select a document to translate"}
	}
	if err := languages.Validate(targetLang); err != nil {
		return nil, &upload.ValidationError{Field: "target_lang", Reason: err.Error()}
	}
	targetLang = strings.ToLower(strings.TrimSpace(targetLang))

	log := o.config.Logger.With().Str("file", doc.Name).Str("target_lang", targetLang).Logger()

	report("Getting upload URL...")
	target, err := o.backend.GetUploadURL(ctx, api.UploadURLRequest{FileName: doc.Name})
	if err != nil {
		return nil, &StepError{Step: StepUploadURL, Err: err}
	}
	if target.MIMEType != doc.MIMEType {
		log.Debug().Str("local", doc.MIMEType).Str("remote", target.MIMEType).Msg("using MIME type from upload URL")
	}

	report("Uploading document...")
	if err := o.backend.Upload(ctx, *target, doc.Reader(), doc.Size); err != nil {
		return nil, &StepError{Step: StepUpload, Err: err}
	}

	report("Starting translation job...")
	handle, err := o.backend.StartDocumentJob(ctx, api.DocumentRequest{FileName: doc.Name, TargetLang: targetLang})
	if err != nil {
		return nil, &StepError{Step: StepStartJob, Err: err}
	}

	log.Info().Str("job_id", handle.JobID).Int64("bytes", doc.Size).Msg("document job started")
	return handle, nil
}

// IsValidation reports whether err was raised before any network call.
func IsValidation(err error) bool {
	var vErr *upload.ValidationError
	return errors.As(err, &vErr)
}
