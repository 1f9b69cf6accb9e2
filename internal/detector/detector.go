// Package detector guesses the language of a text. It backs the "Auto
// Detect" source language in text mode.
package detector

import (
	"strings"
	"sync"

	lingua "github.com/pemistahl/lingua-go"
)

// Detector builds its lingua models on first use; building them is slow
// and memory hungry, so share one Detector per process.
type Detector struct {
	once     sync.Once
	detector lingua.LanguageDetector
}

func New() *Detector {
	return &Detector{}
}

func (d *Detector) load() lingua.LanguageDetector {
	d.once.Do(func() {
		d.detector = lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			Build()
	})
	return d.detector
}

func (d *Detector) Detect(text string) (lingua.Language, bool) {
	if strings.TrimSpace(text) == "" {
		return lingua.Unknown, false
	}
	return d.load().DetectLanguageOf(text)
}

// DetectISO returns the lower-case ISO 639-1 code of the detected language.
func (d *Detector) DetectISO(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}

// Name returns the English name of the detected language.
func (d *Detector) Name(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return lang.String(), true
}
