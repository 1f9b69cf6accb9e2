// Package validator checks that a translation result is in the expected
// target language. A mismatch is reported as a warning; the result is still
// shown to the user.
package validator

import (
	"fmt"
	"strings"

	"github.com/valpere/cloudtran/internal/detector"
)

// minValidationLength is the minimum rune count required to attempt language detection.
// Shorter texts produce unreliable results and are accepted without validation.
const minValidationLength = 20

type Validator struct {
	det *detector.Detector
}

// New creates a Validator sharing det. A nil det gets a private detector.
func New(det *detector.Detector) *Validator {
	if det == nil {
		det = detector.New()
	}
	return &Validator{det: det}
}

// Check returns a warning when translatedText appears to be written in a
// language other than targetLang, and "" otherwise.
//
// Short texts and texts whose language cannot be determined pass.
func (v *Validator) Check(translatedText, targetLang string) string {
	if targetLang == "" {
		return ""
	}

	text := strings.TrimSpace(translatedText)
	if text == "" {
		return "translation is empty"
	}
	if len([]rune(text)) < minValidationLength {
		return ""
	}

	detected, ok := v.det.DetectISO(text)
	if !ok {
		return ""
	}

	// lingua reports Chinese as "zh" for every script, which matches our code.
	if !strings.EqualFold(detected, targetLang) {
		return fmt.Sprintf("expected %s but detected %s", strings.ToLower(targetLang), detected)
	}
	return ""
}
