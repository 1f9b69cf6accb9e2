// Package languages holds the fixed set of target languages offered for
// translation.
package languages

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Default is the target preselected when none is given.
const Default = "hi"

type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var all = []Language{
	{"en", "English"},
	{"hi", "Hindi"},
	{"es", "Spanish"},
	{"fr", "French"},
	{"de", "German"},
	{"ja", "Japanese"},
	{"zh", "Chinese"},
	{"ar", "Arabic"},
	{"pt", "Portuguese"},
	{"ru", "Russian"},
	{"ko", "Korean"},
	{"it", "Italian"},
	{"nl", "Dutch"},
}

// All returns the supported targets in display order.
func All() []Language {
	out := make([]Language, len(all))
	copy(out, all)
	return out
}

// Lookup finds a target by code, ignoring case and surrounding space.
func Lookup(code string) (Language, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, l := range all {
		if l.Code == code {
			return l, true
		}
	}
	return Language{}, false
}

// Validate returns an error naming the supported codes when code is not one
// of them.
func Validate(code string) error {
	if _, ok := Lookup(code); ok {
		return nil
	}
	return fmt.Errorf("unsupported target language %q (supported: %s)", code, strings.Join(Codes(), ", "))
}

func Codes() []string {
	codes := make([]string, len(all))
	for i, l := range all {
		codes[i] = l.Code
	}
	return codes
}

// Native returns the language's name in its own script, e.g. "हिन्दी" for hi.
// It falls back to the English name when no self-name is known.
func Native(code string) string {
	l, ok := Lookup(code)
	if !ok {
		return ""
	}
	tag, err := language.Parse(l.Code)
	if err != nil {
		return l.Name
	}
	if name := display.Self.Name(tag); name != "" {
		return name
	}
	return l.Name
}

// Tag returns the BCP 47 tag for a supported code.
func Tag(code string) (language.Tag, error) {
	l, ok := Lookup(code)
	if !ok {
		return language.Und, Validate(code)
	}
	return language.Parse(l.Code)
}
