package languages

import (
	"strings"
	"testing"
)

func TestAll(t *testing.T) {
	got := All()
	if len(got) != 13 {
		t.Fatalf("expected 13 languages, got %d", len(got))
	}
	if got[0].Code != "en" || got[len(got)-1].Code != "nl" {
		t.Errorf("unexpected order: first %s, last %s", got[0].Code, got[len(got)-1].Code)
	}

	got[0].Name = "changed"
	if All()[0].Name != "English" {
		t.Error("All must return a copy")
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		code   string
		want   string
		wantOK bool
	}{
		{"hi", "Hindi", true},
		{" ZH ", "Chinese", true},
		{"nl", "Dutch", true},
		{"uk", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		l, ok := Lookup(tt.code)
		if ok != tt.wantOK || l.Name != tt.want {
			t.Errorf("Lookup(%q) = %v, %v; want %q, %v", tt.code, l, ok, tt.want, tt.wantOK)
		}
	}
}

func TestDefaultIsSupported(t *testing.T) {
	if err := Validate(Default); err != nil {
		t.Errorf("default target %q rejected: %v", Default, err)
	}
}

func TestValidate_ListsCodes(t *testing.T) {
	err := Validate("xx")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "en, hi, es") {
		t.Errorf("expected supported codes in error, got %q", err)
	}
}

func TestNative(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"fr", "français"},
		{"de", "Deutsch"},
		{"ja", "日本語"},
		{"xx", ""},
	}
	for _, tt := range tests {
		if got := Native(tt.code); got != tt.want {
			t.Errorf("Native(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestTag(t *testing.T) {
	tag, err := Tag("pt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tag.String() != "pt" {
		t.Errorf("expected pt, got %s", tag)
	}
	if _, err := Tag("klingon"); err == nil {
		t.Error("expected error for unsupported code")
	}
}
