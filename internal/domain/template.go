package domain

import (
	"fmt"
	"strings"
)

type TemplateCategory string

const (
	CategoryAuthentication TemplateCategory = "AUTHENTICATION"
	CategoryMarketing      TemplateCategory = "MARKETING"
	CategoryUtility        TemplateCategory = "UTILITY"
)

// ParseTemplateCategory accepts the category in any letter case.
func ParseTemplateCategory(s string) (TemplateCategory, error) {
	switch c := TemplateCategory(strings.ToUpper(strings.TrimSpace(s))); c {
	case CategoryAuthentication, CategoryMarketing, CategoryUtility:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTemplateCategory, s)
}

type HeaderKind string

const (
	HeaderText  HeaderKind = "TEXT"
	HeaderImage HeaderKind = "IMAGE"
)

// DefaultTemplateLanguage is used when a template does not name one.
const DefaultTemplateLanguage = "pt_BR"

// Template is the tree registered with the Cloud provider.
type Template struct {
	Name     string           `json:"name"`
	Category TemplateCategory `json:"category"`
	Language string           `json:"language,omitempty"`
	Header   TemplateHeader   `json:"header"`
	Body     TemplateBody     `json:"body"`
	Footer   string           `json:"footer,omitempty"`
	Buttons  []Button         `json:"buttons,omitempty"`
}

// TemplateHeader holds either header text or an image placeholder.
type TemplateHeader struct {
	Text     string   `json:"text,omitempty"`
	Examples []string `json:"examples,omitempty"`
}

type TemplateBody struct {
	Text     string   `json:"text"`
	Examples []string `json:"examples,omitempty"`
}

type Button struct {
	Kind string `json:"type"`
	Text string `json:"text"`
}

// Lang returns the template language, defaulting to pt_BR.
func (t Template) Lang() string {
	if t.Language == "" {
		return DefaultTemplateLanguage
	}
	return t.Language
}

// VariableKind decides how a template variable body is interpreted.
type VariableKind string

const (
	VariableText     VariableKind = "TEXT"
	VariableCurrency VariableKind = "CURRENCY"
	VariableDateTime VariableKind = "DATETIME"
)

// ParseVariableKind accepts the kind in any letter case.
func ParseVariableKind(s string) (VariableKind, error) {
	switch k := VariableKind(strings.ToUpper(strings.TrimSpace(s))); k {
	case VariableText, VariableCurrency, VariableDateTime:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidVariableKind, s)
}

// TemplateVariable is one body parameter of a template send.
// CURRENCY bodies look like "USD:12.5"; DATETIME bodies like "2024-12-31T23:59".
type TemplateVariable struct {
	Kind VariableKind `json:"kind"`
	Body string       `json:"body"`
}
