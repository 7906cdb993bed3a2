// Package lang is the registry of chat languages and of the translation
// models that connect each of them to English, the pivot language.
package lang

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Code is a lowercase ISO 639-1 language code.
type Code string

const (
	EN Code = "en"
	HI Code = "hi"
	PA Code = "pa"
)

// Pivot is the language the generator reads and writes.
const Pivot = EN

var (
	ErrUnsupportedLanguage  = errors.New("unsupported language")
	ErrUnsupportedDirection = errors.New("unsupported translation direction")
)

var supported = []Code{EN, HI, PA}

var names = map[Code]string{
	EN: "English",
	HI: "Hindi",
	PA: "Punjabi",
}

// Direction is an ordered (source, target) pair.
type Direction struct {
	Source Code
	Target Code
}

func (d Direction) String() string {
	return string(d.Source) + "-" + string(d.Target)
}

// Identity reports whether no translation is needed.
func (d Direction) Identity() bool {
	return d.Source == d.Target
}

var models = map[Direction]string{
	{HI, EN}: "Helsinki-NLP/opus-mt-hi-en",
	{EN, HI}: "Helsinki-NLP/opus-mt-en-hi",
	{PA, EN}: "Helsinki-NLP/opus-mt-pa-en",
	{EN, PA}: "Helsinki-NLP/opus-mt-en-pa",
}

// ModelFor returns the translation model identifier for d.
// Identity directions are not registry entries and are rejected here too.
func ModelFor(d Direction) (string, error) {
	m, ok := models[d]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDirection, d)
	}
	return m, nil
}

// Directions lists every configured non-identity direction in a stable order.
func Directions() []Direction {
	var out []Direction
	for _, c := range supported {
		if c == Pivot {
			continue
		}
		out = append(out, Direction{c, Pivot}, Direction{Pivot, c})
	}
	return out
}

// Supported returns the supported codes in display order.
func Supported() []Code {
	out := make([]Code, len(supported))
	copy(out, supported)
	return out
}

// Names returns the code to display-name map served by the health endpoint.
func Names() map[string]string {
	out := make(map[string]string, len(names))
	for c, n := range names {
		out[string(c)] = n
	}
	return out
}

func (c Code) Name() string {
	return names[c]
}

// Tag converts the code to a BCP 47 tag for engines that want one.
func (c Code) Tag() language.Tag {
	return language.Make(string(c))
}

func IsSupported(c Code) bool {
	_, ok := names[c]
	return ok
}

// UnsupportedError carries the rejected code. It matches ErrUnsupportedLanguage.
type UnsupportedError struct {
	Lang string
}

func (e *UnsupportedError) Error() string {
	codes := make([]string, len(supported))
	for i, c := range supported {
		codes[i] = string(c)
	}
	return fmt.Sprintf("Unsupported lang '%s'. Use one of: [%s]", e.Lang, strings.Join(codes, ", "))
}

func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupportedLanguage
}

// Parse normalizes s to a supported code. Matching is case-insensitive and
// an empty value means English.
func Parse(s string) (Code, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return EN, nil
	}
	c := Code(s)
	if !IsSupported(c) {
		return "", &UnsupportedError{Lang: s}
	}
	return c, nil
}
