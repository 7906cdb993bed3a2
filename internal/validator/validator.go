// Package validator checks that translation output landed in the requested
// language. Opus-mt models occasionally copy the input through untranslated.
package validator

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/valpere/bhasha/internal/detector"
	"github.com/valpere/bhasha/internal/lang"
)

// minDetectionLength is the rune count below which statistical detection is
// unreliable and only the script check applies.
const minDetectionLength = 20

// scripts maps languages to the script their output must be written in.
// English has none: transliterated names and numbers pass through.
var scripts = map[lang.Code]*unicode.RangeTable{
	lang.HI: unicode.Devanagari,
	lang.PA: unicode.Gurmukhi,
}

type Validator struct {
	det *detector.Detector
}

func New() *Validator {
	return &Validator{det: detector.New()}
}

// IsValid reports whether text appears to be written in target. Hindi and
// Punjabi output containing letters must use Devanagari or Gurmukhi; longer
// texts are also run through the detector. A mismatch returns an error
// naming both codes.
func (v *Validator) IsValid(text string, target lang.Code) (bool, error) {
	if target == "" {
		return true, nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return false, errors.New("translation is empty")
	}

	if table, ok := scripts[target]; ok {
		letters, inScript := countLetters(text, table)
		if letters > 0 && inScript == 0 {
			return false, fmt.Errorf("expected %s but found no %s script", target, target.Name())
		}
	}

	if len([]rune(text)) < minDetectionLength {
		return true, nil
	}

	detected, ok := v.det.Detect(text)
	if !ok {
		return true, nil
	}
	if detected != target {
		return false, fmt.Errorf("expected %s but detected %s", target, detected)
	}
	return true, nil
}

func countLetters(text string, table *unicode.RangeTable) (letters, inScript int) {
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.Is(table, r) {
			inScript++
		}
	}
	return letters, inScript
}
