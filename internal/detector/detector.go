// Package detector identifies which chat language a text is written in.
package detector

import (
	lingua "github.com/pemistahl/lingua-go"

	"github.com/valpere/bhasha/internal/lang"
)

var languages = map[lingua.Language]lang.Code{
	lingua.English: lang.EN,
	lingua.Hindi:   lang.HI,
	lingua.Punjabi: lang.PA,
}

// Detector is restricted to the supported chat languages. Building it loads
// language models, so keep one instance around.
type Detector struct {
	detector lingua.LanguageDetector
}

func New() *Detector {
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(lingua.English, lingua.Hindi, lingua.Punjabi).
		Build()

	return &Detector{detector: detector}
}

func (d *Detector) Detect(text string) (lang.Code, bool) {
	if text == "" {
		return "", false
	}
	l, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	code, ok := languages[l]
	return code, ok
}
