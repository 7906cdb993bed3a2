// Package prompt builds the generation input for a normalized question.
package prompt

import (
	"fmt"
	"strings"
)

// EmergencySigns are symptoms that must always be escalated.
var EmergencySigns = []string{
	"chest pain",
	"difficulty breathing",
	"severe bleeding",
	"loss of consciousness",
}

const template = `You are a careful health assistant for a community clinic.
Give short, practical, non-diagnostic guidance in plain English.

Rules:
1. Do not diagnose and do not prescribe medicines or doses.
2. If symptoms are severe, persistent or worsening, tell the user to see a doctor.
3. If the user mentions an emergency sign (%s), tell them to seek emergency care immediately.
4. Keep the answer under five sentences.

Question: %s
Answer:`

// Build wraps questionEN in the fixed safety preamble and primes the model
// to answer. The question is the only input; there is no history.
func Build(questionEN string) string {
	return fmt.Sprintf(template, strings.Join(EmergencySigns, ", "), strings.TrimSpace(questionEN))
}
