// Package postprocess strips common artifacts from language model output
// before an answer is localized and returned to the user.
package postprocess

import (
	"regexp"
	"strings"
)

// Clean removes reasoning blocks, prompt echoes, runaway continuations and
// outer quotes, and returns the trimmed answer.
func Clean(text string) string {
	text = removeThinkingBlocks(text)
	text = removePromptEchoes(text)
	text = cutContinuation(text)
	text = removeQuoteWrapping(text)
	return strings.TrimSpace(text)
}

// RE2 has no backreferences, so every tag pair is listed.
var thinkingBlockRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

// An opened tag with no close means the model ran out of tokens mid-thought.
var truncatedThinkingRe = regexp.MustCompile(
	`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>).*$`,
)

func removeThinkingBlocks(text string) string {
	text = thinkingBlockRe.ReplaceAllString(text, "")
	text = truncatedThinkingRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// echoPatterns are anchored at the start and require a colon.
var echoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:(?:certainly|sure|of course)[,.!]?\s+)?here(?:'s| is)(?: the| my| an?)? (?:short |brief )?(?:answer|response|reply)\s*:`),
	regexp.MustCompile(`(?i)^(?:answer|response|assistant)\s*:`),
}

func removePromptEchoes(text string) string {
	for _, re := range echoPatterns {
		if loc := re.FindStringIndex(text); loc != nil {
			rest := strings.TrimSpace(text[loc[1]:])
			// A bare "Sure." with nothing after it is the whole answer.
			if rest == "" {
				continue
			}
			text = rest
		}
	}
	return text
}

// continuationRe matches the start of a new prompt turn that small models
// tend to invent after finishing their answer.
var continuationRe = regexp.MustCompile(`(?im)^\s*(?:question|user|q)\s*:`)

func cutContinuation(text string) string {
	if loc := continuationRe.FindStringIndex(text); loc != nil && loc[0] > 0 {
		return strings.TrimSpace(text[:loc[0]])
	}
	return text
}

// removeQuoteWrapping strips one matching pair of outer quotes:
//
//	"…"  '…'  «…»  “…”  ‘…’
func removeQuoteWrapping(text string) string {
	runes := []rune(text)
	n := len(runes)
	if n < 2 {
		return text
	}
	first, last := runes[0], runes[n-1]
	if (first == '"' && last == '"') ||
		(first == '\'' && last == '\'') ||
		(first == '«' && last == '»') ||
		(first == '“' && last == '”') ||
		(first == '‘' && last == '’') {
		return strings.TrimSpace(string(runes[1 : n-1]))
	}
	return text
}
