// Package postprocess removes common LLM artifacts from translation output.
//
// It is applied to every segment returned by the chat backend before the
// segment is handed back to the caller. SplitSegments turns one batched
// reply into its per-segment parts.
package postprocess

import (
	"regexp"
	"strings"
)

// Clean removes LLM artifacts from one translated segment and returns the
// trimmed result:
//  1. Thinking / reasoning block removal
//  2. Instruction echo removal (prompt leakage)
//  3. Segment label removal ("Segment 2:")
//  4. Quote wrapping removal
func Clean(text string) string {
	text = removeThinkingBlocks(text)
	text = removeInstructionEchoes(text)
	text = removeSegmentLabel(text)
	text = removeQuoteWrapping(text)
	return strings.TrimSpace(text)
}

// --- Phase 1: thinking blocks ---

// thinkingBlockRe matches complete <thinking>…</thinking> style blocks.
// Each tag variant is listed explicitly because Go's RE2 engine does not
// support backreferences.
// Flags: i = case-insensitive, s = dot matches newline.
var thinkingBlockRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

// truncatedThinkingRe matches an opened thinking tag whose closing tag is
// missing (the model was cut off mid-thought).
var truncatedThinkingRe = regexp.MustCompile(
	`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>).*$`,
)

func removeThinkingBlocks(text string) string {
	text = thinkingBlockRe.ReplaceAllString(text, "")
	text = truncatedThinkingRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// --- Phase 2: instruction echoes ---

// echoPatterns match introductory phrases that LLMs sometimes prepend even
// when instructed not to.  Each pattern is anchored to the start of the string
// and requires a colon to reduce false positives on legitimate content.
var echoPatterns = []*regexp.Regexp{
	// "Here is / Here's [the] [refined|polished|translated] translation:"
	regexp.MustCompile(`(?i)^here(?:'s| is)(?: the)? (?:refined |polished |translated )?(?:translation|text)\s*:`),
	// "[The] [refined|polished] [translation|translated text]:"
	regexp.MustCompile(`(?i)^(?:the )?(?:refined |polished )?(?:translation|translated text)\s*:`),
	// "Certainly / Sure / Of course[,] here is [the] translation:"
	regexp.MustCompile(`(?i)^(?:certainly|sure|of course)[,.]? here(?:'s| is)(?: the)? (?:refined |polished |translated )?(?:translation|text)\s*:`),
}

func removeInstructionEchoes(text string) string {
	for _, re := range echoPatterns {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] == 0 {
			text = strings.TrimSpace(text[loc[1]:])
		}
	}
	return text
}

// --- Phase 3: segment labels ---

// segmentLabelRe matches a numbered label some models put in front of each
// part of a batched reply.
var segmentLabelRe = regexp.MustCompile(`(?i)^(?:segment|paragraph|段落?)\s*#?\d+\s*[:：]\s*`)

func removeSegmentLabel(text string) string {
	return segmentLabelRe.ReplaceAllString(text, "")
}

// --- Phase 4: quote wrapping ---

// removeQuoteWrapping strips a matching pair of outer quotes when the entire
// text is wrapped in them (a common LLM artifact).  Supported pairs:
//
//	"…"  '…'  «…»  "…"  '…'
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
		(first == '\u201C' && last == '\u201D') || // " "
		(first == '\u2018' && last == '\u2019') { //  ' '
		return strings.TrimSpace(string(runes[1 : n-1]))
	}
	return text
}

// --- Batched replies ---

// separatorLineRe matches a line holding only the segment separator.
var separatorLineRe = regexp.MustCompile(`(?m)^[ \t]*---[ \t]*$`)

// SplitSegments splits a reply to a "---" separated batch into its parts.
// It tries, in order, separator lines, any "---" occurrence, and finally one
// segment per non-empty line, returning the first split that yields exactly
// expected parts. If none does, the separator-line split is returned and the
// caller decides what a count mismatch means.
func SplitSegments(text string, expected int) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	byLine := nonEmpty(separatorLineRe.Split(text, -1))
	if len(byLine) == expected {
		return byLine
	}
	if loose := nonEmpty(strings.Split(text, "---")); len(loose) == expected {
		return loose
	}
	var lines []string
	for _, l := range strings.Split(strings.TrimSpace(text), "\n") {
		if l = strings.TrimSpace(l); l != "" && l != "---" {
			lines = append(lines, l)
		}
	}
	if len(lines) == expected {
		return lines
	}
	return byLine
}

func nonEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
