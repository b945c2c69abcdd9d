package minutes

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// Minutes is the structured extraction produced from a full transcript.
type Minutes struct {
	Summary     string
	Decisions   []string
	ActionItems []string
	Deadlines   []string
}

const (
	maxSummarySentences = 8
	maxDecisions        = 10
	maxActionItems      = 15
	maxDeadlines        = 10
)

// Keywords that mark a sentence as summary-worthy.
var importantKeywords = []string{
	"decided", "agreed", "concluded", "will", "should", "must",
	"important", "critical", "key", "main", "primary",
	"action", "deadline", "by", "before", "need to", "have to",
	"summary", "conclusion", "result", "outcome",
	"goal", "objective", "priority", "focus",
}

var decisionPatterns = compileAll(
	`(?i)\b(decided|agreed|concluded|determined|resolved|settled)\b`,
	`(?i)\b(we will|we'll|let's|we should|we must)\b`,
	`(?i)\b(approved|accepted|confirmed|finalized|committed to)\b`,
	`(?i)\b(going with|moving forward with|proceeding with)\b`,
	`(?i)\b(final decision|unanimous|consensus|voted to)\b`,
	`(?i)\b(decision:|conclusion:)\s*`,
	`(?i)\b(plan to|going to|will be|shall)\b`,
	`(?i)\b(selected|chose|picked|opted for)\b`,
	`(?i)\b(scheduled|arranged|organized)\b`,
	`(?i)\b(changed|updated|modified)\b`,
	`(?i)\b(adopted|implemented|established)\b`,
)

var actionPatterns = compileAll(
	`([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\s+(?i:will|should|needs? to|has to|must|is going to)\s+([^.!?]{10,})`,
	`([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\s+(?i:is|will be)\s+(?i:responsible for|in charge of|handling)\s+([^.!?]{10,})`,
	`(?i)(?:action item|task|todo|to-do|assignment):\s*([^.!?]{10,})`,
	`(?i)(?:please|can you|could you|would you)\s+([^.!?]{10,})`,
	`(?i)\b(?:we|someone|somebody)\s+(?:need to|have to|must|should)\s+([^.!?]{10,})`,
)

var deadlinePatterns = compileAll(
	`(?i)(?:by|before|until|no later than|due)\s+([A-Z][a-z]+day(?:\s+\w+)*|(?:the\s+)?\d{1,2}(?:st|nd|rd|th)?(?:\s+of)?\s+\w+|\d{1,2}/\d{1,2})`,
	`(?i)(?:deadline|due date)(?:\s+is)?:?\s+([\w\s,]+)`,
	`(?i)(?:complete|finish|submit|deliver|send)\s+(?:by|before)\s+([\w\s,]+)`,
	`(?i)\b(tomorrow|today|tonight|this week|next week|this month|next month|end of (?:week|month|quarter|year))\b`,
	`(?i)(?:in|within)\s+(\d+\s+(?:days?|weeks?|months?))`,
	`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`,
	`(?i)\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]* \d{1,2}(?:st|nd|rd|th)?,? \d{4}\b`,
	`(?i)\b\d{1,2}(?:st|nd|rd|th)? (?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]* \d{4}\b`,
	`\b\d{1,2}:\d{2}\b`,
	`(?i)\b\d{1,2}:\d{2}\s*(?:AM|PM)\b`,
	`(?i)\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\s+(?:at\s+)?\d{1,2}:\d{2}(?:\s*(?:AM|PM))?\b`,
)

var deadlineIndicators = []string{
	"deadline", "due", "by", "before", "until", "asap", "urgent",
	"priority", "immediately", "soon", "quickly", "tomorrow", "today",
	"week", "month", "quarter", "year",
	"at", "on", "date", "time", "schedule", "appointment",
}

var decisionIndicators = []string{
	"decide", "agree", "conclude", "determine", "resolve", "settle",
	"will", "shall", "must", "should", "plan to", "going to",
	"approved", "accepted", "confirmed", "finalized", "committed",
	"selected", "chose", "picked", "opted", "scheduled",
	"changed", "updated", "modified", "adopted", "implemented",
	"established", "consensus", "majority", "unanimous",
}

var (
	whitespaceRe      = regexp.MustCompile(`\s+`)
	timestampPrefixRe = regexp.MustCompile(`^\[?\d+:\d+:\d+\]?\s*`)
	speakerPrefixRe   = regexp.MustCompile(`(?i)^SPEAKER_\d+:\s*`)
	capsPrefixRe      = regexp.MustCompile(`^[A-Z\s]+:\s*`)
	offsetPrefixRe    = regexp.MustCompile(`^\[\d+\.\d+-\d+\.\d+\]\s*`)
	endPunctRe        = regexp.MustCompile(`[.!?]$`)
	digitRe           = regexp.MustCompile(`\d`)
)

func compileAll(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		res[i] = regexp.MustCompile(p)
	}
	return res
}

// Summarizer turns a raw transcript into structured meeting minutes using
// keyword scoring and pattern extraction. No model inference involved.
type Summarizer struct {
	tokenizer *sentences.DefaultSentenceTokenizer
}

func NewSummarizer() (*Summarizer, error) {
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("could not build sentence tokenizer: %w", err)
	}
	return &Summarizer{tokenizer: tokenizer}, nil
}

// Summarize produces meeting minutes from the full transcript text.
func (s *Summarizer) Summarize(fullText string) (Minutes, error) {
	text := strings.TrimSpace(fullText)
	if text == "" {
		return Minutes{Summary: "No transcript text provided."}, nil
	}

	sents := s.splitSentences(text)
	return Minutes{
		Summary:     generateSummary(text, sents),
		Decisions:   extractDecisions(sents),
		ActionItems: extractActionItems(sents),
		Deadlines:   extractDeadlines(sents),
	}, nil
}

func (s *Summarizer) splitSentences(text string) []string {
	tokens := s.tokenizer.Tokenize(text)
	sents := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if t := strings.TrimSpace(tok.Text); t != "" {
			sents = append(sents, t)
		}
	}
	if len(sents) == 0 {
		sents = append(sents, text)
	}
	return sents
}

// generateSummary picks the highest scoring sentences and re-emits them in
// original order.
func generateSummary(text string, sents []string) string {
	cleaned := make([]string, 0, len(sents))
	for _, sent := range sents {
		if len(sent) > 10 {
			cleaned = append(cleaned, sent)
		}
	}
	if len(cleaned) == 0 {
		if len(text) > 300 {
			return text[:300] + "..."
		}
		return text
	}

	type scored struct {
		index int
		score float64
	}
	ranked := make([]scored, len(cleaned))
	for i, sent := range cleaned {
		ranked[i] = scored{index: i, score: sentenceImportance(sent, i, len(cleaned))}
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })

	n := len(cleaned) / 10
	if n < 3 {
		n = 3
	}
	if n > maxSummarySentences {
		n = maxSummarySentences
	}
	if n > len(ranked) {
		n = len(ranked)
	}

	keep := make(map[int]bool, n)
	for _, r := range ranked[:n] {
		keep[r.index] = true
	}

	parts := make([]string, 0, n)
	for i, sent := range cleaned {
		if keep[i] {
			parts = append(parts, sent)
		}
	}
	summary := strings.Join(parts, " ")
	if summary != "" && !endPunctRe.MatchString(summary) {
		summary += "."
	}
	return summary
}

func sentenceImportance(sentence string, position, total int) float64 {
	score := 0.0
	lower := strings.ToLower(sentence)

	for _, kw := range importantKeywords {
		if strings.Contains(lower, kw) {
			score += 1.0
		}
	}

	if position < 3 {
		score += 2.0
	}
	if position >= total-3 {
		score += 1.5
	}

	words := len(strings.Fields(sentence))
	switch {
	case words >= 10 && words <= 30:
		score += 1.0
	case words < 5:
		score -= 2.0
	}

	if digitRe.MatchString(sentence) {
		score += 0.5
	}
	return score
}

func extractDecisions(sents []string) []string {
	var decisions []string
	for _, sent := range sents {
		matched := false
		for _, re := range decisionPatterns {
			if re.MatchString(sent) {
				matched = true
				break
			}
		}
		if !matched {
			lower := strings.ToLower(sent)
			for _, ind := range decisionIndicators {
				if strings.Contains(lower, ind) {
					matched = true
					break
				}
			}
		}
		if !matched {
			continue
		}
		if cleaned := cleanSentence(sent); cleaned != "" && len(strings.Fields(cleaned)) >= 5 {
			decisions = append(decisions, cleaned)
		}
	}
	return capList(dedupe(decisions), maxDecisions)
}

func extractActionItems(sents []string) []string {
	var items []string
	for _, sent := range sents {
		for _, re := range actionPatterns {
			for _, match := range re.FindAllStringSubmatch(sent, -1) {
				var item string
				switch {
				case len(match) >= 3 && match[2] != "":
					item = fmt.Sprintf("%s: %s", strings.TrimSpace(match[1]), strings.TrimSpace(match[2]))
				case len(match) >= 2:
					item = strings.TrimSpace(match[1])
				default:
					continue
				}
				if cleaned := cleanSentence(item); cleaned != "" && len(strings.Fields(cleaned)) >= 3 {
					items = append(items, cleaned)
				}
			}
		}
	}
	return capList(dedupe(items), maxActionItems)
}

func extractDeadlines(sents []string) []string {
	var deadlines []string
	for _, sent := range sents {
		lower := strings.ToLower(sent)
		hasIndicator := false
		for _, ind := range deadlineIndicators {
			if strings.Contains(lower, ind) {
				hasIndicator = true
				break
			}
		}
		if !hasIndicator {
			continue
		}
		for _, re := range deadlinePatterns {
			if re.MatchString(sent) {
				if cleaned := cleanSentence(sent); cleaned != "" && len(strings.Fields(cleaned)) >= 3 {
					deadlines = append(deadlines, cleaned)
				}
				break
			}
		}
	}
	return capList(dedupe(deadlines), maxDeadlines)
}

// cleanSentence strips transcript artifacts (timestamps, speaker labels) and
// normalizes whitespace, capitalization, and terminal punctuation.
func cleanSentence(text string) string {
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	text = timestampPrefixRe.ReplaceAllString(text, "")
	text = speakerPrefixRe.ReplaceAllString(text, "")
	text = capsPrefixRe.ReplaceAllString(text, "")
	text = offsetPrefixRe.ReplaceAllString(text, "")

	if text == "" {
		return ""
	}
	if len(text) > 1 {
		text = strings.ToUpper(text[:1]) + text[1:]
	} else {
		text = strings.ToUpper(text)
	}
	if !endPunctRe.MatchString(text) {
		text += "."
	}
	return text
}

// dedupe drops near-duplicates keyed by the lowercased 50-char prefix.
func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	unique := make([]string, 0, len(items))
	for _, item := range items {
		key := strings.ToLower(strings.TrimSpace(item))
		if len(key) > 50 {
			key = key[:50]
		}
		if !seen[key] {
			seen[key] = true
			unique = append(unique, item)
		}
	}
	return unique
}

func capList(items []string, max int) []string {
	if len(items) > max {
		return items[:max]
	}
	return items
}
