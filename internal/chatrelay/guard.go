package chatrelay

import (
	"regexp"
	"strings"
)

// GuardResult is the outcome of scanning one user turn.
type GuardResult struct {
	Blocked bool
	Score   float64
	Signals []string
}

type guardPattern struct {
	re     *regexp.Regexp
	signal string
	weight float64
}

// guardBlockThreshold is the score at which a turn never reaches the model.
const guardBlockThreshold = 0.7

var guardPatterns = []guardPattern{
	// instruction override, English and Portuguese
	{regexp.MustCompile(`(?i)(ignore|disregard|forget)\s+(all\s+)?(the\s+)?(previous|prior|above|earlier|your)\s+(instructions?|rules?|prompts?|guidelines?)`), "override:ignore", 0.9},
	{regexp.MustCompile(`(?i)(ignore|esque[çc]a|desconsidere)\s+(todas\s+)?(as\s+)?(suas\s+)?(instru[çc][õo]es|regras|diretrizes)(\s+anteriores)?`), "override:ignore_pt", 0.9},
	{regexp.MustCompile(`(?i)(new\s+instructions?|system\s*prompt|novas\s+instru[çc][õo]es)\s*:|<<\s*sys(tem)?\s*>>`), "override:new_instructions", 0.9},
	{regexp.MustCompile(`(?i)(pretend|imagine)\s+(that\s+)?you\s+(have|had)\s+no\s+(rules?|restrictions?|limits?|filters?)`), "override:no_rules", 0.9},
	{regexp.MustCompile(`(?i)(finja|imagine)\s+que\s+(voc[êe]\s+)?n[ãa]o\s+tem\s+(regras|restri[çc][õo]es|limites|filtros)`), "override:no_rules_pt", 0.9},
	{regexp.MustCompile(`(?i)\bjailbreak\b|\bDAN\s*mode\b|developer\s*mode|modo\s+desenvolvedor`), "override:jailbreak", 0.9},
	{regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|my)\s+|voc[êe]\s+agora\s+[ée]\s+(um|uma|meu|minha)\s+`), "override:role", 0.7},

	// system prompt extraction
	{regexp.MustCompile(`(?i)(reveal|show|print|repeat|tell\s+me)\s+(me\s+)?(your\s+)?(system\s+prompt|initial\s+prompt|hidden\s+instructions?)`), "exfiltration:system_prompt", 0.8},
	{regexp.MustCompile(`(?i)(mostre|revele|repita|imprima)\s+(o\s+)?(seu\s+)?(prompt(\s+do\s+sistema)?|instru[çc][õo]es\s+(ocultas|iniciais))`), "exfiltration:system_prompt_pt", 0.8},
	{regexp.MustCompile(`(?i)\b(api|secret|gateway)\s*(key|token)s?\b|\bchave\s+(da\s+)?api\b`), "exfiltration:credentials", 0.5},

	// fake conversation framing
	{regexp.MustCompile(`(?i)\[/?INST\]|\[/?SYS\]|<\|im_start\|>|<\|im_end\|>|<\|system\|>|<\|assistant\|>`), "framing:special_tokens", 0.9},
	{regexp.MustCompile(`(?i)###\s*(system|instruction|assistant|sistema)\s*:`), "framing:role_markers", 0.7},

	// low-weight noise that only blocks alongside another signal
	{regexp.MustCompile(`(?i)base64\s*(encode|decode|:)`), "obfuscation:encoding", 0.4},
	{regexp.MustCompile(`<\s*(script|iframe|object|embed)\b`), "obfuscation:html", 0.6},
}

// Scan scores text against the injection patterns. The score is the highest
// single weight plus 0.1 for every further signal, capped at 1.
func Scan(text string) GuardResult {
	if strings.TrimSpace(text) == "" {
		return GuardResult{}
	}
	var (
		signals []string
		top     float64
	)
	for _, p := range guardPatterns {
		if !p.re.MatchString(text) {
			continue
		}
		signals = append(signals, p.signal)
		if p.weight > top {
			top = p.weight
		}
	}
	score := top
	if len(signals) > 1 {
		score += float64(len(signals)-1) * 0.1
	}
	if score > 1 {
		score = 1
	}
	return GuardResult{Blocked: score >= guardBlockThreshold, Score: score, Signals: signals}
}

// latestUserTurn returns the newest user message, the only one the visitor
// typed since the previous scan.
func latestUserTurn(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
