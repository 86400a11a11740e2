// Package intent turns a free-text chat message into an ActionDescriptor.
// Classification is a pure function of the message and the static vocabularies.
package intent

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/txdxai/sophia/pkg/models"
)

var reIPv4 = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)

// Classify detects the intent of message and builds its descriptor.
//
// Keyword membership is tested per word: a word matches a keyword it equals
// or, for keywords of four or more letters, one it starts with. An action
// keyword without any query keyword yields an action; everything else,
// including an empty message, is treated as a query.
func Classify(message string) models.ActionDescriptor {
	lower := strings.ToLower(message)
	words := tokenize(lower)

	hasAction := containsAny(words, actionKeywords)
	hasQuery := containsAny(words, queryKeywords)

	switch {
	case hasAction && !hasQuery:
		actionType := ActionType(lower)
		return models.ActionDescriptor{
			Intent:             models.IntentAction,
			ActionType:         actionType,
			Parameters:         ExtractParameters(message),
			OriginalMessage:    message,
			RequiresEscalation: IsHighRisk(actionType),
		}
	case hasQuery || !hasAction:
		return models.ActionDescriptor{
			Intent:          models.IntentQuery,
			ActionType:      models.ActionInformationRequest,
			Parameters:      map[string]any{models.ParamQuery: message},
			OriginalMessage: message,
		}
	default:
		return models.ActionDescriptor{
			Intent:          models.IntentUnknown,
			ActionType:      models.ActionUnclear,
			Parameters:      map[string]any{models.ParamMessage: message},
			OriginalMessage: message,
		}
	}
}

// ActionType maps a lower-cased message onto the action catalogue.
func ActionType(lower string) string {
	for _, rule := range actionRules {
		if rule.matches(lower) {
			return rule.actionType
		}
	}
	return models.ActionGeneral
}

func (r actionRule) matches(lower string) bool {
	for _, group := range r.groups {
		found := false
		for _, needle := range group {
			if strings.Contains(lower, needle) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ExtractParameters pulls IP addresses, a device name and a severity hint out
// of message. Keys are omitted when nothing matches.
func ExtractParameters(message string) map[string]any {
	params := make(map[string]any)

	if ips := reIPv4.FindAllString(message, -1); len(ips) > 0 {
		params[models.ParamIPAddresses] = ips
	}

	fields := strings.Fields(message)
	for i, w := range fields {
		if !deviceMarkers.has(strings.ToLower(strings.Trim(w, ".,!?:;"))) || i+1 >= len(fields) {
			continue
		}
		if name := strings.Trim(fields[i+1], ".,!?"); name != "" {
			params[models.ParamDeviceName] = name
		}
	}

	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "critical"):
		params[models.ParamSeverity] = "critical"
	case strings.Contains(lower, "high"):
		params[models.ParamSeverity] = "high"
	case strings.Contains(lower, "urgent"):
		params[models.ParamSeverity] = "urgent"
	}

	return params
}

func tokenize(lower string) []string {
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// minPrefixLen is the shortest keyword that also matches inflected forms
// ("blocking", "bloqueamos"). Shorter keywords ("ve", "run") match whole words only.
const minPrefixLen = 4

func containsAny(words []string, vocab set) bool {
	for _, w := range words {
		if vocab.has(w) {
			return true
		}
		for kw := range vocab {
			if utf8.RuneCountInString(kw) >= minPrefixLen && strings.HasPrefix(w, kw) {
				return true
			}
		}
	}
	return false
}
