// Package classify decides whether a message text announces an Unreal
// Engine plugin update. Classification is a pure function over the
// text: no state, no I/O, no failure modes.
package classify

import (
	"regexp"
	"strings"

	"uewatch/internal/domain"
)

// versionRe recognizes version tokens in the shapes "UE5.4", "UE 5.4",
// "Unreal Engine 5.4", "v5.4", "Version 5.4". Multi-digit components
// are allowed; a trailing patch component is consumed but dropped when
// the version is normalized. Longer alternatives come first so that
// "version" is not half-eaten by the bare "v" prefix.
var versionRe = regexp.MustCompile(`(?i)\b(?:unreal\s+engine|version|ue|v)\s*(\d+\.\d+)(?:\.\d+)?`)

// engineRe recognizes a reference to the engine itself: the token "UE"
// (optionally followed by digits, as in "UE5") or the phrase
// "Unreal Engine".
var engineRe = regexp.MustCompile(`(?i)\b(?:ue\s*\d*|unreal\s+engine)\b`)

// updateKeywords annotate a match with the update-flavored words found
// in the text. They are advisory metadata only and never influence the
// match decision.
var updateKeywords = []string{
	"update", "updated", "new version", "release", "released",
	"download", "available", "plugin", "marketplace",
}

// Classify reports whether text announces an Unreal Engine update.
// A text matches if and only if it contains both a version token and
// an engine reference; either alone is not enough. The returned
// Version is normalized to "<major>.<minor>" with any UE/v/Version
// prefix stripped. Any input, including the empty string, yields a
// well-defined result.
func Classify(text string) domain.MatchResult {
	return defaultClassifier.Classify(text)
}

var defaultClassifier = &Classifier{keywords: updateKeywords}

// Classifier is a Classify variant extended with user-supplied rules.
// The zero value behaves like the package-level Classify.
type Classifier struct {
	keywords []string
	mute     []*regexp.Regexp
}

// New builds a classifier from user rules. Extra keywords extend the
// advisory keyword list; mute patterns are matched by Muted, not here.
func New(rules Rules) (*Classifier, error) {
	c := &Classifier{
		keywords: append(append([]string(nil), updateKeywords...), rules.Keywords...),
	}
	for _, p := range rules.Mute {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, err
		}
		c.mute = append(c.mute, re)
	}
	return c, nil
}

// Classify applies the version-AND-engine-reference predicate to text.
func (c *Classifier) Classify(text string) domain.MatchResult {
	if text == "" {
		return domain.MatchResult{}
	}

	loc := versionRe.FindStringSubmatchIndex(text)
	if loc == nil || !engineRe.MatchString(text) {
		return domain.MatchResult{}
	}

	keywords := c.keywords
	if keywords == nil {
		keywords = updateKeywords
	}

	return domain.MatchResult{
		Matched:     true,
		Version:     text[loc[2]:loc[3]],
		MatchedText: text[loc[0]:loc[1]],
		Keywords:    foundKeywords(text, keywords),
	}
}

// Muted reports whether text matches any user-configured mute pattern.
// Muted texts are still classified and recorded; the monitor just
// skips notification for them.
func (c *Classifier) Muted(text string) bool {
	for _, re := range c.mute {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func foundKeywords(text string, keywords []string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	return found
}
