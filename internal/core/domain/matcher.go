package domain

import "strings"

// KeyMatcher resolves a collaborator-returned field name onto one of the target keys.
type KeyMatcher interface {
	Match(returned string, targets []string) (string, bool)
}

// ContainmentMatcher matches when either string contains the other, case-sensitive.
// Targets are tried in order and the first hit wins.
type ContainmentMatcher struct{}

func (ContainmentMatcher) Match(returned string, targets []string) (string, bool) {
	if returned == "" {
		return "", false
	}
	for _, target := range targets {
		if strings.Contains(target, returned) || strings.Contains(returned, target) {
			return target, true
		}
	}
	return "", false
}

// ExactMatcher only accepts identical keys.
type ExactMatcher struct{}

func (ExactMatcher) Match(returned string, targets []string) (string, bool) {
	for _, target := range targets {
		if target == returned {
			return target, true
		}
	}
	return "", false
}

// NewKeyMatcher maps a configuration name onto a strategy; unknown names use containment.
func NewKeyMatcher(name string) KeyMatcher {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "exact":
		return ExactMatcher{}
	default:
		return ContainmentMatcher{}
	}
}
