// Package transform provides the pure string transformations applied to secret
// names and descriptions before they become credential metadata.
//
// Every Transformer is total: it is defined for all inputs, including the empty
// string, and never fails. Name and description transformers are configured
// independently and never see each other's input.
//
// Example:
//
//	name := transform.NewRemovePrefixes([]string{"ci/", "ci/build/"})
//	name.Apply("ci/build/deploy-key") // "deploy-key"
//
//	desc := transform.Hide{}
//	desc.Apply("prod database root") // ""
package transform

import (
	"fmt"
	"strings"
)

// Transformer maps one string to another without side effects.
type Transformer interface {
	Apply(s string) string
}

// Kind names a transformer variant as it appears in configuration.
type Kind string

const (
	KindDefault        Kind = "default"
	KindHide           Kind = "hide"
	KindRemovePrefix   Kind = "removePrefix"
	KindRemovePrefixes Kind = "removePrefixes"
)

// Identity returns its input unchanged.
type Identity struct{}

// Apply implements Transformer.
func (Identity) Apply(s string) string {
	return s
}

// Hide discards its input. It is used to keep descriptions that may carry
// sensitive notes out of credential metadata.
type Hide struct{}

// Apply implements Transformer.
func (Hide) Apply(string) string {
	return ""
}

// RemovePrefix strips a single prefix from the start of the input.
type RemovePrefix struct {
	Prefix string
}

// NewRemovePrefix creates a RemovePrefix transformer.
func NewRemovePrefix(prefix string) RemovePrefix {
	return RemovePrefix{Prefix: prefix}
}

// Apply implements Transformer.
func (t RemovePrefix) Apply(s string) string {
	return RemovePrefixes{Prefixes: []string{t.Prefix}}.Apply(s)
}

// RemovePrefixes strips the most specific matching prefix from the start of the
// input. Only one prefix is ever removed.
type RemovePrefixes struct {
	Prefixes []string
}

// NewRemovePrefixes creates a RemovePrefixes transformer. The slice is copied.
func NewRemovePrefixes(prefixes []string) RemovePrefixes {
	return RemovePrefixes{Prefixes: append([]string(nil), prefixes...)}
}

// Apply implements Transformer.
func (t RemovePrefixes) Apply(s string) string {
	prefix := LongestPrefix(t.Prefixes, s)
	return strings.TrimPrefix(s, prefix)
}

// LongestPrefix returns the longest candidate that s starts with, or "" if none
// match. Candidates are trimmed of surrounding whitespace before comparison and
// empty candidates never match.
func LongestPrefix(candidates []string, s string) string {
	best := ""
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" || len(c) <= len(best) {
			continue
		}
		if strings.HasPrefix(s, c) {
			best = c
		}
	}
	return best
}

// Spec is the configuration form of a transformer.
type Spec struct {
	Type     Kind     `yaml:"type" json:"type"`
	Prefix   string   `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Prefixes []string `yaml:"prefixes,omitempty" json:"prefixes,omitempty"`
}

// Build turns a Spec into a Transformer. The zero Spec builds Identity.
func (s Spec) Build() (Transformer, error) {
	switch s.Type {
	case "", KindDefault:
		return Identity{}, nil
	case KindHide:
		return Hide{}, nil
	case KindRemovePrefix:
		return NewRemovePrefix(s.Prefix), nil
	case KindRemovePrefixes:
		return NewRemovePrefixes(s.Prefixes), nil
	default:
		return nil, fmt.Errorf("unknown transformer type %q", s.Type)
	}
}

// Chain holds the independent name and description transformers.
type Chain struct {
	Name        Transformer
	Description Transformer
}

// NewChain builds a Chain, substituting Identity for nil transformers.
func NewChain(name, description Transformer) Chain {
	if name == nil {
		name = Identity{}
	}
	if description == nil {
		description = Identity{}
	}
	return Chain{Name: name, Description: description}
}

// Apply transforms a name and a description in isolation from one another.
func (c Chain) Apply(name, description string) (string, string) {
	n, d := c.Name, c.Description
	if n == nil {
		n = Identity{}
	}
	if d == nil {
		d = Identity{}
	}
	return n.Apply(name), d.Apply(description)
}
