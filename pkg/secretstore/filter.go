package secretstore

import "fmt"

// FilterKey is the attribute a Filter matches on.
type FilterKey string

const (
	FilterTagKey      FilterKey = "tag-key"
	FilterTagValue    FilterKey = "tag-value"
	FilterName        FilterKey = "name"
	FilterDescription FilterKey = "description"
)

// Valid reports whether k is a known filter key.
func (k FilterKey) Valid() bool {
	switch k {
	case FilterTagKey, FilterTagValue, FilterName, FilterDescription:
		return true
	}
	return false
}

// Filter restricts a listing to entries whose attribute equals one of Values.
// Multiple filters are combined with AND; values within one filter with OR.
type Filter struct {
	Key    FilterKey `yaml:"key" json:"key"`
	Values []string  `yaml:"values" json:"values"`
}

func (f Filter) String() string {
	return fmt.Sprintf("%s=%v", f.Key, f.Values)
}

// Matches evaluates f against e on the client side.
func (f Filter) Matches(e Entry) bool {
	switch f.Key {
	case FilterTagKey:
		for k := range e.Tags {
			if f.has(k) {
				return true
			}
		}
	case FilterTagValue:
		for _, v := range e.Tags {
			if f.has(v) {
				return true
			}
		}
	case FilterName:
		return f.has(e.Name)
	case FilterDescription:
		return f.has(e.Description)
	}
	return false
}

func (f Filter) has(s string) bool {
	for _, v := range f.Values {
		if v == s {
			return true
		}
	}
	return false
}

// MatchesAll reports whether e passes every filter.
func MatchesAll(filters []Filter, e Entry) bool {
	for _, f := range filters {
		if !f.Matches(e) {
			return false
		}
	}
	return true
}
