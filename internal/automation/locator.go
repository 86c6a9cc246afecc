package automation

import (
	"fmt"
	"strings"
)

// Strategy selects how a Locator's query is resolved in the page.
type Strategy string

const (
	ByCSS    Strategy = "css"
	ByXPath  Strategy = "xpath"
	ByID     Strategy = "id"
	ByJSPath Strategy = "jspath"
)

// Locator is a typed reference to an element of the driven UI. Site profiles
// are built from Locators so a new target site is onboarded with data, not code.
type Locator struct {
	By    Strategy `mapstructure:"by" yaml:"by" json:"by"`
	Query string   `mapstructure:"query" yaml:"query" json:"query"`
}

// CSS returns a Locator resolved with a CSS selector.
func CSS(query string) Locator { return Locator{By: ByCSS, Query: query} }

// XPath returns a Locator resolved with an XPath expression.
func XPath(query string) Locator { return Locator{By: ByXPath, Query: query} }

// Strategy returns the effective strategy; an empty one means CSS.
func (l Locator) Strategy() Strategy {
	if l.By == "" {
		return ByCSS
	}
	return Strategy(strings.ToLower(string(l.By)))
}

// IsZero reports whether the locator is unset.
func (l Locator) IsZero() bool { return strings.TrimSpace(l.Query) == "" }

// Validate checks the locator has a query and a known strategy.
func (l Locator) Validate() error {
	if l.IsZero() {
		return fmt.Errorf("locator has an empty query")
	}
	switch l.Strategy() {
	case ByCSS, ByXPath, ByID, ByJSPath:
		return nil
	}
	return fmt.Errorf("locator %q has unknown strategy %q", l.Query, l.By)
}

func (l Locator) String() string {
	return string(l.Strategy()) + "=" + l.Query
}
