package search

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/pkg/browser"

	"github.com/nkasozi/circle-to-search-pc/settings"
	"github.com/nkasozi/circle-to-search-pc/workflow"
)

// Launcher opens a URL in the user's default browser. Swapped out in tests.
type Launcher func(url string) error

// TemplateSource yields the current search URL template. Binding it to the
// settings store picks up template updates without rebuilding the provider.
type TemplateSource func() string

// Provider builds the search target by substituting the hosted-image URL
// into the configured template exactly once, then launches it.
type Provider struct {
	template TemplateSource
	launch   Launcher
}

// NewProvider validates the initial template and returns a provider. A
// template without the expected placeholder is a configuration error caught
// here (settings-load time), not at search time.
func NewProvider(template TemplateSource, launch Launcher) (*Provider, error) {
	if launch == nil {
		launch = browser.OpenURL
	}
	if err := ValidateTemplate(template()); err != nil {
		return nil, err
	}
	return &Provider{template: template, launch: launch}, nil
}

// ValidateTemplate requires exactly one placeholder. No other templating
// syntax is supported.
func ValidateTemplate(tpl string) error {
	if n := strings.Count(tpl, settings.Placeholder); n != 1 {
		return fmt.Errorf("search template must contain exactly one %q placeholder, found %d", settings.Placeholder, n)
	}
	return nil
}

// BuildTarget substitutes the hosted-image URL verbatim into the template.
// The caller supplies a percent-appropriate URL.
func BuildTarget(tpl, imageURL string) string {
	return strings.Replace(tpl, settings.Placeholder, imageURL, 1)
}

// Search constructs the target URL and opens it in the default browser.
func (p *Provider) Search(ctx context.Context, imageURL string) (workflow.SearchOutcome, error) {
	if err := ctx.Err(); err != nil {
		return workflow.SearchOutcome{}, err
	}

	target := BuildTarget(p.template(), imageURL)
	log.Printf("Search: opening %s", target)

	if err := p.launch(target); err != nil {
		return workflow.SearchOutcome{}, fmt.Errorf("failed to open search target: %v", err)
	}
	return workflow.SearchOutcome{SearchURL: target, Launched: true}, nil
}
