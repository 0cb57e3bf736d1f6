package strategy

import (
	"context"
	"strings"

	"github.com/ternarybob/ingestor/internal/interfaces"
	"github.com/ternarybob/ingestor/internal/models"
)

// NPM and PyPI are thin wrappers over Web. The only site-specific option
// they apply is forcing scope=subpages; no other normalizer options are
// set for either registry site.

// NPM handles www.npmjs.com package pages.
type NPM struct {
	*Web
}

// NewNPM builds an NPM strategy delegating to an inner Web strategy.
func NewNPM(web *Web) *NPM { return &NPM{Web: web} }

// CanHandle claims npmjs.com package URLs.
func (n *NPM) CanHandle(sourceURL string) bool {
	return strings.Contains(sourceURL, "npmjs.com/package/")
}

func (n *NPM) ProcessItem(ctx context.Context, item models.QueueItem, options models.ScraperOptions) (interfaces.ProcessItemResult, error) {
	options.Scope = models.ScopeSubpages
	return n.Web.ProcessItem(ctx, item, options)
}

func (n *NPM) Cleanup() error { return n.Web.Cleanup() }

// PyPI handles pypi.org package pages.
type PyPI struct {
	*Web
}

// NewPyPI builds a PyPI strategy delegating to an inner Web strategy.
func NewPyPI(web *Web) *PyPI { return &PyPI{Web: web} }

// CanHandle claims pypi.org project URLs.
func (p *PyPI) CanHandle(sourceURL string) bool {
	return strings.Contains(sourceURL, "pypi.org/project/")
}

func (p *PyPI) ProcessItem(ctx context.Context, item models.QueueItem, options models.ScraperOptions) (interfaces.ProcessItemResult, error) {
	options.Scope = models.ScopeSubpages
	return p.Web.ProcessItem(ctx, item, options)
}

func (p *PyPI) Cleanup() error { return p.Web.Cleanup() }

var (
	_ interfaces.Strategy = (*NPM)(nil)
	_ interfaces.Strategy = (*PyPI)(nil)
)
