// Package pipeline implements the spec's content pipelines (§4.5): each
// pipeline detects a MIME type and transforms RawContent into a
// PipelineResult by running a chain of middleware over a shared Context.
package pipeline

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ingestor/internal/interfaces"
	"github.com/ternarybob/ingestor/internal/models"
)

// Ctx is the middleware-chain context threaded through one pipeline run.
// Fields mirror §4.5's literal ctx shape.
type Ctx struct {
	Context     context.Context
	Content     []byte
	ContentType string
	Source      string
	Options     models.ScraperOptions
	Fetcher     interfaces.Fetcher
	Logger      arbor.ILogger

	Title  string
	DOM    interface{} // *goquery.Document for the HTML chain; nil otherwise
	Links  []string
	Errors []string

	// Markdown accumulates the canonical text a pipeline will hand to a
	// Splitter; HTML middleware fills it via HTML→Markdown conversion.
	// The Markdown and Text pipelines run no middleware chain and split
	// Content directly.
	Markdown string
}

// Middleware is one link in a pipeline's processing chain:
// (ctx, next) -> void. next must be called at most once; a second call is
// recorded as a chain error rather than aborting (§4.5).
type Middleware func(ctx *Ctx, next func())

// runChain executes mws in order, enforcing the at-most-once next()
// contract and converting panics into ctx.Errors entries instead of
// propagating them, per §4.5 ("any thrown value becomes an Error in
// ctx.errors").
func runChain(ctx *Ctx, mws []Middleware) {
	var run func(i int)
	run = func(i int) {
		if i >= len(mws) {
			return
		}
		calledNext := false
		next := func() {
			if calledNext {
				ctx.Errors = append(ctx.Errors, "middleware chain error: next() called more than once")
				return
			}
			calledNext = true
			run(i + 1)
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					ctx.Errors = append(ctx.Errors, fmt.Sprintf("%v", r))
				}
			}()
			mws[i](ctx, next)
		}()

		if !calledNext {
			// Middleware chose not to continue the chain (e.g. it
			// decided the document should stop processing); that's a
			// legitimate short-circuit, not an error.
			return
		}
	}
	run(0)
}

// result builds the PipelineResult a pipeline.Process call returns, given
// the chunks its Splitter produced.
func (c *Ctx) result(chunks []models.Chunk) models.PipelineResult {
	return models.PipelineResult{
		Title:       c.Title,
		ContentType: c.ContentType,
		TextContent: c.Markdown,
		Links:       c.Links,
		Errors:      c.Errors,
		Chunks:      chunks,
	}
}
