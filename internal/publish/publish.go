package publish

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/valyala/quicktemplate"

	spindle "github.com/vango-dev/spindle"
	"github.com/vango-dev/spindle/internal/errors"
	"github.com/vango-dev/spindle/pkg/ssr"
)

const contentTypeHTML = "text/html; charset=utf-8"

// Result describes one published page.
type Result struct {
	Path     string
	Key      string
	Bytes    int
	Duration time.Duration

	// RedirectTo is set when the application navigated away while
	// rendering. A redirect stub is published instead of the page.
	RedirectTo string

	// Complete is false when the render timed out waiting for fetches.
	Complete bool
}

// Publisher renders pages and stores them in a Target.
type Publisher struct {
	target   Target
	renderer *ssr.Renderer
	mount    spindle.MountFunc
	logger   *slog.Logger
}

// New returns a Publisher.
func New(target Target, renderer *ssr.Renderer, mount spindle.MountFunc, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{target: target, renderer: renderer, mount: mount, logger: logger}
}

// Publish renders every path in order and stops at the first failure.
func (p *Publisher) Publish(ctx context.Context, paths []string) ([]Result, error) {
	results := make([]Result, 0, len(paths))
	for _, path := range paths {
		res, err := p.publishOne(ctx, path)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (p *Publisher) publishOne(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	res := Result{Path: path, Key: PageKey(path)}

	page, err := p.renderer.Render(ctx, path, p.mount)
	if err != nil {
		return res, errors.New("E201").WithDetailf("rendering %s", path).Wrap(err)
	}

	body := page.HTML
	if page.Redirected {
		res.RedirectTo = page.Location
		body = redirectStub(page.Location)
	}
	res.Complete = page.Complete
	res.Bytes = len(body)

	if err := p.target.Put(ctx, res.Key, contentTypeHTML, []byte(body)); err != nil {
		return res, errors.New("E500").WithDetailf("%s to %s", res.Key, p.target).Wrap(err)
	}
	res.Duration = time.Since(start)

	p.logger.Debug("published page", "path", path, "key", res.Key, "bytes", res.Bytes, "redirect", res.RedirectTo)
	if !res.Complete {
		p.logger.Warn("published a partial page", "path", path)
	}
	return res, nil
}

func redirectStub(location string) string {
	var b strings.Builder
	qw := quicktemplate.AcquireWriter(&b)
	qw.N().S(`<!DOCTYPE html><html><head><meta http-equiv="refresh" content="0; url=`)
	qw.E().S(location)
	qw.N().S(`"></head><body><a href="`)
	qw.E().S(location)
	qw.N().S(`">`)
	qw.E().S(location)
	qw.N().S(`</a></body></html>`)
	quicktemplate.ReleaseWriter(qw)
	return b.String()
}
