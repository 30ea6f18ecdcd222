package render

import (
	"sync"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
	"go.uber.org/zap"
)

var (
	minifier *minify.M
	once     sync.Once
)

// getMinifier returns the shared HTML minifier. Comments are kept so
// diagnostics survive, and document and end tags stay explicit.
func getMinifier() *minify.M {
	once.Do(func() {
		minifier = minify.New()
		minifier.Add("text/html", &html.Minifier{
			KeepComments:     true,
			KeepDocumentTags: true,
			KeepEndTags:      true,
			KeepQuotes:       true,
		})
	})
	return minifier
}

// Minify minifies a rendered page. On failure the input is returned as is.
func Minify(page string, log *zap.SugaredLogger) string {
	out, err := getMinifier().String("text/html", page)
	if err != nil {
		if log != nil {
			log.Warnw("minify failed, serving unminified page", "error", err)
		}
		return page
	}
	return out
}
