// Package preview serves live pages through the runtime renderer.
package preview

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pstuifzand/sitetree/internal/app"
	"github.com/pstuifzand/sitetree/internal/storage"
)

// HomeRoute is rendered for a bare language path such as /en/.
const HomeRoute = "home"

// Handler serves GET /{lang}/{route...}. Query parameters become context
// flags. Static prefixes are served from the site directory.
type Handler struct {
	site *app.Site
	mux  *http.ServeMux
}

// New creates the preview handler of a site.
func New(site *app.Site) *Handler {
	h := &Handler{site: site, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /{$}", h.root)
	h.mux.HandleFunc("GET /{lang}/{route...}", h.page)
	static := http.FileServer(http.Dir(site.Dir))
	for _, prefix := range site.Config.StaticPrefixes {
		prefix = "/" + strings.Trim(prefix, "/") + "/"
		h.mux.Handle("GET "+prefix, static)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	h.mux.ServeHTTP(rec, r)
	h.site.Log.Debugw("preview request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
}

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/"+h.site.Config.DefaultLanguage+"/", http.StatusFound)
}

func (h *Handler) page(w http.ResponseWriter, r *http.Request) {
	lang := r.PathValue("lang")
	route := strings.Trim(r.PathValue("route"), "/")
	if route == "" {
		route = HomeRoute
	}
	if !h.site.HasLanguage(lang) {
		notFound(w, fmt.Sprintf("unknown language %q", lang))
		return
	}

	values := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			values[k] = v[len(v)-1]
		}
	}
	html, err := h.site.Renderer.RenderPage(route, h.site.Context(lang, route, app.Flags(values)))
	if errors.Is(err, storage.ErrNotFound) {
		notFound(w, err.Error())
		return
	}
	if err != nil {
		h.site.Log.Errorw("preview failed", "route", route, "lang", lang, "error", err)
		http.Error(w, "sitetree: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	fmt.Fprint(w, html)
}

func notFound(w http.ResponseWriter, reason string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprintf(w, "sitetree: %s\n", reason)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
