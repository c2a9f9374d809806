package webstatus

import "net/http"

// StaticHandler serves GET /static/* from dir.
// No library in the corpus does static asset serving better than net/http's
// own FileServer; this one function is the stdlib exception noted in
// DESIGN.md.
func StaticHandler(dir string) http.Handler {
	return http.StripPrefix("/static/", http.FileServer(http.Dir(dir)))
}
