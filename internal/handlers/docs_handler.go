package handlers

import (
	"embed"
	"net/http"
)

//go:embed docs/index.html docs/openapi.yaml
var docsFS embed.FS

// DocsHandler handles API documentation endpoints.
type DocsHandler struct {
	specContent []byte
}

// NewDocsHandler creates a DocsHandler serving the bundled OpenAPI document.
func NewDocsHandler() *DocsHandler {
	spec, _ := docsFS.ReadFile("docs/openapi.yaml")
	return &DocsHandler{specContent: spec}
}

// NewDocsHandlerWithSpec creates a DocsHandler serving specContent.
func NewDocsHandlerWithSpec(specContent []byte) *DocsHandler {
	return &DocsHandler{specContent: specContent}
}

// UI serves the API reference page.
func (h *DocsHandler) UI(w http.ResponseWriter, r *http.Request) {
	html, err := docsFS.ReadFile("docs/index.html")
	if err != nil {
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(html)
}

// OpenAPISpec serves the OpenAPI specification YAML file.
func (h *DocsHandler) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if len(h.specContent) == 0 {
		http.Error(w, "OpenAPI specification not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/x-yaml")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.specContent)
}
