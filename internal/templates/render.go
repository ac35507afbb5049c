// Package templates renders the page that hosts the maps and serves the
// script that applies bridge commands inside it.
package templates

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"net/http"
	"sync"
	"time"
)

//go:embed page.html mapbridge.js
var files embed.FS

// ScriptName is the file name the page loads the command applier from.
const ScriptName = "mapbridge.js"

// PageData configures the host page.
type PageData struct {
	Title      string
	SocketPath string
	ScriptPath string
	Containers []string
}

// Renderer manages the page templates.
type Renderer struct {
	templates *template.Template
	mu        sync.RWMutex
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	tmpl, err := template.New("").ParseFS(files, "*.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: tmpl}, nil
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderToBuffer(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToBuffer renders a named template to a buffer.
func (r *Renderer) RenderToBuffer(buf *bytes.Buffer, name string, data any) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.templates.ExecuteTemplate(buf, name, data)
}

// Page writes the host page.
func (r *Renderer) Page(w io.Writer, data PageData) error {
	var buf bytes.Buffer
	if err := r.RenderToBuffer(&buf, "page", data); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

// Script returns the command applier source.
func Script() []byte {
	b, err := files.ReadFile(ScriptName)
	if err != nil {
		panic(err)
	}
	return b
}

// ScriptHandler serves the command applier.
func ScriptHandler() http.Handler {
	script := Script()
	modified := time.Now()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		http.ServeContent(w, r, ScriptName, modified, bytes.NewReader(script))
	})
}
