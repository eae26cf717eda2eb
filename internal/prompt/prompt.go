// Package prompt implements the Prompt Manager: pure, deterministic
// system-prompt rendering from templates loaded once at startup.
package prompt

import (
	"bytes"
	"fmt"
	"io/fs"
	"strings"
	"text/template"
	"time"
)

// Preferences is the caller-supplied slot data that influences rendering
// beyond the interface tag.
type Preferences struct {
	Verbose bool
	Terse   bool
}

// Manager renders the system prompt template for a given interface tag.
// Templates are loaded once at construction from an fs.FS and never
// re-read, so rendering has no I/O.
type Manager struct {
	templates map[string]*template.Template
	fallback  *template.Template
}

const fallbackTemplateName = "default.tmpl"

var fallbackSource = "You are an assistant reachable via {{.Interface}}. " +
	"Available tools: {{.ToolsSummary}}. Verbosity: {{.Verbosity}}. Current time: {{.Now}}."

// New loads every *.tmpl file in dir from fsys. interfaceTag values map to
// templates by filename stem (e.g. "telegram.tmpl" serves TELEGRAM); a
// "default.tmpl" (or the built-in fallback if absent) serves any
// unmatched interfaceTag.
func New(fsys fs.FS, dir string) (*Manager, error) {
	m := &Manager{templates: make(map[string]*template.Template)}

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		fb, ferr := template.New(fallbackTemplateName).Parse(fallbackSource)
		if ferr != nil {
			return nil, ferr
		}
		m.fallback = fb
		return m, nil
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tmpl") {
			continue
		}
		content, err := fs.ReadFile(fsys, dir+"/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), ".tmpl")
		tmpl, err := template.New(entry.Name()).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", entry.Name(), err)
		}
		if name == "default" {
			m.fallback = tmpl
		} else {
			m.templates[strings.ToUpper(name)] = tmpl
		}
	}

	if m.fallback == nil {
		fb, err := template.New(fallbackTemplateName).Parse(fallbackSource)
		if err != nil {
			return nil, err
		}
		m.fallback = fb
	}

	return m, nil
}

type slots struct {
	Interface    string
	ToolsSummary string
	Verbosity    string
	Now          string
}

// Render substitutes the fixed named slots and returns the rendered
// system prompt for interfaceTag. now is caller-supplied so rendering
// stays pure and deterministic for a given input (the orchestrator
// stamps the current time before calling).
func Render(m *Manager, interfaceTag string, toolsSummary string, prefs Preferences, now time.Time) (string, error) {
	tmpl, ok := m.templates[strings.ToUpper(interfaceTag)]
	if !ok {
		tmpl = m.fallback
	}

	verbosity := "normal"
	if prefs.Verbose {
		verbosity = "verbose"
	} else if prefs.Terse {
		verbosity = "terse"
	}

	data := slots{
		Interface:    interfaceTag,
		ToolsSummary: toolsSummary,
		Verbosity:    verbosity,
		Now:          now.UTC().Format(time.RFC3339),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template for interface %s: %w", interfaceTag, err)
	}
	return buf.String(), nil
}
