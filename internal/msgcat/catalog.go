// Package msgcat holds every user-facing message as a text/template keyed by a dotted path.
package msgcat

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"
	"sync/atomic"
	"text/template"

	yaml "gopkg.in/yaml.v3"
)

//go:embed messages.en.yaml
var embedded embed.FS

// Catalog maps keys such as "move.illegal" to parsed templates. It is immutable once built.
type Catalog struct {
	templates map[string]*template.Template
}

var current atomic.Pointer[Catalog]

// Default returns the active catalog, built from the embedded messages on first use.
func Default() *Catalog {
	if c := current.Load(); c != nil {
		return c
	}
	c, err := New("")
	if err != nil {
		panic(fmt.Sprintf("embedded messages are invalid: %v", err))
	}
	current.CompareAndSwap(nil, c)
	return current.Load()
}

// SetDefault replaces the catalog used by T and Tf.
func SetDefault(c *Catalog) {
	if c != nil {
		current.Store(c)
	}
}

// New builds a catalog from the embedded messages, then overlays every *.yaml/*.yml file in
// overrideDir. Two override files defining the same key is an error.
func New(overrideDir string) (*Catalog, error) {
	c := &Catalog{templates: make(map[string]*template.Template)}
	base, err := readFlat(embedded, "messages.en.yaml")
	if err != nil {
		return nil, err
	}
	if err := c.add(base); err != nil {
		return nil, err
	}
	if strings.TrimSpace(overrideDir) == "" {
		return c, nil
	}

	dir := os.DirFS(overrideDir)
	names, err := fs.Glob(dir, "*.y*ml")
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	slices.Sort(names)
	owner := make(map[string]string)
	for _, name := range names {
		if ext := path.Ext(name); ext != ".yaml" && ext != ".yml" {
			continue
		}
		flat, err := readFlat(dir, name)
		if err != nil {
			return nil, err
		}
		for key := range flat {
			if prev, dup := owner[key]; dup {
				return nil, fmt.Errorf("duplicate override key %q in %s and %s", key, prev, name)
			}
			owner[key] = name
		}
		if err := c.add(flat); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) add(flat map[string]string) error {
	for key, text := range flat {
		tpl, err := template.New(key).Option("missingkey=error").Parse(text)
		if err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}
		c.templates[key] = tpl
	}
	return nil
}

func readFlat(fsys fs.FS, name string) (map[string]string, error) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	flat := make(map[string]string)
	if err := flatten(tree, nil, flat); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return flat, nil
}

// flatten walks nested maps; only string leaves are allowed.
func flatten(node map[string]any, prefix []string, out map[string]string) error {
	for k, v := range node {
		keyPath := append(slices.Clone(prefix), k)
		switch v := v.(type) {
		case map[string]any:
			if err := flatten(v, keyPath, out); err != nil {
				return err
			}
		case string:
			out[strings.Join(keyPath, ".")] = v
		case nil:
		default:
			return fmt.Errorf("unsupported value at %s: %T", strings.Join(keyPath, "."), v)
		}
	}
	return nil
}

// Render executes the template for key with data.
func (c *Catalog) Render(key string, data any) (string, error) {
	tpl, ok := c.templates[strings.TrimSpace(key)]
	if !ok {
		return "", fmt.Errorf("message not found: %s", key)
	}
	var sb strings.Builder
	if err := tpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Text is Render that falls back to the key itself.
func (c *Catalog) Text(key string, data any) string {
	s, err := c.Render(key, data)
	if err != nil {
		return key
	}
	return s
}

func T(key string) string { return Default().Text(key, nil) }

func Tf(key string, data any) string { return Default().Text(key, data) }
