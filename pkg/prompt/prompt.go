// Package prompt renders prompt templates with {placeholder} substitution.
//
// Placeholders are single-brace tags, e.g. "Translate {text} to {lang}".
// Rendering fails with a *MissingKeyError when a tag has no value, so a
// half-filled prompt never reaches a model.
package prompt

import (
	"fmt"
	"io"

	"github.com/valyala/fasttemplate"
)

const (
	startTag = "{"
	endTag   = "}"
)

// MissingKeyError reports a template tag with no matching value.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("prompt: missing value for {%s}", e.Key)
}

// Template is a parsed prompt template. It is immutable and safe for
// concurrent use.
type Template struct {
	raw  string
	t    *fasttemplate.Template
	keys []string
}

// New parses text into a Template. It fails on malformed tags, e.g. an
// unclosed brace.
func New(text string) (*Template, error) {
	t, err := fasttemplate.NewTemplate(text, startTag, endTag)
	if err != nil {
		return nil, fmt.Errorf("prompt: parse template: %w", err)
	}

	tpl := &Template{raw: text, t: t}
	tpl.keys = collectKeys(t)

	return tpl, nil
}

// Must is like New but panics on error. Intended for templates known at
// compile time.
func Must(text string) *Template {
	t, err := New(text)
	if err != nil {
		panic(err)
	}
	return t
}

func collectKeys(t *fasttemplate.Template) []string {
	seen := map[string]struct{}{}
	var keys []string

	// Run the template once with a recording tag func.
	_, _ = t.ExecuteFuncStringWithErr(func(_ io.Writer, tag string) (int, error) {
		if _, ok := seen[tag]; !ok {
			seen[tag] = struct{}{}
			keys = append(keys, tag)
		}
		return 0, nil
	})

	return keys
}

// Raw returns the original template text.
func (t *Template) Raw() string { return t.raw }

// Keys returns the distinct tag names in order of first appearance.
func (t *Template) Keys() []string {
	keys := make([]string, len(t.keys))
	copy(keys, t.keys)
	return keys
}

// Render substitutes vars into the template. Every tag must have a value;
// otherwise a *MissingKeyError for the first missing tag is returned.
func (t *Template) Render(vars map[string]string) (string, error) {
	return t.t.ExecuteFuncStringWithErr(func(w io.Writer, tag string) (int, error) {
		v, ok := vars[tag]
		if !ok {
			return 0, &MissingKeyError{Key: tag}
		}
		return io.WriteString(w, v)
	})
}
