// Package loadpath turns a configured load path and a language/namespace
// pair into the key of the object holding that resource.
package loadpath

import (
	"context"
	"fmt"
	"regexp"
)

// DefaultTemplate is used when no load path is configured.
const DefaultTemplate = "{{lng}}/{{ns}}.json"

const fallbackExtension = ".json"

// Interpolator substitutes template placeholders, it is normally supplied by
// the host localization framework.
type Interpolator interface {
	Interpolate(template string, data map[string]string, lng string, opts map[string]any) string
}

// SyncFunc computes a load path from the language and namespace.
type SyncFunc func(lng, ns string) string

// AsyncFunc computes a load path and may block or fail while doing so.
type AsyncFunc func(ctx context.Context, lng, ns string) (string, error)

type kind int

const (
	kindLiteral kind = iota
	kindSync
	kindAsync
)

// Spec is either a literal template or a function producing one.
// The zero value is the empty literal.
type Spec struct {
	kind    kind
	literal string
	sync    SyncFunc
	async   AsyncFunc
}

// Literal is a fixed template, it may contain {{lng}} and {{ns}} placeholders.
func Literal(template string) Spec {
	return Spec{kind: kindLiteral, literal: template}
}

// Sync wraps a function computing the template on every resolution.
func Sync(fn SyncFunc) Spec {
	return Spec{kind: kindSync, sync: fn}
}

// Async wraps a function that may block or fail while computing the template.
func Async(fn AsyncFunc) Spec {
	return Spec{kind: kindAsync, async: fn}
}

// String describes the spec for logs.
func (s Spec) String() string {
	switch s.kind {
	case kindSync:
		return "func(lng, ns)"
	case kindAsync:
		return "func(ctx, lng, ns)"
	default:
		return s.literal
	}
}

// template evaluates the spec into the effective template or prefix.
func (s Spec) template(ctx context.Context, lng, ns string) (string, error) {
	switch s.kind {
	case kindSync:
		if s.sync == nil {
			return "", nil
		}
		return s.sync(lng, ns), nil
	case kindAsync:
		if s.async == nil {
			return "", nil
		}
		tmpl, err := s.async(ctx, lng, ns)
		if err != nil {
			return "", fmt.Errorf("could not compute load path for %s/%s: %w", lng, ns, err)
		}
		return tmpl, nil
	default:
		return s.literal, nil
	}
}

// Resolve computes the object key for lng and ns.
//
// With an Interpolator the effective template is interpolated and used as the
// key verbatim. Without one the key is "lng/ns.json" (or "lng.json" for an
// empty namespace) prefixed by the effective template when it is not empty.
func Resolve(ctx context.Context, spec Spec, interp Interpolator, lng, ns string) (string, error) {
	tmpl, err := spec.template(ctx, lng, ns)
	if err != nil {
		return "", err
	}

	if interp != nil {
		return interp.Interpolate(tmpl, map[string]string{"lng": lng, "ns": ns}, lng, map[string]any{}), nil
	}

	return fallbackKey(tmpl, lng, ns), nil
}

func fallbackKey(prefix, lng, ns string) string {
	key := lng + fallbackExtension
	if ns != "" {
		key = lng + "/" + ns + fallbackExtension
	}

	if prefix != "" {
		return prefix + "/" + key
	}
	return key
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// TemplateInterpolator replaces {{name}} placeholders with the matching data
// value, unknown placeholders are left untouched.
type TemplateInterpolator struct{}

func (TemplateInterpolator) Interpolate(template string, data map[string]string, _ string, _ map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if value, ok := data[name]; ok {
			return value
		}
		return match
	})
}
