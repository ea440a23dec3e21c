package chat

import (
	"github.com/germanamz/parley/pkg/backend"
	"github.com/germanamz/parley/pkg/chats/history"
)

// SendOption adjusts a single Send or Invoke call.
type SendOption interface {
	applySend(inv *Invocation)
}

type sendOptionFunc func(*Invocation)

func (f sendOptionFunc) applySend(inv *Invocation) { f(inv) }

// WithVars sets prompt template variables for this call.
func WithVars(vars map[string]string) SendOption {
	return sendOptionFunc(func(inv *Invocation) {
		for k, v := range vars {
			inv.Vars[k] = v
		}
	})
}

// WithVar sets one prompt template variable for this call.
func WithVar(key, value string) SendOption {
	return sendOptionFunc(func(inv *Invocation) {
		inv.Vars[key] = value
	})
}

// BuildOption adjusts one Template.Build call. Build options win over the
// Definition's defaults.
type BuildOption interface {
	applyBuild(b *buildSettings)
}

type buildOptionFunc func(*buildSettings)

func (f buildOptionFunc) applyBuild(b *buildSettings) { f(b) }

type buildSettings struct {
	client     backend.Client
	model      *string
	system     *string
	greeting   *string
	params     backend.Params
	history    history.History
	middleware []Middleware
	midSet     bool
}

// WithClient overrides the definition's backend client.
func WithClient(c backend.Client) BuildOption {
	return buildOptionFunc(func(b *buildSettings) { b.client = c })
}

// WithModel overrides the definition's model identifier.
func WithModel(m string) BuildOption {
	return buildOptionFunc(func(b *buildSettings) { b.model = &m })
}

// WithSystem overrides the definition's system prompt template.
func WithSystem(s string) BuildOption {
	return buildOptionFunc(func(b *buildSettings) { b.system = &s })
}

// WithGreeting overrides the definition's greeting. An empty string disables
// the greeting entirely.
func WithGreeting(g string) BuildOption {
	return buildOptionFunc(func(b *buildSettings) { b.greeting = &g })
}

// WithHistory supplies the conversation's history store, e.g. one restored
// from disk. The definition's history factory is skipped.
func WithHistory(h history.History) BuildOption {
	return buildOptionFunc(func(b *buildSettings) { b.history = h })
}

// WithMiddleware replaces the definition's middleware list. Calling it with
// no arguments disables the definition's middleware.
func WithMiddleware(mw ...Middleware) BuildOption {
	return buildOptionFunc(func(b *buildSettings) {
		b.middleware = mw
		b.midSet = true
	})
}

// ParamsOption overlays sampling parameters. It serves double duty: passed to
// Build it sets the conversation's default params, passed to Send it applies
// to that call only.
type ParamsOption struct {
	params backend.Params
}

func (o ParamsOption) applySend(inv *Invocation) {
	inv.Params = inv.Params.Merge(o.params)
}

func (o ParamsOption) applyBuild(b *buildSettings) {
	b.params = b.params.Merge(o.params)
}

// WithParams overlays sampling parameters. Set fields win over lower layers,
// including explicitly set zeros; unset fields fall through.
func WithParams(p backend.Params) ParamsOption {
	return ParamsOption{params: p}
}
