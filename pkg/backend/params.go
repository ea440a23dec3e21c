package backend

// Params holds model sampling parameters. Fields are pointers so an unset
// parameter is distinguishable from an explicit zero: a caller asking for
// Temperature 0 is honored, not treated as a default.
type Params struct {
	Temperature *float64 // Sampling temperature.
	TopP        *float64 // Nucleus sampling probability mass.
	MaxTokens   *int     // Maximum tokens in the response.
	Stop        []string // Stop sequences.
}

// Float64 returns a pointer to v, for building Params literals.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v, for building Params literals.
func Int(v int) *int { return &v }

// Merge overlays o on top of p: fields set in o win, unset fields keep p's
// value. Neither operand is modified.
func (p Params) Merge(o Params) Params {
	out := p

	if o.Temperature != nil {
		out.Temperature = o.Temperature
	}
	if o.TopP != nil {
		out.TopP = o.TopP
	}
	if o.MaxTokens != nil {
		out.MaxTokens = o.MaxTokens
	}
	if len(o.Stop) > 0 {
		out.Stop = o.Stop
	}

	return out
}
