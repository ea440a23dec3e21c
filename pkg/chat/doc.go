// Package chat manages typed model conversations.
//
// It contains:
//   - [Conversation] — an ongoing exchange that owns its history, injects an
//     optional greeting exactly once, and parses every reply into T
//   - [Definition] and [Template] — declaration-time blueprints stamped into
//     conversations with Build-time overrides
//   - [Middleware] — composable hooks around each model call (Timeout,
//     Recovery, Logger, OutputGuardrail)
//
// Parameter precedence across layers is fixed: Send-time params beat the
// conversation's Build-time defaults, which beat the definition's defaults.
// An explicitly set zero counts as set.
package chat
