// Package security provides the one escape hatch every other service
// must route through before forwarding agent- or entry-sourced text to
// an external model: spec.md §4.9's "any text passed downstream to an
// external model must be escaped at the call site." There is
// deliberately no prompt templating here — escaping is the whole
// surface.
package security

import "strings"

// delimiter tokens a downstream prompt template might use to separate
// instructions from untrusted content. Escaping neutralizes an agent's
// ability to forge one of these inside text it controls.
var escapes = []struct {
	from string
	to   string
}{
	{"<|", "<​|"},
	{"|>", "|​>"},
	{"```", "`​``"},
	{"[SYSTEM]", "[SYSTEM​]"},
	{"[INST]", "[INST​]"},
}

// Escape neutralizes known prompt-delimiter sequences in text without
// altering its visible content, so it is safe to interpolate into a
// prompt sent to an external model.
func Escape(text string) string {
	for _, e := range escapes {
		text = strings.ReplaceAll(text, e.from, e.to)
	}
	return text
}
