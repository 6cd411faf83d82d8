// Package markup converts standard markdown emphasis into the WhatsApp
// dialect before a summary is sent back to the chat.
//
// Generative models answer in regular markdown (**bold**, __italic__, ...)
// but WhatsApp renders its own single-character delimiters. The five
// substitutions operate on disjoint delimiter characters, so application
// order does not matter.
package markup

import "regexp"

var (
	boldRe          = regexp.MustCompile("\\*\\*([^*]+)\\*\\*")
	italicRe        = regexp.MustCompile("__([^_]+)__")
	strikethroughRe = regexp.MustCompile("~~([^~]+)~~")
	monospaceRe     = regexp.MustCompile("`([^`]+)`")
	softBreakRe     = regexp.MustCompile("\\s\\s\\n")
)

// ToWhatsApp rewrites markdown emphasis markers into WhatsApp markup:
// **bold** becomes *bold*, __italic__ becomes _italic_, ~~strike~~ becomes
// ~strike~, `code` becomes ```code``` and a markdown soft line break
// collapses to a plain newline. The soft-break pattern matches any two
// whitespace characters before the newline, so a run of blank lines also
// collapses to a single newline. Empty input yields an empty string.
func ToWhatsApp(text string) string {
	if text == "" {
		return ""
	}
	out := boldRe.ReplaceAllString(text, "*$1*")
	out = italicRe.ReplaceAllString(out, "_${1}_")
	out = strikethroughRe.ReplaceAllString(out, "~$1~")
	out = monospaceRe.ReplaceAllString(out, "```$1```")
	out = softBreakRe.ReplaceAllString(out, "\n")
	return out
}
