package monitor

import (
	"strings"

	"github.com/pkg/errors"
)

// LineEnding is the suffix appended to outbound text.
type LineEnding int

const (
	EOLNone LineEnding = iota
	EOLLF
	EOLCR
	EOLCRLF
)

// Labels as shown in the EOL selector.
var lineEndingLabels = [...]string{
	EOLNone: "None",
	EOLLF:   `\n`,
	EOLCR:   `\r`,
	EOLCRLF: `\r\n`,
}

var lineEndingSuffixes = [...]string{
	EOLNone: "",
	EOLLF:   "\n",
	EOLCR:   "\r",
	EOLCRLF: "\r\n",
}

// LineEndingLabels returns the selector labels in display order.
func LineEndingLabels() []string {
	return append([]string(nil), lineEndingLabels[:]...)
}

// ParseLineEnding maps a selector label back to its LineEnding.
func ParseLineEnding(label string) (LineEnding, error) {
	for i, l := range lineEndingLabels {
		if l == label {
			return LineEnding(i), nil
		}
	}
	return EOLNone, errors.Errorf("unknown line ending %q", label)
}

func (e LineEnding) valid() bool {
	return e >= EOLNone && e <= EOLCRLF
}

func (e LineEnding) String() string {
	if !e.valid() {
		return "LineEnding(?)"
	}
	return lineEndingLabels[e]
}

// Suffix returns the bytes appended to each sent line.
func (e LineEnding) Suffix() string {
	if !e.valid() {
		return ""
	}
	return lineEndingSuffixes[e]
}

// EncodeLine returns the exact bytes transmitted for text: invalid UTF-8 is
// replaced with U+FFFD and the line ending is appended.
func EncodeLine(text string, eol LineEnding) []byte {
	return []byte(strings.ToValidUTF8(text, "\uFFFD") + eol.Suffix())
}
