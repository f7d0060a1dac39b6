// Package labels reads detector label vocabularies and the subset of labels considered dangerous.
package labels

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// LabelSet is the detector vocabulary. The label for class id i is at index i.
type LabelSet struct {
	labels []string
}

// ParseLabelSet splits newline delimited text into a LabelSet. Lines are kept verbatim, including
// any trailing carriage return, so dangerous labels from the same source match exactly. A single
// empty line after a final newline is not a label.
func ParseLabelSet(text string) LabelSet {
	if text == "" {
		return LabelSet{}
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return LabelSet{labels: lines}
}

// NewLabelSet builds a LabelSet from labels already in class id order.
func NewLabelSet(labels ...string) LabelSet {
	return LabelSet{labels: append([]string(nil), labels...)}
}

// LoadLabelSet reads a label file.
func LoadLabelSet(path string) (LabelSet, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return LabelSet{}, errors.Wrapf(err, "could not read labels from %q", path)
	}
	return ParseLabelSet(string(data)), nil
}

// Len returns the number of labels.
func (ls LabelSet) Len() int {
	return len(ls.labels)
}

// Label returns the raw label for a class id.
func (ls LabelSet) Label(classID int) (string, bool) {
	if classID < 0 || classID >= len(ls.labels) {
		return "", false
	}
	return ls.labels[classID], true
}

// Name returns the label for a class id, or the class id in decimal when the set has no such label.
func (ls LabelSet) Name(classID int) string {
	if l, ok := ls.Label(classID); ok {
		return l
	}
	return strconv.Itoa(classID)
}

// IndexOf returns the class id of the first label equal to label, or -1.
func (ls LabelSet) IndexOf(label string) int {
	return lo.IndexOf(ls.labels, label)
}

// Labels returns a copy of the labels.
func (ls LabelSet) Labels() []string {
	return append([]string(nil), ls.labels...)
}
