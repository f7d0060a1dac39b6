package labels

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// DangerIndex maps the class ids of dangerous labels to their label. It is immutable once built.
type DangerIndex struct {
	byClass map[int]string
}

// NewDangerIndex matches each dangerous label against the vocabulary by exact string equality.
// The first matching class id wins; labels missing from the vocabulary and blank lines are ignored.
func NewDangerIndex(vocab LabelSet, dangerous []string) DangerIndex {
	byClass := make(map[int]string, len(dangerous))
	for _, label := range dangerous {
		if strings.TrimSpace(label) == "" {
			continue
		}
		classID := vocab.IndexOf(label)
		if classID < 0 {
			continue
		}
		if _, ok := byClass[classID]; ok {
			continue
		}
		byClass[classID] = label
	}
	return DangerIndex{byClass: byClass}
}

// ParseDangerIndex reads newline delimited dangerous labels and indexes them against vocab.
func ParseDangerIndex(vocab LabelSet, text string) DangerIndex {
	return NewDangerIndex(vocab, strings.Split(text, "\n"))
}

// LoadDangerIndex reads a dangerous label file and indexes it against vocab.
func LoadDangerIndex(vocab LabelSet, path string) (DangerIndex, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DangerIndex{}, errors.Wrapf(err, "could not read dangerous labels from %q", path)
	}
	return ParseDangerIndex(vocab, string(data)), nil
}

// Contains reports whether the class id is dangerous.
func (di DangerIndex) Contains(classID int) bool {
	_, ok := di.byClass[classID]
	return ok
}

// Label returns the dangerous label registered for a class id.
func (di DangerIndex) Label(classID int) (string, bool) {
	l, ok := di.byClass[classID]
	return l, ok
}

// Len returns the number of dangerous classes.
func (di DangerIndex) Len() int {
	return len(di.byClass)
}

// ClassIDs returns the dangerous class ids in ascending order.
func (di DangerIndex) ClassIDs() []int {
	ids := lo.Keys(di.byClass)
	sort.Ints(ids)
	return ids
}
