// Package taxonomy loads the hierarchical Roget-style tag dictionary used by
// the Vector Engine and by tag-proximity scoring in the Retriever. Vector
// positions are assigned by iterating the loaded class list rather than
// hard-coding class codes.
package taxonomy

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// FirstClassPosition is the first of the reserved super-class vector
// positions (61..66).
const FirstClassPosition = 61

// LastClassPosition bounds the super-class reservation; classes beyond this
// many are loaded but simply get no vector position, so a future 7th class
// degrades gracefully instead of crashing.
const LastClassPosition = 66

// TagEntry is one leaf tag in the dictionary.
type TagEntry struct {
	Nom      string   `json:"nom"`
	MotsCles []string `json:"mots_cles"`
}

// SectionEntry groups tags under a class.
type SectionEntry struct {
	MotsCles []string            `json:"mots_cles"`
	Tags     map[string]TagEntry `json:"tags"`
}

// ClassEntry is a top-level taxonomy class.
type ClassEntry struct {
	MotsCles []string                `json:"mots_cles"`
	Sections map[string]SectionEntry `json:"sections"`
}

// Document is the on-disk JSON shape: classes -> sections -> tags.
type Document struct {
	Meta struct {
		TotalTags     int `json:"total_tags"`
		TotalSections int `json:"total_sections"`
		TotalClasses  int `json:"total_classes"`
	} `json:"_meta"`
	Classes map[string]ClassEntry `json:"classes"`
}

// Index is the loaded, derived form of a Document: per-class keyword sets
// for the Vector Engine, and a tag-code -> vector-position map.
type Index struct {
	doc *Document

	// classOrder is the sorted class-code order used to assign vector
	// positions; classes past LastClassPosition-FirstClassPosition+1 are
	// loaded (proximity still works) but have no position.
	classOrder []string

	// classPosition maps a class code ("01", ...) to its reserved
	// Vector Engine position (61..66), when one was assigned.
	classPosition map[string]int

	// classKeywords holds, per assigned position, the lowercased union of
	// that class's own, its sections', and its tags' mots_cles.
	classKeywords map[int]map[string]struct{}

	// tagToPosition maps a full "CC-SSSS-TTTT" code to its class's position.
	tagToPosition map[string]int
}

// Load reads a taxonomy JSON document from path and builds an Index. A
// missing or unreadable file is a recoverable condition: callers should
// fall back to an empty Index rather than treat this as fatal.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("taxonomy: read %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("taxonomy: parse %s: %w", path, err)
	}
	return build(&doc), nil
}

// Empty returns a taxonomy Index with no classes loaded, used when the
// taxonomy file is absent. The Vector Engine then sets no class positions
// (61-66); the scalar, locus and domain-theme positions are still filled.
func Empty() *Index {
	return build(&Document{Classes: map[string]ClassEntry{}})
}

// FromDocument builds an Index directly from an already-parsed Document,
// for callers (tests, other loaders) that don't read from disk.
func FromDocument(doc *Document) *Index {
	return build(doc)
}

func build(doc *Document) *Index {
	idx := &Index{
		doc:           doc,
		classPosition: map[string]int{},
		classKeywords: map[int]map[string]struct{}{},
		tagToPosition: map[string]int{},
	}

	classes := make([]string, 0, len(doc.Classes))
	for code := range doc.Classes {
		classes = append(classes, code)
	}
	sort.Strings(classes)
	idx.classOrder = classes

	position := FirstClassPosition
	for _, code := range classes {
		if position > LastClassPosition {
			break // future classes beyond the reserved range get no position
		}
		idx.classPosition[code] = position
		kw := map[string]struct{}{}
		idx.classKeywords[position] = kw

		class := doc.Classes[code]
		addKeywords(kw, class.MotsCles)

		for sectionCode, section := range class.Sections {
			addKeywords(kw, section.MotsCles)
			for tagCode, tag := range section.Tags {
				full := fmt.Sprintf("%s-%s-%s", code, sectionCode, tagCode)
				idx.tagToPosition[full] = position
				addKeywords(kw, tag.MotsCles)
			}
		}
		position++
	}

	return idx
}

func addKeywords(set map[string]struct{}, words []string) {
	for _, w := range words {
		set[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
}

// ClassPosition returns the vector position reserved for class code cc, and
// whether one was assigned.
func (idx *Index) ClassPosition(classCode string) (int, bool) {
	pos, ok := idx.classPosition[classCode]
	return pos, ok
}

// PositionForTag returns the vector position of the class owning a full
// "CC-SSSS-TTTT" tag code.
func (idx *Index) PositionForTag(fullTagCode string) (int, bool) {
	if pos, ok := idx.tagToPosition[fullTagCode]; ok {
		return pos, true
	}
	// Fall back to deriving the class from the first two characters, so an
	// explicit tag not present in the dictionary still maps to its class.
	if len(fullTagCode) >= 2 {
		return idx.ClassPosition(fullTagCode[:2])
	}
	return 0, false
}

// Keywords returns the keyword set built for a reserved class position.
func (idx *Index) Keywords(position int) map[string]struct{} {
	return idx.classKeywords[position]
}

// Positions returns the sorted list of assigned class positions.
func (idx *Index) Positions() []int {
	positions := make([]int, 0, len(idx.classKeywords))
	for p := range idx.classKeywords {
		positions = append(positions, p)
	}
	sort.Ints(positions)
	return positions
}

// Prox computes the hierarchical proximity between two tag codes of shape
// "CC-SSSS-TTTT". Symmetric and equal to 1.0 iff t1==t2.
func Prox(t1, t2 string) float64 {
	p1 := strings.Split(t1, "-")
	p2 := strings.Split(t2, "-")
	if len(p1) != 3 || len(p2) != 3 {
		return 0.1
	}

	class1, section1, item1 := p1[0], p1[1], p1[2]
	class2, section2, item2 := p2[0], p2[1], p2[2]

	if class1 != class2 {
		return 0.1
	}
	if section1 != section2 {
		d, err := sectionDistance(section1, section2)
		if err != nil {
			return 0.1
		}
		return 0.3 + 0.3*(1-min1(float64(d)/100, 1))
	}
	if item1 == item2 {
		return 1.0
	}
	d, err := sectionDistance(item1, item2)
	if err != nil {
		return 0.1
	}
	return 0.7 + 0.3*(1-min1(float64(d)/100, 1))
}

func sectionDistance(a, b string) (int, error) {
	ai, err := strconv.Atoi(a)
	if err != nil {
		return 0, err
	}
	bi, err := strconv.Atoi(b)
	if err != nil {
		return 0, err
	}
	d := ai - bi
	if d < 0 {
		d = -d
	}
	return d, nil
}

func min1(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
