// SPDX-License-Identifier: MIT
package pitch

import (
	"fmt"
	"math"
	"strings"
)

// Anchor is a histogram index marking a target note.
type Anchor int

// pitchClasses lists semitones upward from the reference A.
var pitchClasses = [12]string{"A", "A#", "B", "C", "C#", "D", "D#", "E", "F", "F#", "G", "G#"}

// flats maps enharmonic spellings onto pitchClasses.
var flats = map[string]string{
	"BB": "A#", "DB": "C#", "EB": "D#", "GB": "F#", "AB": "G#",
}

// SemitoneAnchor returns the bin where pitch class s semitones above the
// reference begins, wrapping within the octave.
func SemitoneAnchor(semitones, binCount int) Anchor {
	s := ((semitones % 12) + 12) % 12
	return Anchor(int(math.Round(float64(s)*float64(binCount)/12)) % binCount)
}

// ParseNote resolves a pitch-class name ("A", "c#", "Eb") to its anchor.
// A lower-case "e" is accepted for the high E string.
func ParseNote(name string, binCount int) (Anchor, error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	if alias, ok := flats[key]; ok {
		key = alias
	}
	for s, pc := range pitchClasses {
		if pc == key {
			return SemitoneAnchor(s, binCount), nil
		}
	}
	return 0, fmt.Errorf("unknown note name: '%s'", name)
}

// NoteName returns the pitch class whose anchor is nearest to bin.
func NoteName(bin Anchor, binCount int) string {
	s := int(math.Round(float64(bin)*12/float64(binCount))) % 12
	if s < 0 {
		s += 12
	}
	return pitchClasses[s]
}

// Label returns the pitch-class name when bin is exactly a semitone anchor,
// otherwise "".
func Label(bin, binCount int) string {
	for s, pc := range pitchClasses {
		if int(SemitoneAnchor(s, binCount)) == bin {
			return pc
		}
	}
	return ""
}

// String is one guitar string in standard tuning.
type String struct {
	Key    string // selection key, "E" for low E and "e" for high E
	Note   string // scientific pitch name
	Anchor Anchor
}

// GuitarStrings returns the six open strings low to high. Both E strings
// share one anchor since the histogram folds octaves together.
func GuitarStrings(binCount int) []String {
	e := SemitoneAnchor(7, binCount)
	return []String{
		{Key: "E", Note: "E2", Anchor: e},
		{Key: "A", Note: "A2", Anchor: SemitoneAnchor(0, binCount)},
		{Key: "D", Note: "D3", Anchor: SemitoneAnchor(5, binCount)},
		{Key: "G", Note: "G3", Anchor: SemitoneAnchor(10, binCount)},
		{Key: "B", Note: "B3", Anchor: SemitoneAnchor(2, binCount)},
		{Key: "e", Note: "E4", Anchor: e},
	}
}
