// SPDX-License-Identifier: MIT
package tone

import (
	"math"
	"os"
	"testing"
)

const (
	testSize       = 1024
	testSampleRate = 44100
	testFrequency  = 440.0 // A4 note
)

var (
	testHill []float64
	testSine []int16
)

func TestMain(m *testing.M) {
	testHill = make([]float64, testSize)

	// A "hill" with its peak at testSize/4.
	for i := range testHill {
		testHill[i] = math.Exp(-0.01 * math.Pow(float64(i-testSize/4), 2))
	}

	testSine = Sine(testSize, testSampleRate, testFrequency, 0.9)

	os.Exit(m.Run())
}

func TestSineAmplitude(t *testing.T) {
	var maxAbs int16
	for _, s := range testSine {
		if s < 0 {
			s = -s
		}
		if s > maxAbs {
			maxAbs = s
		}
	}
	amplitude := 0.9
	want := int16(math.MaxInt16 * amplitude)
	if maxAbs > want || maxAbs < want-200 {
		t.Errorf("Sine peak amplitude = %d, want close to %d", maxAbs, want)
	}
	if testSine[0] != 0 {
		t.Errorf("Sine should start at zero phase, got %d", testSine[0])
	}
}

func TestSineAtJoinsChunks(t *testing.T) {
	whole := Sine(2*testSize, testSampleRate, testFrequency, 0.5)
	first := SineAt(0, testSize, testSampleRate, testFrequency, 0.5)
	second := SineAt(testSize, testSize, testSampleRate, testFrequency, 0.5)

	joined := append(first, second...)
	for i := range whole {
		if whole[i] != joined[i] {
			t.Fatalf("sample %d: whole=%d joined=%d", i, whole[i], joined[i])
		}
	}
}

func TestChordStaysInRange(t *testing.T) {
	c := Chord(testSize, testSampleRate, 1.0, 110, 220, 330, 440)
	for i, s := range c {
		if s == math.MinInt16 {
			t.Fatalf("sample %d clipped", i)
		}
	}
	if got := Chord(4, testSampleRate, 1.0); len(got) != 4 || got[0] != 0 {
		t.Errorf("Chord without partials should be silence, got %v", got)
	}
}

func TestPeakIndex(t *testing.T) {
	tests := []struct {
		name     string
		start    int
		end      int
		expected int
	}{
		{"Full Range", 0, testSize - 1, testSize / 4},
		{"Before Peak", 0, testSize/4 - 10, testSize/4 - 10},
		{"After Peak", testSize/4 + 10, testSize - 1, testSize/4 + 10},
		{"Negative Start", -5, testSize - 1, testSize / 4},
		{"End Past Length", 0, testSize + 5, testSize / 4},
		{"Inverted Range", 10, 5, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PeakIndexIn(testHill, tt.start, tt.end); got != tt.expected {
				t.Errorf("PeakIndexIn(%d, %d) = %d, want %d", tt.start, tt.end, got, tt.expected)
			}
		})
	}

	if got := PeakIndex([]int32{}); got != 0 {
		t.Errorf("PeakIndex(empty) = %d, want 0", got)
	}
	if got := PeakIndex([]int{3, 9, 9, 1}); got != 1 {
		t.Errorf("PeakIndex ties should prefer the first, got %d", got)
	}
}

func BenchmarkSine(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		_ = Sine(testSize, testSampleRate, testFrequency, 0.9)
	}
}
