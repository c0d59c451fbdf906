package chunksize

import (
	"errors"
	"fmt"
)

// BreathingRoom is the number of bytes left free in every chunk for the
// other fields of the chunk document.
const BreathingRoom = 100

// Preset is a named chunk size tuning.
type Preset int

const (
	Tiny4K     Preset = 4    // lots of small files only
	Small32K   Preset = 32   // still small files mostly
	Medium256K Preset = 256  // good compromise
	Large1M    Preset = 1024 // for lots of larger files
	Huge4M     Preset = 4096 // mega files only, no small files
)

// Default is the preset used when nothing is configured.
const Default = Medium256K

var ErrUnknownPreset = errors.New("unknown chunk size preset")

var names = map[Preset]string{
	Tiny4K:     "tiny_4K",
	Small32K:   "small_32K",
	Medium256K: "medium_256K",
	Large1M:    "large_1M",
	Huge4M:     "huge_4M",
}

// Presets lists every preset from smallest to largest.
func Presets() []Preset {
	return []Preset{Tiny4K, Small32K, Medium256K, Large1M, Huge4M}
}

// Bytes returns the chunk budget in bytes.
func (p Preset) Bytes() int {
	return int(p)*1024 - BreathingRoom
}

// Kilobytes returns the nominal size of the preset.
func (p Preset) Kilobytes() int {
	return int(p)
}

func (p Preset) String() string {
	if name, ok := names[p]; ok {
		return name
	}
	return fmt.Sprintf("Preset(%d)", int(p))
}

// Parse maps a preset name such as "medium_256K" to its Preset.
func Parse(name string) (Preset, error) {
	for p, n := range names {
		if n == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
}
