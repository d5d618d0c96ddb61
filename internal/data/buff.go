package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BuffInfo holds a single buff template.
type BuffInfo struct {
	BuffType  int32
	Name      string
	Kind      string // "regen", "cooldown_reduction", "aura_slow", "stacking"
	Magnitude float64
}

// BuffTable holds all buff templates indexed by buff type.
type BuffTable struct {
	buffs map[int32]*BuffInfo
}

func (t *BuffTable) Get(buffType int32) *BuffInfo {
	return t.buffs[buffType]
}

func (t *BuffTable) Count() int {
	return len(t.buffs)
}

func (t *BuffTable) All() []*BuffInfo {
	result := make([]*BuffInfo, 0, len(t.buffs))
	for _, b := range t.buffs {
		result = append(result, b)
	}
	return result
}

type buffEntry struct {
	BuffType  int32   `yaml:"buff_type"`
	Name      string  `yaml:"name"`
	Kind      string  `yaml:"kind"`
	Magnitude float64 `yaml:"magnitude"`
}

type buffListFile struct {
	Buffs []buffEntry `yaml:"buffs"`
}

// LoadBuffTable loads buff definitions from YAML.
func LoadBuffTable(path string) (*BuffTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read buffs: %w", err)
	}
	return ParseBuffTable(raw)
}

// ParseBuffTable parses buff definitions from raw YAML bytes.
func ParseBuffTable(raw []byte) (*BuffTable, error) {
	var f buffListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse buffs: %w", err)
	}
	t := &BuffTable{buffs: make(map[int32]*BuffInfo, len(f.Buffs))}
	for i := range f.Buffs {
		e := &f.Buffs[i]
		if e.BuffType == 0 {
			return nil, fmt.Errorf("buff %q: buff_type must be non-zero", e.Name)
		}
		if _, dup := t.buffs[e.BuffType]; dup {
			return nil, fmt.Errorf("buff %q: duplicate buff_type %d", e.Name, e.BuffType)
		}
		t.buffs[e.BuffType] = &BuffInfo{
			BuffType:  e.BuffType,
			Name:      e.Name,
			Kind:      e.Kind,
			Magnitude: e.Magnitude,
		}
	}
	return t, nil
}
