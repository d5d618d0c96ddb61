package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SkillInfo holds a single skill template. The activation logic lives in the
// sim package; this carries the tunable numbers.
type SkillInfo struct {
	SkillID    int32
	Name       string
	Kind       string // "dash", "heal", "area_damage"
	CooldownMs int
	Magnitude  float64 // heal amount, damage amount, dash impulse
	Radius     float64 // area skills
	BuffType   int32   // buff applied on activation (0 = none)
	BuffMs     int     // duration of the applied buff
}

// SkillTable holds all skills indexed by SkillID.
type SkillTable struct {
	skills map[int32]*SkillInfo
	byName map[string]*SkillInfo
}

// Get returns a skill by ID, or nil if not found.
func (t *SkillTable) Get(skillID int32) *SkillInfo {
	return t.skills[skillID]
}

// GetByName returns a skill by its exact name, or nil if not found.
func (t *SkillTable) GetByName(name string) *SkillInfo {
	return t.byName[name]
}

// Count returns total loaded skills.
func (t *SkillTable) Count() int {
	return len(t.skills)
}

// All returns all skill infos.
func (t *SkillTable) All() []*SkillInfo {
	result := make([]*SkillInfo, 0, len(t.skills))
	for _, s := range t.skills {
		result = append(result, s)
	}
	return result
}

// --- YAML loading ---

type skillEntry struct {
	SkillID    int32   `yaml:"skill_id"`
	Name       string  `yaml:"name"`
	Kind       string  `yaml:"kind"`
	CooldownMs int     `yaml:"cooldown_ms"`
	Magnitude  float64 `yaml:"magnitude"`
	Radius     float64 `yaml:"radius"`
	BuffType   int32   `yaml:"buff_type"`
	BuffMs     int     `yaml:"buff_ms"`
}

type skillListFile struct {
	Skills []skillEntry `yaml:"skills"`
}

// LoadSkillTable loads skill definitions from YAML.
func LoadSkillTable(path string) (*SkillTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skills: %w", err)
	}
	return ParseSkillTable(raw)
}

// ParseSkillTable parses skill definitions from raw YAML bytes.
func ParseSkillTable(raw []byte) (*SkillTable, error) {
	var f skillListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse skills: %w", err)
	}
	t := &SkillTable{
		skills: make(map[int32]*SkillInfo, len(f.Skills)),
		byName: make(map[string]*SkillInfo, len(f.Skills)),
	}
	for i := range f.Skills {
		e := &f.Skills[i]
		if e.SkillID == 0 {
			return nil, fmt.Errorf("skill %q: skill_id must be non-zero", e.Name)
		}
		if _, dup := t.skills[e.SkillID]; dup {
			return nil, fmt.Errorf("skill %q: duplicate skill_id %d", e.Name, e.SkillID)
		}
		info := &SkillInfo{
			SkillID:    e.SkillID,
			Name:       e.Name,
			Kind:       e.Kind,
			CooldownMs: e.CooldownMs,
			Magnitude:  e.Magnitude,
			Radius:     e.Radius,
			BuffType:   e.BuffType,
			BuffMs:     e.BuffMs,
		}
		t.skills[e.SkillID] = info
		t.byName[e.Name] = info
	}
	return t, nil
}
