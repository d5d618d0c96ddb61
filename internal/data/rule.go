package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RuleInfo declares the gameplay consequences of a sustained contact between
// a source-tagged entity (the hazard/aura side) and a target-tagged entity.
type RuleInfo struct {
	SourceTag string
	TargetTag string

	// Applied to the target when the contact starts. 0 = no buff.
	StartBuff     int32
	BuffMagnitude float64
	BuffMs        int  // 0 = held until the contact ends
	RemoveOnEnd   bool // remove the applied buff when the contact ends

	// Damage-over-time while the contact persists. Fires on every
	// DamageEvery-th continue tick. 0 = no damage.
	DamageEvery  int
	DamageAmount int32
	DamageSkill  int32 // skill id attributed on the damage_event row

	// A damage source stops this contact after MaxHits hits. 0 = unlimited.
	MaxHits int
}

// RuleTable holds interaction rules keyed by (source tag, target tag).
type RuleTable struct {
	rules map[[2]string]*RuleInfo
}

// Get returns the rule for the given directed tag pair, or nil.
func (t *RuleTable) Get(sourceTag, targetTag string) *RuleInfo {
	return t.rules[[2]string{sourceTag, targetTag}]
}

func (t *RuleTable) Count() int {
	return len(t.rules)
}

type ruleEntry struct {
	SourceTag     string  `yaml:"source_tag"`
	TargetTag     string  `yaml:"target_tag"`
	StartBuff     int32   `yaml:"start_buff"`
	BuffMagnitude float64 `yaml:"buff_magnitude"`
	BuffMs        int     `yaml:"buff_ms"`
	RemoveOnEnd   bool    `yaml:"remove_on_end"`
	DamageEvery   int     `yaml:"damage_every"`
	DamageAmount  int32   `yaml:"damage_amount"`
	DamageSkill   int32   `yaml:"damage_skill"`
	MaxHits       int     `yaml:"max_hits"`
}

type ruleListFile struct {
	Rules []ruleEntry `yaml:"rules"`
}

// LoadRuleTable loads interaction rules from YAML.
func LoadRuleTable(path string) (*RuleTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return ParseRuleTable(raw)
}

// ParseRuleTable parses interaction rules from raw YAML bytes.
func ParseRuleTable(raw []byte) (*RuleTable, error) {
	var f ruleListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	t := &RuleTable{rules: make(map[[2]string]*RuleInfo, len(f.Rules))}
	for i := range f.Rules {
		e := &f.Rules[i]
		if e.SourceTag == "" || e.TargetTag == "" {
			return nil, fmt.Errorf("rule %d: source_tag and target_tag are required", i)
		}
		key := [2]string{e.SourceTag, e.TargetTag}
		if _, dup := t.rules[key]; dup {
			return nil, fmt.Errorf("rule %d: duplicate pair (%s, %s)", i, e.SourceTag, e.TargetTag)
		}
		t.rules[key] = &RuleInfo{
			SourceTag:     e.SourceTag,
			TargetTag:     e.TargetTag,
			StartBuff:     e.StartBuff,
			BuffMagnitude: e.BuffMagnitude,
			BuffMs:        e.BuffMs,
			RemoveOnEnd:   e.RemoveOnEnd,
			DamageEvery:   e.DamageEvery,
			DamageAmount:  e.DamageAmount,
			DamageSkill:   e.DamageSkill,
			MaxHits:       e.MaxHits,
		}
	}
	return t, nil
}
