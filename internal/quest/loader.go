package quest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/questkeeper/internal/logger"
)

// ObjectiveDefinition for YAML parsing
type ObjectiveDefinition struct {
	ID          string `yaml:"id"`
	Type        string `yaml:"type"`
	Target      string `yaml:"target"` // Empty or "any" matches every target
	Description string `yaml:"description"`
	Required    int    `yaml:"required"`
	Optional    bool   `yaml:"optional"`
	Hidden      bool   `yaml:"hidden"`
}

// RewardDefinition for YAML parsing
type RewardDefinition struct {
	Kind        string `yaml:"kind"`
	Amount      int    `yaml:"amount"`
	Item        string `yaml:"item"`
	Currency    string `yaml:"currency"`
	Description string `yaml:"description"`
}

// RequirementDefinition for YAML parsing
type RequirementDefinition struct {
	Kind  string `yaml:"kind"`
	Value string `yaml:"value"`
}

// QuestDefinition for YAML parsing
type QuestDefinition struct {
	Name             string                  `yaml:"name"`
	Description      string                  `yaml:"description"`
	Category         string                  `yaml:"category"`
	Objectives       []ObjectiveDefinition   `yaml:"objectives"`
	Rewards          []RewardDefinition      `yaml:"rewards"`
	Requirements     []RequirementDefinition `yaml:"requirements"`
	RecommendedLevel int                     `yaml:"recommended_level"`
	Priority         int                     `yaml:"priority"`
	Repeatable       bool                    `yaml:"repeatable"`
	AutoComplete     bool                    `yaml:"auto_complete"`
	AutoAccept       bool                    `yaml:"auto_accept"`
	DurationMS       int64                   `yaml:"duration_ms"`
	Duration         string                  `yaml:"duration"` // Go duration string, wins over duration_ms
	NextQuest        string                  `yaml:"next_quest"`
	Group            string                  `yaml:"group"`
}

// QuestsConfig represents the structure of a quests YAML file
type QuestsConfig struct {
	Quests map[string]QuestDefinition `yaml:"quests"`
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func questsSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("quests.schema.json", questsSchemaJSON)
	})
	return schema, schemaErr
}

// ParseQuests validates data against the quest file schema and decodes it.
// source names the data in error messages.
func ParseQuests(data []byte, source string) (*QuestsConfig, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse quests YAML %s: %w", source, err)
	}
	if err := validateDocument(doc); err != nil {
		return nil, fmt.Errorf("invalid quests file %s: %w", source, err)
	}

	var config QuestsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to decode quests %s: %w", source, err)
	}
	if config.Quests == nil {
		config.Quests = make(map[string]QuestDefinition)
	}
	return &config, nil
}

// validateDocument checks a decoded YAML document against the schema. The
// document is round-tripped through JSON so the validator sees JSON types.
func validateDocument(doc any) error {
	s, err := questsSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var jsonDoc any
	if err := json.Unmarshal(raw, &jsonDoc); err != nil {
		return err
	}
	return s.Validate(jsonDoc)
}

// LoadQuestsFromYAML loads quest definitions from YAML file
func LoadQuestsFromYAML(filename string) (*QuestsConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read quests file: %w", err)
	}
	return ParseQuests(data, filename)
}

// Merge combines another QuestsConfig into this one
func (config *QuestsConfig) Merge(other *QuestsConfig) {
	if other == nil {
		return
	}
	for id, def := range other.Quests {
		config.Quests[id] = def
	}
}

// LoadQuestsFromDirectory loads and merges all YAML files from a directory.
// Files are read in name order so later files win on duplicate IDs.
func LoadQuestsFromDirectory(dir string) (*QuestsConfig, error) {
	merged := &QuestsConfig{
		Quests: make(map[string]QuestDefinition),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	fileCount := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}

		filePath := filepath.Join(dir, name)
		config, err := LoadQuestsFromYAML(filePath)
		if err != nil {
			return nil, err
		}
		merged.Merge(config)
		fileCount++
		logger.Info("Loaded quest file", "path", filePath, "quests", len(config.Quests))
	}

	logger.Info("Loaded quests from directory", "dir", dir, "files", fileCount, "total_quests", len(merged.Quests))
	return merged, nil
}

// GetQuestByID returns a Template from the config
func (config *QuestsConfig) GetQuestByID(id string) (*Template, bool) {
	def, exists := config.Quests[id]
	if !exists {
		return nil, false
	}
	t, err := createTemplateFromDefinition(id, &def)
	if err != nil {
		logger.Warning("Quest definition rejected", "quest", id, "error", err)
		return nil, false
	}
	return cloneTemplate(t), true
}

// createTemplateFromDefinition converts a YAML definition to a Template
func createTemplateFromDefinition(id string, def *QuestDefinition) (*Template, error) {
	objectives := make([]Objective, len(def.Objectives))
	for i, objDef := range def.Objectives {
		objType := ObjectiveType(objDef.Type)
		if !objType.Valid() {
			return nil, fmt.Errorf("objective %d: unknown type %q", i+1, objDef.Type)
		}
		objectives[i] = Objective{
			ID:          objDef.ID,
			Type:        objType,
			Target:      objDef.Target,
			Description: objDef.Description,
			Required:    objDef.Required,
			Optional:    objDef.Optional,
			Hidden:      objDef.Hidden,
		}
	}

	rewards := make([]Reward, len(def.Rewards))
	for i, rd := range def.Rewards {
		rewards[i] = Reward{
			Kind:        RewardKind(rd.Kind),
			Amount:      rd.Amount,
			ItemID:      rd.Item,
			CurrencyID:  rd.Currency,
			Description: rd.Description,
		}
	}

	requirements := make([]Requirement, len(def.Requirements))
	for i, rd := range def.Requirements {
		requirements[i] = Requirement{Kind: RequirementKind(rd.Kind), Value: rd.Value}
	}

	duration := time.Duration(def.DurationMS) * time.Millisecond
	if def.Duration != "" {
		d, err := time.ParseDuration(def.Duration)
		if err != nil {
			return nil, fmt.Errorf("duration: %w", err)
		}
		duration = d
	}

	category := Category(def.Category)
	if category == "" {
		category = CategorySide
	}

	return &Template{
		ID:               id,
		Name:             def.Name,
		Description:      def.Description,
		Category:         category,
		Objectives:       objectives,
		Rewards:          rewards,
		Requirements:     requirements,
		RecommendedLevel: def.RecommendedLevel,
		Priority:         def.Priority,
		Repeatable:       def.Repeatable,
		AutoComplete:     def.AutoComplete,
		AutoAccept:       def.AutoAccept,
		Duration:         duration,
		NextQuest:        def.NextQuest,
		Group:            def.Group,
	}, nil
}

const questsSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["quests"],
  "properties": {
    "quests": {
      "type": "object",
      "additionalProperties": {"$ref": "#/definitions/quest"}
    }
  },
  "definitions": {
    "quest": {
      "type": "object",
      "required": ["name", "objectives"],
      "additionalProperties": false,
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "description": {"type": "string"},
        "category": {"enum": ["main", "side", "daily", "weekly", "achievement", "tutorial", "event"]},
        "objectives": {"type": "array", "items": {"$ref": "#/definitions/objective"}},
        "rewards": {"type": "array", "items": {"$ref": "#/definitions/reward"}},
        "requirements": {"type": "array", "items": {"$ref": "#/definitions/requirement"}},
        "recommended_level": {"type": "integer", "minimum": 0},
        "priority": {"type": "integer"},
        "repeatable": {"type": "boolean"},
        "auto_complete": {"type": "boolean"},
        "auto_accept": {"type": "boolean"},
        "duration_ms": {"type": "integer", "minimum": 0},
        "duration": {"type": "string"},
        "next_quest": {"type": "string"},
        "group": {"type": "string"}
      }
    },
    "objective": {
      "type": "object",
      "required": ["type", "required"],
      "additionalProperties": false,
      "properties": {
        "id": {"type": "string"},
        "type": {"enum": ["kill", "collect", "reach_location", "use_skill", "craft", "gain_experience",
                          "level_up", "complete_quest", "interact_npc", "survive_time"]},
        "target": {"type": ["string", "integer"]},
        "description": {"type": "string"},
        "required": {"type": "integer", "minimum": 1},
        "optional": {"type": "boolean"},
        "hidden": {"type": "boolean"}
      }
    },
    "reward": {
      "type": "object",
      "required": ["kind"],
      "additionalProperties": false,
      "properties": {
        "kind": {"enum": ["experience", "gold", "item", "skill_point", "talent_point", "currency"]},
        "amount": {"type": "integer", "minimum": 0},
        "item": {"type": "string"},
        "currency": {"type": "string"},
        "description": {"type": "string"}
      },
      "allOf": [
        {"if": {"properties": {"kind": {"const": "item"}}}, "then": {"required": ["item"]}},
        {"if": {"properties": {"kind": {"const": "currency"}}}, "then": {"required": ["currency"]}}
      ]
    },
    "requirement": {
      "type": "object",
      "required": ["kind", "value"],
      "additionalProperties": false,
      "properties": {
        "kind": {"enum": ["level", "prerequisite_quest", "item", "class", "stat"]},
        "value": {"type": ["string", "integer"]}
      }
    }
  }
}`
