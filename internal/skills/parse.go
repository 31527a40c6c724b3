package skills

import (
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// skillArraySchema is the only reply shape accepted as a list of skills.
const skillArraySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {"type": "string"}
}`

var skillArray = mustSchema(skillArraySchema)

func mustSchema(schema string) *gojsonschema.Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		panic("skills: invalid reply schema: " + err.Error())
	}
	return compiled
}

// ReplyShape describes which branch of ParseSkills produced a result.
type ReplyShape string

// Reply shapes reported by ParseReply.
const (
	ShapeEmpty       ReplyShape = "empty"
	ShapeStringArray ReplyShape = "string_array"
	ShapeString      ReplyShape = "string"
	ShapeOtherJSON   ReplyShape = "other_json"
	ShapeNotJSON     ReplyShape = "not_json"
)

// ParseSkills converts a raw model reply into a SkillSet. It never fails: a reply that is
// not a JSON array of strings degrades to a single skill holding the whole reply.
func ParseSkills(raw string) SkillSet {
	set, _ := ParseReply(raw)
	return set
}

// ParseReply is ParseSkills that also reports which shape the reply had.
//
// The reply is trimmed, then:
//   - a JSON array of strings yields its elements;
//   - a bare JSON string yields that string;
//   - any other JSON value, or text that is not JSON at all, yields the trimmed reply.
//
// Every label is normalized.
func ParseReply(raw string) (SkillSet, ReplyShape) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return NewSkillSet(), ShapeEmpty
	}

	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return NewSkillSet(trimmed), ShapeNotJSON
	}

	if label, ok := parsed.(string); ok {
		return NewSkillSet(label), ShapeString
	}

	result, err := skillArray.Validate(gojsonschema.NewGoLoader(parsed))
	if err != nil || !result.Valid() {
		return NewSkillSet(trimmed), ShapeOtherJSON
	}

	items := parsed.([]any)
	labels := make([]string, 0, len(items))
	for _, item := range items {
		labels = append(labels, item.(string))
	}
	return NewSkillSet(labels...), ShapeStringArray
}
