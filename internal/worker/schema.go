package worker

import "encoding/json"

// JSON schemas handed to the AI provider for structured output. Every property
// is required and additional properties are disallowed, which is what strict
// structured-output modes expect; optional values are expressed as nullable
// types instead of omitted keys.

var jobAnalysisSchema = json.RawMessage(`{
	"type": "object",
	"additionalProperties": false,
	"required": ["companyName", "roleTitle", "location", "workMode", "salaryRange", "requiredSkills", "niceToHaveSkills", "experienceLevel", "keyResponsibilities", "redFlags", "fitScore", "fitExplanation", "missingSkills", "summary"],
	"properties": {
		"companyName": {"type": "string"},
		"roleTitle": {"type": "string"},
		"location": {"type": ["string", "null"]},
		"workMode": {"type": ["string", "null"], "enum": ["remote", "hybrid", "onsite", null]},
		"salaryRange": {
			"type": ["object", "null"],
			"additionalProperties": false,
			"required": ["min", "max", "currency"],
			"properties": {
				"min": {"type": "number"},
				"max": {"type": "number"},
				"currency": {"type": "string"}
			}
		},
		"requiredSkills": {"type": "array", "items": {"type": "string"}},
		"niceToHaveSkills": {"type": "array", "items": {"type": "string"}},
		"experienceLevel": {"type": "string"},
		"keyResponsibilities": {"type": "array", "items": {"type": "string"}},
		"redFlags": {"type": "array", "items": {"type": "string"}},
		"fitScore": {"type": "integer", "minimum": 0, "maximum": 100},
		"fitExplanation": {"type": "string"},
		"missingSkills": {"type": "array", "items": {"type": "string"}},
		"summary": {"type": "string"}
	}
}`)

var interviewPrepSchema = json.RawMessage(`{
	"type": "object",
	"additionalProperties": false,
	"required": ["technicalQuestions", "behavioralQuestions", "companyResearchTips", "questionsToAsk", "preparationChecklist"],
	"properties": {
		"technicalQuestions": {
			"type": "array",
			"items": {
				"type": "object",
				"additionalProperties": false,
				"required": ["question", "suggestedAnswer", "difficulty"],
				"properties": {
					"question": {"type": "string"},
					"suggestedAnswer": {"type": "string"},
					"difficulty": {"type": "string", "enum": ["easy", "medium", "hard"]}
				}
			}
		},
		"behavioralQuestions": {
			"type": "array",
			"items": {
				"type": "object",
				"additionalProperties": false,
				"required": ["question", "suggestedAnswer", "tip"],
				"properties": {
					"question": {"type": "string"},
					"suggestedAnswer": {"type": "string"},
					"tip": {"type": "string"}
				}
			}
		},
		"companyResearchTips": {"type": "array", "items": {"type": "string"}},
		"questionsToAsk": {"type": "array", "items": {"type": "string"}},
		"preparationChecklist": {"type": "array", "items": {"type": "string"}}
	}
}`)

var resumeGapSchema = json.RawMessage(`{
	"type": "object",
	"additionalProperties": false,
	"required": ["matchedSkills", "missingSkills", "overallMatch", "resumeSuggestions", "talkingPoints"],
	"properties": {
		"matchedSkills": {
			"type": "array",
			"items": {
				"type": "object",
				"additionalProperties": false,
				"required": ["skill", "evidenceFromResume"],
				"properties": {
					"skill": {"type": "string"},
					"evidenceFromResume": {"type": "string"}
				}
			}
		},
		"missingSkills": {
			"type": "array",
			"items": {
				"type": "object",
				"additionalProperties": false,
				"required": ["skill", "importance", "suggestion"],
				"properties": {
					"skill": {"type": "string"},
					"importance": {"type": "string", "enum": ["critical", "important", "nice-to-have"]},
					"suggestion": {"type": "string"}
				}
			}
		},
		"overallMatch": {"type": "integer", "minimum": 0, "maximum": 100},
		"resumeSuggestions": {"type": "array", "items": {"type": "string"}},
		"talkingPoints": {"type": "array", "items": {"type": "string"}}
	}
}`)
