package models

// Structured outputs the worker requests from the AI provider. Each mirrors
// the JSON schema handed to GenerateObject for its job type.

// SalaryRange is the extracted compensation band, when the posting states one.
type SalaryRange struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Currency string  `json:"currency"`
}

// JobAnalysisResult is the structured output of an analyze-job run.
type JobAnalysisResult struct {
	CompanyName         string       `json:"companyName"`
	RoleTitle           string       `json:"roleTitle"`
	Location            *string      `json:"location"`
	WorkMode            *string      `json:"workMode"`
	SalaryRange         *SalaryRange `json:"salaryRange"`
	RequiredSkills      []string     `json:"requiredSkills"`
	NiceToHaveSkills    []string     `json:"niceToHaveSkills"`
	ExperienceLevel     string       `json:"experienceLevel"`
	KeyResponsibilities []string     `json:"keyResponsibilities"`
	RedFlags            []string     `json:"redFlags"`
	FitScore            int          `json:"fitScore"`
	FitExplanation      string       `json:"fitExplanation"`
	MissingSkills       []string     `json:"missingSkills"`
	Summary             string       `json:"summary"`
}

// CoverLetterResult wraps generated letter content for the tracking record.
type CoverLetterResult struct {
	Content       string `json:"content"`
	Tone          string `json:"tone"`
	ApplicationID string `json:"applicationId"`
}

type TechnicalQuestion struct {
	Question        string `json:"question"`
	SuggestedAnswer string `json:"suggestedAnswer"`
	Difficulty      string `json:"difficulty"`
}

type BehavioralQuestion struct {
	Question        string `json:"question"`
	SuggestedAnswer string `json:"suggestedAnswer"`
	Tip             string `json:"tip"`
}

// InterviewPrepResult is the structured output of a generate-interview-prep run.
type InterviewPrepResult struct {
	TechnicalQuestions   []TechnicalQuestion  `json:"technicalQuestions"`
	BehavioralQuestions  []BehavioralQuestion `json:"behavioralQuestions"`
	CompanyResearchTips  []string             `json:"companyResearchTips"`
	QuestionsToAsk       []string             `json:"questionsToAsk"`
	PreparationChecklist []string             `json:"preparationChecklist"`
}

type MatchedSkill struct {
	Skill              string `json:"skill"`
	EvidenceFromResume string `json:"evidenceFromResume"`
}

type MissingSkill struct {
	Skill      string `json:"skill"`
	Importance string `json:"importance"`
	Suggestion string `json:"suggestion"`
}

// ResumeGapResult is the structured output of an analyze-resume-gap run.
type ResumeGapResult struct {
	MatchedSkills     []MatchedSkill `json:"matchedSkills"`
	MissingSkills     []MissingSkill `json:"missingSkills"`
	OverallMatch      int            `json:"overallMatch"`
	ResumeSuggestions []string       `json:"resumeSuggestions"`
	TalkingPoints     []string       `json:"talkingPoints"`
}
