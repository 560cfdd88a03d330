package gemini

// promptData carries the values injected into the prompt template.
type promptData struct {
	ParagraphText string
}

// ResponseSchema mirrors the JSON object the model is instructed to return.
type ResponseSchema struct {
	Questions []QuestionSchema `json:"questions"`
}

// QuestionSchema is one question in the model response.
type QuestionSchema struct {
	Question      string            `json:"question"`
	Options       map[string]string `json:"options"`
	CorrectAnswer string            `json:"correct_answer"`
}
