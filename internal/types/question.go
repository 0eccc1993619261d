package types

type QuestionType string

const (
	QuestionTypeMCQ  QuestionType = "mcq"
	QuestionTypeOpen QuestionType = "open"
)

// Question is the generated exam question. The Type discriminant decides
// which fields are meaningful: MCQ questions carry Options, CorrectAnswer
// and Feedback; open questions carry ModelAnswer. References is populated
// in a second pass, after generation.
type Question struct {
	Type          QuestionType
	Text          string
	Options       []string
	CorrectAnswer string
	Feedback      string
	ModelAnswer   string
	References    []string
}

// EvaluationFormat renders the question in the positional wire format the
// evaluation API exposes:
//
//	mcq:  [text, c1, c2, c3, c4, correct_answer, feedback, references]
//	open: [text, model_answer, references]
//
// References occupies the last slot in both shapes.
func (q *Question) EvaluationFormat() []any {
	refs := q.References
	if refs == nil {
		refs = []string{}
	}
	if q.Type == QuestionTypeMCQ {
		out := make([]any, 0, 8)
		out = append(out, q.Text)
		for i := 0; i < 4; i++ {
			if i < len(q.Options) {
				out = append(out, q.Options[i])
			} else {
				out = append(out, "")
			}
		}
		return append(out, q.CorrectAnswer, q.Feedback, refs)
	}
	return []any{q.Text, q.ModelAnswer, refs}
}
