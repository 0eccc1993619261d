package services

import (
	"fmt"
	"strings"
)

// Generated questions must read as standalone exam items, so prompts
// explicitly forbid document-anchored phrasing per output language.
var forbiddenPhrases = map[string][]string{
	"French": {
		"selon le texte", "d'après le document", "selon le contexte",
		"selon l'image", "d'après le passage", "selon l'extrait",
		"d'après le texte", "selon le document", "d'après le contexte",
		"selon le passage", "d'après l'extrait",
		"dans le texte", "dans le document", "dans le contexte",
	},
	"English": {
		"according to the text", "based on the document", "according to the context",
		"according to the image", "based on the passage", "according to the excerpt",
		"in the text", "in the document", "in the context",
		"as mentioned in", "as stated in", "as described in",
	},
	"Spanish": {
		"según el texto", "según el documento", "según el contexto",
		"según la imagen", "según el pasaje", "según el extracto",
		"de acuerdo con el texto", "basado en el documento",
	},
}

func phrasesToAvoid(language string) string {
	phrases, ok := forbiddenPhrases[language]
	if !ok {
		phrases = forbiddenPhrases["English"]
	}
	quoted := make([]string, 0, len(phrases))
	for _, p := range phrases {
		quoted = append(quoted, fmt.Sprintf("%q", p))
	}
	return strings.Join(quoted, ", ")
}

// MCQGenPrompt builds the multiple-choice generation prompt for one topic.
func MCQGenPrompt(context, topic string, numQuestions int, language string) string {
	return fmt.Sprintf(`You are a **university professor** specializing in pedagogy and assessment. Using ONLY the context provided, generate exactly %d multiple-choice questions on the topic "%s".

Instructions:
- All output must be written in **%s**.
- **CRITICAL**: DO NOT use phrases like %s in the questions.
- Each question must have exactly 4 answer choices.
- The correct answer must be the **full answer text**, not a letter or label.
- The correct answer must be randomly placed among the 4 choices.
- For each question, also include a short **feedback** explaining the correct answer, and a **reference** excerpt taken from the context.
- You MUST return the result as **strictly valid JSON**.
- DO NOT return any explanations, comments, or introductory text.
- DO NOT use key-value dictionaries. Instead, format each question as a **list** with 8 items:
[question, choice1, choice2, choice3, choice4, correct_answer, feedback, reference]

Use the exact format below:
{
"questions": [
    ["question1", "choice1", "choice2", "choice3", "choice4", "correct_answer", "feedback", "reference"],
    ...
]
}

Context:
"""
%s
"""`, numQuestions, topic, language, phrasesToAvoid(language), context)
}

// OpenGenPrompt builds the open-ended generation prompt for one topic.
func OpenGenPrompt(context, topic string, numQuestions int, language string) string {
	return fmt.Sprintf(`You are a **university professor** specializing in pedagogy and assessment. Based *ONLY* on the context provided below, generate %d open-ended questions on topic: "%s".

Context:
%s

Instructions:
- All questions and answers must be written in **%s**.
- DO NOT use phrases like %s in the questions.
- For each question, provide:
    1. The open-ended question.
    2. A suggested answer (concise but informative).
    3. A reference from the context.
- Do NOT include any explanation, reasoning, or content outside the context.
- Do NOT return anything except the JSON structure.

Expected output format:
{
    "questions": [
        ["Question text", "Suggested answer", "References"],
        ...
    ]
}

Important:
- The output must be in **%s**.
- The output must be valid JSON and match the exact format above.
- Do not include any introductory or closing remarks.`, numQuestions, topic, context, language, phrasesToAvoid(language), language)
}

// ContextQueryPrompt is the retrieval query used to ground generation for
// one topic before building the generation prompt.
func ContextQueryPrompt(topic string) string {
	return "Provide relevant context for topic: " + topic
}
