package services

import (
	"errors"
	"strings"
)

var (
	// ErrConfiguration indicates a required collaborator is unavailable.
	ErrConfiguration = errors.New("evaluation configuration")
	// ErrValidation indicates caller input validation failure.
	ErrValidation = errors.New("evaluation validation")
	// ErrGenerationParse indicates the LLM response could not be parsed.
	ErrGenerationParse = errors.New("generation parse")
	// ErrRetrieval indicates a retrieval/context query failure.
	ErrRetrieval = errors.New("retrieval")
)

// ConfigurationError tags an error as a fatal configuration failure.
func ConfigurationError(msg string) error {
	return errors.Join(ErrConfiguration, errors.New(strings.TrimSpace(msg)))
}

// ValidationError tags an error as caller input validation failure.
func ValidationError(msg string) error {
	return errors.Join(ErrValidation, errors.New(strings.TrimSpace(msg)))
}

// GenerationParseError tags an error as an unparseable LLM response.
func GenerationParseError(msg string) error {
	return errors.Join(ErrGenerationParse, errors.New(strings.TrimSpace(msg)))
}

// RetrievalError wraps a retrieval collaborator failure.
func RetrievalError(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrRetrieval, err)
}
