package skills

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/resume-screener/internal/llm"
	"github.com/jonathan/resume-screener/internal/logger"
	"go.uber.org/zap"
)

// TextClassifier sends text to an external model together with a fixed instruction and
// returns the model's raw reply.
type TextClassifier interface {
	Classify(ctx context.Context, instruction, text string) (string, error)
}

// LLMClassifier adapts an llm.Client to TextClassifier.
type LLMClassifier struct {
	Client llm.Client
}

// Classify implements TextClassifier.
func (c LLMClassifier) Classify(ctx context.Context, instruction, text string) (string, error) {
	if c.Client == nil {
		return "", llm.ErrMissingAPIKey
	}
	return c.Client.Complete(ctx, instruction, text)
}

// ExtractionError reports that the external model could not be reached or refused the
// call. Malformed replies are never reported as errors.
type ExtractionError struct {
	Cause error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("skill extraction failed: %v", e.Cause)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// MissingCredential reports whether the failure is due to an unconfigured API key.
func (e *ExtractionError) MissingCredential() bool {
	return errors.Is(e.Cause, llm.ErrMissingAPIKey)
}

// ExtractorConfig configures an Extractor.
type ExtractorConfig struct {
	// Instruction is the system instruction sent with every call.
	Instruction string
	// Timeout bounds a single model call. Zero means no extra bound beyond ctx.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Extractor produces SkillSets from free text.
type Extractor struct {
	classifier  TextClassifier
	instruction string
	timeout     time.Duration
	log         *zap.Logger
}

// NewExtractor creates an Extractor that delegates interpretation to classifier.
func NewExtractor(classifier TextClassifier, cfg ExtractorConfig) *Extractor {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{
		classifier:  classifier,
		instruction: cfg.Instruction,
		timeout:     cfg.Timeout,
		log:         log,
	}
}

// Extract returns the skills found in text. Blank text yields an empty set without
// calling the model. Exactly one model call is made otherwise; transport, credential and
// timeout failures are returned as *ExtractionError.
func (e *Extractor) Extract(ctx context.Context, text string) (SkillSet, error) {
	if strings.TrimSpace(text) == "" {
		return NewSkillSet(), nil
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := e.classifier.Classify(ctx, e.instruction, text)
	if err != nil {
		e.log.Warn("skill extraction call failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, &ExtractionError{Cause: err}
	}

	set, shape := ParseReply(reply)
	if shape != ShapeStringArray && shape != ShapeEmpty {
		e.log.Info("model reply was not a JSON array of strings",
			zap.String("shape", string(shape)),
			zap.String("reply", logger.TruncateForLog(reply, 200)),
		)
	}
	e.log.Debug("skills extracted",
		zap.Int("count", set.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return set, nil
}
