package lessongen

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Completer is any model backend that turns a prompt pair into text.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Service generates lesson plans. The primary model writes full plans; the
// fallback model handles the quick Plan B rescue flow.
type Service struct {
	primary  Completer
	fallback Completer
	now      func() time.Time
}

func NewService(primary, fallback Completer) *Service {
	return &Service{
		primary:  primary,
		fallback: fallback,
		now:      time.Now,
	}
}

func NewServiceFromEnv() *Service {
	return NewService(NewOpenAIClientFromEnv(), NewGeminiClientFromEnv())
}

// GenerateLesson produces a full NEM lesson plan. A safety refusal from the
// model surfaces as ErrSafetyBlocked, never as user-visible content.
func (s *Service) GenerateLesson(ctx context.Context, params *LessonParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}

	text, err := s.primary.Complete(ctx, BuildSystemPrompt(params, s.now()), BuildUserPrompt(params))
	if err != nil {
		return "", err
	}

	if strings.Contains(text, SafetySentinel) {
		return "", ErrSafetyBlocked
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("lesson model returned empty content")
	}
	return text, nil
}

// GeneratePlanB produces the short emergency plan from the fallback model.
func (s *Service) GeneratePlanB(ctx context.Context, params *LessonParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}

	text, err := s.fallback.Complete(ctx, BuildPlanBSystemPrompt(params), PlanBUserPrompt)
	if err != nil {
		return "", err
	}

	if strings.Contains(text, SafetySentinel) {
		return "", ErrSafetyBlocked
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("plan b model returned empty content")
	}
	return text, nil
}
