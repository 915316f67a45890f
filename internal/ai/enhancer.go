package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const enhanceSystemPrompt = "أنت خبير في التسويق والإعلانات باللغة العربية. تخصصك هو تحسين النصوص الإعلانية لتصبح أكثر جاذبية وفعالية."

const enhancePromptTemplate = `أنت خبير في كتابة الإعلانات باللغة العربية. قم بتحسين النص التالي ليصبح إعلاناً جذاباً ومقنعاً:

النص الأصلي:
%s

المطلوب:
1. أعد صياغة النص بطريقة تسويقية جذابة
2. أضف عناصر تسويقية مثل المميزات والفوائد
3. استخدم لغة واضحة ومقنعة
4. احتفظ بجميع المعلومات المهمة (السعر، المواصفات، معلومات الاتصال)
5. اجعل النص منظماً وسهل القراءة

النص المحسن:
`

// OpenAIEnhancer rewrites ad text through the chat completion API.
type OpenAIEnhancer struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	logger      *zap.Logger
}

func NewOpenAIEnhancer(apiKey, model string, maxTokens int, temperature float64, timeout time.Duration, logger *zap.Logger) *OpenAIEnhancer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIEnhancer{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		timeout:     timeout,
		logger:      logger,
	}
}

// Enhance makes a single bounded attempt at rewriting the text. Any
// failure is returned as-is; the caller keeps the original text.
func (e *OpenAIEnhancer) Enhance(ctx context.Context, text string) (Enhancement, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: enhanceSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(enhancePromptTemplate, text)},
		},
		MaxTokens:   e.maxTokens,
		Temperature: float32(e.temperature),
	})
	if err != nil {
		e.logger.Error("Failed to enhance ad text", zap.Error(err))
		return Enhancement{}, fmt.Errorf("enhancing ad text: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Enhancement{}, fmt.Errorf("enhancing ad text: empty completion")
	}

	enhanced := strings.TrimSpace(resp.Choices[0].Message.Content)
	if enhanced == "" {
		return Enhancement{}, fmt.Errorf("enhancing ad text: blank completion")
	}

	return Enhancement{
		EnhancedText:     enhanced,
		ImprovementScore: improvementScore(text, enhanced),
	}, nil
}

// improvementScore is a rough quality signal: rewarded for added length
// (up to 2x) and for structured formatting, capped at 5.
func improvementScore(original, enhanced string) float64 {
	originalWords := len(strings.Fields(original))
	enhancedWords := len(strings.Fields(enhanced))
	if originalWords == 0 {
		originalWords = 1
	}

	lengthScore := float64(enhancedWords) / float64(originalWords)
	if lengthScore > 2.0 {
		lengthScore = 2.0
	}

	structureScore := 1.0
	if strings.ContainsAny(enhanced, "•-\n:") {
		structureScore = 1.5
	}

	score := lengthScore * structureScore
	if score > 5.0 {
		score = 5.0
	}
	return score
}
