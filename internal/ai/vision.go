package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const visionPrompt = `حلل هذه الصورة واستخرج معلومات المنتج باللغة العربية بدقة.

يرجى تحديد:
1. نوع المنتج (موبايل، لابتوب، سيارة، ملابس، إلخ)
2. الماركة أو العلامة التجارية إن كانت واضحة
3. اللون الأساسي
4. الخصائص المميزة والتفاصيل المهمة
5. الحالة الظاهرة (جديد، مستعمل، إلخ)

اكتب الوصف بشكل مختصر ومفيد للبحث، باستخدام كلمات مفتاحية مناسبة.`

// GeminiAnalyzer describes product photos with the Gemini vision model.
type GeminiAnalyzer struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
	logger  *zap.Logger
}

func NewGeminiAnalyzer(ctx context.Context, apiKey, model string, timeout time.Duration, logger *zap.Logger) (*GeminiAnalyzer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	gm := client.GenerativeModel(model)
	gm.SetTemperature(0.3)
	gm.SetTopK(32)
	gm.SetTopP(1)
	gm.SetMaxOutputTokens(1024)

	return &GeminiAnalyzer{
		client:  client,
		model:   gm,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Describe sends the image once with a bounded wait and returns the
// model's Arabic product description.
func (g *GeminiAnalyzer) Describe(ctx context.Context, image []byte, mimeType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	format := strings.TrimPrefix(mimeType, "image/")
	if format == "" {
		format = "jpeg"
	}

	resp, err := g.model.GenerateContent(ctx, genai.Text(visionPrompt), genai.ImageData(format, image))
	if err != nil {
		g.logger.Error("Failed to analyze image", zap.Error(err))
		return "", fmt.Errorf("analyzing image: %w", err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}

	description := strings.TrimSpace(sb.String())
	if description == "" {
		return "", fmt.Errorf("analyzing image: empty description")
	}
	return description, nil
}

func (g *GeminiAnalyzer) Close() error {
	return g.client.Close()
}
