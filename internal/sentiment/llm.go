package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"alphasmith/internal/features"
)

// ChatClient abstracts the OpenAI chat completions API for testability.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

const systemPrompt = `You are a quantitative equity news-sentiment rater.
Rate the aggregate news and social tone for the requested stock on each
trading day of the requested window. Respond with ONLY a JSON array, one
object per day you can rate, shaped like
[{"date":"2024-01-02","score":0.4}]. Scores are floats in [-1,1]:
-1 strongly bearish, 0 neutral or unknown, 1 strongly bullish. Skip days
you cannot rate. No prose, no markdown.`

// LLM asks a chat model to rate daily news tone for a symbol. The model's
// answer is advisory: malformed entries are dropped and an answer with no
// usable scores is an error the caller downgrades to neutral.
type LLM struct {
	tracer trace.Tracer
	client ChatClient
	model  string
}

func NewLLM(tracer trace.Tracer, client ChatClient, model string) *LLM {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &LLM{tracer: tracer, client: client, model: model}
}

func (l *LLM) Series(ctx context.Context, symbol string, from, to time.Time) ([]features.Point, error) {
	ctx, span := l.tracer.Start(ctx, "sentiment.series")
	defer span.End()
	span.SetAttributes(
		attribute.String("symbol", symbol),
		attribute.String("llm.model", l.model),
	)

	user := fmt.Sprintf("Stock: %s. Window: %s through %s.",
		symbol, from.Format("2006-01-02"), to.Format("2006-01-02"))

	completion, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model: l.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("sentiment series for %s: %w", symbol, err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("sentiment series for %s: no choices in completion", symbol)
	}

	points := parseScores(completion.Choices[0].Message.Content, from, to)
	if len(points) == 0 {
		return nil, fmt.Errorf("sentiment series for %s: no usable scores in completion", symbol)
	}
	span.SetAttributes(attribute.Int("sentiment.points", len(points)))
	return points, nil
}

type scoredDay struct {
	Date  string  `json:"date"`
	Score float64 `json:"score"`
}

// parseScores extracts the JSON array from the model's answer, tolerating
// prose or fences around it, and keeps only well-formed in-window days.
func parseScores(text string, from, to time.Time) []features.Point {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil
	}

	var days []scoredDay
	if err := json.Unmarshal([]byte(text[start:end+1]), &days); err != nil {
		return nil
	}

	seen := map[string]bool{}
	points := make([]features.Point, 0, len(days))
	for _, d := range days {
		date, err := time.Parse("2006-01-02", d.Date)
		if err != nil || seen[d.Date] {
			continue
		}
		if date.Before(from) || date.After(to) {
			continue
		}
		score := d.Score
		if score < -1 {
			score = -1
		}
		if score > 1 {
			score = 1
		}
		seen[d.Date] = true
		points = append(points, features.Point{Date: date, Value: score})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points
}

// openaiClient wraps the official SDK's chat completions service.
type openaiClient struct {
	client openai.Client
}

func NewOpenAIClient(apiKey string) ChatClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &openaiClient{client: client}
}

func (c *openaiClient) CreateChatCompletion(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}
