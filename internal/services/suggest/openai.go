package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"attendance-import-backend/internal/apperr"
	"attendance-import-backend/internal/config"
	"attendance-import-backend/internal/models"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
)

// maxReviewRows bounds the payload of one review request.
const maxReviewRows = 200

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIOracle asks a chat model for JSON-formatted hints.
type OpenAIOracle struct {
	client  chatCompleter
	model   string
	timeout time.Duration
}

// NewOpenAIOracle returns nil when no API key is configured.
func NewOpenAIOracle(opts config.OracleOptions) *OpenAIOracle {
	if !opts.Enabled() {
		return nil
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return &OpenAIOracle{
		client:  openai.NewClientWithConfig(cfg),
		model:   opts.Model,
		timeout: opts.Timeout,
	}
}

const mappingPrompt = `You map spreadsheet headers of an attendance export to canonical fields.
Canonical fields: %s.
Reply with a JSON object {"mapping": {"<canonical field>": "<header exactly as given>"}}.
Only include fields you are confident about. Never invent headers.`

func (o *OpenAIOracle) SuggestMapping(ctx context.Context, headers []string, sample [][]string) (models.ColumnMapping, error) {
	fields := make([]string, len(models.CanonicalFields))
	for i, f := range models.CanonicalFields {
		fields[i] = string(f)
	}
	input, err := json.Marshal(map[string]interface{}{"headers": headers, "sample_rows": sample})
	if err != nil {
		return nil, err
	}

	var reply struct {
		Mapping models.ColumnMapping `json:"mapping"`
	}
	if err := o.complete(ctx, fmt.Sprintf(mappingPrompt, strings.Join(fields, ", ")), string(input), &reply); err != nil {
		return nil, err
	}
	return reply.Mapping, nil
}

const reviewPrompt = `You review normalized attendance rows for payroll month %02d/%d.
Flag only implausible values (for example overtime far above a normal shift, hours above 16 in a day,
check-out before check-in). Reply with a JSON object {"warnings": [{"row_index": <int>, "message": "<short text>"}]}.
Reply {"warnings": []} when nothing stands out.`

func (o *OpenAIOracle) Review(ctx context.Context, period Period, rows []ReviewRow) ([]apperr.Issue, error) {
	if len(rows) > maxReviewRows {
		rows = rows[:maxReviewRows]
	}
	input, err := json.Marshal(rows)
	if err != nil {
		return nil, err
	}

	var reply struct {
		Warnings []apperr.Issue `json:"warnings"`
	}
	if err := o.complete(ctx, fmt.Sprintf(reviewPrompt, period.Month, period.Year), string(input), &reply); err != nil {
		return nil, err
	}
	return reply.Warnings, nil
}

func (o *OpenAIOracle) complete(ctx context.Context, system, user string, out interface{}) error {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0,
	})
	if err != nil {
		return errors.Wrap(err, "chat completion")
	}
	if len(resp.Choices) == 0 {
		return errors.New("chat completion returned no choices")
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), out); err != nil {
		return errors.Wrap(err, "decode oracle reply")
	}
	return nil
}
