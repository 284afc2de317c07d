package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/theimaginaryfoundation/narration-script/narration"
	"github.com/theimaginaryfoundation/narration-script/narration/fileutils"
	"github.com/theimaginaryfoundation/narration-script/narration/logger"
)

// windowResponse is the structured-output envelope for a window. Strict mode is off
// because widget bodies are free-form objects.
type windowResponse struct {
	Entries []windowCandidate `json:"entries" jsonschema:"required"`
}

type windowCandidate struct {
	TimeIn            float64          `json:"time_in" jsonschema:"required"`
	ActionType        string           `json:"action_type" jsonschema:"required,enum=pre_teach_pause,enum=gap_filling,enum=ignore"`
	Script            string           `json:"script" jsonschema:"required"`
	Ducking           bool             `json:"ducking" jsonschema:"required"`
	EstimatedDuration float64          `json:"estimated_duration" jsonschema:"required"`
	Ref               candidateRef     `json:"ref" jsonschema:"required"`
	Widget            *candidateWidget `json:"widget,omitempty"`
}

type candidateRef struct {
	SubtitleIndexes []int  `json:"subtitle_indexes"`
	SceneIDs        []int  `json:"scene_ids"`
	GapAfterIndexes []int  `json:"gap_after_indexes"`
	Reason          string `json:"reason"`
}

type candidateWidget struct {
	WidgetType string         `json:"widget_type" jsonschema:"enum=explain_card,enum=qa_card,enum=graph,enum=mindmap,enum=steps_card"`
	Title      string         `json:"title"`
	Body       map[string]any `json:"body"`
}

var windowResponseSchema = GenerateSchema[windowResponse]()

// Options tune an OpenAIOracle.
type Options struct {
	APIKey          string
	BaseURL         string
	MaxOutputTokens int64
	// SendTemperature passes request temperatures through; some reasoning models reject them.
	SendTemperature bool
	FlexTier        bool
	Timeout         time.Duration
	Retry           RetryConfig
	Logger          *logger.Logger
}

// OpenAIOracle answers narration requests with the OpenAI Responses API.
type OpenAIOracle struct {
	client *openai.Client
	opt    Options
	log    *logger.Logger
}

var _ narration.Oracle = (*OpenAIOracle)(nil)

func NewOpenAIOracle(opt Options) (*OpenAIOracle, error) {
	if strings.TrimSpace(opt.APIKey) == "" {
		return nil, errors.New("NewOpenAIOracle: missing API key")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(opt.APIKey), option.WithMaxRetries(0)}
	if opt.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opt.BaseURL))
	}
	if opt.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(opt.Timeout))
	}
	client := openai.NewClient(reqOpts...)
	return NewOpenAIOracleFromClient(&client, opt), nil
}

func NewOpenAIOracleFromClient(client *openai.Client, opt Options) *OpenAIOracle {
	if opt.MaxOutputTokens <= 0 {
		opt.MaxOutputTokens = 4000
	}
	if opt.Retry.MaxAttempts == 0 {
		opt.Retry = DefaultRetryConfig()
	}
	log := opt.Logger
	if log == nil {
		log = logger.Nop()
	}
	o := &OpenAIOracle{client: client, opt: opt, log: log.WithComponent("openai")}
	if o.opt.Retry.OnRetry == nil {
		o.opt.Retry.OnRetry = func(attempt int, err error, wait time.Duration) {
			o.log.Warn("openai call failed, retrying", logger.Fields("attempt", attempt, "wait", wait.String(), logger.FieldError, err))
		}
	}
	return o
}

func (o *OpenAIOracle) Complete(ctx context.Context, req narration.OracleRequest) (string, error) {
	if o.client == nil {
		return "", errors.New("OpenAIOracle: client is nil")
	}
	if req.Model == "" {
		return "", errors.New("OpenAIOracle: model is empty")
	}

	params := responses.ResponseNewParams{
		Model:           req.Model,
		MaxOutputTokens: openai.Int(o.opt.MaxOutputTokens),
		Instructions:    openai.String(req.System),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(req.User, responses.EasyInputMessageRoleUser),
			},
		},
	}
	if o.opt.SendTemperature {
		params.Temperature = openai.Float(req.Temperature)
	}
	if o.opt.FlexTier {
		params.ServiceTier = responses.ResponseNewParamsServiceTierFlex
	}
	if req.Structured {
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:        "NarrationWindow",
					Schema:      windowResponseSchema,
					Strict:      openai.Bool(false),
					Description: openai.String("Narration entries for one timeline window"),
					Type:        "json_schema",
				},
			},
		}
	}

	start := time.Now()
	resp, err := Retry(ctx, o.opt.Retry, func(ctx context.Context) (*responses.Response, error) {
		return o.client.Responses.New(ctx, params)
	})
	if err != nil {
		return "", fmt.Errorf("openai %s: %w", req.Purpose, err)
	}

	out := resp.OutputText()
	o.log.Debug("openai call done", logger.Fields(
		"purpose", req.Purpose,
		"model", req.Model,
		"output", fileutils.Truncate(fileutils.OneLine(out), 200),
	), logger.Since(start))
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("openai %s: empty output", req.Purpose)
	}
	return out, nil
}
