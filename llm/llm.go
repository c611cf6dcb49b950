// Package llm wraps the OpenAI client with JSON-schema-enforced
// structured completions, shared by the analysis and generation stages.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"trend-pipeline/stage"
)

// NewClient builds an OpenAI client from OPENAI_API_KEY.
func NewClient() (openai.Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return openai.Client{}, fmt.Errorf("OPENAI_API_KEY not set")
	}
	return openai.NewClient(option.WithAPIKey(apiKey)), nil
}

// Schema reflects T into a JSON schema for structured outputs.
func Schema[T any]() interface{} {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// Complete runs one chat completion constrained to schema and decodes the
// response into T. API failures map onto the stage error taxonomy: rate
// limits and server errors are transient, everything else, including a
// response that is not valid JSON for the schema, is permanent.
func Complete[T any](ctx context.Context, client openai.Client, op, model, system, prompt string, schema interface{}) (*T, error) {
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "structured_response",
		Description: openai.String("Structured data response"),
		Schema:      schema,
		Strict:      openai.Bool(true),
	}

	messages := []openai.ChatCompletionMessageParamUnion{}
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	completion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    openai.ChatModel(model),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
	})
	if err != nil {
		return nil, classifyOpenAIError(op, err)
	}
	if len(completion.Choices) == 0 {
		return nil, stage.Transientf(op, fmt.Errorf("empty completion"))
	}

	raw := completion.Choices[0].Message.Content
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, stage.Permanentf(op, fmt.Errorf("malformed model response: %w", err))
	}
	return &out, nil
}

func classifyOpenAIError(op string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 || apiErr.StatusCode >= 500 {
			return stage.Transientf(op, err)
		}
		return stage.Permanentf(op, err)
	}
	// Transport-level failure.
	return stage.Transientf(op, err)
}
