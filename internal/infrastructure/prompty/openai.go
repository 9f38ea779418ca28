package prompty

import (
	"context"
	"fmt"
	"net/http"

	oagc "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type Completer interface {
	Complete(ctx context.Context, model string, messages []Message, params Parameters) (string, error)
}

type ClientOptions struct {
	// Endpoint is the API base URL. For Azure OpenAI this is
	// https://<resource>.openai.azure.com/openai/deployments/<deployment>/
	Endpoint string
	APIKey   string
	// APIVersion switches the client to Azure OpenAI authentication when set.
	APIVersion string
	HTTPClient *http.Client
}

type openaiCompleter struct {
	oac *oagc.Client
}

var _ Completer = &openaiCompleter{}

func NewOpenAICompleter(opts ClientOptions) Completer {
	reqOpts := []option.RequestOption{
		option.WithBaseURL(opts.Endpoint),
		option.WithMaxRetries(0),
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	if opts.APIVersion != "" {
		reqOpts = append(reqOpts,
			option.WithHeader("api-key", opts.APIKey),
			option.WithQuery("api-version", opts.APIVersion),
		)
	} else {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}

	return &openaiCompleter{oac: oagc.NewClient(reqOpts...)}
}

func (o *openaiCompleter) Complete(ctx context.Context, model string, messages []Message, params Parameters) (string, error) {
	msgs := make([]oagc.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			msgs = append(msgs, oagc.SystemMessage(m.Content))
		case RoleAssistant:
			msgs = append(msgs, oagc.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, oagc.UserMessage(m.Content))
		}
	}

	req := oagc.ChatCompletionNewParams{
		Messages: oagc.F(msgs),
		Model:    oagc.F(oagc.ChatModel(model)),
	}
	if params.MaxTokens > 0 {
		req.MaxTokens = oagc.Int(params.MaxTokens)
	}
	if params.Temperature != nil {
		req.Temperature = oagc.Float(*params.Temperature)
	}

	resp, err := o.oac.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
