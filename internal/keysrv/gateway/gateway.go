// Package gateway forwards an admitted chat request to one OpenAI-compatible
// provider. The provider is chosen from the configured credentials: the
// primary one wins and forces its model, otherwise the secondary one is used
// with the caller's model.
package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/keygate/keygate/internal/keysrv/config"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"
)

// Request is an admitted chat request.
type Request struct {
	Prompt      string
	Model       string
	Temperature *float64
	Mode        string
}

// Completion is the provider's first choice.
type Completion struct {
	Reply    string
	Provider string
	Model    string
}

// Provider describes one upstream endpoint.
type Provider struct {
	Name    string
	BaseURL string
	APIKey  string
	// Model is forced when ForceModel is set, otherwise used when the caller
	// names none.
	Model      string
	ForceModel bool
	Referer    string
}

type Options struct {
	Primary            Provider
	Secondary          Provider
	Timeout            time.Duration
	DefaultTemperature *float64
	ExcerptLimit       int
	HTTPClient         *http.Client
}

type Gateway struct {
	opts Options
}

func New(opts Options) *Gateway {
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultGatewayTimeout
	}
	if opts.DefaultTemperature == nil {
		t := config.DefaultTemperature
		opts.DefaultTemperature = &t
	}
	if opts.ExcerptLimit <= 0 {
		opts.ExcerptLimit = config.DefaultExcerptLimit
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	return &Gateway{opts: opts}
}

// NewFromConfig builds a gateway from the server configuration.
func NewFromConfig(c *config.GatewayConfig) *Gateway {
	return New(Options{
		Primary: Provider{
			Name:       c.Primary.Name,
			BaseURL:    c.Primary.BaseURL,
			APIKey:     c.Primary.APIKey,
			Model:      c.Primary.Model,
			ForceModel: true,
			Referer:    c.Primary.Referer,
		},
		Secondary: Provider{
			Name:    c.Secondary.Name,
			BaseURL: c.Secondary.BaseURL,
			APIKey:  c.Secondary.APIKey,
			Model:   c.Secondary.Model,
			Referer: c.Secondary.Referer,
		},
		Timeout:            c.GetTimeout(),
		DefaultTemperature: c.DefaultTemperature,
		ExcerptLimit:       c.ExcerptLimit,
	})
}

// SelectProvider returns the provider and model a request would be sent to.
func (g *Gateway) SelectProvider(requestedModel string) (Provider, string, error) {
	var p Provider
	switch {
	case g.opts.Primary.APIKey != "":
		p = g.opts.Primary
	case g.opts.Secondary.APIKey != "":
		p = g.opts.Secondary
	default:
		return Provider{}, "", ErrNoCredential
	}
	model := requestedModel
	if p.ForceModel || model == "" {
		model = p.Model
	}
	return p, model, nil
}

// Complete performs a single bounded call to the selected provider.
func (g *Gateway) Complete(ctx context.Context, req Request) (*Completion, error) {
	p, model, err := g.SelectProvider(req.Model)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("no provider credential configured")
		return nil, err
	}

	temperature := *g.opts.DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	client := openai.NewClient(g.clientOptions(p)...)
	completion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemInstruction(req.Mode)),
			openai.UserMessage(req.Prompt),
		},
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			log.Ctx(ctx).Error().Str("provider", p.Name).Int("status", upstream.StatusCode).
				Str("excerpt", upstream.Excerpt).Msg("provider returned an error")
			return nil, upstream
		}
		log.Ctx(ctx).Error().Err(err).Str("provider", p.Name).Msg("provider call failed")
		return nil, &TransportError{Provider: p.Name, Cause: err}
	}
	if len(completion.Choices) == 0 {
		log.Ctx(ctx).Error().Str("provider", p.Name).Msg("provider returned no choices")
		return nil, ErrEmptyCompletion
	}

	return &Completion{
		Reply:    completion.Choices[0].Message.Content,
		Provider: p.Name,
		Model:    model,
	}, nil
}

func (g *Gateway) clientOptions(p Provider) []option.RequestOption {
	baseURL := p.BaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(p.APIKey),
		option.WithHTTPClient(g.opts.HTTPClient),
		option.WithMaxRetries(0),
		option.WithMiddleware(upstreamStatusMiddleware(p.Name, g.opts.ExcerptLimit)),
		// drop the OpenAI account headers NewClient picks up from OPENAI_ORG_ID and OPENAI_PROJECT_ID
		option.WithHeaderDel("OpenAI-Organization"),
		option.WithHeaderDel("OpenAI-Project"),
	}
	if p.Referer != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", p.Referer))
	}
	return opts
}

// upstreamStatusMiddleware turns any non-200 answer into an UpstreamError
// carrying a bounded excerpt of the body.
func upstreamStatusMiddleware(provider string, limit int) option.Middleware {
	return func(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
		resp, err := next(req)
		if err != nil || resp.StatusCode == http.StatusOK {
			return resp, err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, int64(limit)))
		return nil, &UpstreamError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Excerpt:    strings.ToValidUTF8(string(body), ""),
		}
	}
}
