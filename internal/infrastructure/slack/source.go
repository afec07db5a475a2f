package slack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	slackapi "github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"PulseIngest/internal/domain"
	"PulseIngest/internal/ports"
)

const pageSize = 200

var reChannelID = regexp.MustCompile(`^[CG][A-Z0-9]{8,}$`)

// Options configure the Slack adapters.
type Options struct {
	Token             string
	Channel           string
	APIURL            string
	RequestsPerMinute int
	HTTPClient        *http.Client
	Logger            *slog.Logger
}

// Source reads candidate URLs from a channel's recent history.
type Source struct {
	api     *slackapi.Client
	channel string
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ ports.URLSource = (*Source)(nil)

// NewSource builds a channel history reader.
func NewSource(opts Options) *Source {
	perMinute := opts.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 50
	}
	return &Source{
		api:     newAPI(opts),
		channel: strings.TrimSpace(opts.Channel),
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		logger:  opts.Logger,
	}
}

func newAPI(opts Options) *slackapi.Client {
	var apiOpts []slackapi.Option
	if opts.APIURL != "" {
		apiURL := opts.APIURL
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		apiOpts = append(apiOpts, slackapi.OptionAPIURL(apiURL))
	}
	if opts.HTTPClient != nil {
		apiOpts = append(apiOpts, slackapi.OptionHTTPClient(opts.HTTPClient))
	}
	return slackapi.New(opts.Token, apiOpts...)
}

// Discover returns unique URLs posted to the channel since the given moment.
func (s *Source) Discover(ctx context.Context, since time.Time) ([]string, error) {
	channelID, err := s.ResolveChannel(ctx)
	if err != nil {
		return nil, err
	}

	texts, err := s.history(ctx, channelID, since)
	if err != nil {
		return nil, err
	}

	urls := ExtractURLs(texts)
	s.debug("channel scanned", "channel", channelID, "messages", len(texts), "urls", len(urls))
	return urls, nil
}

// ResolveChannel returns the channel ID, looking names up via conversations.list.
func (s *Source) ResolveChannel(ctx context.Context) (string, error) {
	if s.channel == "" {
		return "", fmt.Errorf("%w: no channel configured", domain.ErrChannelNotFound)
	}
	if reChannelID.MatchString(s.channel) {
		return s.channel, nil
	}

	name := strings.ToLower(strings.TrimPrefix(s.channel, "#"))
	params := &slackapi.GetConversationsParameters{
		ExcludeArchived: true,
		Limit:           pageSize,
		Types:           []string{"public_channel", "private_channel"},
	}

	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}
		channels, next, err := s.api.GetConversationsContext(ctx, params)
		if err != nil {
			return "", fmt.Errorf("list channels: %w", mapAPIError(err))
		}
		for _, ch := range channels {
			if strings.EqualFold(ch.Name, name) || strings.EqualFold(ch.NameNormalized, name) {
				s.debug("channel resolved", "name", name, "id", ch.ID)
				return ch.ID, nil
			}
		}
		if next == "" {
			break
		}
		params.Cursor = next
	}

	return "", fmt.Errorf("%w: %q is not visible to the bot (check SLACK_CHANNEL, or invite the bot if the channel is private)",
		domain.ErrChannelNotFound, name)
}

func (s *Source) history(ctx context.Context, channelID string, since time.Time) ([]string, error) {
	params := &slackapi.GetConversationHistoryParameters{
		ChannelID: channelID,
		Oldest:    fmt.Sprintf("%d.000000", since.Unix()),
		Limit:     pageSize,
	}

	var texts []string
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		resp, err := s.api.GetConversationHistoryContext(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("read channel history: %w", mapAPIError(err))
		}
		for _, msg := range resp.Messages {
			if msg.Text != "" {
				texts = append(texts, msg.Text)
			}
		}
		if !resp.HasMore || resp.ResponseMetaData.NextCursor == "" {
			break
		}
		params.Cursor = resp.ResponseMetaData.NextCursor
	}
	return texts, nil
}

// mapAPIError turns Slack error codes the operator can fix into domain errors.
func mapAPIError(err error) error {
	code := err.Error()
	var slackErr slackapi.SlackErrorResponse
	if errors.As(err, &slackErr) {
		code = slackErr.Err
	}

	switch {
	case strings.Contains(code, "not_in_channel"):
		return fmt.Errorf("%w (invite the bot with /invite): %v", domain.ErrNotInChannel, err)
	case strings.Contains(code, "channel_not_found"):
		return fmt.Errorf("%w: %v", domain.ErrChannelNotFound, err)
	default:
		return err
	}
}

func (s *Source) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
