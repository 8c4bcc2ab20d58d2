package provider

import (
	"context"
	"encoding/json"
	"log/slog"

	"cryptodaily/internal/domain"

	"github.com/tidwall/gjson"
)

// NewsSource never fails: on error it returns an {error, details} document.
type NewsSource interface {
	FetchLatestNews(ctx context.Context, kindFilter string) domain.Payload
}

func newsErrorPayload(message string, err error) domain.Payload {
	details := ""
	if err != nil {
		details = err.Error()
	}

	raw, marshalErr := json.Marshal(map[string]string{
		"error":   message,
		"details": details,
	})
	if marshalErr != nil {
		return domain.Payload(`{"error":"Failed to fetch news"}`)
	}

	return raw
}

func isNewsError(payload domain.Payload) bool {
	return gjson.GetBytes(payload, "error").Exists()
}

// NewsChain asks each source in turn and returns the first payload that is
// not an error document. When every source fails, the first source's error
// document is returned.
type NewsChain struct {
	sources []NewsSource
	log     *slog.Logger
}

func NewNewsChain(log *slog.Logger, sources ...NewsSource) *NewsChain {
	return &NewsChain{sources: sources, log: log}
}

func (c *NewsChain) FetchLatestNews(ctx context.Context, kindFilter string) domain.Payload {
	var firstErr domain.Payload

	for i, source := range c.sources {
		payload := source.FetchLatestNews(ctx, kindFilter)
		if !isNewsError(payload) {
			if i > 0 {
				c.log.InfoContext(ctx, "News served by secondary source",
					"sourceIndex", i)
			}
			return payload
		}

		c.log.WarnContext(ctx, "News source failed",
			"sourceIndex", i,
			"error", gjson.GetBytes(payload, "error").String(),
			"details", gjson.GetBytes(payload, "details").String())

		if firstErr == nil {
			firstErr = payload
		}
	}

	if firstErr == nil {
		return newsErrorPayload("No news sources configured", nil)
	}

	return firstErr
}
