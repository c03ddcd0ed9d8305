package client

import (
	"context"
	"net/http"
	"time"

	"github.com/cyp0633/librecur/recurrence"
	"github.com/samber/mo"
)

type ruleRequest struct {
	Rule   recurrence.Rule `json:"rule"`
	Anchor time.Time       `json:"anchor"`
	After  time.Time       `json:"after"`
	Locale string          `json:"locale,omitempty"`
}

func (c *client) Next(ctx context.Context, rule recurrence.Rule, anchor, after time.Time) (mo.Option[time.Time], error) {
	var resp struct {
		Next *time.Time `json:"next"`
	}
	req := ruleRequest{Rule: rule, Anchor: anchor, After: after}
	if err := c.do(ctx, http.MethodPost, "recurrence/next", nil, req, &resp); err != nil {
		return mo.None[time.Time](), err
	}
	return mo.PointerToOption(resp.Next), nil
}

func (c *client) Describe(ctx context.Context, rule recurrence.Rule, locale string) (string, error) {
	var resp struct {
		Description string `json:"description"`
	}
	req := ruleRequest{Rule: rule, Locale: locale}
	if err := c.do(ctx, http.MethodPost, "recurrence/describe", nil, req, &resp); err != nil {
		return "", err
	}
	return resp.Description, nil
}
