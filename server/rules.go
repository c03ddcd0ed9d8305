package server

import (
	"net/http"
	"time"

	"github.com/cyp0633/librecur/recurrence"
)

// ruleRequest is the body shared by the stateless /recurrence endpoints
type ruleRequest struct {
	Rule   *recurrence.Rule `json:"rule"`
	RRule  string           `json:"rrule,omitempty"`
	Anchor time.Time        `json:"anchor"`
	After  time.Time        `json:"after"`
	End    *time.Time       `json:"end,omitempty"`
	Count  int              `json:"count,omitempty"`
	Locale string           `json:"locale,omitempty"`
}

type ruleResponse struct {
	Rule        recurrence.Rule `json:"rule"`
	Description string          `json:"description"`
	RRule       string          `json:"rrule,omitempty"`
}

type nextResponse struct {
	Next *time.Time `json:"next"`
}

type occurrencesResponse struct {
	Occurrences []time.Time `json:"occurrences"`
}

// rule decodes the request and returns its normalized rule. Requests may
// name the rule as a document or as an RRULE string.
func (s *Server) rule(r *http.Request) (ruleRequest, recurrence.Rule, error) {
	var req ruleRequest
	if err := decodeJSON(r, &req); err != nil {
		return req, recurrence.Rule{}, err
	}

	var rule recurrence.Rule
	switch {
	case req.Rule != nil:
		rule = *req.Rule
	case req.RRule != "":
		parsed, err := recurrence.FromRRuleStringAt(req.RRule, req.Anchor, s.engine.Zone())
		if err != nil {
			return req, recurrence.Rule{}, err
		}
		rule = parsed
	default:
		return req, recurrence.Rule{}, errBadRequest(nil, "rule or rrule is required")
	}

	normalized, err := s.engine.Validate(rule)
	return req, normalized, err
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	req, rule, err := s.rule(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ruleResponse{
		Rule:        rule,
		Description: s.engine.Describe(rule, req.Locale),
	})
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	req, rule, err := s.rule(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	next, err := s.engine.Next(rule, req.Anchor, req.After)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nextResponse{Next: next.ToPointer()})
}

// handleOccurrences lists occurrences after "after": the first "count" of
// them, or all up to "end" when an end is given.
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	req, rule, err := s.rule(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var times []time.Time
	switch {
	case req.End != nil:
		if req.After.IsZero() {
			s.writeError(w, r, recurrence.ErrClockInput)
			return
		}
		times, err = s.engine.Between(rule, req.Anchor, req.After.Add(time.Nanosecond), *req.End)
	case req.Count > 0:
		times, err = s.engine.Take(rule, req.Anchor, req.After, req.Count)
	default:
		err = errBadRequest(nil, "count or end is required")
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if times == nil {
		times = []time.Time{}
	}
	s.writeJSON(w, http.StatusOK, occurrencesResponse{Occurrences: times})
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	req, rule, err := s.rule(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"description": s.engine.Describe(rule, req.Locale),
	})
}

// handleRRule converts in either direction: a rule document comes back with
// its RRULE, an RRULE comes back as a rule document.
func (s *Server) handleRRule(w http.ResponseWriter, r *http.Request) {
	req, rule, err := s.rule(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := ruleResponse{Rule: rule, Description: s.engine.Describe(rule, req.Locale)}
	anchor := req.Anchor
	if anchor.IsZero() {
		anchor = s.now()
	}
	if resp.RRule, err = s.engine.RRule(rule, anchor); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, ok := s.engine.CacheStats().Get()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"cacheEnabled": ok,
		"cache":        stats,
		"maxTake":      s.engine.Config().MaxTakeCount,
		"zone":         s.engine.Zone().String(),
	})
}
