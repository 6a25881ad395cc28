package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/spindleworks/spindle"
	"github.com/spindleworks/spindle/internal/config"
)

// fieldRule extracts one item field: a CSS selector, optionally followed by
// @attr to read an attribute instead of the element text.
type fieldRule struct {
	selector string
	attr     string
}

func parseFieldRule(raw string) (fieldRule, error) {
	sel, attr, hasAttr := strings.Cut(raw, "@")
	sel = strings.TrimSpace(sel)
	attr = strings.TrimSpace(attr)
	if sel == "" {
		return fieldRule{}, fmt.Errorf("empty selector in rule %q", raw)
	}
	if hasAttr && attr == "" {
		return fieldRule{}, fmt.Errorf("empty attribute in rule %q", raw)
	}
	return fieldRule{selector: sel, attr: attr}, nil
}

// siteSpider walks the configured site: every page becomes one item built
// from the field rules, and links matched by the follow selectors are
// scheduled until the page budget is spent.
type siteSpider struct {
	startURLs []string
	follow    []string
	fields    map[string]fieldRule
	allowed   map[string]bool
	maxPages  int
	pages     int
	log       *zap.Logger
}

func newSiteSpider(cfg config.SpiderConfig, log *zap.Logger) (*siteSpider, error) {
	fields := make(map[string]fieldRule, len(cfg.Fields))
	for name, raw := range cfg.Fields {
		rule, err := parseFieldRule(raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		fields[name] = rule
	}

	// Follows stay inside the allowed domains; the default allow-list is
	// the start URLs' own hosts.
	allowed := make(map[string]bool, len(cfg.AllowedDomains))
	for _, domain := range cfg.AllowedDomains {
		allowed[strings.ToLower(domain)] = true
	}
	if len(allowed) == 0 {
		for _, raw := range cfg.StartURLs {
			if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
				allowed[strings.ToLower(u.Hostname())] = true
			}
		}
	}

	return &siteSpider{
		startURLs: cfg.StartURLs,
		follow:    cfg.Follow,
		fields:    fields,
		allowed:   allowed,
		maxPages:  cfg.MaxPages,
		log:       log.Named("spider"),
	}, nil
}

// StartRequests seeds the crawl with the configured URLs.
func (s *siteSpider) StartRequests() []*spindle.Request {
	return spindle.StartURLs(s.startURLs...)
}

// Parse builds one item per page and schedules the followed links.
func (s *siteSpider) Parse(resp *spindle.Response) ([]spindle.Yield, error) {
	s.pages++

	item := spindle.Item{"url": resp.URL}
	for name, rule := range s.fields {
		sel := resp.Find(rule.selector).First()
		if rule.attr != "" {
			value, _ := sel.Attr(rule.attr)
			item[name] = value
		} else {
			item[name] = strings.TrimSpace(sel.Text())
		}
	}
	yields := []spindle.Yield{spindle.Emit(item)}

	if s.pages >= s.maxPages {
		s.log.Debug("page budget reached, not following links",
			zap.Int("pages", s.pages),
		)
		return yields, nil
	}
	for _, followSel := range s.follow {
		resp.Find(followSel).Each(func(_ int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok {
				return
			}
			target, err := resp.JoinURL(strings.TrimSpace(href))
			if err != nil || !s.allowedURL(target) {
				return
			}
			yields = append(yields, spindle.Follow(spindle.NewRequest(target)))
		})
	}
	return yields, nil
}

// PagesSeen reports how many pages the spider parsed.
func (s *siteSpider) PagesSeen() int { return s.pages }

// allowedURL keeps follows on http(s) URLs inside the allow-list; that
// filters javascript:, mailto: and friends as a side effect.
func (s *siteSpider) allowedURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return false
	}
	return s.allowed[strings.ToLower(u.Hostname())]
}
