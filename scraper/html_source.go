// scraper/html_source.go
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gewnthar/pharmascrape/config"
	"github.com/gewnthar/pharmascrape/hours"
	"github.com/gewnthar/pharmascrape/models"
)

// HTMLSource scrapes a store-finder page with CSS selectors. With a link
// selector each store's own page is fetched for the details; without one
// the fields are read from the list items themselves.
type HTMLSource struct {
	cfg   config.SourceConfig
	sel   config.SelectorMap
	base  *url.URL
	fetch *Fetcher
	log   *slog.Logger
}

type htmlDetailSource struct {
	*HTMLSource
}

func newHTMLSource(cfg config.SourceConfig, fetch *Fetcher, log *slog.Logger) (Source, error) {
	if cfg.Selectors.Item == "" {
		return nil, &ConfigError{Source: cfg.Name, Reason: "selectors.item is required"}
	}
	if cfg.Selectors.Name == "" {
		return nil, &ConfigError{Source: cfg.Name, Reason: "selectors.name is required"}
	}
	base, err := url.Parse(cfg.ListURL)
	if err != nil {
		return nil, &ConfigError{Source: cfg.Name, Reason: fmt.Sprintf("bad list_url: %v", err)}
	}
	s := &HTMLSource{cfg: cfg, sel: cfg.Selectors, base: base, fetch: fetch, log: log}
	if cfg.Selectors.Link != "" {
		return &htmlDetailSource{s}, nil
	}
	return s, nil
}

func (s *HTMLSource) Name() string { return s.cfg.Name }

func (s *HTMLSource) FetchLocations(ctx context.Context) ([]RawLocation, error) {
	doc, err := s.fetch.GetDocument(ctx, s.cfg.ListURL, s.cfg.Headers)
	if err != nil {
		return nil, err
	}

	var locs []RawLocation
	seen := make(map[string]bool)
	doc.Find(s.sel.Item).Each(func(i int, item *goquery.Selection) {
		if s.sel.Link == "" {
			locs = append(locs, RawLocation{ID: fmt.Sprint(i), Data: item})
			return
		}
		href, ok := item.Find(s.sel.Link).First().Attr("href")
		if !ok {
			href, ok = item.Attr("href")
		}
		if !ok || strings.TrimSpace(href) == "" {
			s.log.Debug("store item without link", "index", i)
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			s.log.Debug("bad store link", "href", href, "err", err)
			return
		}
		abs := s.base.ResolveReference(ref).String()
		if seen[abs] {
			return
		}
		seen[abs] = true
		locs = append(locs, RawLocation{ID: abs, URL: abs, Data: item})
	})
	return locs, nil
}

func (s *htmlDetailSource) FetchDetails(ctx context.Context, loc RawLocation) (RawDetail, error) {
	doc, err := s.fetch.GetDocument(ctx, loc.URL, s.cfg.Headers)
	if err != nil {
		return RawDetail{}, err
	}
	return RawDetail{Location: loc, Data: doc.Selection}, nil
}

func (s *HTMLSource) Extract(raw RawDetail) (models.PartialRecord, error) {
	d := raw.Data
	if d == nil {
		d = raw.Location.Data
	}
	sel, ok := d.(*goquery.Selection)
	if !ok {
		return models.PartialRecord{}, fmt.Errorf("store %q: expected HTML, got %T", raw.Location.ID, d)
	}

	p := models.PartialRecord{
		Name:          pick(sel, s.sel.Name),
		Address:       pick(sel, s.sel.Address),
		StreetAddress: pick(sel, s.sel.Street),
		Suburb:        pick(sel, s.sel.Suburb),
		State:         pick(sel, s.sel.State),
		Postcode:      pick(sel, s.sel.Postcode),
		Phone:         pick(sel, s.sel.Phone),
		Fax:           pick(sel, s.sel.Fax),
		Email:         strings.TrimPrefix(pick(sel, s.sel.Email), "mailto:"),
		Website:       pick(sel, s.sel.Website),
		Latitude:      parseFloat(pick(sel, s.sel.Latitude)),
		Longitude:     parseFloat(pick(sel, s.sel.Longitude)),
	}
	p.Phone = strings.TrimPrefix(p.Phone, "tel:")

	if s.sel.HoursTable != "" {
		if t := hours.TableFromHTML(sel.Find(s.sel.HoursTable)); len(t) > 0 {
			p.Hours = t
		}
	}
	if p.Hours == nil && s.sel.HoursText != "" {
		if frag, err := sel.Find(s.sel.HoursText).First().Html(); err == nil {
			if txt := hours.TextFromHTML(frag); txt != "" {
				p.Hours = hours.Text(txt)
			}
		}
	}
	return p, nil
}

// pick reads the first match of selector under sel. "a.email@href" reads
// the href attribute instead of the text.
func pick(sel *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	css, attr := selector, ""
	if i := strings.LastIndex(selector, "@"); i >= 0 {
		css, attr = selector[:i], selector[i+1:]
	}
	target := sel
	if css != "" {
		target = sel.Find(css).First()
	}
	if target.Length() == 0 {
		return ""
	}
	if attr != "" {
		v, _ := target.Attr(attr)
		return strings.TrimSpace(v)
	}
	return strings.Join(strings.Fields(target.Text()), " ")
}
