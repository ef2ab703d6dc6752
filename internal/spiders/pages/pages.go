// Package pages contains a general-purpose page spider: it fetches each
// seed address, yields one item per page with its title and size, and
// follows same-host links up to a configurable depth.
package pages

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/spindlehq/spindle/internal/spider"
)

const depthKey = "depth"

// Item is what the spider yields per fetched page.
type Item struct {
	URL    string `json:"url"`
	Status int    `json:"status"`
	Title  string `json:"title"`
	Bytes  int64  `json:"bytes"`
}

// New builds the spider. fetcher backs its single session; maxDepth 0 means
// fetch the seeds only.
func New(name string, seeds []string, maxDepth int, fetcher spider.Fetcher) *spider.Spider {
	s := &parser{maxDepth: maxDepth}
	return &spider.Spider{
		Name:  name,
		Start: seeds,
		Parse: s.parse,
		ConfigureSessions: func(reg spider.SessionRegistrar) error {
			return reg.Add("http", fetcher)
		},
	}
}

type parser struct {
	maxDepth int
}

func (p *parser) parse(_ context.Context, resp *spider.Response) ([]spider.Output, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse page %s: %w", resp.Request.URL, err)
	}

	outs := []spider.Output{spider.YieldItem(Item{
		URL:    resp.Request.URL,
		Status: resp.StatusCode,
		Title:  strings.TrimSpace(doc.Find("title").First().Text()),
		Bytes:  resp.Bytes(),
	})}

	depth := pageDepth(resp.Request)
	if depth >= p.maxDepth {
		return outs, nil
	}
	base, err := url.Parse(resp.Request.URL)
	if err != nil {
		return outs, nil
	}
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		u, err := base.Parse(strings.TrimSpace(href))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		if u.Host != base.Host {
			return
		}
		u.Fragment = ""
		// Deeper pages get a higher priority value so breadth wins.
		req := spider.NewRequest(u.String(), depth+1)
		req.SessionID = "http"
		req.Meta = map[string]string{depthKey: strconv.Itoa(depth + 1)}
		outs = append(outs, spider.YieldRequest(req))
	})
	return outs, nil
}

func pageDepth(req *spider.Request) int {
	if req.Meta == nil {
		return 0
	}
	d, err := strconv.Atoi(req.Meta[depthKey])
	if err != nil {
		return 0
	}
	return d
}
