package main

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

const crawlerUserAgent = "seoflow-crawler/1.0"

// Crawler fetches a client site's pages for profile generation. URL
// discovery goes through sitemaps only; no link following.
type Crawler struct {
	httpc    *http.Client
	maxPages int
	delay    time.Duration
	sleep    func(time.Duration)

	// Progress, when set, is called after each fetched page.
	Progress func(done, total int)
}

func NewCrawler(maxPages, delaySeconds int) *Crawler {
	return &Crawler{
		httpc:    externalHTTPClient,
		maxPages: maxPages,
		delay:    time.Duration(delaySeconds) * time.Second,
		sleep:    time.Sleep,
	}
}

func (c *Crawler) get(rawURL string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", crawlerUserAgent)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}
	return resp, nil
}

type sitemapIndex struct {
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

type urlSet struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// DiscoverURLs collects page URLs for a domain: sitemap locations from
// robots.txt first, /sitemap.xml as fallback. Sitemap indexes are followed
// one level deep. The result is capped at maxPages.
func (c *Crawler) DiscoverURLs(domain string) ([]string, error) {
	base := domain
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	base = strings.TrimRight(base, "/")

	sitemaps := c.sitemapsFromRobots(base)
	if len(sitemaps) == 0 {
		sitemaps = []string{base + "/sitemap.xml"}
	}

	seen := make(map[string]bool)
	var urls []string
	for _, sm := range sitemaps {
		if len(urls) >= c.maxPages {
			break
		}
		found, err := c.readSitemap(sm, true)
		if err != nil {
			log.Printf("crawler sitemap skipped url=%s err=%v", sm, err)
			continue
		}
		for _, u := range found {
			if seen[u] {
				continue
			}
			seen[u] = true
			urls = append(urls, u)
			if len(urls) >= c.maxPages {
				break
			}
		}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no URLs discovered for %s", domain)
	}
	return urls, nil
}

func (c *Crawler) sitemapsFromRobots(base string) []string {
	resp, err := c.get(base + "/robots.txt")
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	var out []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) > 8 && strings.EqualFold(line[:8], "sitemap:") {
			if loc := strings.TrimSpace(line[8:]); loc != "" {
				out = append(out, loc)
			}
		}
	}
	return out
}

func (c *Crawler) readSitemap(sitemapURL string, followIndex bool) ([]string, error) {
	resp, err := c.get(sitemapURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, err
	}

	if bytes.Contains(data, []byte("<sitemapindex")) {
		if !followIndex {
			return nil, nil
		}
		var idx sitemapIndex
		if err := xml.Unmarshal(data, &idx); err != nil {
			return nil, fmt.Errorf("parse sitemap index: %w", err)
		}
		var urls []string
		for _, sm := range idx.Sitemaps {
			child, err := c.readSitemap(strings.TrimSpace(sm.Loc), false)
			if err != nil {
				log.Printf("crawler child sitemap skipped url=%s err=%v", sm.Loc, err)
				continue
			}
			urls = append(urls, child...)
			if len(urls) >= c.maxPages {
				break
			}
		}
		return urls, nil
	}

	var set urlSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse sitemap: %w", err)
	}
	var urls []string
	for _, u := range set.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			urls = append(urls, loc)
		}
	}
	return urls, nil
}

// ExtractPage fetches one URL and extracts title, meta description and
// readable body text.
func (c *Crawler) ExtractPage(pageURL string) (*CrawledPage, error) {
	resp, err := c.get(pageURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", pageURL, err)
	}

	page := &CrawledPage{URL: pageURL}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err == nil {
		page.Title = strings.TrimSpace(doc.Find("title").First().Text())
		if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
			page.Description = strings.TrimSpace(desc)
		}
	}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %s: %w", pageURL, err)
	}
	article, err := readability.FromReader(bytes.NewReader(data), parsed)
	if err != nil {
		// Fall back to the raw body text when readability gives up.
		if doc != nil {
			page.Content = strings.TrimSpace(doc.Find("body").Text())
		}
	} else {
		page.Content = strings.TrimSpace(article.TextContent)
		if page.Title == "" {
			page.Title = article.Title
		}
	}
	page.Content = collapseWhitespace(page.Content)
	return page, nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CrawlSite discovers and fetches up to maxPages pages with a polite delay
// between requests. Failed pages are logged and skipped.
func (c *Crawler) CrawlSite(domain string) ([]CrawledPage, error) {
	urls, err := c.DiscoverURLs(domain)
	if err != nil {
		return nil, err
	}
	log.Printf("crawl start domain=%s urls=%d", domain, len(urls))

	var pages []CrawledPage
	for i, u := range urls {
		page, err := c.ExtractPage(u)
		if err != nil {
			log.Printf("crawl page failed url=%s err=%v", u, err)
		} else {
			pages = append(pages, *page)
		}
		if c.Progress != nil {
			c.Progress(i+1, len(urls))
		}
		if i < len(urls)-1 && c.delay > 0 {
			c.sleep(c.delay)
		}
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages fetched for %s", domain)
	}
	log.Printf("crawl done domain=%s pages=%d", domain, len(pages))
	return pages, nil
}

// Inventory converts crawled pages into the profile's URL inventory, with a
// short summary per page.
func Inventory(pages []CrawledPage) []URLInfo {
	out := make([]URLInfo, 0, len(pages))
	for _, p := range pages {
		summary := p.Description
		if summary == "" {
			summary = p.Content
		}
		if len(summary) > 200 {
			summary = summary[:200]
		}
		out = append(out, URLInfo{URL: p.URL, Title: p.Title, Summary: summary})
	}
	return out
}
