package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testCrawler(srv *httptest.Server, maxPages int) *Crawler {
	c := NewCrawler(maxPages, 0)
	c.httpc = srv.Client()
	c.sleep = func(d time.Duration) {}
	return c
}

func TestDiscoverURLsFromRobots(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "User-agent: *\nDisallow: /admin\nSitemap: %s/custom-sitemap.xml\n", srv.URL)
	})
	mux.HandleFunc("/custom-sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>%s/</loc></url>
  <url><loc>%s/services</loc></url>
  <url><loc>%s/about</loc></url>
</urlset>`, srv.URL, srv.URL, srv.URL)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	urls, err := testCrawler(srv, 50).DiscoverURLs(srv.URL)
	if err != nil {
		t.Fatalf("DiscoverURLs() error: %v", err)
	}
	if len(urls) != 3 {
		t.Fatalf("urls = %v", urls)
	}
	if urls[1] != srv.URL+"/services" {
		t.Errorf("urls[1] = %q", urls[1])
	}
}

func TestDiscoverURLsFollowsSitemapIndex(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>%s/pages.xml</loc></sitemap>
</sitemapindex>`, srv.URL)
	})
	mux.HandleFunc("/pages.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0"?>
<urlset><url><loc>%s/one</loc></url><url><loc>%s/two</loc></url></urlset>`, srv.URL, srv.URL)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	urls, err := testCrawler(srv, 50).DiscoverURLs(srv.URL)
	if err != nil {
		t.Fatalf("DiscoverURLs() error: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("urls = %v", urls)
	}
}

func TestDiscoverURLsCapped(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		b.WriteString(`<urlset>`)
		for i := 0; i < 20; i++ {
			fmt.Fprintf(&b, "<url><loc>%s/page-%d</loc></url>", srv.URL, i)
		}
		b.WriteString(`</urlset>`)
		fmt.Fprint(w, b.String())
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	urls, err := testCrawler(srv, 5).DiscoverURLs(srv.URL)
	if err != nil {
		t.Fatalf("DiscoverURLs() error: %v", err)
	}
	if len(urls) != 5 {
		t.Errorf("urls = %d, want capped at 5", len(urls))
	}
}

func TestExtractPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/services", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head>
<title>ENT Services | Acme</title>
<meta name="description" content="Full-service ENT care.">
</head><body>
<article><h1>Our Services</h1>
<p>We provide sinus surgery, hearing tests and allergy treatment for the whole family. Our board-certified physicians have decades of combined experience treating ear, nose and throat conditions.</p>
</article></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	page, err := testCrawler(srv, 5).ExtractPage(srv.URL + "/services")
	if err != nil {
		t.Fatalf("ExtractPage() error: %v", err)
	}
	if !strings.Contains(page.Title, "ENT Services") {
		t.Errorf("title = %q", page.Title)
	}
	if page.Description != "Full-service ENT care." {
		t.Errorf("description = %q", page.Description)
	}
	if !strings.Contains(page.Content, "sinus surgery") {
		t.Errorf("content = %q", page.Content)
	}
}

func TestCrawlSiteSkipsFailedPages(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<urlset><url><loc>%s/ok</loc></url><url><loc>%s/broken</loc></url></urlset>`, srv.URL, srv.URL)
	})
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>OK</title></head><body><p>Content here about our medical practice and treatments offered to local patients.</p></body></html>`)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	pages, err := testCrawler(srv, 10).CrawlSite(srv.URL)
	if err != nil {
		t.Fatalf("CrawlSite() error: %v", err)
	}
	if len(pages) != 1 || pages[0].Title != "OK" {
		t.Errorf("pages = %+v", pages)
	}
}

func TestInventorySummaries(t *testing.T) {
	pages := []CrawledPage{
		{URL: "https://a.com/1", Title: "One", Description: "Short desc"},
		{URL: "https://a.com/2", Title: "Two", Content: strings.Repeat("long content ", 50)},
	}
	inv := Inventory(pages)
	if len(inv) != 2 {
		t.Fatalf("inventory = %d", len(inv))
	}
	if inv[0].Summary != "Short desc" {
		t.Errorf("summary = %q", inv[0].Summary)
	}
	if len(inv[1].Summary) > 200 {
		t.Errorf("summary not truncated: %d chars", len(inv[1].Summary))
	}
}
