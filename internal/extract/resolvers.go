package extract

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// resolverRequestTimeout bounds a single resolver page fetch. It sits below
// the service's global extraction timeout on purpose.
const resolverRequestTimeout = 15 * time.Second

// OpenGraphResolver resolves a share page by fetching it and reading its
// Open Graph meta tags. Most image/video/audio hosts expose the direct media
// URL this way.
type OpenGraphResolver struct {
	client *http.Client

	// properties are the og meta properties read, in preference order.
	properties []string
}

// NewOpenGraphResolver creates a resolver that reads the given og meta
// properties, e.g. "og:video:secure_url", "og:video", "og:image".
func NewOpenGraphResolver(client *http.Client, properties ...string) *OpenGraphResolver {
	if client == nil {
		client = &http.Client{Timeout: resolverRequestTimeout}
	}
	return &OpenGraphResolver{
		client:     client,
		properties: properties,
	}
}

// NewImageResolver resolves image-hosting share pages.
func NewImageResolver(client *http.Client) *OpenGraphResolver {
	return NewOpenGraphResolver(client, "og:image:secure_url", "og:image")
}

// NewVideoResolver resolves video share pages.
func NewVideoResolver(client *http.Client) *OpenGraphResolver {
	return NewOpenGraphResolver(client, "og:video:secure_url", "og:video", "og:video:url")
}

// NewAudioResolver resolves audio-hosting share pages.
func NewAudioResolver(client *http.Client) *OpenGraphResolver {
	return NewOpenGraphResolver(client, "og:audio:secure_url", "og:audio")
}

// Resolve fetches the share page and returns every matching og property
// value as a resolved media URL, preserving document order. Multi-image
// galleries produce multiple og:image tags and therefore multiple items.
func (r *OpenGraphResolver) Resolve(ctx context.Context, url string) ([]Resolved, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building page request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching share page: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("share page returned status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing share page: %w", err)
	}

	tags := collectMetaTags(doc)

	var items []Resolved
	seen := make(map[string]struct{})
	for _, prop := range r.properties {
		for _, content := range tags[prop] {
			if content == "" {
				continue
			}
			if _, dup := seen[content]; dup {
				continue
			}
			seen[content] = struct{}{}
			items = append(items, Resolved{URL: content})
		}
		// A higher-preference property that produced items wins; lower
		// preference properties are fallbacks, not additions.
		if len(items) > 0 {
			break
		}
	}

	return items, nil
}

// collectMetaTags walks the document and gathers meta property -> contents.
func collectMetaTags(doc *html.Node) map[string][]string {
	tags := make(map[string][]string)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "meta" {
			var property, content string
			for _, attr := range n.Attr {
				switch strings.ToLower(attr.Key) {
				case "property", "name":
					property = attr.Val
				case "content":
					content = attr.Val
				}
			}
			if property != "" && content != "" {
				tags[property] = append(tags[property], content)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return tags
}
