package ingest

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

var excessiveLinesRe = regexp.MustCompile(`\n{4,}`)

// ConvertResult contains the result of HTML to markdown conversion.
type ConvertResult struct {
	Title    string
	Markdown string
}

// Converter converts fetched HTML to markdown. Main content is isolated
// with readability extraction; pages it cannot handle fall back to a
// structural cleanup pass.
type Converter struct {
	md *md.Converter
}

// NewConverter creates an HTML to markdown converter.
func NewConverter() *Converter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &Converter{md: converter}
}

// Convert transforms HTML content to markdown. pageURL resolves relative
// links during extraction and may be nil.
func (c *Converter) Convert(htmlContent []byte, pageURL *url.URL) (*ConvertResult, error) {
	title := extractHTMLTitle(htmlContent)

	content := extractArticle(htmlContent, pageURL, &title)
	if content == "" {
		content = extractMainContent(htmlContent)
	}

	markdown, err := c.md.ConvertString(content)
	if err != nil {
		return nil, fmt.Errorf("convert to markdown: %w", err)
	}
	markdown = cleanMarkdown(markdown)
	if strings.TrimSpace(markdown) == "" {
		return nil, fmt.Errorf("page has no extractable content")
	}

	if title == "" {
		title = extractMarkdownTitle(markdown)
	}

	return &ConvertResult{
		Title:    title,
		Markdown: markdown,
	}, nil
}

// extractArticle runs readability extraction, filling in the title when
// the document's own was empty. Returns "" when extraction fails or finds
// nothing.
func extractArticle(content []byte, pageURL *url.URL, title *string) string {
	if pageURL == nil {
		pageURL = &url.URL{Scheme: "https", Host: "example.com", Path: "/"}
	}
	article, err := readability.FromReader(bytes.NewReader(content), pageURL)
	if err != nil {
		return ""
	}
	if strings.TrimSpace(article.TextContent) == "" {
		return ""
	}
	if *title == "" {
		*title = strings.TrimSpace(article.Title)
	}
	return article.Content
}

// extractHTMLTitle extracts the <title> text from HTML.
func extractHTMLTitle(content []byte) string {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return ""
	}

	var title string
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if title != "" {
				return
			}
			extract(c)
		}
	}
	extract(doc)

	return title
}

// extractMainContent is the fallback extraction: prefer an explicit main
// content element, otherwise strip navigation chrome and use the body.
func extractMainContent(content []byte) string {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return string(content)
	}

	for _, selector := range []string{"main", "article", "[role=main]"} {
		if node := findElement(doc, selector); node != nil {
			return renderNode(node)
		}
	}

	removeElements(doc, []string{
		"nav", "header", "footer", "aside", "script", "style", "noscript",
		"iframe", "form", "input", "button",
	})
	removeByClass(doc, []string{
		"nav", "navbar", "navigation", "sidebar", "menu", "footer",
		"header", "ad", "advertisement", "social", "share", "comments",
	})

	if body := findElement(doc, "body"); body != nil {
		return renderNode(body)
	}
	return string(content)
}

// findElement finds the first element matching a simple selector: a tag
// name or a [key=value] attribute form.
func findElement(n *html.Node, selector string) *html.Node {
	var result *html.Node
	var find func(*html.Node)
	find = func(node *html.Node) {
		if result != nil {
			return
		}
		if node.Type == html.ElementNode && matchesSelector(node, selector) {
			result = node
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(n)
	return result
}

func matchesSelector(n *html.Node, selector string) bool {
	if strings.HasPrefix(selector, "[") && strings.HasSuffix(selector, "]") {
		attr := strings.TrimSuffix(strings.TrimPrefix(selector, "["), "]")
		parts := strings.SplitN(attr, "=", 2)
		if len(parts) != 2 {
			return false
		}
		for _, a := range n.Attr {
			if a.Key == parts[0] && a.Val == parts[1] {
				return true
			}
		}
		return false
	}
	return n.Data == selector
}

// removeElements removes all elements with the given tag names.
func removeElements(n *html.Node, tags []string) {
	tagSet := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tagSet[tag] = true
	}

	var toRemove []*html.Node
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.ElementNode && tagSet[node.Data] {
			toRemove = append(toRemove, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)

	for _, node := range toRemove {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

// removeByClass removes elements carrying any of the given class names.
func removeByClass(n *html.Node, classes []string) {
	classSet := make(map[string]bool, len(classes))
	for _, class := range classes {
		classSet[strings.ToLower(class)] = true
	}

	var toRemove []*html.Node
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.ElementNode {
			for _, a := range node.Attr {
				if a.Key != "class" {
					continue
				}
				for _, c := range strings.Fields(strings.ToLower(a.Val)) {
					if classSet[c] {
						toRemove = append(toRemove, node)
						return
					}
				}
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)

	for _, node := range toRemove {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

func renderNode(n *html.Node) string {
	var sb strings.Builder
	html.Render(&sb, n)
	return sb.String()
}

// cleanMarkdown normalizes converted markdown: no runs of blank lines, no
// trailing whitespace on lines, trimmed ends.
func cleanMarkdown(content string) string {
	content = excessiveLinesRe.ReplaceAllString(content, "\n\n\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	content = strings.Join(lines, "\n")

	return strings.TrimSpace(content)
}

// extractMarkdownTitle returns the first H1 heading text, if any.
func extractMarkdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
