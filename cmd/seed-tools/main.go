// Command seed-tools loads command reference pages into the graph.
//
// It parses HTML cheat-sheet files where sections are <h2> headings and
// entries are <dt><code>command</code></dt> / <dd>description</dd> pairs.
// Each entry becomes a node in the stack named by the page <h1> (or the
// -stack flag), and anchor links between entries become "see_also" edges.
//
// Usage:
//
//	seed-tools -dir ./refs [-stack git] [-namespace default] [-dry-run]
//
// Connection settings come from the environment (POSTGRES_* variables).
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"golang.org/x/net/html"

	"github.com/meridian-ai/meridian/domain/graph"
	"github.com/meridian-ai/meridian/internal/config"
)

// toolEntry is one parsed command with its section and cross-links.
type toolEntry struct {
	ID          string
	Stack       string
	Name        string
	Description string
	Section     string
	Keywords    []string
	SeeAlso     []string // anchor targets, resolved to node IDs after parsing
	Anchor      string
}

func main() {
	var (
		dir       string
		stack     string
		namespace string
		dryRun    bool
	)

	flag.StringVar(&dir, "dir", "", "Directory of HTML reference pages (required)")
	flag.StringVar(&stack, "stack", "", "Stack label override. Empty uses each page's <h1>")
	flag.StringVar(&namespace, "namespace", "default", "Namespace to ingest into")
	flag.BoolVar(&dryRun, "dry-run", false, "Parse and report without writing to the database")
	flag.Parse()

	if dir == "" {
		fmt.Fprintln(os.Stderr, "Usage: seed-tools -dir <path> [-stack name] [-namespace ns] [-dry-run]")
		os.Exit(1)
	}

	_ = godotenv.Load("../../.env")
	_ = godotenv.Overload("../../.env.local")

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	pages, err := filepath.Glob(filepath.Join(dir, "*.html"))
	if err != nil || len(pages) == 0 {
		fmt.Fprintf(os.Stderr, "Error: no .html files found in %s\n", dir)
		os.Exit(1)
	}

	var entries []toolEntry
	for _, page := range pages {
		parsed, err := parsePage(page, stack)
		if err != nil {
			log.Warn("skipping page",
				slog.String("page", page),
				slog.String("error", err.Error()))
			continue
		}
		log.Info("parsed page",
			slog.String("page", filepath.Base(page)),
			slog.Int("entries", len(parsed)))
		entries = append(entries, parsed...)
	}

	if len(entries) == 0 {
		log.Info("nothing to seed")
		return
	}

	edges := resolveLinks(entries)
	log.Info("parsed reference pages",
		slog.Int("nodes", len(entries)),
		slog.Int("edges", len(edges)))

	if dryRun {
		for _, e := range entries {
			fmt.Printf("%s\t%s\t%s\n", e.ID, e.Stack, e.Name)
		}
		return
	}

	cfg, err := config.NewConfig(log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN())))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	ctx := context.Background()
	repo := graph.NewRepository(db, log)

	var inserted, updated, edgeCount int
	for _, e := range entries {
		res, err := repo.InsertNode(ctx, &graph.Node{
			ID:             e.ID,
			Type:           "command",
			Name:           e.Name,
			Description:    e.Description,
			IntentKeywords: e.Keywords,
			Namespace:      namespace,
			Metadata: map[string]any{
				"stack":   e.Stack,
				"section": e.Section,
			},
		})
		if err != nil {
			log.Warn("node rejected",
				slog.String("id", e.ID),
				slog.String("error", err.Error()))
			continue
		}
		if res.Inserted {
			inserted++
		}
		if res.Updated {
			updated++
		}
	}

	for _, edge := range edges {
		if err := repo.InsertEdge(ctx, edge); err != nil {
			log.Warn("edge rejected",
				slog.String("from", edge.FromID),
				slog.String("to", edge.ToID),
				slog.String("error", err.Error()))
			continue
		}
		edgeCount++
	}

	if inserted+updated+edgeCount > 0 {
		if err := repo.MarkDirty(ctx); err != nil {
			log.Warn("failed to mark graph dirty", slog.String("error", err.Error()))
		}
	}

	log.Info("seed complete",
		slog.Int("inserted", inserted),
		slog.Int("updated", updated),
		slog.Int("edges", edgeCount))
}

// parsePage extracts tool entries from one HTML reference page.
func parsePage(path, stackOverride string) ([]toolEntry, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	root, err := html.Parse(strings.NewReader(string(content)))
	if err != nil {
		return nil, err
	}

	stack := stackOverride
	if stack == "" {
		if h1 := findFirst(root, "h1"); h1 != nil {
			stack = slugify(textContent(h1))
		}
	}
	if stack == "" {
		stack = slugify(strings.TrimSuffix(filepath.Base(path), ".html"))
	}

	var entries []toolEntry
	section := ""
	var pendingName, pendingAnchor string
	var pendingLinks []string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "h2":
				section = strings.TrimSpace(textContent(n))
			case "dt":
				pendingName = strings.TrimSpace(textContent(n))
				pendingAnchor = attrVal(n, "id")
			case "dd":
				if pendingName == "" {
					break
				}
				pendingLinks = pendingLinks[:0]
				for _, a := range findAll(n, "a") {
					if href := attrVal(a, "href"); strings.HasPrefix(href, "#") {
						pendingLinks = append(pendingLinks, strings.TrimPrefix(href, "#"))
					}
				}
				entries = append(entries, toolEntry{
					ID:          stack + ":" + slugify(pendingName),
					Stack:       stack,
					Name:        pendingName,
					Description: strings.TrimSpace(textContent(n)),
					Section:     section,
					Keywords:    keywords(pendingName),
					SeeAlso:     append([]string(nil), pendingLinks...),
					Anchor:      pendingAnchor,
				})
				pendingName = ""
				pendingAnchor = ""
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return entries, nil
}

// resolveLinks turns anchor references into see_also edges between
// entries. Links to anchors outside the parsed set are dropped.
func resolveLinks(entries []toolEntry) []*graph.Edge {
	byAnchor := make(map[string]string)
	for _, e := range entries {
		if e.Anchor != "" {
			byAnchor[e.Anchor] = e.ID
		}
	}

	var edges []*graph.Edge
	seen := make(map[string]bool)
	for _, e := range entries {
		for _, anchor := range e.SeeAlso {
			target, ok := byAnchor[anchor]
			if !ok || target == e.ID {
				continue
			}
			key := e.ID + "\x00" + target
			if seen[key] {
				continue
			}
			seen[key] = true
			edges = append(edges, &graph.Edge{
				FromID: e.ID,
				ToID:   target,
				Type:   "see_also",
				Weight: 0.5,
				Source: "seed-tools",
			})
		}
	}
	return edges
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonSlug.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// keywords extracts lowercase word tokens from a command name.
func keywords(name string) []string {
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(name)) {
		tok = strings.Trim(tok, "-—()[]{}<>.,")
		if len(tok) > 1 {
			out = append(out, tok)
		}
	}
	return out
}

// attrVal returns the value of the named attribute, or "".
func attrVal(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// textContent returns the concatenated text of a node's subtree.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// findFirst returns the first element with the given tag, depth-first.
func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// findAll returns every element with the given tag, depth-first.
func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}
