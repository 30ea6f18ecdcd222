package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pstuifzand/sitetree/internal/config"
	"github.com/pstuifzand/sitetree/internal/model"
	"github.com/pstuifzand/sitetree/internal/storage"
)

func main() {
	numPages := flag.Int("pages", 50, "Number of pages to generate")
	numNodes := flag.Int("nodes", 200, "Number of nodes per page")
	output := flag.String("output", "test-site", "Site directory")
	depth := flag.Int("depth", 3, "Maximum nesting depth")
	flag.Parse()

	if *numPages < 1 || *numNodes < 1 {
		fmt.Fprintf(os.Stderr, "pages and nodes must be at least 1\n")
		os.Exit(1)
	}
	if *depth < 1 || *depth >= model.MaxStructureDepth {
		fmt.Fprintf(os.Stderr, "depth must be between 1 and %d\n", model.MaxStructureDepth-1)
		os.Exit(1)
	}

	if err := os.MkdirAll(*output, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create directory: %v\n", err)
		os.Exit(1)
	}

	total, err := generateSite(*output, *numPages, *numNodes, *depth)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate site: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %d pages with %d nodes\n", *numPages, total)
	fmt.Printf("Saved to: %s\n", *output)
}

func generateSite(dir string, numPages, numNodes, maxDepth int) (int, error) {
	store := storage.NewStore(dir, nil)
	cfg := config.Default()
	cfg.Languages = []string{"en", "nl"}
	if err := cfg.Save(dir); err != nil {
		return 0, err
	}

	card := model.Structure{
		model.Tag("div", model.Attrs("class", "card"),
			model.Tag("h2", nil, model.Text("__RAW__{{title}}")),
			model.Tag("p", nil, model.Text("__RAW__{{body}}")),
		),
	}
	if _, err := store.Save(storage.Component("card"), card); err != nil {
		return 0, err
	}

	routes := make([]string, numPages)
	for i := range routes {
		routes[i] = routeName(i)
	}

	var links []model.Node
	for _, r := range routes[:min(len(routes), 8)] {
		links = append(links, model.Tag("li", nil, model.Tag("a", model.Attrs("onclick", "{{call:navigate:"+r+"}}"), model.Text("nav."+keyName(r)))))
	}
	if _, err := store.Save(storage.Menu(), model.Structure{model.Tag("nav", nil, model.Tag("ul", nil, links...))}); err != nil {
		return 0, err
	}
	footer := model.Structure{model.Tag("footer", nil, model.Tag("p", nil, model.Text("footer.copyright")))}
	if _, err := store.Save(storage.Footer(), footer); err != nil {
		return 0, err
	}

	total := 0
	events := storage.PageEvents{}
	en := map[string]any{"footer": map[string]any{"copyright": "All rights reserved"}}
	nl := map[string]any{"footer": map[string]any{"copyright": "Alle rechten voorbehouden"}}
	nav := map[string]any{}
	for i, route := range routes {
		remaining := numNodes
		var page model.Structure
		for remaining > 0 {
			page = append(page, generateNodeRecursive(&remaining, 0, maxDepth, routes))
		}
		if _, err := store.Save(storage.Page(route), page); err != nil {
			return total, err
		}
		total += model.Count(page)
		nav[keyName(route)] = generateUniqueText(i)
		if i%5 == 0 {
			events[route] = map[string]any{"load": "{{call:fetch:@content/" + path.Base(route) + "}}"}
		}
	}
	en["nav"], nl["nav"] = nav, nav

	if err := store.SaveEvents(events); err != nil {
		return total, err
	}
	for lang, bundle := range map[string]any{"en": en, "nl": nl} {
		data, err := json.MarshalIndent(bundle, "", "  ")
		if err != nil {
			return total, err
		}
		p := filepath.Join(store.TranslationsDir(), lang+".json")
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return total, err
		}
		if err := os.WriteFile(p, data, 0o644); err != nil {
			return total, err
		}
	}
	return total, nil
}

func generateNodeRecursive(remaining *int, currentDepth, maxDepth int, routes []string) model.Node {
	index := *remaining
	*remaining--

	if currentDepth >= maxDepth || *remaining <= 0 {
		switch index % 4 {
		case 0:
			return model.Component("card", map[string]any{"title": generateUniqueText(index), "body": generateDescription(index)})
		case 1:
			target := routes[index%len(routes)]
			return model.Tag("button", model.Attrs("onclick", "{{call:navigate:"+target+"}}"), model.Text("__RAW__"+generateDescription(index)))
		}
		return model.Tag("p", nil, model.Text("__RAW__"+generateUniqueText(index)))
	}

	n := model.Tag("section", model.Attrs("class", model.When("highlight", model.String("highlight"))))
	numChildren := getChildCount(*remaining, maxDepth-currentDepth)
	for i := 0; i < numChildren && *remaining > 0; i++ {
		n.Children = append(n.Children, generateNodeRecursive(remaining, currentDepth+1, maxDepth, routes))
	}
	return n
}

func getChildCount(remaining int, depthLeft int) int {
	// Distribute nodes across children based on remaining nodes
	if depthLeft == 1 {
		// Leaf level: create fewer children
		if remaining > 10 {
			return 5
		}
		return max(remaining/2, 1)
	}
	// Internal levels: create 2-3 children
	if remaining > 50 {
		return 3
	}
	return 2
}

func routeName(i int) string {
	if i == 0 {
		return "home"
	}
	sections := []string{"blog", "docs", "shop", "about"}
	return fmt.Sprintf("%s/page-%d", sections[i%len(sections)], i)
}

// keyName is the translation key of a route.
func keyName(route string) string {
	return strings.ReplaceAll(path.Base(route), "-", "_")
}

func generateUniqueText(index int) string {
	categories := []string{
		"Article", "Guide", "Product", "News", "Feature", "Story",
		"Review", "Announcement", "Tutorial", "Case study",
	}

	category := categories[index%len(categories)]
	return fmt.Sprintf("%s #%d - %s", category, index,
		generateDescription(index))
}

func generateDescription(index int) string {
	descriptions := []string{
		"Getting started",
		"Pricing overview",
		"Release notes",
		"Customer story",
		"Team update",
		"Product launch",
		"Frequently asked questions",
		"Contact details",
	}

	return descriptions[index%len(descriptions)]
}
