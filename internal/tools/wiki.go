package tools

import (
	"context"
	"fmt"

	"chat-help-mcp/internal/registry"
	"chat-help-mcp/internal/schema"
	"chat-help-mcp/internal/wiki"
)

var wikiCategories = []string{"programmation", "réseaux", "systemes", "bases-de-donnees", "general"}

var searchSuggestions = map[string][]string{
	"programmation": {
		"Consultez la section 'Langages de programmation'",
		"Vérifiez les tutoriels et exemples de code",
		"Cherchez dans les bonnes pratiques de développement",
	},
	"réseaux": {
		"Consultez la documentation sur les protocoles réseau",
		"Vérifiez les guides de configuration",
		"Cherchez dans la section sécurité réseau",
	},
	"systemes": {
		"Consultez les guides d'administration système",
		"Vérifiez la documentation Linux/Windows",
		"Cherchez dans les commandes système courantes",
	},
	"bases-de-donnees": {
		"Consultez les tutoriels SQL",
		"Vérifiez les schémas de bases de données",
		"Cherchez dans l'optimisation des requêtes",
	},
	"general": {
		"Utilisez la barre de recherche du wiki",
		"Parcourez les catégories principales",
		"Consultez l'index alphabétique",
	},
}

type searchWikiArgs struct {
	Query    string `json:"query"`
	Category string `json:"category"`
}

// SearchWikiResult is returned when the wiki API answered.
type SearchWikiResult struct {
	Success  bool          `json:"success"`
	Query    string        `json:"query"`
	Category string        `json:"category"`
	Results  []wiki.Result `json:"results"`
	Count    int           `json:"count"`
}

// SearchWikiFallback is returned when the wiki API could not be reached. The search is still reported as
// successful so the assistant can hand the student a link instead of an error.
type SearchWikiFallback struct {
	Success     bool     `json:"success"`
	Query       string   `json:"query"`
	Category    string   `json:"category"`
	Message     string   `json:"message"`
	WikiURL     string   `json:"wiki_url"`
	Note        string   `json:"note"`
	Suggestions []string `json:"suggestions"`
}

func searchWikiTool(client WikiSearcher) registry.Entry {
	return registry.Entry{
		Descriptor: registry.Descriptor{
			Name:        "search_wiki",
			Description: "Recherche dans le wiki du département d'informatique",
			InputSchema: schema.New(
				schema.Prop("query", schema.String, schema.Required(),
					schema.Description("Terme ou question à rechercher dans le wiki")),
				schema.Prop("category", schema.String,
					schema.Description("Catégorie de recherche"),
					schema.Enum(wikiCategories...),
					schema.Default("general")),
			),
		},
		Tool: registry.ToolFunc(func(ctx context.Context, raw map[string]any) (any, error) {
			args := searchWikiArgs{Category: "general"}
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return searchWiki(ctx, client, args), nil
		}),
	}
}

func searchWiki(ctx context.Context, client WikiSearcher, args searchWikiArgs) any {
	results, err := client.Search(ctx, wiki.SearchParams{Query: args.Query, Category: args.Category})
	if err == nil {
		return SearchWikiResult{
			Success:  true,
			Query:    args.Query,
			Category: args.Category,
			Results:  results,
			Count:    len(results),
		}
	}
	suggestions, ok := searchSuggestions[args.Category]
	if !ok {
		suggestions = searchSuggestions["general"]
	}
	return SearchWikiFallback{
		Success:     true,
		Query:       args.Query,
		Category:    args.Category,
		Message:     fmt.Sprintf("Recherche pour '%s' dans la catégorie '%s'", args.Query, args.Category),
		WikiURL:     client.PageURL(args.Query),
		Note:        "Pour des résultats complets, consultez directement le wiki",
		Suggestions: suggestions,
	}
}
