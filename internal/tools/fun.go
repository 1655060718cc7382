package tools

import (
	"context"

	"chat-help-mcp/internal/registry"
	"chat-help-mcp/internal/schema"
)

type joke struct {
	setup, answer string
}

var jokesFR = []joke{
	{"Pourquoi les programmeurs préfèrent-ils le mode sombre?", "Parce que la lumière attire les bugs! 🐛"},
	{"Comment appelle-t-on un développeur qui ne teste pas son code?", "Un optimiste! 😄"},
	{"Pourquoi les programmeurs confondent-ils Halloween et Noël?", "Parce que Oct 31 = Dec 25 (en octal)! 🎃🎄"},
	{"Il y a 10 types de personnes dans le monde...", "Ceux qui comprennent le binaire et ceux qui ne le comprennent pas! 01"},
	{"Pourquoi Java et JavaScript sont comme une voiture et une barre de chocolat?", "Parce qu'ils n'ont que le nom en commun! ☕🍫"},
	{"Un SQL entre dans un bar et voit deux tables...", "Il s'approche et demande: 'Je peux vous JOIN?' 🍺"},
	{"Quelle est la différence entre un développeur junior et un développeur senior?", "Le senior sait que 'ça marche sur ma machine' n'est PAS une solution! 💻"},
}

var jokesEN = []joke{
	{"Why do programmers always mix up Christmas and Halloween?", "Because Oct 31 == Dec 25! 🎃🎄"},
	{"Why do Java developers wear glasses?", "Because they can't C#! 👓"},
	{"How many programmers does it take to change a light bulb?", "None, that's a hardware problem! 💡"},
	{"A SQL query walks into a bar, walks up to two tables and asks...", "'Can I JOIN you?' 🍺"},
	{"What's a programmer's favorite hangout place?", "Foo Bar! 🍻"},
}

type quote struct {
	text, author string
}

var quotes = []quote{
	{"Le code est comme l'humour. Quand tu dois l'expliquer, c'est mauvais.", "Cory House"},
	{"Tout d'abord, résous le problème. Ensuite, écris le code.", "John Johnson"},
	{"Le meilleur message d'erreur est celui qui ne s'affiche jamais.", "Thomas Fuchs"},
	{"Apprendre à écrire des programmes étire ton esprit et t'aide à mieux penser.", "Bill Gates"},
	{"La simplicité est l'ultime sophistication.", "Leonardo da Vinci"},
	{"Le code propre lit toujours comme une prose bien écrite.", "Robert C. Martin"},
	{"Les erreurs ne sont pas des échecs, ce sont des leçons.", "Anonyme"},
	{"Chaque expert a déjà été un débutant. Continue d'apprendre!", "Anonyme"},
	{"L'expérience est le nom que chacun donne à ses erreurs.", "Oscar Wilde"},
}

// JokeResult is the payload of get_joke.
type JokeResult struct {
	Success   bool   `json:"success"`
	Joke      string `json:"joke"`
	Answer    string `json:"answer"`
	Language  string `json:"language"`
	MoodBoost string `json:"mood_boost"`
}

// QuoteResult is the payload of motivational_quote.
type QuoteResult struct {
	Success       bool   `json:"success"`
	Quote         string `json:"quote"`
	Author        string `json:"author"`
	Encouragement string `json:"encouragement"`
}

type jokeArgs struct {
	Language string `json:"language"`
}

func jokeTool(p *picker) registry.Entry {
	return registry.Entry{
		Descriptor: registry.Descriptor{
			Name:        "get_joke",
			Description: "Raconte une blague de programmation pour détendre l'atmosphère",
			InputSchema: schema.New(
				schema.Prop("language", schema.String,
					schema.Description("Langue de la blague"),
					schema.Enum("fr", "en"),
					schema.Default("fr")),
			),
		},
		Tool: registry.ToolFunc(func(_ context.Context, raw map[string]any) (any, error) {
			args := jokeArgs{Language: "fr"}
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			pool := jokesFR
			if args.Language != "fr" {
				pool = jokesEN
			}
			j := pool[p.Intn(len(pool))]
			return JokeResult{
				Success:   true,
				Joke:      j.setup,
				Answer:    j.answer,
				Language:  args.Language,
				MoodBoost: "😄 Prends une pause, tu le mérites!",
			}, nil
		}),
	}
}

func quoteTool(p *picker) registry.Entry {
	return registry.Entry{
		Descriptor: registry.Descriptor{
			Name:        "motivational_quote",
			Description: "Partage une citation motivante pour les étudiants en informatique",
			InputSchema: schema.New(),
		},
		Tool: registry.ToolFunc(func(context.Context, map[string]any) (any, error) {
			q := quotes[p.Intn(len(quotes))]
			return QuoteResult{
				Success:       true,
				Quote:         q.text,
				Author:        q.author,
				Encouragement: "Continue comme ça, tu fais du super travail! 💪",
			}, nil
		}),
	}
}
