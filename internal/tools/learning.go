package tools

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"chat-help-mcp/internal/registry"
	"chat-help-mcp/internal/schema"
)

type concept struct {
	key    string
	levels map[string]string
}

// concepts is matched in order, so more specific keys come first.
var concepts = []concept{
	{"récursivité", map[string]string{
		"debutant":      "Une fonction qui s'appelle elle-même. Comme des poupées russes!",
		"intermediaire": "Une technique où une fonction résout un problème en se rappelant elle-même avec des paramètres différents, jusqu'à atteindre un cas de base.",
		"avance":        "Paradigme algorithmique utilisant la pile d'appels pour résoudre des problèmes divisibles en sous-problèmes similaires. Complexité spatiale O(n) due à la pile.",
	}},
	{"pointeurs", map[string]string{
		"debutant":      "Une variable qui contient l'adresse mémoire d'une autre variable.",
		"intermediaire": "Référence à un emplacement mémoire permettant l'accès indirect aux données et la manipulation de structures dynamiques.",
		"avance":        "Abstraction du modèle mémoire permettant l'arithmétique de pointeurs, l'allocation dynamique et l'implémentation de structures de données complexes.",
	}},
	{"héritage", map[string]string{
		"debutant":      "Une classe enfant reçoit les attributs et méthodes de sa classe parent.",
		"intermediaire": "Mécanisme de réutilisation où une sous-classe spécialise une classe de base en ajoutant ou redéfinissant des comportements.",
		"avance":        "Relation « est-un » entre types. À utiliser avec parcimonie: la composition évite le couplage fort et les hiérarchies fragiles.",
	}},
	{"polymorphisme", map[string]string{
		"debutant":      "Un même appel de méthode peut faire des choses différentes selon l'objet.",
		"intermediaire": "Capacité de manipuler des objets de types différents à travers une interface commune; la méthode exécutée dépend du type réel.",
		"avance":        "Répartition dynamique (liaison tardive) via tables virtuelles, à distinguer du polymorphisme paramétrique (génériques) et ad hoc (surcharge).",
	}},
	{"classes", map[string]string{
		"debutant":      "Un plan qui décrit comment construire des objets: leurs données et leurs actions.",
		"intermediaire": "Type défini par l'utilisateur qui regroupe un état (attributs) et un comportement (méthodes), instancié en objets.",
		"avance":        "Unité d'encapsulation qui définit invariants, visibilité et cycle de vie des instances, base des patrons de conception orientés objet.",
	}},
	{"tcp/ip", map[string]string{
		"debutant":      "L'ensemble des règles qui permettent aux ordinateurs de communiquer sur Internet.",
		"intermediaire": "Pile de protocoles: IP achemine les paquets entre machines, TCP garantit une livraison fiable et ordonnée entre applications.",
		"avance":        "Modèle en couches (liaison, internet, transport, application); TCP assure contrôle de flux, de congestion et retransmission par fenêtre glissante.",
	}},
}

type explainArgs struct {
	Concept string `json:"concept"`
	Level   string `json:"level"`
}

// ExplainResult is the payload of explain_concept when the concept is known.
type ExplainResult struct {
	Success     bool   `json:"success"`
	Concept     string `json:"concept"`
	Level       string `json:"level"`
	Explanation string `json:"explanation"`
	Suggestion  string `json:"suggestion"`
}

// ExplainFallback is the payload of explain_concept for concepts outside the knowledge base.
type ExplainFallback struct {
	Success     bool     `json:"success"`
	Concept     string   `json:"concept"`
	Level       string   `json:"level"`
	Explanation string   `json:"explanation"`
	Suggestions []string `json:"suggestions"`
	Note        string   `json:"note"`
}

func explainConceptTool() registry.Entry {
	return registry.Entry{
		Descriptor: registry.Descriptor{
			Name:        "explain_concept",
			Description: "Explique un concept informatique de manière pédagogique",
			InputSchema: schema.New(
				schema.Prop("concept", schema.String, schema.Required(),
					schema.Description("Le concept à expliquer")),
				schema.Prop("level", schema.String,
					schema.Description("Niveau de l'explication"),
					schema.Enum("debutant", "intermediaire", "avance"),
					schema.Default("intermediaire")),
			),
		},
		Tool: registry.ToolFunc(func(_ context.Context, raw map[string]any) (any, error) {
			args := explainArgs{Level: "intermediaire"}
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return explainConcept(args), nil
		}),
	}
}

func explainConcept(args explainArgs) any {
	needle := strings.ToLower(strings.TrimSpace(args.Concept))
	if needle != "" {
		for _, c := range concepts {
			if !strings.Contains(needle, c.key) && !strings.Contains(c.key, needle) {
				continue
			}
			text, ok := c.levels[args.Level]
			if !ok {
				text = c.levels["intermediaire"]
			}
			return ExplainResult{
				Success:     true,
				Concept:     args.Concept,
				Level:       args.Level,
				Explanation: text,
				Suggestion:  "💡 Pour approfondir, consultez le wiki ou demandez des exemples de code!",
			}
		}
	}
	return ExplainFallback{
		Success:     true,
		Concept:     args.Concept,
		Level:       args.Level,
		Explanation: "Le concept '" + args.Concept + "' nécessite une recherche plus approfondie.",
		Suggestions: []string{
			"Recherchez ce concept dans le wiki",
			"Consultez la documentation officielle",
			"Demandez des exemples de code spécifiques",
		},
		Note: "💡 Je peux mieux expliquer: récursivité, pointeurs, classes, héritage, polymorphisme, TCP/IP, etc.",
	}
}

var (
	pythonUpperDef = regexp.MustCompile(`\bdef [A-Z]`)
	javaClassDecl  = regexp.MustCompile(`public class \w+`)
)

type analyzeArgs struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// AnalysisResult is the payload of analyze_code.
type AnalysisResult struct {
	Success       bool     `json:"success"`
	Language      string   `json:"language"`
	CodeLength    int      `json:"code_length"`
	Lines         int      `json:"lines"`
	Issues        []string `json:"issues"`
	Suggestions   []string `json:"suggestions"`
	GoodPractices []string `json:"good_practices"`
	QualityScore  string   `json:"quality_score"`
}

func analyzeCodeTool() registry.Entry {
	return registry.Entry{
		Descriptor: registry.Descriptor{
			Name:        "analyze_code",
			Description: "Analyse du code et propose des améliorations",
			InputSchema: schema.New(
				schema.Prop("code", schema.String, schema.Required(),
					schema.Description("Le code à analyser")),
				schema.Prop("language", schema.String, schema.Required(),
					schema.Description("Langage de programmation (python, java, javascript, ...)")),
			),
		},
		Tool: registry.ToolFunc(func(_ context.Context, raw map[string]any) (any, error) {
			var args analyzeArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return analyzeCode(args), nil
		}),
	}
}

func analyzeCode(args analyzeArgs) AnalysisResult {
	res := AnalysisResult{
		Success:       true,
		Language:      args.Language,
		CodeLength:    utf8.RuneCountInString(args.Code),
		Lines:         strings.Count(args.Code, "\n") + 1,
		Issues:        []string{},
		Suggestions:   []string{},
		GoodPractices: []string{},
	}

	switch strings.ToLower(args.Language) {
	case "python":
		if strings.Contains(args.Code, "\t") {
			res.Issues = append(res.Issues, "⚠️ Utilisation de tabulations détectée. PEP 8 recommande 4 espaces.")
		}
		if pythonUpperDef.MatchString(args.Code) {
			res.Issues = append(res.Issues, "⚠️ Les fonctions Python devraient utiliser snake_case (minuscules avec underscores).")
		}
		if strings.Contains(args.Code, "def ") && !strings.Contains(args.Code, `"""`) && !strings.Contains(args.Code, "'''") {
			res.Suggestions = append(res.Suggestions, "💡 Ajoutez des docstrings à vos fonctions pour une meilleure documentation.")
		}
		res.GoodPractices = append(res.GoodPractices,
			"Utilisez des noms de variables descriptifs",
			"Limitez la longueur des fonctions (max 20-30 lignes)",
			"Utilisez les list comprehensions pour plus de concision",
		)
	case "java":
		if !javaClassDecl.MatchString(args.Code) {
			res.Issues = append(res.Issues, "⚠️ Assurez-vous que votre classe est correctement déclarée.")
		}
		res.GoodPractices = append(res.GoodPractices,
			"Suivez la convention CamelCase pour les classes",
			"Utilisez camelCase pour les méthodes et variables",
			"Commentez les méthodes publiques avec JavaDoc",
		)
	case "javascript":
		if strings.Contains(args.Code, "var ") {
			res.Suggestions = append(res.Suggestions, "💡 Préférez 'let' ou 'const' à 'var' pour une meilleure portée des variables.")
		}
		res.GoodPractices = append(res.GoodPractices,
			"Utilisez 'const' par défaut, 'let' si nécessaire",
			"Utilisez les fonctions fléchées pour plus de concision",
			"Activez le mode strict avec 'use strict'",
		)
	}

	switch n := len(res.Issues); {
	case n == 0:
		res.QualityScore = "✅ Excellent"
	case n <= 2:
		res.QualityScore = "👍 Bon"
	default:
		res.QualityScore = "⚠️ Nécessite des améliorations"
	}
	return res
}

type errorKind struct {
	label     string
	markers   []string
	solutions []string
}

var errorKinds = []errorKind{
	{"Erreur de syntaxe", []string{"syntaxerror", "syntax error"}, []string{
		"Vérifiez les parenthèses, crochets et accolades (doivent être bien fermés)",
		"Vérifiez les guillemets (simples ou doubles bien fermés)",
		"Vérifiez l'indentation (particulièrement en Python)",
		"Recherchez les virgules manquantes dans les listes ou paramètres",
	}},
	{"Erreur d'indentation", []string{"indentation"}, []string{
		"Utilisez des espaces de manière cohérente (4 espaces recommandés en Python)",
		"Ne mélangez pas tabulations et espaces",
		"Vérifiez que tous les blocs sont correctement indentés",
		"Utilisez un éditeur qui affiche les caractères invisibles",
	}},
	{"Variable non définie", []string{"nameerror", "not defined"}, []string{
		"Vérifiez l'orthographe de la variable",
		"Assurez-vous que la variable est définie avant son utilisation",
		"Vérifiez la portée (scope) de la variable",
		"Importez le module si c'est une fonction externe",
	}},
	{"Erreur de type", []string{"typeerror"}, []string{
		"Vérifiez les types des variables utilisées",
		"Convertissez les types si nécessaire (int(), str(), float())",
		"Vérifiez le nombre de paramètres passés à une fonction",
		"Assurez-vous que l'objet supporte l'opération demandée",
	}},
	{"Index hors limites", []string{"indexerror", "out of range"}, []string{
		"Vérifiez que l'index est dans les limites de la liste (0 à len(liste)-1)",
		"Vérifiez que la liste n'est pas vide avant d'y accéder",
		"Utilisez len() pour connaître la taille de la liste",
		"Utilisez des boucles avec range(len(liste)) pour éviter les débordements",
	}},
	{"Clé inexistante", []string{"keyerror"}, []string{
		"Vérifiez que la clé existe dans le dictionnaire",
		"Utilisez .get() avec une valeur par défaut: dict.get('cle', 'defaut')",
		"Vérifiez l'orthographe de la clé",
		"Utilisez 'if cle in dict:' pour vérifier l'existence",
	}},
	{"Attribut inexistant", []string{"attributeerror"}, []string{
		"Vérifiez que l'objet possède cet attribut/méthode",
		"Vérifiez l'orthographe de l'attribut",
		"Assurez-vous que l'objet est du bon type",
		"Consultez la documentation de la classe",
	}},
	{"Module introuvable", []string{"importerror", "modulenotfounderror"}, []string{
		"Installez le module avec: pip install nom_module",
		"Vérifiez l'orthographe du nom du module",
		"Assurez-vous d'être dans le bon environnement virtuel",
		"Vérifiez que le fichier existe si c'est un module local",
	}},
}

var genericSolutions = []string{
	"Lisez attentivement le message d'erreur complet",
	"Recherchez le message d'erreur sur Google ou Stack Overflow",
	"Consultez la documentation officielle",
	"Testez avec des print() pour déboguer étape par étape",
	"Utilisez un débogueur (debugger) pour examiner l'état du programme",
}

type debugArgs struct {
	ErrorMessage string `json:"error_message"`
	Context      string `json:"context"`
}

// DebugResult is the payload of debug_helper.
type DebugResult struct {
	Success       bool     `json:"success"`
	ErrorType     string   `json:"error_type"`
	OriginalError string   `json:"original_error"`
	Context       string   `json:"context"`
	Solutions     []string `json:"solutions"`
	Tips          []string `json:"tips"`
}

func debugHelperTool() registry.Entry {
	return registry.Entry{
		Descriptor: registry.Descriptor{
			Name:        "debug_helper",
			Description: "Aide à comprendre et corriger un message d'erreur",
			InputSchema: schema.New(
				schema.Prop("error_message", schema.String, schema.Required(),
					schema.Description("Le message d'erreur complet")),
				schema.Prop("context", schema.String,
					schema.Description("Contexte: ce que le code essayait de faire")),
			),
		},
		Tool: registry.ToolFunc(func(_ context.Context, raw map[string]any) (any, error) {
			var args debugArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return debugHelper(args), nil
		}),
	}
}

func debugHelper(args debugArgs) DebugResult {
	lower := strings.ToLower(args.ErrorMessage)
	errorType, solutions := "Erreur générale", genericSolutions
kinds:
	for _, k := range errorKinds {
		for _, m := range k.markers {
			if strings.Contains(lower, m) {
				errorType, solutions = k.label, k.solutions
				break kinds
			}
		}
	}

	ctx := args.Context
	if ctx == "" {
		ctx = "Aucun contexte fourni"
	}
	return DebugResult{
		Success:       true,
		ErrorType:     errorType,
		OriginalError: args.ErrorMessage,
		Context:       ctx,
		Solutions:     solutions,
		Tips: []string{
			"🔍 Lisez toujours l'erreur de bas en haut (la dernière ligne est souvent la plus importante)",
			"💡 Le numéro de ligne indiqué pointe souvent vers l'erreur ou juste après",
			"📚 Consultez le wiki pour des exemples de résolution d'erreurs courantes",
		},
	}
}
