package api

import "regexp"

// PricingTier describes one delivery package: its price and the token
// and file budgets granted to the project.
type PricingTier struct {
	Name      string `json:"name"`
	PricePLN  int    `json:"price_pln"`
	MaxTokens int    `json:"max_tokens"`
	MaxFiles  int    `json:"max_files"`
}

// PricingTiers maps tier names to their budgets. Tier names double as
// the delivery window (1h through 72h).
var PricingTiers = map[string]PricingTier{
	"1h":  {Name: "1h", PricePLN: 150, MaxTokens: 50000, MaxFiles: 5},
	"8h":  {Name: "8h", PricePLN: 1200, MaxTokens: 400000, MaxFiles: 20},
	"24h": {Name: "24h", PricePLN: 3000, MaxTokens: 1200000, MaxFiles: 50},
	"36h": {Name: "36h", PricePLN: 3600, MaxTokens: 1800000, MaxFiles: 75},
	"48h": {Name: "48h", PricePLN: 4800, MaxTokens: 2400000, MaxFiles: 100},
	"72h": {Name: "72h", PricePLN: 7200, MaxTokens: 3600000, MaxFiles: 150},
}

// TierOrder lists tier names from shortest to longest delivery window.
var TierOrder = []string{"1h", "8h", "24h", "36h", "48h", "72h"}

var tierPattern = regexp.MustCompile(`^(1h|8h|24h|36h|48h|72h)$`)

// ValidTier reports whether name is a known pricing tier.
func ValidTier(name string) bool {
	return tierPattern.MatchString(name)
}

// TechStack describes one supported technology stack.
type TechStack struct {
	Name       string   `json:"name"`
	Languages  []string `json:"languages"`
	Frameworks []string `json:"frameworks"`
	Deployment []string `json:"deployment"`
}

// TechStacks maps stack identifiers to their descriptions.
var TechStacks = map[string]TechStack{
	"python_fastapi": {
		Name:       "Python + FastAPI",
		Languages:  []string{"python"},
		Frameworks: []string{"fastapi", "sqlalchemy", "pydantic"},
		Deployment: []string{"railway", "render"},
	},
	"python_django": {
		Name:       "Python + Django",
		Languages:  []string{"python"},
		Frameworks: []string{"django", "drf"},
		Deployment: []string{"railway", "render"},
	},
	"node_express": {
		Name:       "Node.js + Express",
		Languages:  []string{"javascript", "typescript"},
		Frameworks: []string{"express", "prisma"},
		Deployment: []string{"railway", "vercel"},
	},
	"react_next": {
		Name:       "React + Next.js",
		Languages:  []string{"javascript", "typescript"},
		Frameworks: []string{"react", "nextjs", "tailwind"},
		Deployment: []string{"vercel"},
	},
	"vue_nuxt": {
		Name:       "Vue + Nuxt",
		Languages:  []string{"javascript", "typescript"},
		Frameworks: []string{"vue", "nuxt"},
		Deployment: []string{"vercel", "render"},
	},
}

// ProjectTypes lists the project categories offered by the platform.
var ProjectTypes = []string{
	"web_app",
	"api",
	"dashboard",
	"automation",
	"integration",
	"landing_page",
	"e_commerce",
	"mobile_pwa",
}
