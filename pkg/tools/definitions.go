package tools

import (
	"encoding/json"

	"github.com/onedayrun/platform/pkg/provider"
)

// Definitions returns the tool schemas advertised to the model.
func Definitions() []provider.Tool {
	return []provider.Tool{
		functionTool("search_components",
			"Searches the library of reusable component modules",
			searchComponentsSchema),
		functionTool("generate_code",
			"Generates code for a specific module or feature",
			generateCodeSchema),
		functionTool("create_file",
			"Creates a file in the project's GitHub repository",
			createFileSchema),
		functionTool("deploy_project",
			"Deploys the project to the chosen platform",
			deployProjectSchema),
		functionTool("run_tests",
			"Runs tests for the project",
			runTestsSchema),
		functionTool("analyze_requirements",
			"Analyzes requirements and produces a project plan",
			analyzeRequirementsSchema),
	}
}

func functionTool(name, description, schema string) provider.Tool {
	return provider.Tool{
		Type: "function",
		Function: provider.FunctionDef{
			Name:        name,
			Description: description,
			Parameters:  json.RawMessage(schema),
		},
	}
}

const searchComponentsSchema = `{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "Search query"},
    "category": {"type": "string", "enum": ["auth", "database", "api", "ui", "integration", "utils"]},
    "tech_stack": {"type": "string", "description": "Technology stack"}
  },
  "required": ["query"]
}`

const generateCodeSchema = `{
  "type": "object",
  "properties": {
    "module_name": {"type": "string"},
    "description": {"type": "string"},
    "tech_stack": {"type": "string"},
    "dependencies": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["module_name", "description"]
}`

const createFileSchema = `{
  "type": "object",
  "properties": {
    "path": {"type": "string"},
    "content": {"type": "string"},
    "commit_message": {"type": "string"}
  },
  "required": ["path", "content"]
}`

const deployProjectSchema = `{
  "type": "object",
  "properties": {
    "platform": {"type": "string", "enum": ["railway", "vercel", "render"]},
    "config": {"type": "object"}
  },
  "required": ["platform"]
}`

const runTestsSchema = `{
  "type": "object",
  "properties": {
    "test_type": {"type": "string", "enum": ["unit", "integration", "e2e"]},
    "files": {"type": "array", "items": {"type": "string"}}
  }
}`

const analyzeRequirementsSchema = `{
  "type": "object",
  "properties": {
    "requirements_text": {"type": "string"},
    "budget_tier": {"type": "string"}
  },
  "required": ["requirements_text"]
}`
