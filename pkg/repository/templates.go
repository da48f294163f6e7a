package repository

// stackTemplates maps a tech stack to the template repository name inside
// the organization.
var stackTemplates = map[string]string{
	"python_fastapi": "template-fastapi",
	"python_django":  "template-django",
	"node_express":   "template-express",
	"react_next":     "template-nextjs",
	"vue_nuxt":       "template-nuxt",
}

// basicStructure returns the starter files for a tech stack, used when no
// template repository is available. Unknown stacks get no files; the repo
// then only carries its auto-generated README.
func basicStructure(techStack string) []FileChange {
	switch techStack {
	case "python_fastapi":
		return []FileChange{
			{Path: "src/__init__.py", Content: ""},
			{Path: "src/main.py", Content: fastapiMain},
			{Path: "requirements.txt", Content: fastapiRequirements},
			{Path: "Dockerfile", Content: pythonDockerfile},
			{Path: ".gitignore", Content: pythonGitignore},
		}
	case "python_django":
		return []FileChange{
			{Path: ".gitignore", Content: pythonGitignore},
			{Path: "requirements.txt", Content: djangoRequirements},
		}
	case "node_express":
		return []FileChange{
			{Path: "src/index.js", Content: expressMain},
			{Path: "package.json", Content: expressPackageJSON},
			{Path: ".gitignore", Content: nodeGitignore},
		}
	default:
		return nil
	}
}

const fastapiMain = `"""FastAPI Application"""
from fastapi import FastAPI
from fastapi.middleware.cors import CORSMiddleware

app = FastAPI(
    title="OneDay Project",
    description="Generated by OneDay.run Platform",
    version="1.0.0"
)

app.add_middleware(
    CORSMiddleware,
    allow_origins=["*"],
    allow_credentials=True,
    allow_methods=["*"],
    allow_headers=["*"],
)

@app.get("/")
async def root():
    return {"message": "Welcome to OneDay Project", "status": "running"}

@app.get("/health")
async def health():
    return {"status": "healthy"}
`

const fastapiRequirements = "fastapi>=0.100.0\nuvicorn[standard]>=0.23.0\npydantic>=2.0.0\npython-dotenv>=1.0.0"

const djangoRequirements = "django>=4.2\ngunicorn>=21.0\npsycopg2-binary>=2.9\npython-dotenv>=1.0.0"

const pythonDockerfile = `FROM python:3.11-slim

WORKDIR /app

COPY requirements.txt .
RUN pip install --no-cache-dir -r requirements.txt

COPY . .

EXPOSE 8000

CMD ["uvicorn", "src.main:app", "--host", "0.0.0.0", "--port", "8000"]
`

const pythonGitignore = "__pycache__/\n*.py[cod]\n*$py.class\n.env\n.venv/\nvenv/\n*.egg-info/\ndist/\nbuild/\n.pytest_cache/\n.mypy_cache/"

const nodeGitignore = "node_modules/\n.env\ndist/\nbuild/\n*.log\n.DS_Store"

const expressMain = `const express = require('express');
const app = express();
const PORT = process.env.PORT || 3000;

app.use(express.json());

app.get('/', (req, res) => {
  res.json({ message: 'Welcome to OneDay Project', status: 'running' });
});

app.get('/health', (req, res) => {
  res.json({ status: 'healthy' });
});

app.listen(PORT, () => {
  console.log(` + "`Server running on port ${PORT}`" + `);
});
`

const expressPackageJSON = `{
  "name": "oneday-project",
  "version": "1.0.0",
  "description": "Generated by OneDay.run Platform",
  "main": "src/index.js",
  "scripts": {
    "start": "node src/index.js",
    "dev": "nodemon src/index.js"
  },
  "dependencies": {
    "express": "^4.18.2",
    "dotenv": "^16.3.1"
  },
  "devDependencies": {
    "nodemon": "^3.0.1"
  }
}
`
