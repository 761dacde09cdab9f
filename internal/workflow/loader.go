package workflow

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// RoleTemplate describes one positional role in the pipeline. The body of
// the template file becomes the step objective.
type RoleTemplate struct {
	// ID is derived from the filename (e.g., "opening" from "opening.md").
	ID string

	// Name is the human-readable display name from frontmatter.
	Name string

	// Description is a brief description from frontmatter.
	Description string

	// Position declares where in the pipeline this role applies:
	// "opening", "development", "synthesis", "solo", or "generic".
	Position string

	// Objective is the markdown body, used verbatim as the step objective.
	// The generic template may contain a single %d verb for the step number.
	Objective string
}

// frontmatter represents the YAML frontmatter in a role template.
type frontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Position    string `yaml:"position"`
}

// frontmatterDelimiter is the standard YAML frontmatter delimiter.
const frontmatterDelimiter = "---"

var (
	templatesOnce sync.Once
	templatesByID map[string]RoleTemplate
)

// LoadRoleTemplates loads all built-in role templates from the embedded
// filesystem, keyed by position. Files with invalid frontmatter are skipped.
func LoadRoleTemplates() (map[string]RoleTemplate, error) {
	return loadTemplatesFromFS(builtinTemplates, "templates")
}

func loadTemplatesFromFS(fsys fs.FS, dir string) (map[string]RoleTemplate, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading template directory: %w", err)
	}

	templates := make(map[string]RoleTemplate)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		// path.Join, not filepath.Join: embedded filesystems always use forward slashes
		fsPath := path.Join(dir, entry.Name())
		content, err := fs.ReadFile(fsys, fsPath)
		if err != nil {
			return nil, fmt.Errorf("reading template file %s: %w", fsPath, err)
		}

		tpl, err := parseRoleTemplate(string(content), entry.Name())
		if err != nil {
			// Skip templates with invalid frontmatter
			continue
		}

		templates[tpl.Position] = tpl
	}

	return templates, nil
}

// parseRoleTemplate parses a role template from its content and filename.
func parseRoleTemplate(content, filename string) (RoleTemplate, error) {
	fm, body, err := parseFrontmatter(content)
	if err != nil {
		return RoleTemplate{}, fmt.Errorf("parsing frontmatter: %w", err)
	}
	if fm.Position == "" {
		return RoleTemplate{}, fmt.Errorf("template %s has no position", filename)
	}

	return RoleTemplate{
		ID:          strings.TrimSuffix(filename, ".md"),
		Name:        fm.Name,
		Description: fm.Description,
		Position:    fm.Position,
		Objective:   strings.TrimSpace(body),
	}, nil
}

// parseFrontmatter extracts YAML frontmatter from markdown content and
// returns it with the remaining body. Frontmatter must start the file and
// be delimited by "---".
func parseFrontmatter(content string) (frontmatter, string, error) {
	var fm frontmatter

	if !strings.HasPrefix(content, frontmatterDelimiter) {
		return fm, "", fmt.Errorf("content does not start with frontmatter delimiter")
	}

	rest := content[len(frontmatterDelimiter):]
	yamlContent, body, found := strings.Cut(rest, "\n"+frontmatterDelimiter)
	if !found {
		return fm, "", fmt.Errorf("no closing frontmatter delimiter found")
	}

	if err := yaml.Unmarshal([]byte(yamlContent), &fm); err != nil {
		return fm, "", fmt.Errorf("unmarshaling frontmatter: %w", err)
	}

	// Drop the newline that trails the closing delimiter
	body = strings.TrimPrefix(body, "\n")
	return fm, body, nil
}

// roleTemplates returns the built-in templates, loading them once.
// A load failure falls back to the compiled-in objectives so planning
// never fails on template problems.
func roleTemplates() map[string]RoleTemplate {
	templatesOnce.Do(func() {
		loaded, err := LoadRoleTemplates()
		if err != nil || len(loaded) == 0 {
			loaded = fallbackTemplates()
		}
		// Patch any missing position with its fallback
		for pos, tpl := range fallbackTemplates() {
			if _, ok := loaded[pos]; !ok {
				loaded[pos] = tpl
			}
		}
		templatesByID = loaded
	})
	return templatesByID
}

func fallbackTemplates() map[string]RoleTemplate {
	return map[string]RoleTemplate{
		PositionOpening: {
			ID: PositionOpening, Position: PositionOpening,
			Objective: "Initial analysis: decompose the request, identify requirements and constraints, and outline an approach for the agents that follow.",
		},
		PositionDevelopment: {
			ID: PositionDevelopment, Position: PositionDevelopment,
			Objective: "Development: build on the prior steps, refining and extending the accumulated work with your own contribution.",
		},
		PositionSynthesis: {
			ID: PositionSynthesis, Position: PositionSynthesis,
			Objective: "Final synthesis: integrate all prior contributions into the finished deliverable.",
		},
		PositionSolo: {
			ID: PositionSolo, Position: PositionSolo,
			Objective: "Produce the complete, finished response to the request. There are no later steps: deliver a complete work product, not a partial draft or an outline.",
		},
		PositionGeneric: {
			ID: PositionGeneric, Position: PositionGeneric,
			Objective: "Specialized contribution, step %d: apply your expertise to advance the accumulated work.",
		},
	}
}
