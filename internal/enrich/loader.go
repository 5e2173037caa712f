package enrich

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadGMT loads pathways from an MSigDB GMT file. Each line is
// name<TAB>description<TAB>gene1<TAB>gene2...
// A non-positive totalGenes uses the union of all pathway genes as the background.
func LoadGMT(path string, totalGenes int) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gmt file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var pathways []Pathway
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			return nil, fmt.Errorf("gmt line %d: expected name and description columns", lineNumber)
		}
		name := strings.TrimSpace(fields[0])
		if name == "" {
			return nil, fmt.Errorf("gmt line %d: empty pathway name", lineNumber)
		}

		genes := make([]string, 0, len(fields)-2)
		for _, g := range fields[2:] {
			if g = strings.TrimSpace(g); g != "" {
				genes = append(genes, g)
			}
		}
		pathways = append(pathways, NewPathway(name, strings.TrimSpace(fields[1]), genes))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading gmt file: %w", err)
	}

	return NewDatabase(pathways, totalGenes), nil
}

// yamlDatabase is the on-disk layout of a YAML pathway database.
type yamlDatabase struct {
	TotalGenes int `yaml:"total_genes"`
	Pathways   []struct {
		Name        string   `yaml:"name"`
		Description string   `yaml:"description"`
		Genes       []string `yaml:"genes"`
	} `yaml:"pathways"`
}

// LoadYAML loads a pathway database from YAML:
//
//	total_genes: 20000
//	pathways:
//	  - name: P1
//	    genes: [B, C, D, E]
//
// A missing or zero total_genes uses the union of all pathway genes.
func LoadYAML(path string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pathway database: %w", err)
	}

	var raw yamlDatabase
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse pathway database: %w", err)
	}

	pathways := make([]Pathway, 0, len(raw.Pathways))
	for i, p := range raw.Pathways {
		if p.Name == "" {
			return nil, fmt.Errorf("pathway database: entry %d has no name", i+1)
		}
		pathways = append(pathways, NewPathway(p.Name, p.Description, p.Genes))
	}

	return NewDatabase(pathways, raw.TotalGenes), nil
}

// Load picks the pathway database format from the file extension.
// An explicit totalGenes > 0 overrides the background size stored in the file.
func Load(path string, totalGenes int) (*Database, error) {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		db, err := LoadYAML(path)
		if err != nil {
			return nil, err
		}
		if totalGenes > 0 {
			db.TotalGenes = totalGenes
		}
		return db, nil
	}
	return LoadGMT(path, totalGenes)
}

// ReadGeneList reads gene identifiers, one per line. Blank lines and
// lines starting with # are skipped; only the first whitespace-separated
// token of each line is used.
func ReadGeneList(path string) ([]string, error) {
	var f *os.File
	if path == "-" {
		f = os.Stdin
	} else {
		var err error
		if f, err = os.Open(path); err != nil {
			return nil, fmt.Errorf("open gene list: %w", err)
		}
		defer f.Close()
	}

	var genes []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		genes = append(genes, strings.Fields(line)[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading gene list: %w", err)
	}
	return genes, nil
}
