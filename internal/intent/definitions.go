// Package intent recognizes what a user is asking for by comparing the query
// embedding against averaged embeddings of example phrases. No LLM call is
// involved; matching is a cosine-similarity lookup over a handful of
// centroids and runs in microseconds.
package intent

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Definition describes one recognizable intent: a name, the tool the chat
// orchestrator should invoke for it, and example phrasings whose averaged
// embedding forms the match centroid. Prompt, when set, is a template for
// the model prompt used to answer the matched query; %s is replaced with
// the user's message.
type Definition struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Tool        string   `yaml:"tool,omitempty"`
	Prompt      string   `yaml:"prompt,omitempty"`
	Examples    []string `yaml:"examples"`
}

type definitionsFile struct {
	Intents []Definition `yaml:"intents"`
}

// LoadDefinitions parses intent definitions from YAML.
func LoadDefinitions(r io.Reader) ([]Definition, error) {
	var file definitionsFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing intent definitions: %w", err)
	}

	for i, d := range file.Intents {
		if d.Name == "" {
			return nil, fmt.Errorf("intent %d: missing name", i)
		}
		if len(d.Examples) == 0 {
			return nil, fmt.Errorf("intent %q: no example phrases", d.Name)
		}
	}
	return file.Intents, nil
}

// LoadDefinitionsFile reads intent definitions from a YAML file. An empty
// path returns the built-in defaults.
func LoadDefinitionsFile(path string) ([]Definition, error) {
	if path == "" {
		return DefaultDefinitions()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening intent definitions: %w", err)
	}
	defer f.Close()

	defs, err := LoadDefinitions(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// DefaultDefinitions returns the built-in intent set.
func DefaultDefinitions() ([]Definition, error) {
	var file definitionsFile
	if err := yaml.Unmarshal(defaultsYAML, &file); err != nil {
		return nil, fmt.Errorf("parsing built-in intent definitions: %w", err)
	}
	return file.Intents, nil
}
