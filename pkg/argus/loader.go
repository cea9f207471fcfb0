package argus

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadSignatures reads a signature list from a YAML file. The file is either
// a plain list of strings or a document with a top-level "signatures" key.
func LoadSignatures(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var list []string
	if err := yaml.Unmarshal(data, &list); err == nil && len(list) > 0 {
		return list, nil
	}

	var doc struct {
		Signatures []string `yaml:"signatures"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse signature file: %w", err)
	}
	if len(doc.Signatures) == 0 {
		return nil, fmt.Errorf("signature file %s contains no signatures", path)
	}
	return doc.Signatures, nil
}
