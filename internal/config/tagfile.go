package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tturner/absim/internal/family"
	"github.com/tturner/absim/internal/tagstore"
)

// CIPTagConfig is one --tagfile entry for the CIP path, the YAML shape
// of a CIPTagSpec.
type CIPTagConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Dims []int  `yaml:"dims"`
}

// PCCCTagConfig is one --tagfile entry for the PCCC path, the YAML
// shape of a PCCCTagSpec.
type PCCCTagConfig struct {
	FileType   string `yaml:"file_type"`
	FileNumber int    `yaml:"file_number"`
	Elements   int    `yaml:"elements"`
}

// TagFile is the document --tagfile=<path> loads: an alternative to
// repeated --tag= flags for a user with many tags to declare.
type TagFile struct {
	CIPTags  []CIPTagConfig  `yaml:"cip_tags"`
	PCCCTags []PCCCTagConfig `yaml:"pccc_tags"`
}

// LoadTagFile reads and parses path, then builds every tag it declares.
func LoadTagFile(path string, fam family.Family) ([]*tagstore.Tag, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read tagfile %s: %w", path, err)
	}
	var doc TagFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: parse tagfile %s: %w", path, err)
	}

	rewriteBool := fam == family.ControlLogix
	tags := make([]*tagstore.Tag, 0, len(doc.CIPTags)+len(doc.PCCCTags))
	for _, t := range doc.CIPTags {
		dt, err := ParseCIPTypeName(t.Type)
		if err != nil {
			return nil, fmt.Errorf("config: tagfile %s: tag %q: %w", path, t.Name, err)
		}
		tag, err := tagstore.NewCIPTag(t.Name, dt, t.Dims, rewriteBool)
		if err != nil {
			return nil, fmt.Errorf("config: tagfile %s: %w", path, err)
		}
		tags = append(tags, tag)
	}
	for _, t := range doc.PCCCTags {
		dt, ok := pcccFileTypes[t.FileType]
		if !ok {
			return nil, fmt.Errorf("config: tagfile %s: unknown PCCC file type %q", path, t.FileType)
		}
		tag, err := tagstore.NewPCCCTag(t.FileNumber, dt, t.Elements)
		if err != nil {
			return nil, fmt.Errorf("config: tagfile %s: %w", path, err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}
