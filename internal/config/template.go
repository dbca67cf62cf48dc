package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tturner/absim/internal/family"
	"github.com/tturner/absim/internal/logging"
	"github.com/tturner/absim/internal/tagstore"
)

// Template is the fully-resolved "template connection" the CLI layer
// hands to the core: a
// PLC family, its expected Forward Open EPATH, and the tag set every
// accepted connection shares.
type Template struct {
	Family        family.Family
	ExpectedEPATH []byte
	Port          int
	DebugLevel    logging.LogLevel
	RejectFOCount int
	Delay         time.Duration
	Tags          []*tagstore.Tag
}

// Flags is the raw, unvalidated CLI surface, before
// --plc/--path/--tag parsing is resolved into a Template.
type Flags struct {
	PLC      string
	Path     string
	Port     int
	Debug    int
	RejectFO int
	DelayMs  int
	Tags     []string
	TagFile  string
}

// BuildTemplate validates and resolves f into a Template. Tags supplied
// via f.TagFile are appended after f.Tags, matching the order a user
// would expect repeated --tag flags and a --tagfile to combine.
func BuildTemplate(f Flags) (Template, error) {
	fam, err := family.Parse(f.PLC)
	if err != nil {
		return Template{}, err
	}

	var pathBytes []byte
	if f.Path != "" {
		pathBytes, err = parsePathComponents(f.Path)
		if err != nil {
			return Template{}, err
		}
	}
	expectedEPATH, err := family.ExpectedEPATH(fam, pathBytes)
	if err != nil {
		return Template{}, err
	}

	if f.Debug < 0 || f.Debug > 4 {
		return Template{}, fmt.Errorf("config: --debug must be 0-4, got %d", f.Debug)
	}
	if f.RejectFO < 0 {
		return Template{}, fmt.Errorf("config: --reject_fo must be >= 0, got %d", f.RejectFO)
	}
	if f.DelayMs < 0 {
		return Template{}, fmt.Errorf("config: --delay must be >= 0, got %d", f.DelayMs)
	}

	tags, err := buildTags(f.Tags, fam)
	if err != nil {
		return Template{}, err
	}
	if f.TagFile != "" {
		fileTags, err := LoadTagFile(f.TagFile, fam)
		if err != nil {
			return Template{}, err
		}
		tags = append(tags, fileTags...)
	}
	if len(tags) == 0 {
		return Template{}, fmt.Errorf("config: at least one --tag or --tagfile entry is required")
	}

	return Template{
		Family:        fam,
		ExpectedEPATH: expectedEPATH,
		Port:          f.Port,
		DebugLevel:    logging.LogLevel(f.Debug),
		RejectFOCount: f.RejectFO,
		Delay:         time.Duration(f.DelayMs) * time.Millisecond,
		Tags:          tags,
	}, nil
}

func buildTags(specs []string, fam family.Family) ([]*tagstore.Tag, error) {
	rewriteBool := fam == family.ControlLogix
	tags := make([]*tagstore.Tag, 0, len(specs))
	for _, spec := range specs {
		cipSpec, pcccSpec, err := ParseTagSpec(spec)
		if err != nil {
			return nil, err
		}
		var tag *tagstore.Tag
		if cipSpec != nil {
			tag, err = BuildCIPTag(cipSpec, rewriteBool)
		} else {
			tag, err = BuildPCCCTag(pcccSpec)
		}
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// parsePathComponents parses a "--path=a,b" value into its raw bytes.
func parsePathComponents(path string) ([]byte, error) {
	parts := strings.Split(path, ",")
	out := make([]byte, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("config: --path component %q must be a byte 0-255: %w", p, err)
		}
		out = append(out, byte(n))
	}
	return out, nil
}
