package eval

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/NavisaGlobal2/digitbooks-sub002/internal/extraction"
)

//go:embed fixtures/*.csv fixtures/*.json
var fixtureFS embed.FS

// Fixture bundles a statement file with its ground truth.
type Fixture struct {
	Name        string
	Data        []byte
	FileType    extraction.FileType
	GroundTruth *GroundTruth
}

// LoadFixtures loads every embedded statement that has a ground-truth file,
// ordered by name.
func LoadFixtures() ([]*Fixture, error) {
	truthFiles, err := fs.Glob(fixtureFS, "fixtures/*.json")
	if err != nil {
		return nil, err
	}
	sort.Strings(truthFiles)

	fixtures := make([]*Fixture, 0, len(truthFiles))
	for _, tf := range truthFiles {
		name := strings.TrimSuffix(path.Base(tf), ".json")
		f, err := loadFixture(name)
		if err != nil {
			return nil, fmt.Errorf("load fixture %q: %w", name, err)
		}
		fixtures = append(fixtures, f)
	}
	return fixtures, nil
}

func loadFixture(name string) (*Fixture, error) {
	jsonBytes, err := fixtureFS.ReadFile("fixtures/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("read ground truth: %w", err)
	}
	var gt GroundTruth
	if err := json.Unmarshal(jsonBytes, &gt); err != nil {
		return nil, fmt.Errorf("parse ground truth: %w", err)
	}

	// Row fixtures would collide with the ground-truth .json files.
	fileType := extraction.ParseFileType(gt.FileType)
	if fileType == extraction.FileTypeUnknown || fileType == extraction.FileTypeRows {
		return nil, fmt.Errorf("unsupported file type %q", gt.FileType)
	}
	data, err := fixtureFS.ReadFile("fixtures/" + name + "." + string(fileType))
	if err != nil {
		return nil, fmt.Errorf("read statement: %w", err)
	}

	return &Fixture{
		Name:        name,
		Data:        data,
		FileType:    fileType,
		GroundTruth: &gt,
	}, nil
}
