package nlu

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	nluerrors "github.com/storewaladotcom/snips-nlu/internal/common/errors"
	"github.com/storewaladotcom/snips-nlu/internal/entityparser"
)

// descriptorFile is the top-level descriptor of a persisted engine.
const descriptorFile = "nlu_engine.json"

// engineModel is the descriptor schema. An unfit engine persists all model
// fields null and an empty parser list.
type engineModel struct {
	UnitName               string           `json:"unit_name"`
	DatasetMetadata        *DatasetMetadata `json:"dataset_metadata"`
	Config                 json.RawMessage  `json:"config"`
	IntentParsers          []string         `json:"intent_parsers"`
	BuiltinEntityParser    *string          `json:"builtin_entity_parser"`
	CustomEntityParser     *string          `json:"custom_entity_parser"`
	ModelVersion           string           `json:"model_version"`
	TrainingPackageVersion string           `json:"training_package_version"`
}

// uniquifyNames maps the ordered unit names onto unique directory names:
// the first occurrence keeps its name, subsequent duplicates get an
// incrementing _2, _3, ... suffix.
func uniquifyNames(names []string) []string {
	counts := map[string]int{}
	unique := make([]string, len(names))
	for i, name := range names {
		counts[name]++
		if counts[name] == 1 {
			unique[i] = name
		} else {
			unique[i] = fmt.Sprintf("%s_%d", name, counts[name])
		}
	}
	return unique
}

// Persist writes the engine under dir: the top-level descriptor plus one
// subdirectory per intent parser and per entity parsing unit. The directory
// must not already exist; a partially written tree is detected on load by
// its missing files.
func (e *Engine) Persist(dir string) error {
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nluerrors.NewPersistingError(err)
	}

	model := engineModel{
		UnitName:               EngineUnitName,
		IntentParsers:          []string{},
		ModelVersion:           ModelVersion,
		TrainingPackageVersion: TrainingPackageVersion,
	}

	if e.Fitted() {
		names := make([]string, len(e.intentParsers))
		for i, parser := range e.intentParsers {
			names[i] = parser.Name()
		}
		dirNames := uniquifyNames(names)
		for i, parser := range e.intentParsers {
			if err := parser.Persist(filepath.Join(dir, dirNames[i])); err != nil {
				return err
			}
		}
		model.IntentParsers = dirNames

		builtinDir := entityparser.BuiltinUnitName
		if err := e.builtinEntityParser.Persist(filepath.Join(dir, builtinDir)); err != nil {
			return err
		}
		model.BuiltinEntityParser = &builtinDir

		customDir := entityparser.CustomUnitName
		if err := e.customEntityParser.Persist(filepath.Join(dir, customDir)); err != nil {
			return err
		}
		model.CustomEntityParser = &customDir

		model.DatasetMetadata = e.metadata
		configRaw, err := json.Marshal(e.config)
		if err != nil {
			return nluerrors.NewPersistingError(err)
		}
		model.Config = configRaw
	}

	raw, err := json.MarshalIndent(model, "", "  ")
	if err != nil {
		return nluerrors.NewPersistingError(err)
	}
	if err := os.WriteFile(filepath.Join(dir, descriptorFile), raw, 0o644); err != nil {
		return nluerrors.NewPersistingError(err)
	}
	return nil
}

// FromPath restores a persisted engine. Missing or incomplete files fail
// closed; no partial state is loaded. Prebuilt entity parsers supplied
// through options are reused instead of being loaded from disk.
func FromPath(dir string, opts ...Option) (*Engine, error) {
	raw, err := os.ReadFile(filepath.Join(dir, descriptorFile))
	if err != nil {
		return nil, nluerrors.NewLoadingError(fmt.Sprintf("missing engine descriptor: %v", err))
	}
	var model engineModel
	if err := json.Unmarshal(raw, &model); err != nil {
		return nil, nluerrors.NewLoadingError(fmt.Sprintf("invalid engine descriptor: %v", err))
	}
	if model.UnitName != EngineUnitName {
		return nil, nluerrors.NewLoadingError(fmt.Sprintf("unexpected unit name %q", model.UnitName))
	}

	var config *EngineConfig
	if len(model.Config) > 0 && string(model.Config) != "null" {
		config = &EngineConfig{}
		if err := json.Unmarshal(model.Config, config); err != nil {
			return nil, nluerrors.NewLoadingError(fmt.Sprintf("invalid engine config: %v", err))
		}
	}

	engine := New(config, opts...)
	if model.DatasetMetadata == nil {
		return engine, nil
	}
	engine.metadata = model.DatasetMetadata

	for _, dirName := range model.IntentParsers {
		parserDir := filepath.Join(dir, dirName)
		metaRaw, err := os.ReadFile(filepath.Join(parserDir, "metadata.json"))
		if err != nil {
			return nil, nluerrors.NewLoadingError(fmt.Sprintf("intent parser %q: %v", dirName, err))
		}
		unitName, err := unitNameOf(metaRaw)
		if err != nil || unitName == "" {
			return nil, nluerrors.NewLoadingError(fmt.Sprintf("intent parser %q: missing unit_name", dirName))
		}
		provider, err := lookupParser(unitName)
		if err != nil {
			return nil, nluerrors.NewLoadingError(err.Error())
		}
		parser, err := provider.Load(parserDir)
		if err != nil {
			return nil, err
		}
		engine.intentParsers = append(engine.intentParsers, parser)
	}

	if engine.builtinEntityParser == nil {
		if model.BuiltinEntityParser == nil {
			return nil, nluerrors.NewLoadingError("fitted engine without builtin entity parser")
		}
		engine.builtinEntityParser, err = entityparser.LoadBuiltinEntityParser(
			filepath.Join(dir, *model.BuiltinEntityParser))
		if err != nil {
			return nil, err
		}
	}
	if engine.customEntityParser == nil {
		if model.CustomEntityParser == nil {
			return nil, nluerrors.NewLoadingError("fitted engine without custom entity parser")
		}
		engine.customEntityParser, err = entityparser.LoadCustomEntityParser(
			filepath.Join(dir, *model.CustomEntityParser))
		if err != nil {
			return nil, err
		}
	}
	engine.resolver = entityparser.NewResolver(engine.builtinEntityParser, engine.customEntityParser)

	return engine, nil
}

// ToByteArray serializes the engine into an in-memory zip archive of its
// persisted directory tree.
func (e *Engine) ToByteArray() ([]byte, error) {
	tmpRoot, err := os.MkdirTemp("", "nlu-engine-")
	if err != nil {
		return nil, nluerrors.NewPersistingError(err)
	}
	defer os.RemoveAll(tmpRoot)

	dir := filepath.Join(tmpRoot, "nlu_engine_"+uuid.NewString())
	if err := e.Persist(dir); err != nil {
		return nil, err
	}
	return zipDirectory(dir)
}

// FromByteArray restores an engine from its in-memory archive form. Options
// may supply already-constructed entity parsers to avoid rebuilding them
// when the caller holds equivalent parsers for the same dataset.
func FromByteArray(data []byte, opts ...Option) (*Engine, error) {
	tmpRoot, err := os.MkdirTemp("", "nlu-engine-")
	if err != nil {
		return nil, nluerrors.NewLoadingError(err.Error())
	}
	defer os.RemoveAll(tmpRoot)

	dir := filepath.Join(tmpRoot, "nlu_engine_"+uuid.NewString())
	if err := unzipDirectory(data, dir); err != nil {
		return nil, err
	}
	return FromPath(dir, opts...)
}

func zipDirectory(dir string) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	err := filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		f, err := w.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(f, src)
		return err
	})
	if err != nil {
		return nil, nluerrors.NewPersistingError(err)
	}
	if err := w.Close(); err != nil {
		return nil, nluerrors.NewPersistingError(err)
	}
	return buf.Bytes(), nil
}

func unzipDirectory(data []byte, dir string) error {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nluerrors.NewLoadingError(fmt.Sprintf("invalid engine archive: %v", err))
	}
	for _, file := range r.File {
		name := filepath.Clean(filepath.FromSlash(file.Name))
		if name == ".." || strings.HasPrefix(name, ".."+string(os.PathSeparator)) {
			return nluerrors.NewLoadingError(fmt.Sprintf("invalid archive entry %q", file.Name))
		}
		target := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nluerrors.NewLoadingError(err.Error())
		}
		src, err := file.Open()
		if err != nil {
			return nluerrors.NewLoadingError(err.Error())
		}
		content, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return nluerrors.NewLoadingError(err.Error())
		}
		if err := os.WriteFile(target, content, 0o644); err != nil {
			return nluerrors.NewLoadingError(err.Error())
		}
	}
	return nil
}
