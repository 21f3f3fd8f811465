package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openpariksha/pariksha-be/types"
	"github.com/openpariksha/pariksha-be/utils"
	"github.com/sirupsen/logrus"
)

const (
	diagramsDir   = "diagrams"
	imagesSubdir  = "images"
	previewSubdir = "previews"
	mappingsDir   = "diagram_mappings"
	marksDir      = "marks_mappings"
	questionsDir  = "full_pdf_questions"
	cardsDir      = "cards"

	diagramMetaFile = "meta_data.json"
	rawSuffix       = "_raw_response.txt"
)

// Raw-response families name the directory a raw model reply is filed
// under, next to the artifact parsed from it.
const (
	RawFamilyDiagramMappings = mappingsDir
	RawFamilyMarksMappings   = marksDir
	RawFamilyQuestions       = questionsDir
)

// ArtifactRepo is the filesystem store for everything the pipeline steps
// produce and consume: figure crops and metadata, the two LLM mappings,
// the extracted question text and the generated card sets.
type ArtifactRepo interface {
	DataDir() string
	DiagramImagesDir() string
	DiagramPreviewsDir() string

	SaveDiagramMeta(meta *types.DiagramMeta) (string, error)
	LoadDiagramMeta() (*types.DiagramMeta, error)

	SaveDiagramMapping(paper, imagePath string, mapping types.DiagramMapping) (string, error)
	LoadDiagramMapping(paper string) (types.DiagramMapping, string, error)

	SaveMarksMapping(paper string, mapping types.MarksMapping) (string, error)
	LoadMarksMapping(paper string) (types.MarksMapping, string, error)

	SaveQuestionText(paper, text string) (string, error)
	LoadQuestionText(paper string) (string, string, error)

	SaveCardSet(paper string, set *types.CardSet) (string, error)
	LoadCardSet(paper string) (*types.CardSet, error)
	ListCardSets() ([]string, error)

	SaveRawResponse(family, paper, raw string) (string, error)
}

type artifactRepo struct {
	dataDir string
	logger  *logrus.Logger
}

// NewArtifactRepo roots the store at dataDir and creates the per-family
// subdirectories up front so save paths never race on mkdir.
func NewArtifactRepo(dataDir string, logger *logrus.Logger) (ArtifactRepo, error) {
	for _, dir := range []string{
		filepath.Join(dataDir, diagramsDir, imagesSubdir),
		filepath.Join(dataDir, diagramsDir, previewSubdir),
		filepath.Join(dataDir, mappingsDir),
		filepath.Join(dataDir, marksDir),
		filepath.Join(dataDir, questionsDir),
		filepath.Join(dataDir, cardsDir),
	} {
		if err := utils.EnsureDir(dir); err != nil {
			return nil, fmt.Errorf("create artifact dir %s: %w", dir, err)
		}
	}
	return &artifactRepo{dataDir: dataDir, logger: logger}, nil
}

func (r *artifactRepo) DataDir() string {
	return r.dataDir
}

func (r *artifactRepo) DiagramImagesDir() string {
	return filepath.Join(r.dataDir, diagramsDir, imagesSubdir)
}

func (r *artifactRepo) DiagramPreviewsDir() string {
	return filepath.Join(r.dataDir, diagramsDir, previewSubdir)
}

func (r *artifactRepo) SaveDiagramMeta(meta *types.DiagramMeta) (string, error) {
	path := filepath.Join(r.dataDir, diagramsDir, diagramMetaFile)
	return path, writeJSON(path, meta)
}

// LoadDiagramMeta returns (nil, nil) when no extraction has run yet;
// reconciliation treats missing metadata as pages and paths unknown.
func (r *artifactRepo) LoadDiagramMeta() (*types.DiagramMeta, error) {
	path := filepath.Join(r.dataDir, diagramsDir, diagramMetaFile)
	if !fileExists(path) {
		return nil, nil
	}
	var meta types.DiagramMeta
	if err := readJSON(path, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (r *artifactRepo) SaveDiagramMapping(paper, imagePath string, mapping types.DiagramMapping) (string, error) {
	name := utils.MappingFileName(utils.SanitizeFilename(paper), imagePath)
	path := filepath.Join(r.dataDir, mappingsDir, name)
	return path, writeJSON(path, mapping)
}

// LoadDiagramMapping prefers a mapping file derived from this paper's
// name and falls back to the most recent mapping in the family, so card
// generation can still integrate artifacts from a partial re-run.
func (r *artifactRepo) LoadDiagramMapping(paper string) (types.DiagramMapping, string, error) {
	dir := filepath.Join(r.dataDir, mappingsDir)
	path := r.resolve(dir, "", utils.SanitizeFilename(paper), ".json")
	if path == "" {
		return nil, "", nil
	}
	var mapping types.DiagramMapping
	if err := readJSON(path, &mapping); err != nil {
		return nil, path, err
	}
	return mapping, path, nil
}

func (r *artifactRepo) SaveMarksMapping(paper string, mapping types.MarksMapping) (string, error) {
	path := filepath.Join(r.dataDir, marksDir, utils.SanitizeFilename(paper)+".json")
	return path, writeJSON(path, mapping)
}

func (r *artifactRepo) LoadMarksMapping(paper string) (types.MarksMapping, string, error) {
	dir := filepath.Join(r.dataDir, marksDir)
	path := r.resolve(dir, utils.SanitizeFilename(paper)+".json", "", ".json")
	if path == "" {
		return nil, "", nil
	}
	var mapping types.MarksMapping
	if err := readJSON(path, &mapping); err != nil {
		return nil, path, err
	}
	return mapping, path, nil
}

func (r *artifactRepo) SaveQuestionText(paper, text string) (string, error) {
	path := filepath.Join(r.dataDir, questionsDir, utils.SanitizeFilename(paper)+".md")
	return path, os.WriteFile(path, []byte(text), 0644)
}

func (r *artifactRepo) LoadQuestionText(paper string) (string, string, error) {
	dir := filepath.Join(r.dataDir, questionsDir)
	path := r.resolve(dir, utils.SanitizeFilename(paper)+".md", "", ".md")
	if path == "" {
		return "", "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", path, err
	}
	return string(data), path, nil
}

// SaveCardSet and LoadCardSet are exact-name only: serving one paper's
// cards under another paper's name would be worse than a 404.
func (r *artifactRepo) SaveCardSet(paper string, set *types.CardSet) (string, error) {
	path := filepath.Join(r.dataDir, cardsDir, utils.SanitizeFilename(paper)+"_cards.json")
	return path, writeJSON(path, set)
}

func (r *artifactRepo) LoadCardSet(paper string) (*types.CardSet, error) {
	path := filepath.Join(r.dataDir, cardsDir, utils.SanitizeFilename(paper)+"_cards.json")
	if !fileExists(path) {
		return nil, nil
	}
	var set types.CardSet
	if err := readJSON(path, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

func (r *artifactRepo) ListCardSets() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(r.dataDir, cardsDir))
	if err != nil {
		return nil, err
	}
	papers := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), "_cards.json") {
			continue
		}
		papers = append(papers, strings.TrimSuffix(e.Name(), "_cards.json"))
	}
	return papers, nil
}

// SaveRawResponse keeps the unprocessed model reply next to the artifact
// it produced, so a mis-parsed mapping can be audited against the source.
func (r *artifactRepo) SaveRawResponse(family, paper, raw string) (string, error) {
	dir := filepath.Join(r.dataDir, family)
	if err := utils.EnsureDir(dir); err != nil {
		return "", err
	}
	path := filepath.Join(dir, utils.SanitizeFilename(paper)+rawSuffix)
	return path, os.WriteFile(path, []byte(raw), 0644)
}

// resolve picks the artifact file to load: the exact derived name when it
// exists, else the newest file whose name starts with prefix, else the
// newest file with the right extension. Raw-response audit files never
// match because they carry a .txt suffix.
func (r *artifactRepo) resolve(dir, exactName, prefix, ext string) string {
	if exactName != "" {
		if path := filepath.Join(dir, exactName); fileExists(path) {
			return path
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	var newest, newestPrefixed string
	var newestMod, newestPrefixedMod time.Time
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if info.ModTime().After(newestMod) {
			newest, newestMod = path, info.ModTime()
		}
		if prefix != "" && strings.HasPrefix(e.Name(), prefix) && info.ModTime().After(newestPrefixedMod) {
			newestPrefixed, newestPrefixedMod = path, info.ModTime()
		}
	}
	if newestPrefixed != "" {
		return newestPrefixed
	}
	if newest != "" {
		r.logger.WithFields(logrus.Fields{
			"dir":  dir,
			"file": filepath.Base(newest),
		}).Info("no artifact for this paper, using most recent")
	}
	return newest
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
