package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// IngestResult is the outcome of ingesting one or more sources together.
type IngestResult struct {
	Profiles            []FileProfile
	DatasetType         string
	DatasetSummary      string
	RecommendedWorkflow string
}

// ToAgentContext renders the result as a compact markdown block suitable
// for feeding back into a conversation turn.
func (r IngestResult) ToAgentContext() string {
	s := r.DatasetSummary
	if r.RecommendedWorkflow != "" {
		s += fmt.Sprintf("\n\n**Suggested workflow**: %s", r.RecommendedWorkflow)
	}
	return s
}

// Ingestor ties source detection, fetching, format detection, and profiling
// into one pipeline, and maintains a registry of everything it has ingested
// for a given workspace.
type Ingestor struct {
	Workspace string
	Fetcher   *Fetcher

	mu           sync.RWMutex
	registry     map[string]FileProfile
	registryPath string
}

// NewIngestor builds an Ingestor rooted at workspace, loading any
// previously-saved registry from data/registry.json.
func NewIngestor(workspace string, fetcher *Fetcher) *Ingestor {
	ing := &Ingestor{
		Workspace:    workspace,
		Fetcher:      fetcher,
		registry:     make(map[string]FileProfile),
		registryPath: filepath.Join(workspace, "data", "registry.json"),
	}
	ing.loadRegistry() //nolint:errcheck // best-effort; a missing/corrupt registry starts empty
	return ing
}

// Ingest fetches, detects, and profiles a single source, registering the
// result under label (or the fetched file name if label is empty).
func (ing *Ingestor) Ingest(ctx context.Context, input, label string) (FileProfile, error) {
	source := DetectSource(input)
	fetched, err := ing.Fetcher.Fetch(ctx, source, "")
	if err != nil {
		return FileProfile{}, err
	}

	format := DetectFormat(fetched.LocalPath)
	profiler := GetProfiler(format.Name)
	result := profiler.Profile(fetched.LocalPath, format)

	profile := FileProfile{
		FilePath:          fetched.LocalPath,
		FileName:          filepath.Base(fetched.LocalPath),
		Format:            format,
		SizeBytes:         fetched.SizeBytes,
		SizeHuman:         fetched.SizeHuman(),
		MD5:               fetched.MD5,
		Stats:             result.Stats,
		Preview:           result.Preview,
		ColumnInfo:        result.ColumnInfo,
		QualityFlags:      result.QualityFlags,
		OverallQuality:    result.OverallQuality,
		SuggestedAnalyses: result.SuggestedAnalyses,
		CompanionFiles:    result.CompanionFiles,
		MissingCompanions: result.MissingCompanions,
	}

	key := label
	if key == "" {
		key = profile.FileName
	}

	ing.mu.Lock()
	ing.registry[key] = profile
	ing.mu.Unlock()
	ing.saveRegistry() //nolint:errcheck // persistence is best-effort; the in-memory registry remains authoritative

	return profile, nil
}

// IngestBatch ingests each source independently, continuing the batch when
// one source fails rather than aborting the whole call.
func (ing *Ingestor) IngestBatch(ctx context.Context, inputs []string) IngestResult {
	profiles := make([]FileProfile, 0, len(inputs))
	for _, input := range inputs {
		profile, err := ing.Ingest(ctx, input, "")
		if err != nil {
			profiles = append(profiles, FileProfile{
				FileName: input,
				Format:   FileFormat{Name: "Error"},
				QualityFlags: []QualityFlag{
					{Severity: "error", Code: "INGEST_FAILED", Message: err.Error()},
				},
				OverallQuality: "poor",
			})
			continue
		}
		profiles = append(profiles, profile)
	}

	datasetType := detectDatasetType(profiles)
	return IngestResult{
		Profiles:            profiles,
		DatasetType:         datasetType,
		DatasetSummary:      generateDatasetSummary(profiles, datasetType),
		RecommendedWorkflow: suggestWorkflow(datasetType),
	}
}

// IngestDirectory ingests every regular file directly under dir (recurse
// controls whether it walks subdirectories).
func (ing *Ingestor) IngestDirectory(ctx context.Context, dir string, recurse bool) (IngestResult, error) {
	var inputs []string
	walker := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recurse && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		inputs = append(inputs, path)
		return nil
	}
	if err := filepath.WalkDir(dir, walker); err != nil {
		return IngestResult{}, fmt.Errorf("ingest: walk directory %s: %w", dir, err)
	}
	return ing.IngestBatch(ctx, inputs), nil
}

// GetProfile returns a previously-ingested profile by its registry key.
func (ing *Ingestor) GetProfile(key string) (FileProfile, bool) {
	ing.mu.RLock()
	defer ing.mu.RUnlock()
	p, ok := ing.registry[key]
	return p, ok
}

// ListIngested returns every registry key currently known, sorted.
func (ing *Ingestor) ListIngested() []string {
	ing.mu.RLock()
	defer ing.mu.RUnlock()
	keys := make([]string, 0, len(ing.registry))
	for k := range ing.registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetIngestedFilesSummary renders a one-line-per-file summary of the
// registry's current contents.
func (ing *Ingestor) GetIngestedFilesSummary() string {
	ing.mu.RLock()
	defer ing.mu.RUnlock()
	if len(ing.registry) == 0 {
		return "No files have been ingested yet."
	}
	keys := make([]string, 0, len(ing.registry))
	for k := range ing.registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s := ""
	for _, k := range keys {
		p := ing.registry[k]
		s += fmt.Sprintf("- %s: %s (%s, %s)\n", k, p.Format.Name, p.SizeHuman, p.OverallQuality)
	}
	return s
}

func (ing *Ingestor) saveRegistry() error {
	ing.mu.RLock()
	data, err := json.MarshalIndent(ing.registry, "", "  ")
	ing.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("ingest: marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(ing.registryPath), 0o755); err != nil {
		return fmt.Errorf("ingest: create registry dir: %w", err)
	}
	tmp := ing.registryPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("ingest: write registry: %w", err)
	}
	return os.Rename(tmp, ing.registryPath)
}

func (ing *Ingestor) loadRegistry() error {
	data, err := os.ReadFile(ing.registryPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("ingest: read registry: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	var stored map[string]FileProfile
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("ingest: parse registry: %w", err)
	}
	ing.mu.Lock()
	ing.registry = stored
	ing.mu.Unlock()
	return nil
}

func detectDatasetType(profiles []FileProfile) string {
	var formatNames []string
	categoryCounts := map[FormatCategory]int{}
	for _, p := range profiles {
		if p.Format.Name == "Error" {
			continue
		}
		formatNames = append(formatNames, p.Format.Name)
		categoryCounts[p.Format.Category]++
	}
	if len(formatNames) == 0 {
		return "unknown"
	}

	fastqCount, bamCount := 0, 0
	hasGTF, hasCounts := false, false
	for _, n := range formatNames {
		switch {
		case containsAny(n, []string{"FASTQ"}):
			fastqCount++
		case n == "BAM" || n == "SAM" || n == "CRAM":
			bamCount++
		}
		if n == "GTF" || n == "GFF3" || n == "GFF" {
			hasGTF = true
		}
		if n == "CSV" || n == "TSV" {
			hasCounts = true
		}
	}

	switch {
	case fastqCount >= 2:
		if hasGTF {
			return "RNA-seq (raw reads + annotation)"
		}
		if fastqCount%2 == 0 {
			return "Sequencing reads (paired-end)"
		}
		return "Sequencing reads"
	case bamCount > 0 && hasGTF:
		return "RNA-seq (aligned reads + annotation)"
	case bamCount > 0:
		return "Aligned sequencing data"
	}

	for _, n := range formatNames {
		if containsAny(n, []string{"VCF"}) || n == "BCF" {
			return "Variant data"
		}
	}
	if hasCounts {
		return "Tabular / expression data"
	}
	for _, n := range formatNames {
		if n == "AnnData (h5ad)" || n == "Matrix Market" || n == "Loom" {
			return "Single-cell data"
		}
	}
	for _, n := range formatNames {
		if n == "PDB" || n == "mmCIF" {
			return "Protein structure data"
		}
	}

	topCategory := CategoryOther
	topCount := -1
	for cat, count := range categoryCounts {
		if count > topCount {
			topCategory, topCount = cat, count
		}
	}
	return fmt.Sprintf("%s data", topCategory)
}

func generateDatasetSummary(profiles []FileProfile, datasetType string) string {
	var valid, failed []FileProfile
	for _, p := range profiles {
		if p.Format.Name == "Error" {
			failed = append(failed, p)
		} else {
			valid = append(valid, p)
		}
	}

	s := fmt.Sprintf("**Dataset type**: %s\n", datasetType)
	s += fmt.Sprintf("**Files ingested**: %d successful, %d failed\n", len(valid), len(failed))

	var totalSize int64
	for _, p := range valid {
		totalSize += p.SizeBytes
	}
	s += fmt.Sprintf("**Total size**: %s\n", humanBytes(totalSize))

	formatCounts := map[string]int{}
	var formatOrder []string
	for _, p := range valid {
		if _, ok := formatCounts[p.Format.Name]; !ok {
			formatOrder = append(formatOrder, p.Format.Name)
		}
		formatCounts[p.Format.Name]++
	}
	sort.Slice(formatOrder, func(i, j int) bool { return formatCounts[formatOrder[i]] > formatCounts[formatOrder[j]] })
	parts := make([]string, 0, len(formatOrder))
	for _, f := range formatOrder {
		parts = append(parts, fmt.Sprintf("%d× %s", formatCounts[f], f))
	}
	s += "**Format breakdown**: " + joinComma(parts) + "\n"

	qualityCounts := map[string]int{}
	var qualityOrder []string
	for _, p := range valid {
		if _, ok := qualityCounts[p.OverallQuality]; !ok {
			qualityOrder = append(qualityOrder, p.OverallQuality)
		}
		qualityCounts[p.OverallQuality]++
	}
	sort.Slice(qualityOrder, func(i, j int) bool { return qualityCounts[qualityOrder[i]] > qualityCounts[qualityOrder[j]] })
	qparts := make([]string, 0, len(qualityOrder))
	for _, q := range qualityOrder {
		qparts = append(qparts, fmt.Sprintf("%d %s", qualityCounts[q], q))
	}
	s += "**Quality**: " + joinComma(qparts)

	errorCount, warningCount := 0, 0
	for _, p := range valid {
		for _, f := range p.QualityFlags {
			switch f.Severity {
			case "error":
				errorCount++
			case "warning":
				warningCount++
			}
		}
	}
	if errorCount > 0 {
		s += fmt.Sprintf("\n**Errors**: %d issues detected", errorCount)
	}
	if warningCount > 0 {
		s += fmt.Sprintf("\n**Warnings**: %d concerns", warningCount)
	}

	return s
}

func joinComma(parts []string) string {
	s := ""
	for i, p := range parts {
		if i > 0 {
			s += ", "
		}
		s += p
	}
	return s
}

var datasetWorkflows = map[string]string{
	"RNA-seq (raw reads + annotation)": "Complete RNA-seq pipeline: FastQC → fastp (trimming) → STAR (alignment) → featureCounts (quantification) → DESeq2 (differential expression) → clusterProfiler (pathway enrichment)",
	"RNA-seq (aligned reads + annotation)": "Post-alignment RNA-seq: samtools flagstat (QC) → featureCounts (quantification) → DESeq2 (differential expression) → clusterProfiler (enrichment)",
	"Sequencing reads (paired-end)":        "Read processing pipeline: FastQC → fastp → BWA-MEM2/STAR alignment → samtools sort/index → downstream analysis",
	"Sequencing reads":                     "Read processing: FastQC → fastp → alignment → downstream analysis",
	"Aligned sequencing data":              "Post-alignment analysis: samtools stats (QC) → variant calling or quantification",
	"Variant data":                         "Variant analysis pipeline: bcftools stats (QC) → VEP annotation → pathogenicity prediction → gnomAD frequency check → clinical interpretation",
	"Tabular / expression data":            "Data analysis: load and inspect → quality assessment → exploratory analysis → statistical testing → visualization",
	"Single-cell data":                     "scRNA-seq pipeline: QC filtering → normalization → HVG selection → PCA → UMAP → clustering → cell type annotation → marker gene detection → differential expression",
	"Protein structure data":               "Structure analysis: load structure → quality assessment → visualize → compare with AlphaFold → identify binding sites/domains",
}

func suggestWorkflow(datasetType string) string {
	if w, ok := datasetWorkflows[datasetType]; ok {
		return w
	}
	return "Inspect data and determine appropriate analysis pipeline"
}
