package ingest

import (
	"fmt"
	"strings"
)

// ValidationResult reports whether a set of profiled files is ready for a
// given analysis type, and what is missing if not.
type ValidationResult struct {
	IsValid         bool
	AnalysisType    string
	ChecksPassed    []string
	ChecksFailed    []string
	Warnings        []string
	MissingFiles    []string
	ReadyToAnalyse  bool
	SuggestedFixes  []string
}

// ToAgentSummary renders the result as a short markdown block suitable for
// surfacing directly in a conversation turn.
func (r ValidationResult) ToAgentSummary() string {
	var b strings.Builder
	if r.IsValid {
		fmt.Fprintf(&b, "✅ Dataset looks ready for %s analysis.\n\n", r.AnalysisType)
	} else {
		fmt.Fprintf(&b, "❌ Dataset is not ready for %s analysis.\n\n", r.AnalysisType)
	}

	if len(r.ChecksPassed) > 0 {
		b.WriteString("**Passed:**\n")
		for _, c := range r.ChecksPassed {
			fmt.Fprintf(&b, "✓ %s\n", c)
		}
		b.WriteString("\n")
	}
	if len(r.ChecksFailed) > 0 {
		b.WriteString("**Failed:**\n")
		for _, c := range r.ChecksFailed {
			fmt.Fprintf(&b, "✗ %s\n", c)
		}
		b.WriteString("\n")
	}
	if len(r.Warnings) > 0 {
		b.WriteString("**Warnings:**\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "⚠️ %s\n", w)
		}
		b.WriteString("\n")
	}
	if len(r.MissingFiles) > 0 {
		b.WriteString("**Missing:**\n")
		for _, m := range r.MissingFiles {
			fmt.Fprintf(&b, "• %s\n", m)
		}
		b.WriteString("\n")
	}
	if len(r.SuggestedFixes) > 0 {
		b.WriteString("**Suggested fixes:**\n")
		for _, f := range r.SuggestedFixes {
			fmt.Fprintf(&b, "→ %s\n", f)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// DatasetValidator checks whether a collection of file profiles satisfies
// the requirements of a specific downstream analysis.
type DatasetValidator struct{}

// Validate runs the checker for analysisType, or auto-detects one from the
// profiles when analysisType is "auto" or empty.
func (DatasetValidator) Validate(profiles []FileProfile, analysisType string) ValidationResult {
	if analysisType == "" || analysisType == "auto" {
		analysisType = detectAnalysisType(profiles)
	}

	switch analysisType {
	case "rnaseq":
		return validateRnaseq(profiles)
	case "variant":
		return validateVariant(profiles)
	case "singlecell":
		return validateSinglecell(profiles)
	case "alignment":
		return validateAlignment(profiles)
	default:
		return validateGeneric(profiles, analysisType)
	}
}

func detectAnalysisType(profiles []FileProfile) string {
	for _, p := range profiles {
		switch p.Format.Name {
		case "AnnData (h5ad)", "Loom", "Matrix Market":
			return "singlecell"
		case "VCF", "VCF (bgzipped)", "BCF":
			return "variant"
		case "FASTQ", "FASTQ (gzipped)":
			return "alignment"
		}
	}
	for _, p := range profiles {
		if p.Format.Category == CategoryTabular {
			for _, c := range p.ColumnInfo {
				lower := strings.ToLower(c.Name)
				if strings.Contains(lower, "gene") || strings.Contains(lower, "ensembl") {
					return "rnaseq"
				}
			}
		}
	}
	return "generic"
}

func validateRnaseq(profiles []FileProfile) ValidationResult {
	r := ValidationResult{AnalysisType: "rnaseq"}
	hasCounts, hasMetadata, hasAnnotation := false, false, false

	for _, p := range profiles {
		if p.Format.Category != CategoryTabular {
			if p.Format.Name == "GTF" || p.Format.Name == "GFF3" || p.Format.Name == "GFF" {
				hasAnnotation = true
			}
			continue
		}
		var geneCol bool
		numericCols := 0
		for _, c := range p.ColumnInfo {
			lower := strings.ToLower(c.Name)
			if containsAny(lower, []string{"gene", "ensembl", "symbol"}) {
				geneCol = true
			}
			if containsAny(lower, []string{"sample", "condition", "group", "treatment", "batch"}) {
				hasMetadata = true
			}
			if c.DType == "numeric" || c.DType == "integer" {
				numericCols++
			}
		}
		if geneCol && numericCols >= 2 {
			hasCounts = true
			r.ChecksPassed = append(r.ChecksPassed, fmt.Sprintf("Expression matrix found: %s", p.FileName))
		}
		for _, flag := range p.QualityFlags {
			if flag.Severity == "error" {
				r.ChecksFailed = append(r.ChecksFailed, fmt.Sprintf("%s: %s", p.FileName, flag.Message))
			}
		}
	}

	if !hasCounts {
		r.ChecksFailed = append(r.ChecksFailed, "No gene expression/count matrix found (need a gene-ID column plus numeric sample columns).")
		r.MissingFiles = append(r.MissingFiles, "Gene expression count matrix (CSV/TSV with gene IDs and sample counts)")
	}
	if !hasMetadata {
		r.Warnings = append(r.Warnings, "No sample metadata (condition/group/treatment) detected. Recommended but not required.")
	}
	if !hasAnnotation {
		r.Warnings = append(r.Warnings, "No gene annotation (GTF/GFF3) found. Needed for gene symbol mapping and pathway analysis.")
	}

	r.IsValid = hasCounts
	r.ReadyToAnalyse = hasCounts
	if !hasCounts {
		r.SuggestedFixes = append(r.SuggestedFixes, "Provide a count matrix with genes as rows and samples as columns.")
	}
	return r
}

func validateVariant(profiles []FileProfile) ValidationResult {
	r := ValidationResult{AnalysisType: "variant"}
	hasVCF := false
	totalVariants := 0

	for _, p := range profiles {
		if p.Format.Name != "VCF" && p.Format.Name != "VCF (bgzipped)" && p.Format.Name != "BCF" {
			continue
		}
		if v, ok := p.Stats["total_variants"]; ok && v != "0" {
			hasVCF = true
			r.ChecksPassed = append(r.ChecksPassed, fmt.Sprintf("VCF file found: %s (%s variants)", p.FileName, v))
			totalVariants++
		}
		if len(p.MissingCompanions) > 0 {
			for _, m := range p.MissingCompanions {
				if strings.Contains(m, "index") || strings.Contains(m, "Tabix") {
					r.Warnings = append(r.Warnings, fmt.Sprintf("%s: %s", p.FileName, m))
					r.SuggestedFixes = append(r.SuggestedFixes, fmt.Sprintf("tabix -p vcf %s", p.FileName))
				}
			}
		}
	}

	if !hasVCF {
		r.ChecksFailed = append(r.ChecksFailed, "No VCF file with variants found.")
		r.MissingFiles = append(r.MissingFiles, "VCF file with called variants")
	}

	r.IsValid = hasVCF && totalVariants > 0
	r.ReadyToAnalyse = r.IsValid
	return r
}

func validateSinglecell(profiles []FileProfile) ValidationResult {
	r := ValidationResult{AnalysisType: "singlecell"}
	hasExpression := false

	for _, p := range profiles {
		switch p.Format.Name {
		case "AnnData (h5ad)", "Loom", "HDF5":
			hasExpression = true
			r.ChecksPassed = append(r.ChecksPassed, fmt.Sprintf("Single-cell expression data found: %s", p.FileName))
		case "Matrix Market":
			hasExpression = true
			r.ChecksPassed = append(r.ChecksPassed, fmt.Sprintf("Matrix Market expression data found: %s", p.FileName))
			r.Warnings = append(r.Warnings, "MTX format requires companion barcodes.tsv.gz and features.tsv.gz in the same directory.")
		}
	}

	if !hasExpression {
		r.ChecksFailed = append(r.ChecksFailed, "No single-cell expression data (h5ad/Loom/MTX) found.")
		r.MissingFiles = append(r.MissingFiles, "Single-cell expression matrix (h5ad, Loom, or 10x Matrix Market)")
	}

	r.IsValid = hasExpression
	r.ReadyToAnalyse = hasExpression
	return r
}

func validateAlignment(profiles []FileProfile) ValidationResult {
	r := ValidationResult{AnalysisType: "alignment"}
	var fastqFiles []FileProfile
	hasReference := false

	for _, p := range profiles {
		switch {
		case p.Format.Name == "FASTQ" || p.Format.Name == "FASTQ (gzipped)":
			fastqFiles = append(fastqFiles, p)
			for _, flag := range p.QualityFlags {
				if flag.Severity == "warning" || flag.Severity == "error" {
					r.Warnings = append(r.Warnings, fmt.Sprintf("%s: %s", p.FileName, flag.Message))
				}
			}
		case (p.Format.Name == "FASTA" || p.Format.Name == "FASTA (gzipped)") && p.SizeBytes > 1_000_000:
			hasReference = true
			r.ChecksPassed = append(r.ChecksPassed, fmt.Sprintf("Reference genome present: %s", p.FileName))
		}
	}

	if len(fastqFiles) == 0 {
		r.ChecksFailed = append(r.ChecksFailed, "No FASTQ read files found.")
		r.MissingFiles = append(r.MissingFiles, "FASTQ sequencing reads")
	} else {
		r.ChecksPassed = append(r.ChecksPassed, fmt.Sprintf("%d FASTQ file(s) found", len(fastqFiles)))
		if len(fastqFiles) >= 2 {
			r.ChecksPassed = append(r.ChecksPassed, "Likely paired-end reads")
		} else {
			r.Warnings = append(r.Warnings, "Only one FASTQ file found. If this is paired-end sequencing, provide the mate file.")
		}
	}

	if !hasReference {
		r.Warnings = append(r.Warnings, "No reference genome provided. You'll need to specify one (e.g. GRCh38).")
	}

	r.IsValid = len(fastqFiles) > 0
	r.ReadyToAnalyse = r.IsValid
	return r
}

func validateGeneric(profiles []FileProfile, analysisType string) ValidationResult {
	r := ValidationResult{AnalysisType: analysisType}
	anyUsable := false

	for _, p := range profiles {
		switch p.OverallQuality {
		case "good", "acceptable", "unknown":
			anyUsable = true
			r.ChecksPassed = append(r.ChecksPassed, fmt.Sprintf("%s (%s, %s)", p.FileName, p.Format.Name, p.SizeHuman))
		default:
			r.ChecksFailed = append(r.ChecksFailed, fmt.Sprintf("%s: quality issues detected", p.FileName))
		}
	}

	r.IsValid = anyUsable
	r.ReadyToAnalyse = anyUsable
	return r
}
