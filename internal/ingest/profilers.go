package ingest

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

func openMaybeGzip(path string, isBinary bool) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !isBinary {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return struct {
		io.Reader
		io.Closer
	}{gz, closerFunc(func() error { gz.Close(); return f.Close() })}, nil
}

type closerFunc func() error

func (c closerFunc) Close() error { return c() }

func errorResult(code, message string) ProfileResult {
	flags := []QualityFlag{{Severity: "error", Code: code, Message: message}}
	return ProfileResult{QualityFlags: flags, OverallQuality: "poor"}
}

// FastqProfiler profiles FASTQ/FASTQ.gz sequencing read files, sampling up
// to 10,000 reads for read-length, GC content, and Phred+33 quality stats.
type FastqProfiler struct{}

func (FastqProfiler) Profile(path string, format FileFormat) ProfileResult {
	stats := map[string]string{}
	var flags []QualityFlag
	var preview []string

	r, err := openMaybeGzip(path, format.IsBinary)
	if err != nil {
		return errorResult("READ_ERROR", fmt.Sprintf("Error reading FASTQ: %v", err))
	}
	defer r.Close()

	const maxReadsToSample = 10_000
	readCount := 0
	totalBases := 0
	gcCount := 0
	var lengths []int
	var qualitySum, qualityN int
	minQuality := -1

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	i := 0
scanLoop:
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		recordPos := i % 4

		if i < 8 {
			preview = append(preview, line)
		}

		switch recordPos {
		case 0:
			readCount++
			if readCount > maxReadsToSample {
				break scanLoop
			}
		case 1:
			seqLen := len(line)
			totalBases += seqLen
			lengths = append(lengths, seqLen)
			upper := strings.ToUpper(line)
			gcCount += strings.Count(upper, "G") + strings.Count(upper, "C")
		case 3:
			n := len(line)
			if n > 50 {
				n = 50
			}
			for _, c := range line[:n] {
				score := int(c) - 33
				qualitySum += score
				qualityN++
				if minQuality == -1 || score < minQuality {
					minQuality = score
				}
			}
		}
		i++
	}

	isSampled := readCount >= maxReadsToSample
	if isSampled {
		stats["reads_sampled"] = strconv.Itoa(maxReadsToSample)
		if info, err := os.Stat(path); err == nil && !format.IsBinary {
			bytesPerRead := float64(info.Size()) / float64(maxReadsToSample)
			if bytesPerRead > 0 {
				stats["estimated_total_reads"] = fmt.Sprintf("~%d", int(float64(info.Size())/bytesPerRead))
			}
		} else {
			stats["estimated_total_reads"] = "unknown"
		}
	} else {
		stats["total_reads"] = strconv.Itoa(readCount)
	}

	if len(lengths) > 0 {
		sum := 0
		min, max := lengths[0], lengths[0]
		for _, l := range lengths {
			sum += l
			if l < min {
				min = l
			}
			if l > max {
				max = l
			}
		}
		stats["average_read_length"] = fmt.Sprintf("%d bp", sum/len(lengths))
		stats["min_read_length"] = fmt.Sprintf("%d bp", min)
		stats["max_read_length"] = fmt.Sprintf("%d bp", max)
		if max != min {
			flags = append(flags, QualityFlag{Severity: "info", Code: "VARIABLE_LENGTH", Message: "Variable read lengths detected (may be already trimmed)."})
		}
	} else {
		stats["min_read_length"] = "N/A"
		stats["max_read_length"] = "N/A"
	}

	var gcPct float64
	if totalBases > 0 {
		gcPct = float64(gcCount) / float64(totalBases) * 100
	}
	stats["gc_content"] = fmt.Sprintf("%.1f%%", gcPct)
	stats["total_bases_sampled"] = strconv.Itoa(totalBases)

	if qualityN > 0 {
		avgQual := float64(qualitySum) / float64(qualityN)
		stats["mean_quality_score"] = fmt.Sprintf("%.1f (Phred+33)", avgQual)
		stats["min_quality_score"] = strconv.Itoa(minQuality)

		if avgQual < 20 {
			flags = append(flags, QualityFlag{Severity: "warning", Code: "LOW_QUALITY", Message: fmt.Sprintf("Low average quality score (%.1f). Consider quality trimming.", avgQual)})
		}
		if avgQual < 10 {
			flags = append(flags, QualityFlag{Severity: "error", Code: "VERY_LOW_QUALITY", Message: fmt.Sprintf("Very low quality scores detected (%.1f). Data may be unusable.", avgQual)})
		}
	}

	if gcPct < 30 || gcPct > 65 {
		flags = append(flags, QualityFlag{Severity: "warning", Code: "UNUSUAL_GC", Message: fmt.Sprintf("GC content (%.1f%%) is outside typical range (30-65%%). May indicate contamination.", gcPct)})
	}

	companions, missing := checkPairedEnd(path)

	suggestions := []AnalysisSuggestion{
		{Name: "Quality Control", Description: "Run FastQC/MultiQC for comprehensive read quality assessment", Tools: []string{"FastQC", "MultiQC", "fastp"}, Priority: "required", ExampleQuery: "Run FastQC on this FASTQ file and summarise the results"},
		{Name: "Read Trimming", Description: "Trim adapters and low-quality bases", Tools: []string{"fastp", "trimmomatic", "cutadapt"}, Prerequisites: []string{"Quality Control"}, Priority: "suggested", ExampleQuery: "Trim adapters and low-quality bases from this FASTQ file"},
		{Name: "Alignment", Description: "Align reads to a reference genome", Tools: []string{"BWA-MEM2", "STAR (RNA-seq)", "HISAT2", "minimap2"}, Prerequisites: []string{"Quality Control", "Reference genome"}, Priority: "suggested", ExampleQuery: "Align these reads to the GRCh38 reference genome"},
	}

	return ProfileResult{
		Stats: stats, Preview: strings.Join(preview, "\n"), QualityFlags: flags,
		SuggestedAnalyses: suggestions, CompanionFiles: companions, MissingCompanions: missing,
		OverallQuality: overallQuality(flags),
	}
}

var pairedEndPatterns = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`_1\.f`), "_2.f"},
	{regexp.MustCompile(`_R1_001`), "_R2_001"},
	{regexp.MustCompile(`_R1`), "_R2"},
	{regexp.MustCompile(`\.R1\.`), ".R2."},
}

// checkPairedEnd looks for a paired-end mate file next to path by swapping
// common R1/R2 naming patterns, in the same priority order a sequencing
// core names lanes.
func checkPairedEnd(path string) (companions, missing []string) {
	dir := filepath.Dir(path)
	name := filepath.Base(path)

	for _, p := range pairedEndPatterns {
		if p.pattern.MatchString(name) {
			mateName := p.pattern.ReplaceAllString(name, p.replacement)
			matePath := filepath.Join(dir, mateName)
			if _, err := os.Stat(matePath); err == nil {
				companions = append(companions, matePath)
			} else {
				missing = append(missing, "Paired-end mate: "+mateName)
			}
			break
		}
	}
	return companions, missing
}

// VCFProfiler profiles VCF/VCF.gz variant call files.
type VCFProfiler struct{}

func (VCFProfiler) Profile(path string, format FileFormat) ProfileResult {
	stats := map[string]string{}
	var flags []QualityFlag
	var preview []string

	isGz := format.Extension == ".vcf.gz"
	r, err := openMaybeGzip(path, isGz)
	if err != nil {
		return errorResult("READ_ERROR", fmt.Sprintf("Error reading VCF: %v", err))
	}
	defer r.Close()

	const maxVariantsToCount = 100_000
	variantCount := 0
	var samples []string
	chroms := map[string]int{}
	variantTypes := map[string]int{}
	filters := map[string]int{}
	infoFields := map[string]struct{}{}
	infoIDPattern := regexp.MustCompile(`ID=(\w+)`)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "##") {
			if len(preview) < 10 {
				preview = append(preview, line)
			}
			if strings.HasPrefix(line, "##INFO=") {
				if m := infoIDPattern.FindStringSubmatch(line); m != nil {
					infoFields[m[1]] = struct{}{}
				}
			}
			continue
		}
		if strings.HasPrefix(line, "#CHROM") {
			preview = append(preview, line)
			fields := strings.Split(line, "\t")
			if len(fields) > 9 {
				samples = fields[9:]
			}
			continue
		}

		variantCount++
		if variantCount <= 5 {
			preview = append(preview, truncate(line, 200))
		}
		if variantCount <= maxVariantsToCount {
			fields := strings.Split(line, "\t")
			if len(fields) >= 8 {
				chroms[fields[0]]++
				ref, alt, filt := fields[3], fields[4], fields[6]
				filters[filt]++
				for _, allele := range strings.Split(alt, ",") {
					switch {
					case len(ref) == 1 && len(allele) == 1:
						variantTypes["SNV"]++
					case len(ref) == len(allele):
						variantTypes["MNV"]++
					case len(ref) > len(allele):
						variantTypes["Deletion"]++
					case len(ref) < len(allele):
						variantTypes["Insertion"]++
					default:
						variantTypes["Complex"]++
					}
				}
			}
		}
	}

	stats["total_variants"] = strconv.Itoa(variantCount)
	stats["samples"] = strconv.Itoa(len(samples))
	stats["chromosomes"] = strconv.Itoa(len(chroms))

	passCount := filters["PASS"] + filters["."]
	if variantCount > 0 {
		passRate := float64(passCount) / float64(variantCount) * 100
		stats["pass_rate"] = fmt.Sprintf("%.1f%%", passRate)
		if passRate < 50 {
			flags = append(flags, QualityFlag{Severity: "warning", Code: "LOW_PASS_RATE", Message: fmt.Sprintf("Only %.1f%% of variants pass filters.", passRate)})
		}
	}
	if variantCount == 0 {
		flags = append(flags, QualityFlag{Severity: "error", Code: "EMPTY_VCF", Message: "VCF file contains no variants."})
	}
	if len(samples) == 0 {
		flags = append(flags, QualityFlag{Severity: "info", Code: "SITES_ONLY", Message: "VCF is sites-only (no sample genotypes)."})
	}

	var companions, missing []string
	for _, idxExt := range []string{".tbi", ".csi"} {
		if _, err := os.Stat(path + idxExt); err == nil {
			companions = append(companions, path+idxExt)
		}
	}
	if isGz && len(companions) == 0 {
		missing = append(missing, fmt.Sprintf("Tabix index (%s.tbi)", filepath.Base(path)))
	}

	if len(variantTypes) > 0 {
		typeParts := make([]string, 0, len(variantTypes))
		for _, t := range []string{"SNV", "MNV", "Deletion", "Insertion", "Complex"} {
			if n, ok := variantTypes[t]; ok {
				typeParts = append(typeParts, fmt.Sprintf("%s: %d", t, n))
			}
		}
		stats["variant_types"] = strings.Join(typeParts, ", ")
	}
	if len(infoFields) > 0 {
		names := make([]string, 0, len(infoFields))
		for name := range infoFields {
			names = append(names, name)
		}
		sort.Strings(names)
		if len(names) > 20 {
			names = names[:20]
		}
		stats["info_fields"] = strings.Join(names, ", ")
	}
	if len(chroms) > 0 {
		type chromCount struct {
			name  string
			count int
		}
		top := make([]chromCount, 0, len(chroms))
		for name, count := range chroms {
			top = append(top, chromCount{name, count})
		}
		sort.Slice(top, func(i, j int) bool { return top[i].count > top[j].count })
		if len(top) > 5 {
			top = top[:5]
		}
		parts := make([]string, 0, len(top))
		for _, c := range top {
			parts = append(parts, fmt.Sprintf("%s: %d", c.name, c.count))
		}
		stats["variants_per_chromosome"] = strings.Join(parts, ", ")
	}

	suggestions := []AnalysisSuggestion{
		{Name: "Variant Statistics", Description: "Generate variant summary statistics (Ti/Tv, het/hom, per-sample counts)", Tools: []string{"bcftools stats", "rtg vcfstats"}, Priority: "required", ExampleQuery: "Generate variant statistics and QC metrics for this VCF"},
		{Name: "Variant Annotation", Description: "Annotate variants with functional impact, gene names, population frequencies", Tools: []string{"VEP (Ensembl)", "SnpEff", "ANNOVAR"}, Priority: "suggested", ExampleQuery: "Annotate the variants with VEP and predict functional impact"},
		{Name: "Pathogenicity Prediction", Description: "Score variants using CADD, REVEL, AlphaMissense", Tools: []string{"predict_variant_pathogenicity"}, Prerequisites: []string{"Variant Annotation"}, Priority: "suggested", ExampleQuery: "Predict pathogenicity for the missense variants in this VCF"},
		{Name: "Population Frequency Check", Description: "Check variant frequencies in gnomAD", Tools: []string{"gnomAD", "bcftools annotate"}, Priority: "suggested", ExampleQuery: "Check gnomAD population frequencies for all variants"},
	}

	return ProfileResult{
		Stats: stats, Preview: strings.Join(preview, "\n"), QualityFlags: flags,
		SuggestedAnalyses: suggestions, CompanionFiles: companions, MissingCompanions: missing,
		OverallQuality: overallQuality(flags),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// TabularProfiler profiles CSV/TSV/Excel tabular data files, sniffing the
// delimiter and inferring per-column types and biological intent.
type TabularProfiler struct{}

func (TabularProfiler) Profile(path string, format FileFormat) ProfileResult {
	if format.Name == "Excel" || format.Name == "Excel (legacy)" {
		return profileExcel(path)
	}

	delimiter := rune(',')
	if format.Name == "TSV" {
		delimiter = '\t'
	}

	f, err := os.Open(path)
	if err != nil {
		return errorResult("READ_ERROR", fmt.Sprintf("Error reading tabular file: %v", err))
	}
	defer f.Close()

	sample := make([]byte, 4096)
	n, _ := f.Read(sample)
	sample = sample[:n]
	f.Seek(0, io.SeekStart)

	firstLine := string(sample)
	if idx := strings.IndexByte(firstLine, '\n'); idx >= 0 {
		firstLine = firstLine[:idx]
	}
	tabCount := strings.Count(firstLine, "\t")
	commaCount := strings.Count(firstLine, ",")
	if tabCount > commaCount {
		delimiter = '\t'
	} else if commaCount > tabCount {
		delimiter = ','
	}

	reader := csv.NewReader(f)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return errorResult("EMPTY_FILE", "File appears to be empty.")
	}

	stats := map[string]string{"columns": strconv.Itoa(len(header))}
	var preview []string
	preview = append(preview, strings.Join(header, string(delimiter)))

	var rows [][]string
	rowCount := 0
	for {
		row, rerr := reader.Read()
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			continue
		}
		rowCount++
		if len(rows) < 10_000 {
			rows = append(rows, row)
		}
		if rowCount <= 5 {
			cols := row
			if len(cols) > 10 {
				cols = cols[:10]
			}
			preview = append(preview, strings.Join(cols, string(delimiter)))
		}
	}
	stats["rows"] = strconv.Itoa(rowCount)
	stats["dimensions"] = fmt.Sprintf("%d rows × %d columns", rowCount, len(header))

	columnInfo := make([]ColumnInfo, 0, len(header))
	for colIdx, colName := range header {
		var values []string
		for _, row := range rows {
			if colIdx < len(row) && strings.TrimSpace(row[colIdx]) != "" {
				values = append(values, row[colIdx])
			}
		}
		nullCount := rowCount - len(values)

		sampled := values
		if len(sampled) > 100 {
			sampled = sampled[:100]
		}
		dtype := inferDtype(sampled)

		var nullPct float64
		if rowCount > 0 {
			nullPct = float64(nullCount) / float64(rowCount) * 100
		}

		info := ColumnInfo{
			Name: strings.TrimSpace(colName), DType: dtype, NullCount: nullCount,
			NullPct: nullPct, UniqueValues: countUnique(values, 1000),
		}

		if dtype == "numeric" || dtype == "integer" {
			var nums []float64
			for _, v := range sampled {
				if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
					nums = append(nums, f)
				}
			}
			if len(nums) > 0 {
				min, max, sum := nums[0], nums[0], 0.0
				for _, n := range nums {
					if n < min {
						min = n
					}
					if n > max {
						max = n
					}
					sum += n
				}
				info.Min, info.Max, info.Mean = min, max, sum/float64(len(nums))
				info.HasNumericStats = true
			}
		}
		if dtype == "string" && len(values) > 0 {
			info.SampleValues = uniqueValues(values, 5)
		}

		columnInfo = append(columnInfo, info)
	}

	headerLower := make([]string, len(header))
	for i, h := range header {
		headerLower[i] = strings.ToLower(strings.TrimSpace(h))
	}
	suggestions := suggestTabularAnalyses(headerLower, columnInfo)

	var flags []QualityFlag
	for _, col := range columnInfo {
		if col.NullPct > 50 {
			flags = append(flags, QualityFlag{Severity: "warning", Code: "HIGH_MISSING", Message: fmt.Sprintf("Column '%s' has %.1f%% missing values.", col.Name, col.NullPct)})
		}
	}
	if rowCount == 0 {
		flags = append(flags, QualityFlag{Severity: "error", Code: "NO_DATA_ROWS", Message: "File has headers but no data rows."})
	}

	if len(preview) > 10 {
		preview = preview[:10]
	}

	return ProfileResult{
		Stats: stats, Preview: strings.Join(preview, "\n"), ColumnInfo: columnInfo,
		QualityFlags: flags, SuggestedAnalyses: suggestions, OverallQuality: overallQuality(flags),
	}
}

func profileExcel(path string) ProfileResult {
	stats := map[string]string{"note": "Excel file detected. Load with a spreadsheet library for full profiling."}
	if info, err := os.Stat(path); err == nil {
		stats["file_size"] = fmt.Sprintf("%.1f KB", float64(info.Size())/1024)
	}
	return ProfileResult{
		Stats: stats, Preview: "(Binary Excel file — load with a spreadsheet library for preview)",
		SuggestedAnalyses: []AnalysisSuggestion{
			{Name: "Load and Inspect", Description: "Load the Excel file and inspect its structure", Tools: []string{"excelize", "R (readxl)"}, Priority: "required", ExampleQuery: "Load this Excel file and show me the sheet names and first few rows"},
		},
		OverallQuality: "unknown",
	}
}

func inferDtype(values []string) string {
	if len(values) == 0 {
		return "empty"
	}
	numeric, integer := 0, 0
	for _, v := range values {
		v = strings.TrimSpace(v)
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			numeric++
			if !strings.Contains(v, ".") && !strings.ContainsAny(v, "eE") {
				integer++
			}
		}
	}
	ratio := float64(numeric) / float64(len(values))
	switch {
	case ratio > 0.8:
		if integer == numeric {
			return "integer"
		}
		return "numeric"
	case ratio > 0.5:
		return "mixed (mostly numeric)"
	default:
		return "string"
	}
}

func countUnique(values []string, limit int) int {
	if len(values) > limit {
		values = values[:limit]
	}
	seen := map[string]struct{}{}
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}

func uniqueValues(values []string, limit int) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, v := range values {
		if len(out) >= limit {
			break
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func headersContainAny(headers []string, needles []string) bool {
	for _, h := range headers {
		if containsAny(h, needles) {
			return true
		}
	}
	return false
}

func countHeadersMatching(headers []string, needles []string) int {
	count := 0
	for _, h := range headers {
		if containsAny(h, needles) {
			count++
		}
	}
	return count
}

// suggestTabularAnalyses infers the biological intent of a tabular file from
// its column names and recommends next analysis steps accordingly.
func suggestTabularAnalyses(headerLower []string, columnInfo []ColumnInfo) []AnalysisSuggestion {
	var suggestions []AnalysisSuggestion

	expressionIndicators := []string{"gene", "geneid", "gene_id", "gene_name", "symbol", "ensembl"}
	countIndicators := []string{"count", "counts", "tpm", "fpkm", "rpkm", "cpm"}
	deIndicators := []string{"log2foldchange", "log2fc", "logfc", "padj", "fdr", "pvalue", "p_value", "adj.p.val"}

	hasGenes := headersContainAny(headerLower, expressionIndicators)
	hasCounts := headersContainAny(headerLower, countIndicators)
	manyNumericCols := 0
	for _, c := range columnInfo {
		if c.DType == "numeric" || c.DType == "integer" {
			manyNumericCols++
		}
	}
	hasDEResults := headersContainAny(headerLower, deIndicators)

	if hasGenes && (hasCounts || manyNumericCols > 3) && !hasDEResults {
		suggestions = append(suggestions,
			AnalysisSuggestion{Name: "Differential Expression Analysis", Description: "Identify differentially expressed genes between conditions", Tools: []string{"DESeq2", "edgeR", "limma-voom"}, Prerequisites: []string{"Sample metadata with condition labels"}, Priority: "suggested", ExampleQuery: "Run differential expression analysis on this count matrix. The conditions are in the column names."},
			AnalysisSuggestion{Name: "Pathway Enrichment", Description: "Identify enriched biological pathways", Tools: []string{"clusterProfiler", "fgsea", "enrichR"}, Prerequisites: []string{"Differential expression results"}, Priority: "suggested", ExampleQuery: "Find enriched GO terms and KEGG pathways in the differentially expressed genes"},
		)
	}

	if hasDEResults {
		suggestions = append(suggestions, AnalysisSuggestion{Name: "Volcano Plot", Description: "Visualise differential expression results", Tools: []string{"matplotlib", "EnhancedVolcano (R)"}, Priority: "suggested", ExampleQuery: "Create a volcano plot from these DE results, highlighting the top 20 genes"})
		if !hasSuggestionNamed(suggestions, "Pathway Enrichment") {
			suggestions = append(suggestions, AnalysisSuggestion{Name: "Pathway Enrichment", Description: "Run GO/KEGG enrichment on significant genes", Tools: []string{"clusterProfiler", "fgsea", "KEGG", "Reactome"}, Priority: "suggested", ExampleQuery: "Run pathway enrichment analysis on the significantly upregulated genes (padj < 0.05, log2FC > 1)"})
		}
	}

	variantIndicators := []string{"chrom", "chr", "chromosome", "pos", "position", "ref", "alt", "rsid"}
	if countHeadersMatching(headerLower, variantIndicators) >= 3 {
		suggestions = append(suggestions, AnalysisSuggestion{Name: "Variant Annotation", Description: "Annotate variants with functional predictions", Tools: []string{"VEP", "SnpEff", "gnomAD"}, Priority: "suggested", ExampleQuery: "Annotate these variants with VEP and predict pathogenicity"})
	}

	metadataIndicators := []string{"sample", "sample_id", "condition", "group", "batch", "treatment", "timepoint"}
	if countHeadersMatching(headerLower, metadataIndicators) >= 2 {
		suggestions = append(suggestions, AnalysisSuggestion{Name: "Experimental Design Review", Description: "Assess experimental design, check for confounders and batch effects", Tools: []string{"PCA", "statistical tests"}, Prerequisites: []string{"Expression data"}, Priority: "suggested", ExampleQuery: "Review this sample metadata for potential confounders and batch effects"})
	}

	if len(suggestions) == 0 {
		suggestions = append(suggestions, AnalysisSuggestion{Name: "Exploratory Analysis", Description: "Explore the data structure, distributions, and relationships", Tools: []string{"pandas", "matplotlib", "seaborn"}, Priority: "suggested", ExampleQuery: "Explore this dataset: show me distributions, correlations, and any patterns"})
	}

	return suggestions
}

func hasSuggestionNamed(suggestions []AnalysisSuggestion, name string) bool {
	for _, s := range suggestions {
		if s.Name == name {
			return true
		}
	}
	return false
}

// BAMProfiler profiles BAM alignment files by shelling out to samtools,
// matching what that toolchain's production users already have installed.
type BAMProfiler struct{}

var mappedRatePattern = regexp.MustCompile(`\((\d+\.?\d*)%`)

func (BAMProfiler) Profile(path string, _ FileFormat) ProfileResult {
	stats := map[string]string{}
	var flags []QualityFlag

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	if out, err := exec.CommandContext(ctx, "samtools", "flagstat", path).Output(); err != nil {
		if _, ok := err.(*exec.Error); ok {
			stats["note"] = "samtools not available — install for detailed BAM profiling"
		} else {
			stats["note"] = fmt.Sprintf("Error running samtools: %v", err)
		}
	} else {
		flagstat := strings.TrimSpace(string(out))
		stats["flagstat"] = flagstat
		for _, line := range strings.Split(flagstat, "\n") {
			switch {
			case strings.Contains(line, "in total"):
				stats["total_reads"] = strings.TrimSpace(strings.SplitN(line, "+", 2)[0])
			case strings.Contains(line, "mapped ("):
				stats["mapped_reads"] = strings.TrimSpace(strings.SplitN(line, "+", 2)[0])
				if m := mappedRatePattern.FindStringSubmatch(line); m != nil {
					if rate, err := strconv.ParseFloat(m[1], 64); err == nil {
						stats["mapping_rate"] = fmt.Sprintf("%.2f%%", rate)
						if rate < 70 {
							flags = append(flags, QualityFlag{Severity: "warning", Code: "LOW_MAPPING", Message: fmt.Sprintf("Low mapping rate (%.1f%%).", rate)})
						}
					}
				}
			case strings.Contains(line, "duplicates"):
				stats["duplicates"] = strings.TrimSpace(strings.SplitN(line, "+", 2)[0])
			case strings.Contains(line, "paired in sequencing"):
				stats["paired_reads"] = strings.TrimSpace(strings.SplitN(line, "+", 2)[0])
			case strings.Contains(line, "properly paired"):
				stats["properly_paired"] = strings.TrimSpace(strings.SplitN(line, "+", 2)[0])
			}
		}
	}

	var companions, missing []string
	baiPath := path + ".bai"
	altBaiPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".bam.bai"
	for _, idx := range []string{baiPath, altBaiPath} {
		if _, err := os.Stat(idx); err == nil {
			companions = append(companions, idx)
		}
	}
	if len(companions) == 0 {
		missing = append(missing, fmt.Sprintf("BAM index (%s.bai) — run 'samtools index'", filepath.Base(path)))
		flags = append(flags, QualityFlag{Severity: "warning", Code: "NO_INDEX", Message: "BAM file is not indexed. Many tools require an index."})
	} else {
		idxCtx, idxCancel := context.WithTimeout(context.Background(), 60*time.Second)
		if out, err := exec.CommandContext(idxCtx, "samtools", "idxstats", path).Output(); err == nil {
			type chromCount struct {
				name  string
				count int
			}
			var chroms []chromCount
			for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
				parts := strings.Split(line, "\t")
				if len(parts) >= 3 && parts[0] != "*" {
					if n, err := strconv.Atoi(parts[2]); err == nil {
						chroms = append(chroms, chromCount{parts[0], n})
					}
				}
			}
			sort.Slice(chroms, func(i, j int) bool { return chroms[i].count > chroms[j].count })
			if len(chroms) > 10 {
				chroms = chroms[:10]
			}
			readsPerChrom := map[string]string{}
			for _, c := range chroms {
				readsPerChrom[c.name] = strconv.Itoa(c.count)
			}
			for name, count := range readsPerChrom {
				stats["reads_per_chromosome/"+name] = count
			}
		}
		idxCancel()
	}

	preview := stats["flagstat"]
	if preview == "" {
		preview = "(Use samtools for BAM preview)"
	}

	suggestions := []AnalysisSuggestion{
		{Name: "Alignment QC", Description: "Comprehensive alignment quality metrics", Tools: []string{"samtools stats", "picard CollectAlignmentSummaryMetrics", "deepTools"}, Priority: "required", ExampleQuery: "Run comprehensive alignment QC on this BAM file"},
		{Name: "Variant Calling", Description: "Call variants from the aligned reads", Tools: []string{"GATK HaplotypeCaller", "DeepVariant", "bcftools mpileup"}, Prerequisites: []string{"Reference genome"}, Priority: "suggested", ExampleQuery: "Call variants from this BAM file using GATK HaplotypeCaller"},
		{Name: "Read Quantification", Description: "Count reads per gene/feature (RNA-seq)", Tools: []string{"featureCounts", "HTSeq", "Salmon"}, Prerequisites: []string{"Gene annotation (GTF)"}, Priority: "suggested", ExampleQuery: "Count reads per gene using featureCounts with the GENCODE annotation"},
	}

	return ProfileResult{
		Stats: stats, Preview: preview, QualityFlags: flags, SuggestedAnalyses: suggestions,
		CompanionFiles: companions, MissingCompanions: missing, OverallQuality: overallQuality(flags),
	}
}

// BedProfiler profiles BED genomic interval files.
type BedProfiler struct{}

func (BedProfiler) Profile(path string, _ FileFormat) ProfileResult {
	stats := map[string]string{}
	var flags []QualityFlag
	var preview []string

	f, err := os.Open(path)
	if err != nil {
		return errorResult("READ_ERROR", fmt.Sprintf("Error reading BED: %v", err))
	}
	defer f.Close()

	regionCount := 0
	chroms := map[string]struct{}{}
	var totalLength, minLength, maxLength int
	minLength = -1
	numColumns := 0

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "track") || strings.HasPrefix(line, "browser") {
			continue
		}
		if regionCount < 5 {
			preview = append(preview, truncate(line, 200))
		}
		fields := strings.Split(line, "\t")
		if regionCount == 0 {
			numColumns = len(fields)
		}
		regionCount++
		if len(fields) >= 3 {
			chroms[fields[0]] = struct{}{}
			start, err1 := strconv.Atoi(fields[1])
			end, err2 := strconv.Atoi(fields[2])
			if err1 == nil && err2 == nil {
				length := end - start
				totalLength += length
				if minLength == -1 || length < minLength {
					minLength = length
				}
				if length > maxLength {
					maxLength = length
				}
			}
		}
	}

	stats["total_regions"] = strconv.Itoa(regionCount)
	stats["columns"] = strconv.Itoa(numColumns)
	stats["chromosomes"] = strconv.Itoa(len(chroms))
	stats["total_coverage"] = fmt.Sprintf("%d bp", totalLength)
	if regionCount > 0 {
		stats["mean_region_length"] = fmt.Sprintf("%.0f bp", float64(totalLength)/float64(regionCount))
		if minLength != -1 {
			stats["min_region_length"] = fmt.Sprintf("%d bp", minLength)
		} else {
			stats["min_region_length"] = "N/A"
		}
		stats["max_region_length"] = fmt.Sprintf("%d bp", maxLength)
	}
	if regionCount == 0 {
		flags = append(flags, QualityFlag{Severity: "error", Code: "EMPTY_BED", Message: "BED file contains no regions."})
	}

	suggestions := []AnalysisSuggestion{
		{Name: "Region Analysis", Description: "Analyse coverage, overlaps, and annotation of genomic regions", Tools: []string{"bedtools", "deepTools"}, Priority: "suggested", ExampleQuery: "Analyse these genomic regions: check overlaps with genes and regulatory elements"},
	}

	return ProfileResult{
		Stats: stats, Preview: strings.Join(preview, "\n"), QualityFlags: flags,
		SuggestedAnalyses: suggestions, OverallQuality: overallQuality(flags),
	}
}

// FastaProfiler profiles FASTA sequence files.
type FastaProfiler struct{}

func (FastaProfiler) Profile(path string, format FileFormat) ProfileResult {
	stats := map[string]string{}
	var flags []QualityFlag
	var preview []string

	isGz := strings.Contains(format.Extension, "gz")
	r, err := openMaybeGzip(path, isGz)
	if err != nil {
		return errorResult("READ_ERROR", fmt.Sprintf("Error reading FASTA: %v", err))
	}
	defer r.Close()

	seqCount := 0
	totalLength := 0
	var lengths []int
	gcCount := 0
	var headers []string
	currentLength := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if seqCount < 3 && len(preview) < 8 {
			preview = append(preview, truncate(line, 100))
		}
		if strings.HasPrefix(line, ">") {
			if currentLength > 0 {
				lengths = append(lengths, currentLength)
				totalLength += currentLength
			}
			currentLength = 0
			seqCount++
			headerName := strings.TrimPrefix(line, ">")
			if fields := strings.Fields(headerName); len(fields) > 0 {
				headers = append(headers, fields[0])
			}
		} else {
			currentLength += len(line)
			upper := strings.ToUpper(line)
			gcCount += strings.Count(upper, "G") + strings.Count(upper, "C")
		}
	}
	if currentLength > 0 {
		lengths = append(lengths, currentLength)
		totalLength += currentLength
	}

	stats["total_sequences"] = strconv.Itoa(seqCount)
	stats["total_length"] = fmt.Sprintf("%d bp/aa", totalLength)
	if len(lengths) > 0 {
		sum, min, max := 0, lengths[0], lengths[0]
		for _, l := range lengths {
			sum += l
			if l < min {
				min = l
			}
			if l > max {
				max = l
			}
		}
		stats["mean_length"] = fmt.Sprintf("%.0f", float64(sum)/float64(len(lengths)))
		stats["min_length"] = strconv.Itoa(min)
		stats["max_length"] = strconv.Itoa(max)

		sorted := append([]int(nil), lengths...)
		sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
		cumulative := 0
		for _, l := range sorted {
			cumulative += l
			if float64(cumulative) >= float64(totalLength)/2 {
				stats["N50"] = strconv.Itoa(l)
				break
			}
		}
	}
	if totalLength > 0 {
		gcPct := float64(gcCount) / float64(totalLength) * 100
		stats["gc_content"] = fmt.Sprintf("%.1f%%", gcPct)
		if gcPct/100 < 0.1 {
			stats["sequence_type"] = "protein"
		} else {
			stats["sequence_type"] = "nucleotide"
		}
	}
	if len(headers) > 5 {
		headers = headers[:5]
	}
	if len(headers) > 0 {
		stats["first_headers"] = strings.Join(headers, ", ")
	}

	suggestions := []AnalysisSuggestion{
		{Name: "Sequence Search", Description: "Search sequences against databases", Tools: []string{"BLAST", "DIAMOND", "MMseqs2"}, Priority: "suggested", ExampleQuery: "BLAST these sequences against the nr database"},
		{Name: "Multiple Sequence Alignment", Description: "Align sequences and build phylogeny", Tools: []string{"MAFFT", "MUSCLE", "ClustalOmega"}, Priority: "suggested", ExampleQuery: "Align these sequences with MAFFT and build a phylogenetic tree"},
	}

	overall := "good"
	if len(flags) > 0 {
		overall = "poor"
	}

	return ProfileResult{
		Stats: stats, Preview: strings.Join(preview, "\n"), QualityFlags: flags,
		SuggestedAnalyses: suggestions, OverallQuality: overall,
	}
}

// GenericProfiler is the fallback profiler for unrecognized or unsupported
// formats: it reports a short preview and basic line/byte counts only.
type GenericProfiler struct{}

func (GenericProfiler) Profile(path string, format FileFormat) ProfileResult {
	stats := map[string]string{}
	preview := ""

	if !format.IsBinary {
		f, err := os.Open(path)
		if err == nil {
			defer f.Close()
			scanner := bufio.NewScanner(f)
			var lines []string
			lineCount := 0
			for scanner.Scan() {
				lineCount++
				if len(lines) < 20 {
					lines = append(lines, scanner.Text())
				}
			}
			preview = strings.Join(lines, "\n")
			stats["line_count"] = strconv.Itoa(lineCount)
		}
	}

	if info, err := os.Stat(path); err == nil {
		stats["file_size"] = humanBytes(info.Size())
	}

	return ProfileResult{
		Stats: stats, Preview: preview,
		SuggestedAnalyses: []AnalysisSuggestion{
			{Name: "Manual Inspection", Description: "Format was not automatically recognized — inspect manually before analysis", Priority: "required", ExampleQuery: "What kind of file is this and how should I analyse it?"},
		},
		OverallQuality: "unknown",
	}
}
