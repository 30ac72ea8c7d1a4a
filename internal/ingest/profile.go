package ingest

// QualityFlag is an observation raised while profiling a file, ranked by
// Severity so callers can decide whether a dataset is usable as-is.
type QualityFlag struct {
	Severity string // "info", "warning", "error"
	Code     string
	Message  string
}

// AnalysisSuggestion recommends a downstream analysis step implied by a
// file's contents.
type AnalysisSuggestion struct {
	Name           string
	Description    string
	Tools          []string
	Prerequisites  []string
	Priority       string // "required" or "suggested"
	ExampleQuery   string
}

// ColumnInfo summarizes one column of a tabular file.
type ColumnInfo struct {
	Name          string
	DType         string
	NullCount     int
	NullPct       float64
	UniqueValues  int
	Min, Max, Mean float64
	HasNumericStats bool
	SampleValues  []string
}

// FileProfile is the result of profiling one fetched, format-detected file.
type FileProfile struct {
	FilePath           string
	FileName           string
	Format             FileFormat
	SizeBytes          int64
	SizeHuman          string
	MD5                string
	Stats              map[string]string
	Preview            string
	ColumnInfo         []ColumnInfo
	QualityFlags       []QualityFlag
	OverallQuality     string // "good", "acceptable", "poor", "unknown"
	SuggestedAnalyses  []AnalysisSuggestion
	CompanionFiles     []string
	MissingCompanions  []string
}

// overallQuality derives the good/acceptable/poor tier from a set of flags,
// matching every profiler's identical error > warning > good precedence.
func overallQuality(flags []QualityFlag) string {
	hasError, hasWarning := false, false
	for _, f := range flags {
		switch f.Severity {
		case "error":
			hasError = true
		case "warning":
			hasWarning = true
		}
	}
	switch {
	case hasError:
		return "poor"
	case hasWarning:
		return "acceptable"
	default:
		return "good"
	}
}

// Profiler extracts statistics, a preview, quality flags, and analysis
// suggestions from a fetched file of a known format.
type Profiler interface {
	Profile(path string, format FileFormat) ProfileResult
}

// ProfileResult is what a Profiler.Profile call produces before it is
// assembled into a full FileProfile by the ingestor.
type ProfileResult struct {
	Stats             map[string]string
	Preview           string
	ColumnInfo        []ColumnInfo
	QualityFlags      []QualityFlag
	SuggestedAnalyses []AnalysisSuggestion
	CompanionFiles    []string
	MissingCompanions []string
	OverallQuality    string
}

// GetProfiler resolves the Profiler to use for a detected format name,
// falling back to GenericProfiler for anything unrecognized.
func GetProfiler(formatName string) Profiler {
	switch {
	case formatName == "FASTQ" || formatName == "FASTQ (gzipped)":
		return FastqProfiler{}
	case formatName == "VCF" || formatName == "VCF (bgzipped)":
		return VCFProfiler{}
	case formatName == "BAM":
		return BAMProfiler{}
	case formatName == "CSV" || formatName == "TSV" || formatName == "Excel" || formatName == "Excel (legacy)":
		return TabularProfiler{}
	case formatName == "BED":
		return BedProfiler{}
	case formatName == "FASTA" || formatName == "FASTA (gzipped)":
		return FastaProfiler{}
	default:
		return GenericProfiler{}
	}
}
