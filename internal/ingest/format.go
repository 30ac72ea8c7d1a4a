package ingest

import (
	"bufio"
	"compress/gzip"
	"os"
	"sort"
	"strconv"
	"strings"
)

// FormatCategory is the high-level grouping a detected format belongs to.
type FormatCategory string

const (
	CategorySequence      FormatCategory = "sequence"
	CategoryVariant       FormatCategory = "variant"
	CategoryExpression    FormatCategory = "expression"
	CategoryAnnotation    FormatCategory = "annotation"
	CategoryAlignment     FormatCategory = "alignment"
	CategoryStructure     FormatCategory = "structure"
	CategoryTabular       FormatCategory = "tabular"
	CategoryGenomicRanges FormatCategory = "genomic_ranges"
	CategoryPhylogenetic  FormatCategory = "phylogenetic"
	CategoryImage         FormatCategory = "image"
	CategoryDocument      FormatCategory = "document"
	CategoryArchive       FormatCategory = "archive"
	CategoryOther         FormatCategory = "other"
)

// FileFormat describes a detected bioinformatics file format.
type FileFormat struct {
	Name            string
	Category        FormatCategory
	Extension       string
	Description     string
	IsBinary        bool
	IsIndexed       bool
	IndexExtensions []string
	TypicalTools    []string
	Confidence      float64
}

var formats = map[string]FileFormat{
	"fastq": {
		Name: "FASTQ", Category: CategorySequence, Extension: ".fastq",
		Description:  "Sequencing reads with quality scores",
		TypicalTools: []string{"FastQC", "fastp", "trimmomatic", "cutadapt", "STAR", "BWA"},
	},
	"fastq.gz": {
		Name: "FASTQ (gzipped)", Category: CategorySequence, Extension: ".fastq.gz",
		Description:  "Compressed sequencing reads with quality scores",
		IsBinary:     true,
		TypicalTools: []string{"FastQC", "fastp", "STAR", "BWA", "minimap2"},
	},
	"fasta": {
		Name: "FASTA", Category: CategorySequence, Extension: ".fasta",
		Description:  "Nucleotide or protein sequences",
		TypicalTools: []string{"BLAST", "MAFFT", "MUSCLE", "samtools faidx"},
	},
	"fasta.gz": {
		Name: "FASTA (gzipped)", Category: CategorySequence, Extension: ".fasta.gz",
		IsBinary: true, Description: "Compressed sequences",
		TypicalTools: []string{"samtools", "seqkit"},
	},
	"bam": {
		Name: "BAM", Category: CategoryAlignment, Extension: ".bam",
		Description: "Binary alignment map — aligned sequencing reads", IsBinary: true,
		IndexExtensions: []string{".bai", ".bam.bai"},
		TypicalTools:    []string{"samtools", "picard", "IGV", "deepTools", "featureCounts"},
	},
	"sam": {
		Name: "SAM", Category: CategoryAlignment, Extension: ".sam",
		Description: "Sequence alignment map (text format)", TypicalTools: []string{"samtools", "picard"},
	},
	"cram": {
		Name: "CRAM", Category: CategoryAlignment, Extension: ".cram",
		Description: "Compressed reference-based alignment", IsBinary: true,
		IndexExtensions: []string{".crai"}, TypicalTools: []string{"samtools", "cramtools"},
	},
	"vcf": {
		Name: "VCF", Category: CategoryVariant, Extension: ".vcf",
		Description:  "Variant call format — SNVs, indels, structural variants",
		TypicalTools: []string{"bcftools", "GATK", "VEP", "SnpEff", "SnpSift", "plink"},
	},
	"vcf.gz": {
		Name: "VCF (bgzipped)", Category: CategoryVariant, Extension: ".vcf.gz",
		Description: "Compressed variant calls (bgzip + tabix indexed)", IsBinary: true,
		IndexExtensions: []string{".tbi", ".csi"}, TypicalTools: []string{"bcftools", "tabix", "GATK", "VEP"},
	},
	"bcf": {
		Name: "BCF", Category: CategoryVariant, Extension: ".bcf",
		Description: "Binary variant call format", IsBinary: true,
		IndexExtensions: []string{".csi"}, TypicalTools: []string{"bcftools"},
	},
	"maf": {
		Name: "MAF", Category: CategoryVariant, Extension: ".maf",
		Description: "Mutation Annotation Format (somatic variants)", TypicalTools: []string{"maftools", "Oncotator"},
	},
	"h5ad": {
		Name: "AnnData (h5ad)", Category: CategoryExpression, Extension: ".h5ad",
		Description: "Annotated data matrix for single-cell analysis", IsBinary: true,
		TypicalTools: []string{"scanpy", "anndata", "Seurat (via SeuratDisk)"},
	},
	"h5": {
		Name: "HDF5", Category: CategoryExpression, Extension: ".h5",
		Description: "Hierarchical data format (10x Genomics, etc.)", IsBinary: true,
		TypicalTools: []string{"scanpy", "CellRanger", "h5py"},
	},
	"mtx": {
		Name: "Matrix Market", Category: CategoryExpression, Extension: ".mtx",
		Description: "Sparse matrix format (10x Genomics)", TypicalTools: []string{"scanpy", "Seurat", "scipy"},
	},
	"loom": {
		Name: "Loom", Category: CategoryExpression, Extension: ".loom",
		Description: "Large omics data matrix format", IsBinary: true,
		TypicalTools: []string{"loompy", "scanpy", "velocyto"},
	},
	"gff3": {
		Name: "GFF3", Category: CategoryAnnotation, Extension: ".gff3",
		Description: "Generic feature format version 3", TypicalTools: []string{"bedtools", "AGAT", "gffread"},
	},
	"gff": {
		Name: "GFF", Category: CategoryAnnotation, Extension: ".gff",
		Description: "Generic feature format", TypicalTools: []string{"bedtools", "AGAT"},
	},
	"gtf": {
		Name: "GTF", Category: CategoryAnnotation, Extension: ".gtf",
		Description:  "Gene transfer format (Ensembl/GENCODE annotations)",
		TypicalTools: []string{"featureCounts", "HTSeq", "StringTie", "STAR"},
	},
	"bed": {
		Name: "BED", Category: CategoryGenomicRanges, Extension: ".bed",
		Description: "Browser extensible data — genomic intervals", TypicalTools: []string{"bedtools", "deepTools", "HOMER"},
	},
	"bigwig": {
		Name: "BigWig", Category: CategoryGenomicRanges, Extension: ".bw",
		Description: "Binary indexed signal track", IsBinary: true,
		TypicalTools: []string{"deepTools", "IGV", "pyBigWig"},
	},
	"bedgraph": {
		Name: "BedGraph", Category: CategoryGenomicRanges, Extension: ".bedgraph",
		Description: "Genomic signal track (text)", TypicalTools: []string{"bedtools", "UCSC tools"},
	},
	"pdb": {
		Name: "PDB", Category: CategoryStructure, Extension: ".pdb",
		Description: "Protein Data Bank 3D structure", TypicalTools: []string{"PyMOL", "ChimeraX", "Mol*", "Biopython"},
	},
	"cif": {
		Name: "mmCIF", Category: CategoryStructure, Extension: ".cif",
		Description: "Macromolecular Crystallographic Information File", TypicalTools: []string{"PyMOL", "ChimeraX", "Mol*"},
	},
	"newick": {
		Name: "Newick", Category: CategoryPhylogenetic, Extension: ".nwk",
		Description: "Phylogenetic tree format", TypicalTools: []string{"FigTree", "iTOL", "ete3", "ggtree"},
	},
	"nexus": {
		Name: "Nexus", Category: CategoryPhylogenetic, Extension: ".nex",
		Description: "NEXUS phylogenetic data format", TypicalTools: []string{"MrBayes", "BEAST", "FigTree"},
	},
	"csv": {
		Name: "CSV", Category: CategoryTabular, Extension: ".csv",
		Description: "Comma-separated values", TypicalTools: []string{"pandas", "R (readr)", "Excel"},
	},
	"tsv": {
		Name: "TSV", Category: CategoryTabular, Extension: ".tsv",
		Description: "Tab-separated values", TypicalTools: []string{"pandas", "R (readr)", "awk"},
	},
	"xlsx": {
		Name: "Excel", Category: CategoryTabular, Extension: ".xlsx",
		Description: "Microsoft Excel spreadsheet", IsBinary: true,
		TypicalTools: []string{"pandas (openpyxl)", "R (readxl)"},
	},
	"xls": {
		Name: "Excel (legacy)", Category: CategoryTabular, Extension: ".xls",
		Description: "Legacy Excel format", IsBinary: true, TypicalTools: []string{"pandas (xlrd)", "R (readxl)"},
	},
	"parquet": {
		Name: "Parquet", Category: CategoryTabular, Extension: ".parquet",
		Description: "Columnar storage format", IsBinary: true, TypicalTools: []string{"pandas", "polars", "pyarrow"},
	},
	"pdf": {
		Name: "PDF", Category: CategoryDocument, Extension: ".pdf",
		Description: "PDF document (papers, reports)", IsBinary: true, TypicalTools: []string{"pdfplumber", "PyPDF2", "tabula-py"},
	},
	"png": {Name: "PNG", Category: CategoryImage, Extension: ".png", Description: "PNG image", IsBinary: true},
	"tiff": {
		Name: "TIFF", Category: CategoryImage, Extension: ".tiff",
		Description: "TIFF image (microscopy, histology)", IsBinary: true,
		TypicalTools: []string{"scikit-image", "Pillow", "OpenSlide"},
	},
	"svg": {Name: "SVG", Category: CategoryImage, Extension: ".svg", Description: "Scalable vector graphics"},
}

var extensionMap = map[string]string{
	".fastq": "fastq", ".fq": "fastq",
	".fastq.gz": "fastq.gz", ".fq.gz": "fastq.gz",
	".fasta": "fasta", ".fa": "fasta", ".fna": "fasta", ".faa": "fasta",
	".fasta.gz": "fasta.gz", ".fa.gz": "fasta.gz",
	".bam": "bam",
	".sam": "sam",
	".cram": "cram",
	".vcf": "vcf",
	".vcf.gz": "vcf.gz",
	".bcf": "bcf",
	".maf": "maf",
	".h5ad": "h5ad",
	".h5": "h5", ".hdf5": "h5",
	".mtx": "mtx", ".mtx.gz": "mtx",
	".loom": "loom",
	".gff3": "gff3",
	".gff": "gff",
	".gtf": "gtf",
	".bed": "bed",
	".bw": "bigwig", ".bigwig": "bigwig",
	".bedgraph": "bedgraph", ".bg": "bedgraph",
	".pdb": "pdb", ".ent": "pdb",
	".cif": "cif", ".mmcif": "cif",
	".nwk": "newick", ".newick": "newick", ".tree": "newick",
	".nex": "nexus", ".nexus": "nexus",
	".csv": "csv",
	".tsv": "tsv", ".tab": "tsv", ".txt": "tsv",
	".xlsx": "xlsx",
	".xls": "xls",
	".parquet": "parquet",
	".pdf": "pdf",
	".png": "png",
	".tiff": "tiff", ".tif": "tiff",
	".svg": "svg",
}

var sortedExtensions = func() []string {
	exts := make([]string, 0, len(extensionMap))
	for ext := range extensionMap {
		exts = append(exts, ext)
	}
	sort.Slice(exts, func(i, j int) bool { return len(exts[i]) > len(exts[j]) })
	return exts
}()

// DetectFormat identifies path's format by combining extension and content
// inspection: agreement raises confidence to 1.0, a content/extension
// disagreement favors content at 0.9, content-only detection is 0.8, and
// extension-only detection is 0.7. Neither signal yields an Unknown format
// at confidence 0.0 — detection never fails outright.
func DetectFormat(path string) FileFormat {
	extFormat, extOK := detectByExtension(path)
	contentFormat, contentOK := detectByContent(path)

	switch {
	case extOK && contentOK:
		if extFormat.Name == contentFormat.Name {
			extFormat.Confidence = 1.0
			return extFormat
		}
		contentFormat.Confidence = 0.9
		return contentFormat
	case contentOK:
		contentFormat.Confidence = 0.8
		return contentFormat
	case extOK:
		extFormat.Confidence = 0.7
		return extFormat
	default:
		ext := strings.ToLower(pathExt(path))
		return FileFormat{Name: "Unknown", Category: CategoryOther, Extension: ext, Description: "Unrecognized file format", Confidence: 0.0}
	}
}

func pathExt(path string) string {
	idx := strings.LastIndexByte(path, '.')
	slash := strings.LastIndexAny(path, "/\\")
	if idx <= slash {
		return ""
	}
	return path[idx:]
}

func detectByExtension(path string) (FileFormat, bool) {
	name := strings.ToLower(path)
	for _, ext := range sortedExtensions {
		if strings.HasSuffix(name, ext) {
			if fmtKey, ok := extensionMap[ext]; ok {
				if f, ok := formats[fmtKey]; ok {
					return f, true
				}
			}
			break
		}
	}
	return FileFormat{}, false
}

func detectByContent(path string) (FileFormat, bool) {
	f, err := os.Open(path)
	if err != nil {
		return FileFormat{}, false
	}
	defer f.Close()

	header := make([]byte, 1024)
	n, _ := f.Read(header)
	header = header[:n]
	if len(header) == 0 {
		return FileFormat{}, false
	}

	switch {
	case hasPrefix(header, 0x42, 0x41, 0x4d, 0x01):
		return formats["bam"], true
	case len(header) >= 4 && string(header[:4]) == "CRAM":
		return formats["cram"], true
	case hasPrefix(header, 0x1f, 0x8b):
		return detectGzippedContent(path)
	case len(header) >= 8 && string(header[:8]) == "\x89HDF\r\n\x1a\n":
		return detectHDF5Subtype(path), true
	case len(header) >= 5 && string(header[:5]) == "%PDF-":
		return formats["pdf"], true
	case len(header) >= 8 && string(header[:8]) == "\x89PNG\r\n\x1a\n":
		return formats["png"], true
	case len(header) >= 2 && (string(header[:2]) == "II" || string(header[:2]) == "MM"):
		return formats["tiff"], true
	case hasPrefix(header, 'P', 'K', 0x03, 0x04):
		return formats["xlsx"], true
	case len(header) >= 4 && string(header[:4]) == "PAR1":
		return formats["parquet"], true
	}

	text := string(header)
	lines := strings.Split(text, "\n")
	if len(lines) > 20 {
		lines = lines[:20]
	}
	return detectTextFormat(lines)
}

func detectTextFormat(lines []string) (FileFormat, bool) {
	if len(lines) == 0 {
		return FileFormat{}, false
	}
	first := strings.TrimSpace(lines[0])

	if strings.HasPrefix(first, "@") && len(lines) >= 4 && strings.HasPrefix(strings.TrimSpace(lines[2]), "+") {
		return formats["fastq"], true
	}
	if strings.HasPrefix(first, ">") {
		return formats["fasta"], true
	}
	if strings.HasPrefix(first, "##fileformat=VCF") {
		return formats["vcf"], true
	}
	if strings.HasPrefix(first, "@HD") || strings.HasPrefix(first, "@SQ") ||
		strings.HasPrefix(first, "@RG") || strings.HasPrefix(first, "@PG") || strings.HasPrefix(first, "@CO") {
		return formats["sam"], true
	}
	if strings.HasPrefix(first, "##gff-version 3") || strings.HasPrefix(first, "##gff-version\t3") {
		return formats["gff3"], true
	}
	for _, line := range firstN(lines, 10) {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.Contains(line, `gene_id "`) || strings.Contains(line, "gene_id '") {
			return formats["gtf"], true
		}
		break
	}

	var nonComment []string
	for _, l := range lines {
		trimmed := strings.TrimSpace(l)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "track") || strings.HasPrefix(trimmed, "browser") {
			continue
		}
		nonComment = append(nonComment, l)
	}
	if len(nonComment) > 0 {
		fields := strings.Split(nonComment[0], "\t")
		if len(fields) >= 3 {
			_, err1 := strconv.Atoi(strings.TrimSpace(fields[1]))
			_, err2 := strconv.Atoi(strings.TrimSpace(fields[2]))
			if err1 == nil && err2 == nil && (strings.HasPrefix(fields[0], "chr") || isDigits(fields[0])) {
				return formats["bed"], true
			}
		}
	}

	if strings.Contains(first, "Hugo_Symbol") || strings.Contains(first, "Variant_Classification") {
		return formats["maf"], true
	}

	stripped := strings.TrimSpace(first)
	if strings.HasPrefix(stripped, "(") && strings.HasSuffix(stripped, ";") {
		return formats["newick"], true
	}
	if strings.HasPrefix(strings.ToUpper(first), "#NEXUS") {
		return formats["nexus"], true
	}
	if strings.HasPrefix(first, "HEADER") || strings.HasPrefix(first, "ATOM  ") ||
		strings.HasPrefix(first, "HETATM") || strings.HasPrefix(first, "REMARK") {
		return formats["pdb"], true
	}

	var commaCount, tabCount int
	for _, l := range firstN(lines, 5) {
		commaCount += strings.Count(l, ",")
		tabCount += strings.Count(l, "\t")
	}
	if tabCount > commaCount && tabCount > 0 {
		return formats["tsv"], true
	}
	if commaCount > 0 {
		return formats["csv"], true
	}

	return FileFormat{}, false
}

func firstN(lines []string, n int) []string {
	if len(lines) < n {
		return lines
	}
	return lines[:n]
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func detectGzippedContent(path string) (FileFormat, bool) {
	f, err := os.Open(path)
	if err != nil {
		return FileFormat{}, false
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return FileFormat{}, false
	}
	defer gz.Close()

	scanner := bufio.NewScanner(gz)
	var lines []string
	for scanner.Scan() && len(lines) < 10 {
		lines = append(lines, scanner.Text())
	}
	if len(lines) == 0 {
		return FileFormat{}, false
	}
	first := strings.TrimSpace(lines[0])

	if strings.HasPrefix(first, "@") && len(lines) >= 4 && strings.HasPrefix(strings.TrimSpace(lines[2]), "+") {
		return formats["fastq.gz"], true
	}
	if strings.HasPrefix(first, ">") {
		return formats["fasta.gz"], true
	}
	if strings.HasPrefix(first, "##fileformat=VCF") {
		return formats["vcf.gz"], true
	}
	return FileFormat{}, false
}

func detectHDF5Subtype(path string) FileFormat {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".h5ad"):
		return formats["h5ad"]
	case strings.HasSuffix(lower, ".loom"):
		return formats["loom"]
	default:
		return formats["h5"]
	}
}
