// Package ingest implements the file ingestion pipeline: source detection,
// fetching into the workspace, format detection, per-format profiling, and
// dataset-level validation against an analysis type.
package ingest

import (
	"os"
	"path/filepath"
	"strings"
)

// SourceType discriminates where a SourceDescriptor's bytes come from.
type SourceType string

const (
	SourceLocal  SourceType = "local"
	SourceURL    SourceType = "url"
	SourceS3     SourceType = "s3"
	SourceGCS    SourceType = "gcs"
	SourceRaw    SourceType = "raw"
	SourceUpload SourceType = "upload"
)

// SourceDescriptor identifies where to fetch a file from, before it has been
// fetched into the workspace.
type SourceDescriptor struct {
	Type          SourceType
	Location      string // path, URL, or bucket URI
	OriginalName  string
	SuggestedName string
	Bucket        string // populated for S3/GCS
	Key           string // populated for S3/GCS
	RawContent    string // populated for SourceRaw
}

// DetectSource classifies a free-form string the way a user would paste it:
// a bucket URI, a URL, inline sequence data, or a local path.
func DetectSource(input string) SourceDescriptor {
	s := strings.TrimSpace(input)

	switch {
	case strings.HasPrefix(s, "s3://"):
		return fromBucketURI(SourceS3, s, "s3://")
	case strings.HasPrefix(s, "gs://"):
		return fromBucketURI(SourceGCS, s, "gs://")
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"), strings.HasPrefix(s, "ftp://"):
		return fromURL(s)
	case strings.HasPrefix(s, ">") || looksLikeSequence(s):
		ext := "txt"
		if strings.HasPrefix(s, ">") {
			ext = "fasta"
		}
		return SourceDescriptor{Type: SourceRaw, Location: "<inline>", OriginalName: "input." + ext, SuggestedName: "input." + ext, RawContent: s}
	case fileExists(s):
		abs, err := filepath.Abs(s)
		if err != nil {
			abs = s
		}
		return SourceDescriptor{Type: SourceLocal, Location: abs, OriginalName: filepath.Base(s)}
	case strings.ContainsAny(s, "/\\"):
		abs, err := filepath.Abs(s)
		if err != nil {
			abs = s
		}
		return SourceDescriptor{Type: SourceLocal, Location: abs, OriginalName: filepath.Base(s)}
	default:
		return SourceDescriptor{Type: SourceRaw, Location: "<inline>", OriginalName: "input_data.txt", SuggestedName: "input_data.txt", RawContent: s}
	}
}

func fromURL(raw string) SourceDescriptor {
	name := "downloaded_file"
	if idx := strings.LastIndexAny(raw, "/"); idx >= 0 && idx < len(raw)-1 {
		candidate := raw[idx+1:]
		if q := strings.IndexAny(candidate, "?#"); q >= 0 {
			candidate = candidate[:q]
		}
		if candidate != "" {
			name = candidate
		}
	}
	return SourceDescriptor{Type: SourceURL, Location: raw, OriginalName: name}
}

func fromBucketURI(typ SourceType, uri, prefix string) SourceDescriptor {
	rest := strings.TrimPrefix(uri, prefix)
	parts := strings.SplitN(rest, "/", 2)
	bucket := parts[0]
	key := ""
	if len(parts) > 1 {
		key = parts[1]
	}
	name := "s3_file"
	if typ == SourceGCS {
		name = "gcs_file"
	}
	if key != "" {
		name = filepath.Base(key)
	}
	return SourceDescriptor{Type: typ, Location: uri, OriginalName: name, Bucket: bucket, Key: key}
}

// NewUploadSource describes a file already staged on local disk by an upload
// handler (e.g. a multipart HTTP request).
func NewUploadSource(stagedPath, originalName string) SourceDescriptor {
	return SourceDescriptor{Type: SourceUpload, Location: stagedPath, OriginalName: originalName}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// looksLikeSequence reports whether text looks like a raw nucleotide or
// protein sequence pasted directly into a chat turn.
func looksLikeSequence(text string) bool {
	t := strings.ToUpper(strings.ReplaceAll(strings.ReplaceAll(strings.TrimSpace(text), "\n", ""), " ", ""))
	if len(t) < 10 {
		return false
	}
	const nucleotideChars = "ACGTURYKMSWBDHVN"
	const proteinChars = "ACDEFGHIKLMNPQRSTVWY"
	return isSubsetOf(t, nucleotideChars) || isSubsetOf(t, proteinChars)
}

func isSubsetOf(s, alphabet string) bool {
	for _, r := range s {
		if !strings.ContainsRune(alphabet, r) {
			return false
		}
	}
	return true
}
