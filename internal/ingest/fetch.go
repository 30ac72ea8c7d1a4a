package ingest

import (
	"context"
	"crypto/md5" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// FetchedFile is a file that has been materialized into the workspace's
// ingested directory, ready for format detection and profiling.
type FetchedFile struct {
	LocalPath       string
	OriginalName    string
	Source          SourceDescriptor
	SizeBytes       int64
	MD5             string
	FetchTime       time.Time
	IsCompressed    bool
	CompressionType string
}

var doubleExtensions = []string{
	".fastq.gz", ".fasta.gz", ".fa.gz", ".fq.gz",
	".vcf.gz", ".bed.gz", ".gff.gz", ".gtf.gz",
	".sam.gz", ".tar.gz", ".tar.bz2", ".tar.xz",
	".csv.gz", ".tsv.gz",
}

// Extension returns the file extension, recognizing compound extensions
// such as ".fastq.gz" instead of just ".gz".
func (f FetchedFile) Extension() string {
	lower := strings.ToLower(f.LocalPath)
	for _, ext := range doubleExtensions {
		if strings.HasSuffix(lower, ext) {
			return ext
		}
	}
	return strings.ToLower(filepath.Ext(f.LocalPath))
}

// SizeHuman renders SizeBytes as a human-readable size string.
func (f FetchedFile) SizeHuman() string {
	return humanBytes(f.SizeBytes)
}

func humanBytes(n int64) string {
	size := float64(n)
	for _, unit := range []string{"B", "KB", "MB", "GB", "TB"} {
		if size < 1024 {
			if unit == "B" {
				return fmt.Sprintf("%d %s", n, unit)
			}
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.1f PB", size)
}

// Fetcher materializes SourceDescriptors into the workspace's ingested
// directory. S3Client is optional; when nil, s3:// sources fail with a
// descriptive error instead of panicking.
type Fetcher struct {
	Workspace  string
	S3Client   *s3.Client
	HTTPClient *http.Client
}

// NewFetcher builds a Fetcher rooted at workspace, creating the ingested
// directory if needed.
func NewFetcher(workspace string, s3Client *s3.Client) (*Fetcher, error) {
	ingestedDir := filepath.Join(workspace, "data", "ingested")
	if err := os.MkdirAll(ingestedDir, 0o755); err != nil {
		return nil, fmt.Errorf("ingest: create ingested dir: %w", err)
	}
	return &Fetcher{
		Workspace:  workspace,
		S3Client:   s3Client,
		HTTPClient: &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

func (f *Fetcher) ingestedDir() string {
	return filepath.Join(f.Workspace, "data", "ingested")
}

// Fetch materializes source into the workspace, choosing a collision-free
// target filename if one is not provided.
func (f *Fetcher) Fetch(ctx context.Context, source SourceDescriptor, targetName string) (*FetchedFile, error) {
	name := targetName
	if name == "" {
		name = source.SuggestedName
	}
	if name == "" {
		name = source.OriginalName
	}
	if name == "" {
		name = "ingested_file"
	}

	target := f.collisionFreeTarget(name)

	var err error
	switch source.Type {
	case SourceLocal, SourceUpload:
		err = f.fetchLocal(source.Location, target)
	case SourceURL:
		err = f.fetchURL(ctx, source.Location, target)
	case SourceS3:
		err = f.fetchS3(ctx, source, target)
	case SourceGCS:
		err = f.fetchGCS(ctx, source, target)
	case SourceRaw:
		err = f.fetchRaw(source.RawContent, target)
	default:
		err = fmt.Errorf("ingest: unsupported source type %q", source.Type)
	}
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("ingest: stat fetched file: %w", err)
	}
	sum, err := computeMD5(target)
	if err != nil {
		return nil, fmt.Errorf("ingest: checksum fetched file: %w", err)
	}
	compressed, compType := detectCompression(target)

	return &FetchedFile{
		LocalPath:       target,
		OriginalName:    source.OriginalName,
		Source:          source,
		SizeBytes:       info.Size(),
		MD5:             sum,
		FetchTime:       time.Now(),
		IsCompressed:    compressed,
		CompressionType: compType,
	}, nil
}

// collisionFreeTarget picks ingestedDir/name, or ingestedDir/name_N.ext if
// that path is already occupied, incrementing N until a free path is found.
func (f *Fetcher) collisionFreeTarget(name string) string {
	dir := f.ingestedDir()
	target := filepath.Join(dir, name)
	if !fileExists(target) {
		return target
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for counter := 1; ; counter++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, counter, ext))
		if !fileExists(candidate) {
			return candidate
		}
	}
}

func (f *Fetcher) fetchLocal(path, target string) error {
	srcAbs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("ingest: resolve local source: %w", err)
	}
	if _, err := os.Stat(srcAbs); err != nil {
		return fmt.Errorf("ingest: local source not found: %w", err)
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("ingest: resolve target: %w", err)
	}
	if srcAbs == targetAbs {
		return nil
	}
	return copyFile(srcAbs, target)
}

func (f *Fetcher) fetchURL(ctx context.Context, url, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("ingest: build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", "BioAgent/1.0")
	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("ingest: download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ingest: download %s: status %d", url, resp.StatusCode)
	}
	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("ingest: create target file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("ingest: write downloaded file: %w", err)
	}
	return nil
}

func (f *Fetcher) fetchS3(ctx context.Context, source SourceDescriptor, target string) error {
	if f.S3Client == nil {
		return fmt.Errorf("ingest: no S3 client configured for %s", source.Location)
	}
	out, err := f.S3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &source.Bucket,
		Key:    &source.Key,
	})
	if err != nil {
		return fmt.Errorf("ingest: s3 get object %s: %w", source.Location, err)
	}
	defer out.Body.Close()
	file, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("ingest: create target file: %w", err)
	}
	defer file.Close()
	if _, err := io.Copy(file, out.Body); err != nil {
		return fmt.Errorf("ingest: write s3 object: %w", err)
	}
	return nil
}

// fetchGCS downloads from a public GCS bucket over HTTPS. The pack carries
// no Google Cloud Storage client library, so this falls back to the public
// object-download endpoint rather than adding an unwired dependency; private
// buckets need a signed URL passed in as a plain http:// source instead.
func (f *Fetcher) fetchGCS(ctx context.Context, source SourceDescriptor, target string) error {
	url := fmt.Sprintf("https://storage.googleapis.com/%s/%s", source.Bucket, source.Key)
	return f.fetchURL(ctx, url, target)
}

func (f *Fetcher) fetchRaw(content, target string) error {
	return os.WriteFile(target, []byte(content), 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("ingest: open source file: %w", err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("ingest: create target file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("ingest: copy file: %w", err)
	}
	return nil
}

func computeMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New() //nolint:gosec
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func detectCompression(path string) (bool, string) {
	f, err := os.Open(path)
	if err != nil {
		return false, ""
	}
	defer f.Close()
	magic := make([]byte, 6)
	n, _ := io.ReadFull(f, magic)
	magic = magic[:n]

	switch {
	case hasPrefix(magic, 0x1f, 0x8b):
		return true, "gzip"
	case len(magic) >= 3 && string(magic[:3]) == "BZh":
		return true, "bzip2"
	case hasPrefix(magic, 0xfd, '7', 'z', 'X', 'Z', 0x00):
		return true, "xz"
	case hasPrefix(magic, 'P', 'K', 0x03, 0x04):
		return true, "zip"
	case hasPrefix(magic, 0x42, 0x41, 0x4d, 0x01):
		return true, "bam"
	case len(magic) >= 4 && string(magic[:4]) == "CRAM":
		return true, "cram"
	default:
		return false, ""
	}
}

func hasPrefix(b []byte, want ...byte) bool {
	if len(b) < len(want) {
		return false
	}
	for i, w := range want {
		if b[i] != w {
			return false
		}
	}
	return true
}
