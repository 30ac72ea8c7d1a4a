package memory

import "regexp"

// ExtractedEntity is a candidate entity found in free text by pattern
// matching, before it has been deduplicated into a Graph.
type ExtractedEntity struct {
	Name        string
	Type        EntityType
	Identifiers map[string]string
}

var (
	// geneSymbolPattern matches HGNC-style gene symbols: 2-10 uppercase
	// letters/digits starting with a letter (BRCA1, TP53, EGFR, HLA-A).
	geneSymbolPattern = regexp.MustCompile(`\b[A-Z][A-Z0-9]{1,9}(-[A-Z0-9]+)?\b`)
	rsidPattern       = regexp.MustCompile(`\brs\d{2,}\b`)
	uniprotPattern    = regexp.MustCompile(`\b[OPQ][0-9][A-Z0-9]{3}[0-9]\b|\b[A-NR-Z][0-9]([A-Z][A-Z0-9]{2}[0-9]){1,2}\b`)

	// commonGeneLikeWords excludes acronyms that match the gene-symbol
	// shape but are not gene symbols in the tool-output contexts this
	// package sees them in.
	commonGeneLikeWords = map[string]struct{}{
		"DNA": {}, "RNA": {}, "PCR": {}, "SNP": {}, "VCF": {}, "BAM": {},
		"GTF": {}, "GFF": {}, "BED": {}, "URL": {}, "API": {}, "CSV": {},
		"TSV": {}, "PDF": {}, "XML": {}, "JSON": {}, "HTTP": {}, "HTTPS": {},
		"PDB": {}, "ID": {}, "IDS": {}, "OK": {}, "NCBI": {}, "GO": {},
	}

	// structureSignals requires an explicit "PDB ID:" label rather than
	// matching bare 4-character alphanumerics, which collide with far too
	// much ordinary text.
	structureSignals = regexp.MustCompile(`(?i)\bpdb[\s:]*id[\s:]*([1-9][A-Za-z0-9]{3})\b`)
)

// ExtractEntities scans tool output text for gene symbols, dbSNP rsIDs,
// UniProt accessions, and PDB structure ids, the way a handler would before
// calling Graph.UpsertEntity. It is a heuristic pattern pass, not a parser —
// callers that know the entity from structured data should upsert it
// directly instead of round-tripping through text.
func ExtractEntities(text string) []ExtractedEntity {
	var out []ExtractedEntity
	seen := map[string]struct{}{}

	for _, m := range geneSymbolPattern.FindAllString(text, -1) {
		if _, skip := commonGeneLikeWords[m]; skip {
			continue
		}
		if len(m) < 2 {
			continue
		}
		key := "gene:" + m
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ExtractedEntity{Name: m, Type: EntityGene, Identifiers: map[string]string{"hgnc_symbol": m}})
	}

	for _, m := range rsidPattern.FindAllString(text, -1) {
		key := "variant:" + m
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ExtractedEntity{Name: m, Type: EntityVariant, Identifiers: map[string]string{"dbsnp": m}})
	}

	for _, m := range structureSignals.FindAllStringSubmatch(text, -1) {
		id := m[1]
		key := "structure:" + id
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ExtractedEntity{Name: id, Type: EntityStructure, Identifiers: map[string]string{"pdb": id}})
	}

	for _, m := range uniprotPattern.FindAllString(text, -1) {
		key := "protein:" + m
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ExtractedEntity{Name: m, Type: EntityProtein, Identifiers: map[string]string{"uniprot": m}})
	}

	return out
}
