package memory

import "testing"

func TestExtractEntitiesGenesAndVariants(t *testing.T) {
	text := "The variant rs429358 in APOE is associated with Alzheimer's risk; see also TP53."
	entities := ExtractEntities(text)

	byName := map[string]ExtractedEntity{}
	for _, e := range entities {
		byName[e.Name] = e
	}

	if e, ok := byName["rs429358"]; !ok || e.Type != EntityVariant {
		t.Fatalf("expected rs429358 extracted as a variant, got %+v (ok=%v)", e, ok)
	}
	if e, ok := byName["APOE"]; !ok || e.Type != EntityGene {
		t.Fatalf("expected APOE extracted as a gene, got %+v (ok=%v)", e, ok)
	}
	if e, ok := byName["TP53"]; !ok || e.Type != EntityGene {
		t.Fatalf("expected TP53 extracted as a gene, got %+v (ok=%v)", e, ok)
	}
}

func TestExtractEntitiesExcludesCommonAcronyms(t *testing.T) {
	text := "Export the variants to a VCF file, then parse the XML and JSON output."
	entities := ExtractEntities(text)
	for _, e := range entities {
		if e.Name == "VCF" || e.Name == "XML" || e.Name == "JSON" {
			t.Fatalf("expected common acronym %q to be excluded, got %+v", e.Name, entities)
		}
	}
}

func TestExtractEntitiesStructureRequiresLabel(t *testing.T) {
	labeled := ExtractEntities("The crystal structure is deposited as PDB ID: 1ABC.")
	found := false
	for _, e := range labeled {
		if e.Type == EntityStructure && e.Name == "1ABC" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected labeled PDB id to be extracted, got %+v", labeled)
	}

	unlabeled := ExtractEntities("The code 1ABC appeared in an unrelated context.")
	for _, e := range unlabeled {
		if e.Type == EntityStructure {
			t.Fatalf("expected unlabeled 4-character token not to be extracted as a structure, got %+v", unlabeled)
		}
	}
}

func TestExtractEntitiesDeduplicatesRepeats(t *testing.T) {
	text := "BRCA1 BRCA1 BRCA1 mutations are well studied; BRCA1 again."
	entities := ExtractEntities(text)
	count := 0
	for _, e := range entities {
		if e.Name == "BRCA1" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected BRCA1 to be deduplicated to one entry, got %d", count)
	}
}
