package ingest

import (
	"strings"
	"testing"
)

const paramTable = `Param | Description | Command | Default | Range | Unit
--- | --- | --- | --- | --- | ---
Battery Level | Reports remaining battery charge | GETPARAM 1 | - | 0-100 | %
APN Name | Access point for GPRS | SETPARAM 10 <apn> | internet | - | -
Vehicle Plate | Plate shown in reports | SETPARAM 25 <plate> | - | - | -`

func TestSplitParamTableRowPerChunk(t *testing.T) {
	t.Parallel()
	chunks := SplitParamTable(RawDocument{Source: "FM130 Parametre Listesi.pdf", Text: paramTable})
	if len(chunks) != 3 {
		t.Fatalf("expected 3 row chunks, got %d", len(chunks))
	}

	first := chunks[0]
	if first.Metadata["param_name"] != "Battery Level" {
		t.Fatalf("param_name = %q", first.Metadata["param_name"])
	}
	if first.Metadata["sms_format"] != "GETPARAM 1" {
		t.Fatalf("sms_format = %q", first.Metadata["sms_format"])
	}
	if first.Metadata["has_sms_format"] != "true" {
		t.Fatalf("has_sms_format = %q", first.Metadata["has_sms_format"])
	}
	if first.Metadata["logical_type"] != "param_row" {
		t.Fatalf("logical_type = %q", first.Metadata["logical_type"])
	}
	// The row text is a complete self-contained fact.
	for _, want := range []string{"Battery Level", "GETPARAM 1", "0-100"} {
		if !strings.Contains(first.Text, want) {
			t.Fatalf("row text missing %q: %s", want, first.Text)
		}
	}
}

func TestSplitParamTableTurkishHeaders(t *testing.T) {
	t.Parallel()
	table := "Parametre | Açıklama | Komut | Varsayılan | Aralık | Birim\n" +
		"Batarya | Batarya seviyesini verir | GETPARAM 1 | - | 0-100 | %"
	chunks := SplitParamTable(RawDocument{Source: "params.txt", Text: table})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Metadata["param_name"] != "Batarya" {
		t.Fatalf("param_name = %q", chunks[0].Metadata["param_name"])
	}
	if chunks[0].Metadata["description"] != "Batarya seviyesini verir" {
		t.Fatalf("description = %q", chunks[0].Metadata["description"])
	}
}

func TestSplitParamTableIgnoresNonTableText(t *testing.T) {
	t.Parallel()
	chunks := SplitParamTable(RawDocument{Source: "params.txt", Text: "No pipes here.\nJust prose."})
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks from prose, got %d", len(chunks))
	}
}

func TestIsParamTable(t *testing.T) {
	t.Parallel()
	if !IsParamTable("FM130 Parametre Listesi.pdf") {
		t.Fatalf("parameter list should take the table path")
	}
	if IsParamTable("user-manual.pdf") {
		t.Fatalf("manual should take the plain split path")
	}
}
