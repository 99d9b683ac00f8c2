package enums

import "testing"

func TestParseSourceType(t *testing.T) {
	got, err := ParseSourceType("google-sheet")
	if err != nil || got != SourceTypeGoogleSheet {
		t.Fatalf("expected google-sheet, got %q err=%v", got, err)
	}
	if _, err := ParseSourceType("xlsx"); err == nil {
		t.Fatal("expected error for unknown source type")
	}
}

func TestSourceTypeIsFile(t *testing.T) {
	for _, st := range []SourceType{SourceTypeExcel, SourceTypeCSV, SourceTypePDF} {
		if !st.IsFile() {
			t.Fatalf("%s should be a file source", st)
		}
	}
	if SourceTypeGoogleSheet.IsFile() || SourceTypeManual.IsFile() {
		t.Fatal("sheet and manual sources are not files")
	}
}

func TestFileTypeMapsToSourceType(t *testing.T) {
	if FileTypeCSV.SourceType() != SourceTypeCSV || !FileTypePDF.SourceType().IsValid() {
		t.Fatal("file types should map onto source types")
	}
}

func TestParseAlertStatus(t *testing.T) {
	for _, raw := range []string{"active", "resolved", "dismissed"} {
		if _, err := ParseAlertStatus(raw); err != nil {
			t.Fatalf("unexpected error for %s: %v", raw, err)
		}
	}
	if _, err := ParseAlertStatus("all"); err == nil {
		t.Fatal("all is a list filter, not a status")
	}
	if AlertType("warning").IsValid() {
		t.Fatal("unexpected valid alert type")
	}
}

func TestParseStockStatus(t *testing.T) {
	if _, err := ParseStockStatus("low-stock"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseStockStatus("low_stock"); err == nil {
		t.Fatal("expected error for underscore variant")
	}
}
