package labelformat

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func sampleTemplate() *Template {
	return &Template{
		Version:      "1.0",
		Name:         "Asset tag",
		DesignWidth:  550,
		DesignHeight: 600,
		Objects: []Object{
			{ID: "a", Type: TypeTextbox, Left: 10, Top: 20, Width: 200, Height: 40, ScaleX: 1, ScaleY: 1, Text: "Asset: {{id}}", FontSize: 24, TextAlign: "center"},
			{ID: "b", Type: TypeTextbox, Left: 150, Top: 200, Width: 250, Height: 250, ScaleX: 1.5, ScaleY: 1.5, Text: "{{url}}"},
			{ID: "c", Type: TypeRect, Left: 0, Top: 0, Width: 550, Height: 600, ScaleX: 1, ScaleY: 1, Stroke: "#000000", StrokeWidth: 2},
			{ID: "d", Type: TypeBarcode, Left: 20, Top: 500, Width: 300, Height: 60, ScaleX: 1, ScaleY: 1, Text: "{{codigo}}", Format: "CODE128"},
		},
	}
}

func TestValidate_ValidTemplate(t *testing.T) {
	if err := Validate(sampleTemplate()); err != nil {
		t.Errorf("Expected valid template, got error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Template)
	}{
		{"missing version", func(tpl *Template) { tpl.Version = "" }},
		{"unsupported version", func(tpl *Template) { tpl.Version = "2.0" }},
		{"zero design width", func(tpl *Template) { tpl.DesignWidth = 0 }},
		{"duplicate id", func(tpl *Template) { tpl.Objects[1].ID = "a" }},
		{"unknown type", func(tpl *Template) { tpl.Objects[0].Type = "circle" }},
		{"negative size", func(tpl *Template) { tpl.Objects[0].Width = -1 }},
		{"bad align", func(tpl *Template) { tpl.Objects[0].TextAlign = "middle" }},
		{"image without src", func(tpl *Template) { tpl.Objects[2].Type = TypeImage }},
		{"bad barcode format", func(tpl *Template) { tpl.Objects[3].Format = "UPC" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := sampleTemplate()
			tt.mutate(tpl)
			if err := Validate(tpl); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestParse_RoundTripJSON(t *testing.T) {
	original := sampleTemplate()

	data, err := original.ToJSON()
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	parsed, err := Parse(data)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	if !reflect.DeepEqual(original, parsed) {
		t.Errorf("Round trip changed template:\n%+v\n%+v", original, parsed)
	}
}

func TestParse_RoundTripYAML(t *testing.T) {
	original := sampleTemplate()

	data, err := original.ToYAML()
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	parsed, err := ParseYAML(data)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	if !reflect.DeepEqual(original, parsed) {
		t.Errorf("Round trip changed template:\n%+v\n%+v", original, parsed)
	}
}

func TestParse_LegacyCanvasExport(t *testing.T) {
	data := []byte(`{
		"version": "5.3.0",
		"objects": [
			{"type": "textbox", "left": 10, "top": 10, "width": 100, "height": 20, "text": "{{nombre}}", "padding": 8, "textBaseline": "alphabetical"},
			{"type": "i-text", "left": 10, "top": 40, "text": "fixed"}
		]
	}`)

	tpl, err := Parse(data)
	if err != nil {
		t.Fatalf("Failed to parse legacy export: %v", err)
	}

	if tpl.Version != CurrentVersion {
		t.Errorf("Expected version %s, got %s", CurrentVersion, tpl.Version)
	}
	if tpl.DesignWidth != DefaultDesignWidth || tpl.DesignHeight != DefaultDesignHeight {
		t.Errorf("Expected default design size, got %gx%g", tpl.DesignWidth, tpl.DesignHeight)
	}

	box := tpl.Objects[0]
	if box.Padding != 0 {
		t.Errorf("Expected textbox padding 0, got %g", box.Padding)
	}
	if box.TextBaseline != "alphabetic" {
		t.Errorf("Expected textBaseline alphabetic, got %s", box.TextBaseline)
	}
	if box.ScaleX != 1 || box.ScaleY != 1 {
		t.Errorf("Expected default scale 1, got %g/%g", box.ScaleX, box.ScaleY)
	}
	if tpl.Objects[1].Type != TypeText {
		t.Errorf("Expected i-text to become %s, got %s", TypeText, tpl.Objects[1].Type)
	}
}

func TestParse_InvalidJSON(t *testing.T) {
	if _, err := Parse([]byte(`{"objects": [`)); err == nil {
		t.Error("Expected error for truncated JSON")
	}
}

func TestSaveToFile_ByExtension(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"tag.json", "tag.yaml"} {
		path := filepath.Join(dir, name)
		if err := sampleTemplate().SaveToFile(path); err != nil {
			t.Fatalf("Failed to save %s: %v", name, err)
		}

		loaded, err := ParseFile(path)
		if err != nil {
			t.Fatalf("Failed to load %s: %v", name, err)
		}
		if len(loaded.Objects) != 4 {
			t.Errorf("%s: expected 4 objects, got %d", name, len(loaded.Objects))
		}
	}

	if _, err := ParseFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}
	_ = os.Remove(filepath.Join(dir, "tag.json"))
}

func TestClone_Independent(t *testing.T) {
	original := sampleTemplate()
	clone := original.Clone()

	clone.Objects[0].Text = "changed"
	clone.Objects[1].Left = 999

	if original.Objects[0].Text != "Asset: {{id}}" {
		t.Error("Clone shares text with original")
	}
	if original.Objects[1].Left != 150 {
		t.Error("Clone shares geometry with original")
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		input    interface{}
		expected string
	}{
		{"abc", "abc"},
		{"", ""},
		{42.0, "42"},
		{1.5, "1.5"},
		{7, "7"},
		{int64(-3), "-3"},
		{true, "true"},
		{nil, ""},
	}

	for _, tt := range tests {
		if got := FormatValue(tt.input); got != tt.expected {
			t.Errorf("FormatValue(%v): expected %q, got %q", tt.input, tt.expected, got)
		}
	}
}

func TestRecord_Lookup(t *testing.T) {
	r := Record{"id": "42", "empty": "", "none": nil, "Nombre": "Ana"}

	if v, ok := r.Lookup("id"); !ok || v != "42" {
		t.Errorf("Expected 42, got %q (%v)", v, ok)
	}
	if v, ok := r.Lookup("empty"); !ok || v != "" {
		t.Errorf("Expected empty string present, got %q (%v)", v, ok)
	}
	if _, ok := r.Lookup("none"); ok {
		t.Error("Expected nil value to count as missing")
	}
	if _, ok := r.Lookup("missing"); ok {
		t.Error("Expected missing key")
	}
	if v, ok := r.LookupFold("nombre"); !ok || v != "Ana" {
		t.Errorf("Expected case-insensitive match, got %q (%v)", v, ok)
	}
}
