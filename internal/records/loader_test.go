package records

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestLoad_CSV(t *testing.T) {
	path := writeFile(t, "people.csv", "\ufeffnombre, url ,id\nAna,https://a.example,1\n\n\"Luis, Jr\",https://b.example,2\nSolo\n")

	set, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	if !reflect.DeepEqual(set.Columns, []string{"nombre", "url", "id"}) {
		t.Errorf("Expected trimmed header, got %v", set.Columns)
	}
	if set.Len() != 3 {
		t.Fatalf("Expected 3 records, got %d", set.Len())
	}
	if set.Records[1]["nombre"] != "Luis, Jr" {
		t.Errorf("Expected quoted field, got %v", set.Records[1]["nombre"])
	}
	if v, ok := set.Records[2].Lookup("url"); ok {
		t.Errorf("Expected short row to miss url, got %q", v)
	}
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "people.json", `[{"name":"Ana","age":30},{"name":"Luis","url":"https://x.example"}]`)

	set, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if set.Len() != 2 {
		t.Fatalf("Expected 2 records, got %d", set.Len())
	}
	if set.Records[0]["age"] != 30.0 {
		t.Errorf("Expected numbers as float64, got %T", set.Records[0]["age"])
	}
	if !reflect.DeepEqual(set.Columns, []string{"age", "name", "url"}) {
		t.Errorf("Expected sorted column union, got %v", set.Columns)
	}
	if !set.HasColumn("url") || set.HasColumn("email") {
		t.Error("Expected HasColumn to follow the column list")
	}
}

func TestLoad_JSONErrors(t *testing.T) {
	if _, err := Load(writeFile(t, "bad.json", `{"name":"not an array"}`)); err == nil {
		t.Error("Expected error for a non-array document")
	}
	if _, err := Load(writeFile(t, "null.json", `[{"a":1}, null]`)); err == nil {
		t.Error("Expected error for a null record")
	}
}

func TestLoad_JSONL(t *testing.T) {
	path := writeFile(t, "people.jsonl", "{\"name\":\"Ana\"}\n\n{\"name\":\"Luis\"}\n")

	set, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if set.Len() != 2 || set.Records[1]["name"] != "Luis" {
		t.Errorf("Expected records in file order, got %v", set.Records)
	}

	_, err = Load(writeFile(t, "broken.jsonl", "{\"name\":\"Ana\"}\n{oops\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("Expected error at line 2, got %v", err)
	}
}

type person struct {
	Name  string  `parquet:"name"`
	URL   string  `parquet:"url"`
	Age   int64   `parquet:"age"`
	Score float64 `parquet:"score"`
	Email *string `parquet:"email,optional"`
}

func TestLoad_Parquet(t *testing.T) {
	email := "ana@example.com"
	rows := []person{
		{Name: "Ana", URL: "https://a.example", Age: 30, Score: 9.5, Email: &email},
		{Name: "Luis", URL: "https://b.example", Age: 41, Score: 7},
	}

	path := filepath.Join(t.TempDir(), "people.parquet")
	if err := parquet.WriteFile(path, rows); err != nil {
		t.Fatalf("Failed to write parquet: %v", err)
	}

	set, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if set.Len() != 2 {
		t.Fatalf("Expected 2 records, got %d", set.Len())
	}

	first := set.Records[0]
	if first["name"] != "Ana" || first["age"] != int64(30) || first["score"] != 9.5 || first["email"] != email {
		t.Errorf("Unexpected first record: %v", first)
	}
	if v, ok := set.Records[1].Lookup("email"); ok {
		t.Errorf("Expected null email to be missing, got %q", v)
	}
	if !set.HasColumn("url") {
		t.Errorf("Expected url column, got %v", set.Columns)
	}
}

func TestLoad_Unsupported(t *testing.T) {
	if _, err := Load(writeFile(t, "people.xlsx", "")); err == nil {
		t.Error("Expected error for unsupported format")
	}
}

func TestLoadCSV_Empty(t *testing.T) {
	set, err := LoadCSV(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if set.Len() != 0 {
		t.Errorf("Expected no records, got %d", set.Len())
	}
	if set.Records == nil {
		t.Error("Expected an empty, non-nil record list")
	}
}
