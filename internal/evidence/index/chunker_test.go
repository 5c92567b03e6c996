package index

import "testing"

const goSource = `package sample

import "fmt"

// Greeter greets.
type Greeter struct {
	Name string
}

// Greet says hello.
func (g *Greeter) Greet() string {
	return "hello " + g.Name
}

func main() {
	fmt.Println(New().Greet())
}

func New() *Greeter {
	return &Greeter{Name: "world"}
}
`

func TestChunkGoFile(t *testing.T) {
	file := FileInfo{Path: "sample.go", Lang: LangGo}
	chunks, symbols := ChunkFile(file, []byte(goSource))

	if len(chunks) < 4 {
		t.Fatalf("got %d chunks, want at least 4 declarations", len(chunks))
	}

	byName := map[string]Symbol{}
	for _, s := range symbols {
		byName[s.Name] = s
	}
	if sym, ok := byName["Greeter"]; !ok || sym.Kind != "type" {
		t.Errorf("Greeter symbol = %+v", sym)
	}
	if sym, ok := byName["New"]; !ok || sym.Kind != "function" {
		t.Errorf("New symbol = %+v", sym)
	}
	if sym, ok := byName["(*Greeter).Greet"]; !ok || sym.Kind != "method" {
		t.Errorf("Greet symbol = %+v", sym)
	}

	for _, c := range chunks {
		if c.StartLine < 1 || c.EndLine < c.StartLine {
			t.Errorf("chunk %s has bad range %d-%d", c.ChunkID, c.StartLine, c.EndLine)
		}
		if c.Content == "" {
			t.Errorf("chunk %s is empty", c.ChunkID)
		}
	}
}

func TestChunkFallbackLines(t *testing.T) {
	file := FileInfo{Path: "notes.md", Lang: LangMarkdown}
	content := ""
	for i := 0; i < 150; i++ {
		content += "line of text\n"
	}
	chunks, symbols := ChunkFile(file, []byte(content))
	if symbols != nil {
		t.Error("fallback chunking extracts no symbols")
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3 windows of 60 lines", len(chunks))
	}
	if chunks[0].StartLine != 1 || chunks[0].EndLine != 60 {
		t.Errorf("first window = %d-%d", chunks[0].StartLine, chunks[0].EndLine)
	}
}

func TestChunkInvalidGoFallsBack(t *testing.T) {
	file := FileInfo{Path: "broken.go", Lang: LangGo}
	chunks, _ := ChunkFile(file, []byte("this is not go at all {{{"))
	if len(chunks) == 0 {
		t.Error("unparseable Go should fall back to line chunks")
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want Language
	}{
		{"a/b.go", LangGo},
		{"x.tsx", LangTypeScript},
		{"y.py", LangPython},
		{"README.md", LangMarkdown},
		{"Makefile", LangOther},
	}
	for _, tt := range tests {
		if got := DetectLanguage(tt.path); got != tt.want {
			t.Errorf("DetectLanguage(%s) = %s, want %s", tt.path, got, tt.want)
		}
	}
}
