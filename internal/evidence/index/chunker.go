package index

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
)

// fallbackChunkLines sizes the fixed-window chunks for languages without
// a structural parser.
const fallbackChunkLines = 60

// ChunkFile splits file content into chunks and extracted symbols. Go
// files chunk by top-level declaration via the AST; everything else falls
// back to fixed line windows.
func ChunkFile(file FileInfo, content []byte) ([]Chunk, []Symbol) {
	if file.Lang == LangGo {
		if chunks, symbols, ok := chunkGo(file, content); ok {
			return chunks, symbols
		}
	}
	return chunkLines(file, content), nil
}

func chunkGo(file FileInfo, content []byte) ([]Chunk, []Symbol, bool) {
	fset := token.NewFileSet()
	node, err := parser.ParseFile(fset, file.Path, content, parser.ParseComments)
	if err != nil {
		return nil, nil, false
	}

	lines := strings.Split(string(content), "\n")
	var chunks []Chunk
	var symbols []Symbol

	addDecl := func(name, kind string, startLine, endLine int) {
		if startLine < 1 || endLine > len(lines) || startLine > endLine {
			return
		}
		chunkID := fmt.Sprintf("%s:%d-%d", file.Path, startLine, endLine)
		chunks = append(chunks, Chunk{
			ChunkID:   chunkID,
			Path:      file.Path,
			Lang:      file.Lang,
			StartLine: startLine,
			EndLine:   endLine,
			Content:   strings.Join(lines[startLine-1:endLine], "\n"),
			Symbol:    name,
		})
		if name != "" {
			symbols = append(symbols, Symbol{
				SymbolID:  fmt.Sprintf("%s:%s:%d", file.Path, name, startLine),
				Name:      name,
				Kind:      kind,
				Path:      file.Path,
				StartLine: startLine,
				EndLine:   endLine,
			})
		}
	}

	for _, decl := range node.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			name := d.Name.Name
			kind := "function"
			if d.Recv != nil && len(d.Recv.List) > 0 {
				kind = "method"
				name = fmt.Sprintf("(%s).%s", formatReceiver(d.Recv.List[0].Type), d.Name.Name)
			}
			addDecl(name, kind, fset.Position(d.Pos()).Line, fset.Position(d.End()).Line)
		case *ast.GenDecl:
			kind := ""
			switch d.Tok {
			case token.TYPE:
				kind = "type"
			case token.CONST:
				kind = "const"
			case token.VAR:
				kind = "var"
			default:
				continue
			}
			name := ""
			if len(d.Specs) > 0 {
				switch s := d.Specs[0].(type) {
				case *ast.TypeSpec:
					name = s.Name.Name
				case *ast.ValueSpec:
					if len(s.Names) > 0 {
						name = s.Names[0].Name
					}
				}
			}
			addDecl(name, kind, fset.Position(d.Pos()).Line, fset.Position(d.End()).Line)
		}
	}

	if len(chunks) == 0 {
		return nil, nil, false
	}
	return chunks, symbols, true
}

func formatReceiver(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + formatReceiver(t.X)
	case *ast.IndexExpr:
		return formatReceiver(t.X)
	default:
		return "?"
	}
}

func chunkLines(file FileInfo, content []byte) []Chunk {
	lines := strings.Split(string(content), "\n")
	var chunks []Chunk
	for start := 0; start < len(lines); start += fallbackChunkLines {
		end := start + fallbackChunkLines
		if end > len(lines) {
			end = len(lines)
		}
		body := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(body) == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			ChunkID:   fmt.Sprintf("%s:%d-%d", file.Path, start+1, end),
			Path:      file.Path,
			Lang:      file.Lang,
			StartLine: start + 1,
			EndLine:   end,
			Content:   body,
		})
	}
	return chunks
}
