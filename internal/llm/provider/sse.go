package provider

import (
	"bufio"
	"io"
	"strings"
)

// parseSSE reads a server-sent-events body and invokes emit for each data
// payload. Multi-line data fields are joined with newlines; comment lines
// and the [DONE] sentinel are skipped.
func parseSSE(r io.Reader, emit func(data string) error) error {
	s := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	s.Buffer(buf, 1024*1024)

	var dataLines []string
	flush := func() error {
		if len(dataLines) == 0 {
			return nil
		}
		joined := strings.Join(dataLines, "\n")
		dataLines = dataLines[:0]
		trimmed := strings.TrimSpace(joined)
		if trimmed == "" || trimmed == "[DONE]" {
			return nil
		}
		return emit(trimmed)
	}

	for s.Scan() {
		line := s.Text()
		if line == "" {
			if err := flush(); err != nil {
				return err
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := s.Err(); err != nil {
		return err
	}
	return flush()
}
