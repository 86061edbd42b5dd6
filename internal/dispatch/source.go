package dispatch

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadList reads one URL per line from path, skipping blank lines.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read job list %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	urls := make([]string, 0, 64)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read job list %s: %w", path, err)
	}
	return urls, nil
}
