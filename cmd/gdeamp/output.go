package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// outputPath picks where a received file is written. The sender's name is
// reduced to its base so a transfer cannot escape dir. With overwrite unset
// an existing file is kept and a numbered name is chosen; with protect set
// the file is skipped instead (ok == false).
func outputPath(dir, name string, overwrite, protect bool) (path string, ok bool) {
	base := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(name, `\`, "/")))
	if base == "/" || base == "." {
		base = "unnamed"
	}
	path = filepath.Join(dir, base)
	if overwrite || !exists(path) {
		return path, true
	}
	if protect {
		return path, false
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for i := 1; ; i++ {
		candidate := filepath.Join(dir, stem+"."+strconv.Itoa(i)+ext)
		if !exists(candidate) {
			return candidate, true
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// writeFile writes content and carries over the sender's modification time.
func writeFile(path string, content []byte, modified time.Time) error {
	if err := os.WriteFile(path, content, 0644); err != nil {
		return err
	}
	if !modified.IsZero() {
		return os.Chtimes(path, modified, modified)
	}
	return nil
}

// formatBlockList renders ascending block numbers compactly, for example
// "1,3,5-7", in the form gamp --blocks accepts.
func formatBlockList(blocks []int) string {
	var sb strings.Builder
	for i := 0; i < len(blocks); {
		j := i
		for j+1 < len(blocks) && blocks[j+1] == blocks[j]+1 {
			j++
		}
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		if j == i {
			fmt.Fprintf(&sb, "%d", blocks[i])
		} else {
			fmt.Fprintf(&sb, "%d-%d", blocks[i], blocks[j])
		}
		i = j + 1
	}
	return sb.String()
}
