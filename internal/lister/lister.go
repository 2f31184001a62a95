// Package lister renders a local directory listing as display text. It is a
// convenience for inspecting a source before uploading it, so it never fails:
// problems become part of the rendered output.
package lister

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

// Options controls listing output.
type Options struct {
	ShowHidden  bool // include dot-prefixed entries
	ShowDetails bool // type marker, size and modification time per entry
}

const mtimeLayout = "2006-01-02 15:04"

// List renders the entries of path. Missing or unreadable paths and empty
// directories produce explanatory text rather than an error.
func List(path string, opts Options) string {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("%s: not found\n", path)
		}

		return fmt.Sprintf("%s: %v\n", path, err)
	}

	if !info.IsDir() {
		return renderOne(info, opts)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Sprintf("%s: %v\n", path, err)
	}

	var names []string

	for _, entry := range entries {
		if !opts.ShowHidden && strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		names = append(names, entry.Name())
	}

	if len(names) == 0 {
		return fmt.Sprintf("%s: empty directory\n", path)
	}

	sort.Strings(names)

	var b strings.Builder

	for _, name := range names {
		if !opts.ShowDetails {
			b.WriteString(name)
			b.WriteByte('\n')

			continue
		}

		// Stat failures mid-listing (entry removed between ReadDir and
		// here) degrade to a name-only line.
		entryInfo, err := os.Stat(path + string(os.PathSeparator) + name)
		if err != nil {
			b.WriteString(name)
			b.WriteByte('\n')

			continue
		}

		b.WriteString(detailLine(entryInfo))
	}

	return b.String()
}

// renderOne handles List being pointed at a plain file.
func renderOne(info os.FileInfo, opts Options) string {
	if opts.ShowDetails {
		return detailLine(info)
	}

	return info.Name() + "\n"
}

func detailLine(info os.FileInfo) string {
	marker := "-"
	size := humanize.Bytes(uint64(info.Size()))

	if info.IsDir() {
		marker = "d"
		size = "-"
	}

	return fmt.Sprintf("%s %10s  %s  %s\n",
		marker, size, info.ModTime().Format(mtimeLayout), info.Name())
}
