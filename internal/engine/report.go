package engine

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// Report summarizes one engine invocation for display to the user.
type Report struct {
	Results []Result

	// Archived is true when the sources were bundled into a single archive
	// before upload.
	Archived bool
}

// Succeeded returns the number of tasks that uploaded successfully.
func (r *Report) Succeeded() int {
	var n int

	for _, res := range r.Results {
		if res.Err == nil {
			n++
		}
	}

	return n
}

// Failed returns the number of tasks that did not upload.
func (r *Report) Failed() int {
	return len(r.Results) - r.Succeeded()
}

// String renders the report as plain text: one line per task followed by a
// summary line. Failed tasks carry the failure reason; partial successes
// (uploaded but not shared) are flagged without counting as failures.
func (r *Report) String() string {
	var b strings.Builder

	for _, res := range r.Results {
		switch {
		case res.Err != nil:
			fmt.Fprintf(&b, "FAILED  %s: %v (attempts: %d)\n",
				res.Task.Name, res.Err, res.Attempts)
		case res.ShareErr != nil:
			fmt.Fprintf(&b, "OK      %s (%s) -> %s [sharing failed: %v]\n",
				res.Task.Name, humanize.Bytes(uint64(res.Task.Size)), res.WebViewLink, res.ShareErr)
		default:
			fmt.Fprintf(&b, "OK      %s (%s) -> %s\n",
				res.Task.Name, humanize.Bytes(uint64(res.Task.Size)), res.WebViewLink)
		}
	}

	total := len(r.Results)
	failed := r.Failed()

	switch {
	case total == 0:
		b.WriteString("Nothing to upload.\n")
	case failed == 0:
		fmt.Fprintf(&b, "Uploaded %d of %d file(s).\n", total, total)
	default:
		fmt.Fprintf(&b, "Uploaded %d of %d file(s), %d failed.\n", total-failed, total, failed)
	}

	return b.String()
}
