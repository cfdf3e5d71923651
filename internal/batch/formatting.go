package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatResult renders a batch result as text, json or csv.
func FormatResult(res *Result, format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(res)
	case "csv":
		return formatCSV(res)
	case "", "text":
		return formatText(res), nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

type jsonItem struct {
	Index   int    `json:"index"`
	ID      string `json:"id"`
	Success bool   `json:"success"`
	File    string `json:"file,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Error   string `json:"error,omitempty"`
}

func formatJSON(res *Result) (string, error) {
	out := struct {
		Total      int        `json:"total"`
		Failed     int        `json:"failed"`
		DurationMs int64      `json:"duration_ms"`
		Labels     []jsonItem `json:"labels"`
	}{
		Total:      len(res.Items),
		Failed:     res.Failed(),
		DurationMs: res.Duration.Milliseconds(),
		Labels:     make([]jsonItem, len(res.Items)),
	}
	for i, it := range res.Items {
		ji := jsonItem{Index: it.Index + 1, ID: it.ID, Success: it.Err == nil}
		if it.Err != nil {
			ji.Error = it.Err.Error()
		}
		if it.Label != nil {
			ji.File = it.Label.FilePath
			ji.Width = it.Label.Width
			ji.Height = it.Label.Height
		}
		out.Labels[i] = ji
	}

	bts, err := json.MarshalIndent(out, "", "  ")
	return string(bts), err
}

func formatCSV(res *Result) (string, error) {
	var output strings.Builder
	w := csv.NewWriter(&output)
	if err := w.Write([]string{"index", "id", "file", "width", "height", "error"}); err != nil {
		return "", err
	}
	for _, it := range res.Items {
		row := []string{strconv.Itoa(it.Index + 1), it.ID, "", "", "", ""}
		if it.Label != nil {
			row[2] = it.Label.FilePath
			row[3] = strconv.Itoa(it.Label.Width)
			row[4] = strconv.Itoa(it.Label.Height)
		}
		if it.Err != nil {
			row[5] = it.Err.Error()
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	return output.String(), w.Error()
}

func formatText(res *Result) string {
	var output strings.Builder
	for _, it := range res.Items {
		if it.Err != nil {
			fmt.Fprintf(&output, "FAIL %d %s: %v\n", it.Index+1, it.ID, it.Err)
			continue
		}
		fmt.Fprintf(&output, "ok   %d %s %s (%dx%d)\n", it.Index+1, it.ID, it.Label.FilePath, it.Label.Width, it.Label.Height)
	}
	fmt.Fprintf(&output, "%d labels, %d failed, %v\n", len(res.Items), res.Failed(), res.Duration.Round(time.Millisecond))
	return output.String()
}
