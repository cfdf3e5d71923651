package batch

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ketutoka/printlabel/internal/label"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *Result {
	return &Result{
		Items: []Item{
			{Index: 0, ID: "1", Label: &label.RenderedLabel{ID: "1", FilePath: "out/a.png", Width: 203, Height: 150}},
			{Index: 1, ID: "2", Err: errBoom},
		},
		Duration: 1500 * time.Millisecond,
	}
}

func TestFormatResult(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		out, err := FormatResult(sampleResult(), "text")
		require.NoError(t, err)
		assert.Contains(t, out, "ok   1 1 out/a.png (203x150)")
		assert.Contains(t, out, "FAIL 2 2: boom")
		assert.Contains(t, out, "2 labels, 1 failed")
	})

	t.Run("json", func(t *testing.T) {
		out, err := FormatResult(sampleResult(), "json")
		require.NoError(t, err)

		var decoded struct {
			Total  int        `json:"total"`
			Failed int        `json:"failed"`
			Labels []jsonItem `json:"labels"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &decoded))
		assert.Equal(t, 2, decoded.Total)
		assert.Equal(t, 1, decoded.Failed)
		assert.True(t, decoded.Labels[0].Success)
		assert.Equal(t, "out/a.png", decoded.Labels[0].File)
		assert.Equal(t, "boom", decoded.Labels[1].Error)
	})

	t.Run("csv", func(t *testing.T) {
		out, err := FormatResult(sampleResult(), "csv")
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, "index,id,file,width,height,error", lines[0])
		assert.Equal(t, "1,1,out/a.png,203,150,", lines[1])
		assert.Equal(t, "2,2,,,,boom", lines[2])
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := FormatResult(sampleResult(), "xml")
		assert.Error(t, err)
	})
}
