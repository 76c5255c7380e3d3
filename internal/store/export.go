package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/marketpulse/marketpulse/internal/types"
)

// Exporter writes recommendation results to local files for downstream
// consumers that do not read the database directly.
type Exporter struct {
	dir    string
	format string // "jsonl" or "csv"
}

func NewExporter(dir, format string) (*Exporter, error) {
	switch format {
	case "jsonl", "csv":
	default:
		return nil, fmt.Errorf("unsupported export format: %q", format)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &Exporter{dir: dir, format: format}, nil
}

// Export writes the results to a dated file and returns its path.
func (e *Exporter) Export(results []*types.RcmdResult, baseYmd string) (string, error) {
	name := fmt.Sprintf("rcmd_%s_%s.%s", baseYmd, time.Now().Format("150405"), e.format)
	path := filepath.Join(e.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	switch e.format {
	case "jsonl":
		err = writeJSONL(f, results)
	case "csv":
		err = writeCSV(f, results)
	}
	if err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

func writeJSONL(f *os.File, results []*types.RcmdResult) error {
	enc := json.NewEncoder(f)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(f *os.File, results []*types.RcmdResult) error {
	w := csv.NewWriter(f)
	header := []string{"rcmd_id", "rcmd_type", "ref_news_id", "ref_stk_cd", "score", "reason", "base_ymd", "created_at"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			r.RcmdID,
			string(r.RcmdType),
			r.RefNewsID,
			r.RefStkCd,
			strconv.FormatFloat(r.Score, 'f', 4, 64),
			r.Reason,
			r.BaseYmd,
			r.CreatedAt.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
