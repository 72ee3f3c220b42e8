// Package file implements the flat-file connector. Suppliers drop their
// price lists under data_dir/<YYYY>/<MM>/ and the newest matching file
// wins. XLSX and delimited text are supported; the first row is the
// header and rows missing any required column are skipped, not failed.
package file

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
	"golang.org/x/net/html/charset"

	"github.com/kweber84/erpimport/internal/sources"
)

type Config struct {
	DataDir         string   `json:"data_dir"`
	Pattern         string   `json:"pattern"`          // glob against the base name, e.g. "*.xlsx"
	Sheet           string   `json:"sheet"`            // XLSX only; empty = first sheet
	Delimiter       string   `json:"delimiter"`        // CSV only; empty = ";"
	Charset         string   `json:"charset"`          // CSV only; empty = UTF-8, e.g. "windows-1252"
	RequiredColumns []string `json:"required_columns"` // rows missing any of these are skipped
	ReferenceColumn string   `json:"reference_column"` // column holding the supplier product reference
}

type File struct {
	log zerolog.Logger
	cfg Config
}

func (f *File) Name() string { return "file" }

func (f *File) Describe(opts sources.FetchOptions) string {
	path, err := f.resolve(opts)
	if err != nil {
		return fmt.Sprintf("file: %v", err)
	}
	return "file: " + path
}

// resolve picks the input file: an explicit one from opts, or the newest
// matching file under data_dir/<YYYY>/<MM>/.
func (f *File) resolve(opts sources.FetchOptions) (string, error) {
	if opts.File != "" {
		if _, err := os.Stat(opts.File); err != nil {
			return "", err
		}
		return opts.File, nil
	}

	pattern := f.cfg.Pattern
	if pattern == "" {
		pattern = "*"
	}

	var newest string
	var newestMod time.Time
	err := filepath.WalkDir(f.cfg.DataDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ok, err := filepath.Match(pattern, d.Name())
		if err != nil || !ok {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = path
			newestMod = info.ModTime()
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scan %s: %w", f.cfg.DataDir, err)
	}
	if newest == "" {
		return "", fmt.Errorf("no file matching %q under %s", pattern, f.cfg.DataDir)
	}
	return newest, nil
}

func (f *File) Fetch(ctx context.Context, opts sources.FetchOptions, emit func(sources.RawItem) error) error {
	path, err := f.resolve(opts)
	if err != nil {
		return err
	}
	f.log.Info().Str("source", f.Name()).Str("file", path).Msg("reading input file")

	var rows [][]string
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		rows, err = f.readXLSX(path)
	} else {
		rows, err = f.readDelimited(path)
	}
	if err != nil {
		return err
	}
	if len(rows) < 2 {
		return fmt.Errorf("%s: no data rows", path)
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	emitted, skipped := 0, 0
	for i, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload := make(map[string]any, len(header))
		for j, col := range header {
			if col == "" {
				continue
			}
			if j < len(row) {
				payload[col] = strings.TrimSpace(row[j])
			} else {
				payload[col] = ""
			}
		}
		if miss := missingRequired(payload, f.cfg.RequiredColumns); miss != "" {
			skipped++
			f.log.Debug().Int("line", i+2).Str("column", miss).Msg("row skipped, required column empty")
			continue
		}
		item := sources.RawItem{LineNumber: emitted + 1, Payload: payload}
		if f.cfg.ReferenceColumn != "" {
			if v, ok := payload[f.cfg.ReferenceColumn].(string); ok {
				item.Reference = v
			}
		}
		if err := emit(item); err != nil {
			return err
		}
		emitted++
		if opts.Limit > 0 && emitted >= opts.Limit {
			break
		}
	}

	f.log.Info().Str("file", path).Int("emitted", emitted).Int("skipped", skipped).Msg("input file read")
	return nil
}

func missingRequired(payload map[string]any, required []string) string {
	for _, col := range required {
		v, ok := payload[col]
		if !ok {
			return col
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return col
		}
	}
	return ""
}

func (f *File) readXLSX(path string) ([][]string, error) {
	x, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer x.Close()

	sheet := f.cfg.Sheet
	if sheet == "" {
		sheet = x.GetSheetName(0)
	}
	rows, err := x.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func (f *File) readDelimited(path string) ([][]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	label := f.cfg.Charset
	if label == "" {
		label = "utf-8"
	}
	rd, err := charset.NewReaderLabel(label, fh)
	if err != nil {
		return nil, fmt.Errorf("charset %q: %w", label, err)
	}

	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = -1
	delim := f.cfg.Delimiter
	if delim == "" {
		delim = ";"
	}
	cr.Comma = []rune(delim)[0]

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

func factory(log zerolog.Logger, raw json.RawMessage) (sources.Source, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("file source: data_dir is required")
	}
	return &File{log: log, cfg: cfg}, nil
}

func init() {
	sources.Register("file", factory)
}
