// internal/db/models.go
package db

import (
	"encoding/json"
	"time"
)

// ImportRun status values.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// organizations
type Organization struct {
	ID        uint   `gorm:"primaryKey"`
	Code      string `gorm:"uniqueIndex;size:20"`
	Name      string `gorm:"size:200"`
	CreatedAt time.Time
}

// suppliers
type Supplier struct {
	ID             uint   `gorm:"primaryKey"`
	OrganizationID uint   `gorm:"index"`
	SupplierCode   string `gorm:"uniqueIndex;size:20"`
	Description    string `gorm:"size:200"`
	IsActive       bool   `gorm:"default:true"`
	Email          string `gorm:"size:200"`
	CountryCode    string `gorm:"size:2"`
	LeadTimeDays   int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// import_source_types: file, api, manual, other
type ImportSourceType struct {
	ID          uint   `gorm:"primaryKey"`
	Code        string `gorm:"uniqueIndex;size:20"`
	Description string `gorm:"size:100"`
}

// import_data_types: str, int, decimal, bool, date, datetime
type ImportDataType struct {
	ID          uint   `gorm:"primaryKey"`
	Code        string `gorm:"uniqueIndex;size:30"`
	Description string `gorm:"size:100"`
	Primitive   string `gorm:"size:50"` // underlying Go kind, e.g. "string", "int64", "decimal.Decimal"
}

// import_transform_types: uppercase, lowercase, strip, int, decimal, bool
type ImportTransformType struct {
	ID          uint   `gorm:"primaryKey"`
	Code        string `gorm:"uniqueIndex;size:50"`
	Description string `gorm:"size:255"`
}

// import_runs: one import execution per supplier+source (the header).
type ImportRun struct {
	ID           uint `gorm:"primaryKey"`
	SupplierID   uint `gorm:"index"`
	Supplier     Supplier
	SourceTypeID uint `gorm:"index"`
	SourceType   ImportSourceType
	SourceFile   string `gorm:"size:500"`
	StartedAt    time.Time
	FinishedAt   *time.Time
	Status       string `gorm:"size:20;default:running"`
	TotalRecords *int

	// bound lazily by normalization; nil means "not normalized yet"
	MapSetID *uint `gorm:"index"`
	MapSet   *ImportMapSet

	IsProcessed bool
	ProcessedAt *time.Time
}

// import_raw_records: one verbatim row/line per run. Never mutated after
// capture except for normalized_data and the per-target import state.
type ImportRawRecord struct {
	ID          uint   `gorm:"primaryKey"`
	ImportRunID uint   `gorm:"uniqueIndex:uq_import_run_line"`
	LineNumber  int    `gorm:"uniqueIndex:uq_import_run_line"`
	Payload     string `gorm:"type:text"` // raw payload, JSON-encoded

	SupplierProductReference string `gorm:"size:255;index"`

	NormalizedData *string `gorm:"type:text"` // NULL = needs normalization

	ProductIsImported         bool `gorm:"index"`
	ProductImportedAt         *time.Time
	IsProductImportError      bool
	ErrorMessageProductImport *string `gorm:"type:text"`
	RetryCountProductImport   int

	PriceIsImported         bool `gorm:"index"`
	PriceImportedAt         *time.Time
	IsPriceImportError      bool
	ErrorMessagePriceImport *string `gorm:"type:text"`
	RetryCountPriceImport   int
}

// PayloadMap decodes the captured payload. A payload that does not decode
// into an object is a record-level error for the caller to handle.
func (r *ImportRawRecord) PayloadMap() (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(r.Payload), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// SetNormalized stores the normalized dict as JSON.
func (r *ImportRawRecord) SetNormalized(m map[string]any) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	s := string(b)
	r.NormalizedData = &s
	return nil
}

// import_map_sets: versioned mapping config per (org, supplier, source type).
// A new valid_from date means a new set; the newest one <= now wins.
type ImportMapSet struct {
	ID             uint      `gorm:"primaryKey"`
	OrganizationID uint      `gorm:"uniqueIndex:uq_mapset_scope"`
	SupplierID     uint      `gorm:"uniqueIndex:uq_mapset_scope"`
	SourceTypeID   uint      `gorm:"uniqueIndex:uq_mapset_scope"`
	ValidFrom      time.Time `gorm:"uniqueIndex:uq_mapset_scope"`
	Description    string    `gorm:"size:255"`
	CreatedAt      time.Time

	Details []ImportMapDetail `gorm:"foreignKey:MapSetID;constraint:OnDelete:CASCADE"`
}

// import_map_details: one source_path to target_path rule. Datatype and
// transform are codes into the registry tables, validated on load.
type ImportMapDetail struct {
	ID            uint   `gorm:"primaryKey"`
	MapSetID      uint   `gorm:"uniqueIndex:uq_mapdetail_rule"`
	SourcePath    string `gorm:"uniqueIndex:uq_mapdetail_rule;size:255"`
	TargetPath    string `gorm:"uniqueIndex:uq_mapdetail_rule;size:255"`
	DatatypeCode  string `gorm:"size:30"`
	TransformCode string `gorm:"size:50"` // empty = no transform
	IsRequired    bool
}

// import_global_default_sets: versioned org-wide defaults (the head).
type ImportGlobalDefaultSet struct {
	ID             uint      `gorm:"primaryKey"`
	OrganizationID uint      `gorm:"uniqueIndex:uq_defaultset_org_validfrom"`
	ValidFrom      time.Time `gorm:"uniqueIndex:uq_defaultset_org_validfrom"`
	Description    string    `gorm:"size:255"`
	CreatedAt      time.Time

	Lines []ImportGlobalDefaultLine `gorm:"foreignKey:SetID;constraint:OnDelete:CASCADE"`
}

// import_global_default_lines: one baseline value per target path.
type ImportGlobalDefaultLine struct {
	ID            uint    `gorm:"primaryKey"`
	SetID         uint    `gorm:"uniqueIndex:uq_defaultline_set_target"`
	TargetPath    string  `gorm:"uniqueIndex:uq_defaultline_set_target;size:255"`
	DefaultValue  *string `gorm:"type:text"` // JSON-encoded value, NULL = no default
	TransformCode string  `gorm:"size:50"`
	DatatypeCode  string  `gorm:"size:30"`
	IsRequired    bool
}

// Value decodes the JSON-encoded default value (nil if unset).
func (l *ImportGlobalDefaultLine) Value() (any, error) {
	if l.DefaultValue == nil {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(*l.DefaultValue), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// SetValue stores an arbitrary JSON value as the default.
func (l *ImportGlobalDefaultLine) SetValue(v any) error {
	if v == nil {
		l.DefaultValue = nil
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s := string(b)
	l.DefaultValue = &s
	return nil
}

// import_error_logs: per-record failures kept for inspection.
type ImportErrorLog struct {
	ID           uint `gorm:"primaryKey"`
	ImportRunID  uint `gorm:"index"`
	LineNumber   *int
	ErrorMessage string `gorm:"type:text"`
	Payload      string `gorm:"type:text"`
	CreatedAt    time.Time
}
