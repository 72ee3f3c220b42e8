package imports

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/kweber84/erpimport/internal/db"
)

// Reference data. Seeding is idempotent (get-or-create by code) and is
// the one place unknown codes can enter the system, so everything here
// is validated against the closed enums first.

var seedDataTypes = []db.ImportDataType{
	{Code: "str", Description: "String", Primitive: "string"},
	{Code: "int", Description: "Integer", Primitive: "int64"},
	{Code: "decimal", Description: "Decimal number", Primitive: "decimal.Decimal"},
	{Code: "bool", Description: "Boolean", Primitive: "bool"},
	{Code: "date", Description: "Date", Primitive: "string"},
	{Code: "datetime", Description: "Date and time", Primitive: "string"},
}

var seedTransformTypes = []db.ImportTransformType{
	{Code: "uppercase", Description: "Convert string to UPPERCASE"},
	{Code: "lowercase", Description: "Convert string to lowercase"},
	{Code: "strip", Description: "Trim whitespace"},
	{Code: "int", Description: "Convert value to integer"},
	{Code: "decimal", Description: "Convert value to Decimal"},
	{Code: "bool", Description: "Convert value to Boolean"},
}

var seedSourceTypes = []db.ImportSourceType{
	{Code: "file", Description: "Flat file import (CSV, XLSX, etc.)"},
	{Code: "api", Description: "API-based import"},
	{Code: "manual", Description: "Manual user input"},
	{Code: "other", Description: "Other or unspecified source"},
}

// SeedReferenceData fills the datatype, transform and source type
// registries. Returns the number of newly created rows.
func (s *Store) SeedReferenceData() (int, error) {
	created := 0

	for _, dt := range seedDataTypes {
		if _, err := ParseDataType(dt.Code); err != nil {
			return created, err // seed data out of sync with the enum
		}
		res := s.gdb.Where(db.ImportDataType{Code: dt.Code}).FirstOrCreate(&db.ImportDataType{}, dt)
		if res.Error != nil {
			return created, res.Error
		}
		created += int(res.RowsAffected)
	}

	for _, tt := range seedTransformTypes {
		if _, err := ParseTransform(tt.Code); err != nil {
			return created, err
		}
		res := s.gdb.Where(db.ImportTransformType{Code: tt.Code}).FirstOrCreate(&db.ImportTransformType{}, tt)
		if res.Error != nil {
			return created, res.Error
		}
		created += int(res.RowsAffected)
	}

	for _, st := range seedSourceTypes {
		res := s.gdb.Where(db.ImportSourceType{Code: st.Code}).FirstOrCreate(&db.ImportSourceType{}, st)
		if res.Error != nil {
			return created, res.Error
		}
		created += int(res.RowsAffected)
	}

	return created, nil
}

// SeedOrganization creates the organization if missing.
func (s *Store) SeedOrganization(code, name string) (*db.Organization, bool, error) {
	var org db.Organization
	res := s.gdb.Where(db.Organization{Code: code}).
		Attrs(db.Organization{Name: name}).
		FirstOrCreate(&org)
	if res.Error != nil {
		return nil, false, res.Error
	}
	return &org, res.RowsAffected > 0, nil
}

// SeedSupplier creates the supplier if missing.
func (s *Store) SeedSupplier(code string, orgID uint, description string) (*db.Supplier, bool, error) {
	var sup db.Supplier
	res := s.gdb.Where(db.Supplier{SupplierCode: code}).
		Attrs(db.Supplier{OrganizationID: orgID, Description: description, IsActive: true}).
		FirstOrCreate(&sup)
	if res.Error != nil {
		return nil, false, res.Error
	}
	return &sup, res.RowsAffected > 0, nil
}

// defaultSeedLine drives SeedInitialDefaults.
type defaultSeedLine struct {
	targetPath string
	value      any
	datatype   string
	required   bool
}

// baselineDefaults is the minimal org-wide baseline every normalized
// record starts from.
var baselineDefaults = []defaultSeedLine{
	// product
	{targetPath: "product.productNumber", datatype: "str", required: true},
	{targetPath: "product.name", datatype: "str", required: true},
	{targetPath: "product.is_active", value: true, datatype: "bool"},
	// variant
	{targetPath: "variant.origin_code", value: "E", datatype: "str", required: true},
	{targetPath: "variant.state_code", value: "N", datatype: "str", required: true},
	{targetPath: "variant.packing_code", value: "1", datatype: "str", required: true},
	{targetPath: "variant.weight", value: "0.0", datatype: "decimal", required: true},
	// price
	{targetPath: "price.currency_code", value: "EUR", datatype: "str", required: true},
	{targetPath: "price.price", datatype: "decimal", required: true},
	// supplier
	{targetPath: "supplier.supplier_code", datatype: "str", required: true},
	{targetPath: "supplier.is_preferred", value: false, datatype: "bool"},
	// supplier product
	{targetPath: "supplier_product.supplier_sku", datatype: "str", required: true},
	{targetPath: "supplier_product.pack_size", value: 1, datatype: "decimal", required: true},
	{targetPath: "supplier_product.min_order_qty", value: 1, datatype: "decimal", required: true},
	{targetPath: "supplier_product.lead_time_days", value: 0, datatype: "int", required: true},
}

// SeedInitialDefaults creates (or reuses) the global default set for the
// organization and date and upserts the baseline lines into it. The
// org_code default is filled from the organization itself.
func (s *Store) SeedInitialDefaults(org *db.Organization, validFrom time.Time) (*db.ImportGlobalDefaultSet, bool, error) {
	var set db.ImportGlobalDefaultSet
	res := s.gdb.Where(db.ImportGlobalDefaultSet{OrganizationID: org.ID, ValidFrom: validFrom}).
		Attrs(db.ImportGlobalDefaultSet{Description: "Initial Global Defaults"}).
		FirstOrCreate(&set)
	if res.Error != nil {
		return nil, false, res.Error
	}
	created := res.RowsAffected > 0

	lines := append([]defaultSeedLine{
		{targetPath: "product.org_code", value: org.ID, datatype: "int", required: true},
	}, baselineDefaults...)

	for _, l := range lines {
		if _, err := ParseDataType(l.datatype); err != nil {
			return nil, created, err
		}
		row := db.ImportGlobalDefaultLine{
			SetID:        set.ID,
			TargetPath:   l.targetPath,
			DatatypeCode: l.datatype,
			IsRequired:   l.required,
		}
		if err := row.SetValue(l.value); err != nil {
			return nil, created, err
		}
		err := s.gdb.Where(db.ImportGlobalDefaultLine{SetID: set.ID, TargetPath: l.targetPath}).
			Assign(map[string]any{
				"default_value": row.DefaultValue,
				"datatype_code": l.datatype,
				"is_required":   l.required,
			}).
			FirstOrCreate(&db.ImportGlobalDefaultLine{}).Error
		if err != nil {
			return nil, created, err
		}
	}

	return &set, created, nil
}

// SeedMappingFromFile creates (or reuses) a mapping set and loads its
// rules from a colon-delimited file, one rule per line:
//
//	source_path:target_path:datatype:required[:transform]
//
// Blank lines and lines starting with # are skipped. Codes are validated
// before anything is written.
func (s *Store) SeedMappingFromFile(org *db.Organization, supplier *db.Supplier, sourceType *db.ImportSourceType, validFrom time.Time, description, path string) (*db.ImportMapSet, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open mapping file: %w", err)
	}
	defer f.Close()

	type parsedRule struct {
		source, target, datatype, transform string
		required                            bool
	}
	var parsed []parsedRule

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ":")
		if len(parts) < 4 || len(parts) > 5 {
			return nil, 0, fmt.Errorf("%s:%d: want source:target:datatype:required[:transform], got %q", path, lineNo, line)
		}
		r := parsedRule{
			source:   strings.TrimSpace(parts[0]),
			target:   strings.TrimSpace(parts[1]),
			datatype: strings.TrimSpace(parts[2]),
		}
		switch strings.ToLower(strings.TrimSpace(parts[3])) {
		case "true", "1", "yes", "y":
			r.required = true
		case "false", "0", "no", "n", "":
			r.required = false
		default:
			return nil, 0, fmt.Errorf("%s:%d: bad required flag %q", path, lineNo, parts[3])
		}
		if len(parts) == 5 {
			r.transform = strings.TrimSpace(parts[4])
		}
		if r.source == "" || r.target == "" {
			return nil, 0, fmt.Errorf("%s:%d: empty source or target path", path, lineNo)
		}
		if _, err := ParseDataType(r.datatype); err != nil {
			return nil, 0, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		if r.transform != "" {
			if _, err := ParseTransform(r.transform); err != nil {
				return nil, 0, fmt.Errorf("%s:%d: %w", path, lineNo, err)
			}
		}
		parsed = append(parsed, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read mapping file: %w", err)
	}
	if len(parsed) == 0 {
		return nil, 0, fmt.Errorf("%s: no mapping rules found", path)
	}

	var mapSet db.ImportMapSet
	err = s.gdb.Transaction(func(tx *gorm.DB) error {
		res := tx.Where(db.ImportMapSet{
			OrganizationID: org.ID,
			SupplierID:     supplier.ID,
			SourceTypeID:   sourceType.ID,
			ValidFrom:      validFrom,
		}).Attrs(db.ImportMapSet{Description: description}).FirstOrCreate(&mapSet)
		if res.Error != nil {
			return res.Error
		}

		for _, r := range parsed {
			err := tx.Where(db.ImportMapDetail{
				MapSetID:   mapSet.ID,
				SourcePath: r.source,
				TargetPath: r.target,
			}).Assign(map[string]any{
				"datatype_code":  r.datatype,
				"transform_code": r.transform,
				"is_required":    r.required,
			}).FirstOrCreate(&db.ImportMapDetail{}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return &mapSet, len(parsed), nil
}
