package database

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Column describes one column of an existing table. Name and Type are lower-cased.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Primary  bool
}

// showColumn matches one row of SHOW COLUMNS.
type showColumn struct {
	Field   string
	Type    string
	Null    string
	Key     string
	Default *string
	Extra   string
}

// pragmaColumn matches one row of PRAGMA table_info.
type pragmaColumn struct {
	Cid        int
	Name       string
	Type       string
	Notnull    int
	DefaultVal *string `gorm:"column:dflt_value"`
	Pk         int
}

// TableColumns returns the columns of table keyed by name. A missing table
// yields an empty map on both dialects.
func TableColumns(db *gorm.DB, table string) (map[string]Column, error) {
	if !validIdentifier(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	columns := make(map[string]Column)
	if db.Dialector.Name() == "sqlite" {
		var rows []pragmaColumn
		if err := db.Raw(fmt.Sprintf("PRAGMA table_info('%s')", table)).Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to get columns for table %s: %w", table, err)
		}
		for _, r := range rows {
			name := strings.ToLower(r.Name)
			columns[name] = Column{Name: name, Type: strings.ToLower(r.Type), Nullable: r.Notnull == 0, Primary: r.Pk > 0}
		}
		return columns, nil
	}

	// SHOW COLUMNS keeps the exact type strings, e.g. varchar(255).
	var rows []showColumn
	if err := db.Raw(fmt.Sprintf("SHOW COLUMNS FROM `%s`", table)).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get columns for table %s: %w", table, err)
	}
	for _, r := range rows {
		name := strings.ToLower(r.Field)
		columns[name] = Column{Name: name, Type: strings.ToLower(r.Type), Nullable: r.Null == "YES", Primary: r.Key == "PRI"}
	}
	return columns, nil
}

func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}
