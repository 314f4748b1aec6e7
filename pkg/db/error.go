package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// duplicateKeyMarkers match unique violations the driver did not translate.
var duplicateKeyMarkers = []string{
	// postgres 23505
	"duplicate key value violates unique constraint",
	// mysql 1062
	"Error 1062",
	// sqlite 2067
	"UNIQUE constraint failed",
}

// IsDuplicateKeyErr reports a unique index violation on any supported dialect.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	for _, marker := range duplicateKeyMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
