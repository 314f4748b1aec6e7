package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/schoolbill/internal/ledger/domain"
)

const dateOnlyLayout = "2006-01-02"

var errInvalidID = errors.New("invalid_id")

// idValue accepts an id sent either as a JSON string or a JSON number.
type idValue string

func (v *idValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = idValue(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = idValue(n.String())
	return nil
}

func (v idValue) String() string { return string(v) }

// legacyPrefixes are the id prefixes older clients put in front of add-on ids.
var legacyPrefixes = map[ledgerdomain.Kind]string{
	ledgerdomain.KindCoursePlus: "cp-",
	ledgerdomain.KindPackage:    "pkg-",
}

// parseLedgerRef turns a wire session group into a typed ref.
func parseLedgerRef(transactionType, rawID string) (ledgerdomain.Ref, error) {
	kind, err := ledgerdomain.ParseKind(transactionType)
	if err != nil {
		return ledgerdomain.Ref{}, err
	}

	raw := strings.TrimSpace(rawID)
	if prefix, ok := legacyPrefixes[kind]; ok {
		raw = strings.TrimPrefix(raw, prefix)
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id <= 0 {
		return ledgerdomain.Ref{}, errInvalidID
	}
	return ledgerdomain.NewRef(kind, id)
}

func parseOptionalBool(value string) (*bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseOptionalTime(value string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return &parsed, nil
	}
	if parsed, err := time.Parse(dateOnlyLayout, trimmed); err == nil {
		return &parsed, nil
	}
	return nil, errors.New("invalid_time")
}
