package dataset

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	pkgerrors "knnvote/pkg/errors"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLLoader reads labeled rows from a table. The label column is compared,
// as text, against PositiveLabel; every other column becomes an attribute in
// table column order.
type SQLLoader struct {
	DB            *sqlx.DB
	Table         string
	LabelColumn   string
	PositiveLabel string
}

// OpenSQLite opens a SQLite database file through the pure-Go driver.
func OpenSQLite(path string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return db, nil
}

// Load reads the table named by source, or Table when source is empty.
func (l *SQLLoader) Load(ctx context.Context, source string) ([]FeatureVector, []bool, error) {
	table := source
	if table == "" {
		table = l.Table
	}
	if !identifierPattern.MatchString(table) {
		return nil, nil, fmt.Errorf("%w: invalid table name %q", pkgerrors.ErrUnsupportedSource, table)
	}

	rows, err := l.DB.QueryxContext(ctx, fmt.Sprintf(`SELECT * FROM "%s"`, table))
	if err != nil {
		return nil, nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	labelIdx := -1
	for i, c := range cols {
		if c == l.LabelColumn {
			labelIdx = i
			break
		}
	}
	if labelIdx < 0 {
		return nil, nil, fmt.Errorf("%w: table %s has no column %q", pkgerrors.ErrDataShape, table, l.LabelColumn)
	}
	if len(cols) < 2 {
		return nil, nil, fmt.Errorf("%w: table %s has no attribute columns", pkgerrors.ErrDataShape, table)
	}

	var features []FeatureVector
	var labels []bool
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, nil, fmt.Errorf("scan %s: %w", table, err)
		}
		row := make(FeatureVector, 0, len(values)-1)
		for i, v := range values {
			if i == labelIdx {
				continue
			}
			row = append(row, formatValue(v))
		}
		features = append(features, row)
		labels = append(labels, formatValue(values[labelIdx]) == l.PositiveLabel)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return features, labels, nil
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}
