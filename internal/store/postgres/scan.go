package postgres

import (
	"strconv"

	"github.com/alfredjeanlab/kvcomments/internal/store"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanEntry scans a (value, revision) row.
func scanEntry(row scannable, key string) (*store.Entry, error) {
	var (
		value []byte
		rev   int64
	)
	if err := row.Scan(&value, &rev); err != nil {
		return nil, err
	}
	return &store.Entry{Key: key, Value: value, Revision: formatRevision(rev)}, nil
}

func scanRevision(row scannable) (store.Revision, error) {
	var rev int64
	if err := row.Scan(&rev); err != nil {
		return "", err
	}
	return formatRevision(rev), nil
}

func formatRevision(n int64) store.Revision {
	return store.Revision(strconv.FormatInt(n, 10))
}

func parseRevision(rev store.Revision) (int64, error) {
	return strconv.ParseInt(string(rev), 10, 64)
}
