/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package vocab

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const selectVocab = `SELECT word, word_detail, definition FROM vocab ORDER BY rowid`

// OpenSQLite reads the vocab table from the SQLite database at path.
func OpenSQLite(path string) (*Vocabulary, error) {
	conn, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	v, err := LoadSQLite(conn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return v, nil
}

// LoadSQLite reads every row of the vocab table. The definition column holds
// a slash-separated list, as in the TSV format.
func LoadSQLite(conn *sql.DB) (*Vocabulary, error) {
	rows, err := conn.Query(selectVocab)
	if err != nil {
		return nil, fmt.Errorf("query vocab: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var word, definition string
		var detail sql.NullString

		if err := rows.Scan(&word, &detail, &definition); err != nil {
			return nil, fmt.Errorf("scan vocab: %w", err)
		}

		e := Entry{
			Word:        word,
			WordDetail:  detail.String,
			Definitions: SplitDefinitions(definition),
		}
		if len(e.Definitions) == 0 {
			return nil, fmt.Errorf("%q has no definitions", word)
		}

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}

	return New(entries)
}
