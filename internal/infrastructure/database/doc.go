// Package database manages the SQLite roster database.
//
// It owns connection setup (WAL mode, busy timeout, foreign keys, file
// permissions) and the embedded schema migrations applied at startup. The
// directory package builds its repositories on the *sql.DB this package
// opens.
package database
