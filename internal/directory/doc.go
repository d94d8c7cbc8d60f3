// Package directory resolves rooms and their device rosters.
//
// The roster is reference data synchronized from the school's directory
// service; this package stores it in SQLite and answers the two lookups the
// monitoring core needs: which directory entry backs a room name, and which
// devices belong to that entry. It never computes classroom policy; flags
// like is_teacher come straight from the directory rows.
package directory
