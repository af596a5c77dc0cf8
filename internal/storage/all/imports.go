// Package all registers every built-in storage backend with the storage
// factory. Import it for side effects:
//
//	import _ "heartprep/internal/storage/all"
//
// Kinds made available: "mysql", "postgres", "mssql", "sqlite". A binary that
// needs only a subset can import the individual backend packages instead.
package all

import (
	_ "heartprep/internal/storage/mssql"
	_ "heartprep/internal/storage/mysql"
	_ "heartprep/internal/storage/postgres"
	_ "heartprep/internal/storage/sqlite"
)
