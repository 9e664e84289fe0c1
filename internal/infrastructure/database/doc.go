// Package database opens devicehub's SQLite store and manages its schema.
//
// Migrations are plain SQL pairs named YYYYMMDD_HHMMSS_name.up.sql and
// .down.sql, registered from the top-level migrations package. Each runs
// in its own transaction and is recorded in schema_migrations.
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	err = db.Migrate(ctx)
package database
