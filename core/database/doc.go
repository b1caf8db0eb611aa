// Package database opens the optional relational database and inspects its schema.
//
// Connect wraps GORM and selects the dialect from Config.Driver: mysql for
// deployments, sqlite for local runs and tests. The connection backs the SQL
// blob store and the finalization ledger.
//
// TableColumns lists the columns of a table so the integrity check can
// compare the live schema against the GORM models.
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Warn("Database unavailable", zap.Error(err))
//	}
//
//	columns, err := database.TableColumns(db, "entitlement_blobs")
package database
