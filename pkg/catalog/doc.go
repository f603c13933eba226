// Package catalog holds table and column metadata: names, types,
// constraints, and a row-count estimate used by the optimizer. The whole
// catalog is kept in memory behind one mutex. It can be written as a flat
// binary snapshot (Persist/LoadSnapshot) or as JSON (Save/Load); the
// engine uses only the JSON form, saving it after each CreateTable and
// DropTable and at shutdown.
package catalog
