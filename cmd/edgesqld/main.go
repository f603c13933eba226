// Command edgesqld is a minimal driver that exercises engine.Database's
// startup, recovery and shutdown sequence end to end against a real data
// directory. It takes no arguments and handles no signals: argument
// parsing and process lifecycle belong to whatever adapter embeds the
// engine, not to the engine itself.
package main

import (
	"fmt"
	"log"

	"edgesql/pkg/catalog"
	"edgesql/pkg/engine"
	"edgesql/pkg/exec"
	"edgesql/pkg/logging"
	"edgesql/pkg/storage/record"
)

func main() {
	logging.InitDefault()
	defer logging.Close()

	db, err := engine.Open(engine.DefaultConfig("./data"))
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := runDemo(db); err != nil {
		log.Fatalf("demo failed: %v", err)
	}
}

func runDemo(db *engine.Database) error {
	columns := []catalog.ColumnInfo{
		{Name: "id", Type: record.Integer, Index: 0},
		{Name: "name", Type: record.Text, Index: 1},
	}
	if _, err := db.CreateTable("widgets", columns); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	rows := [][]record.Value{
		{record.IntValue(1), record.TextValue("sprocket")},
		{record.IntValue(2), record.TextValue("gizmo")},
		{record.IntValue(3), record.TextValue("gadget")},
	}
	if _, err := db.Insert("widgets", rows); err != nil {
		return fmt.Errorf("insert: %w", err)
	}

	result, err := db.Query(&exec.TableScanNode{Table: "widgets"})
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}

	fmt.Printf("widgets: %d row(s)\n", len(result.Rows))
	for _, row := range result.Rows {
		fmt.Printf("  %v\n", row)
	}
	return nil
}
