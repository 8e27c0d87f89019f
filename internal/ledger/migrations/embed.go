package migrations

import "embed"

// PostgresFS holds the relational schema, applied in filename order.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the analytical-store schema for the audit tables.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
