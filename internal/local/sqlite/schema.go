package sqlite

// Schema DDL for the snapshot table. Records of one entity are ordered by
// seq, which only ever grows for appends.
const (
	createSnapshots = `CREATE TABLE IF NOT EXISTS snapshots (
    entity TEXT NOT NULL,
    seq INTEGER NOT NULL,
    record_id TEXT NOT NULL,
    payload TEXT NOT NULL,
    PRIMARY KEY (entity, seq)
);`

	idxSnapshotsRecord = `CREATE INDEX IF NOT EXISTS idx_snapshots_record ON snapshots(entity, record_id);`
)

// schemaDDL lists all statements applied on open.
var schemaDDL = []string{
	createSnapshots,
	idxSnapshotsRecord,
}
