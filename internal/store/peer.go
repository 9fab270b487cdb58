package store

import (
	"database/sql"
	"time"
)

// UpsertPeer inserts or updates a cached entity. Names may change
// between updates; access hashes are kept current so input peers can
// be rebuilt after a restart.
func (db *DB) UpsertPeer(p *Peer) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO peers (id, kind, access_hash, username, first_name, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			access_hash = excluded.access_hash,
			username = excluded.username,
			first_name = excluded.first_name,
			updated_at = excluded.updated_at`,
		p.ID, p.Kind, p.AccessHash, p.Username, p.FirstName, now)
	return err
}

// GetPeer returns a cached entity by ID, or nil if never seen.
func (db *DB) GetPeer(id int64) (*Peer, error) {
	var p Peer
	err := db.QueryRow(`
		SELECT id, kind, access_hash, username, first_name
		FROM peers WHERE id = ?`, id).
		Scan(&p.ID, &p.Kind, &p.AccessHash, &p.Username, &p.FirstName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
