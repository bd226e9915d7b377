package calistream

import (
	"sort"

	"github.com/LLNL/caliper-go/pkg/encoding"
	"github.com/LLNL/caliper-go/pkg/variant"
)

// Meta-attribute ids shared between writers and readers; the bootstrap
// prefix itself never appears in a stream.
const (
	nameAttrID = 9
	typeAttrID = 10
	propAttrID = 11
)

// DB accumulates node records from a stream and answers metadata queries for
// reader-side tools: attribute names and types, and region paths.
type DB struct {
	nodes map[uint64]NodeRecord
}

// NewDB returns a DB pre-seeded with the bootstrap nodes every runtime
// shares: the type nodes (ids 1..8) and the three meta-attributes.
func NewDB() *DB {
	db := &DB{nodes: make(map[uint64]NodeRecord, 64)}

	for k := variant.Usr; k <= variant.Type; k++ {
		db.nodes[uint64(k)] = NodeRecord{
			ID:       uint64(k),
			AttrID:   typeAttrID,
			ParentID: encoding.InvalidID,
			Data:     k.String(),
		}
	}

	meta := []struct {
		id     uint64
		name   string
		parent uint64
	}{
		{nameAttrID, "cali.attribute.name", uint64(variant.String)},
		{typeAttrID, "cali.attribute.type", uint64(variant.Type)},
		{propAttrID, "cali.attribute.prop", uint64(variant.Int)},
	}

	for _, m := range meta {
		db.nodes[m.id] = NodeRecord{
			ID:       m.id,
			AttrID:   nameAttrID,
			ParentID: m.parent,
			Data:     m.name,
		}
	}

	return db
}

// AddNode stores a node record.
func (db *DB) AddNode(rec NodeRecord) {
	db.nodes[rec.ID] = rec
}

// Node returns the record for id.
func (db *DB) Node(id uint64) (NodeRecord, bool) {
	rec, ok := db.nodes[id]

	return rec, ok
}

// Len returns the number of known nodes.
func (db *DB) Len() int {
	return len(db.nodes)
}

// AttrName resolves the name of an attribute id by searching the attribute
// node's path for the name meta-attribute.
func (db *DB) AttrName(attrID uint64) string {
	for id := attrID; id != encoding.InvalidID; {
		rec, ok := db.nodes[id]
		if !ok {
			return ""
		}

		if rec.AttrID == nameAttrID {
			return rec.Data
		}

		id = rec.ParentID
	}

	return ""
}

// AttrKind resolves the declared value kind of an attribute id from the type
// node its path hangs off.
func (db *DB) AttrKind(attrID uint64) variant.Kind {
	for id := attrID; id != encoding.InvalidID; {
		rec, ok := db.nodes[id]
		if !ok {
			return variant.Inv
		}

		if rec.AttrID == typeAttrID {
			return variant.KindFromString(rec.Data)
		}

		id = rec.ParentID
	}

	return variant.Inv
}

// Path returns the value strings along the path from the root to id,
// outermost first, skipping the bootstrap prefix.
func (db *DB) Path(id uint64) []string {
	var rev []string

	for id != encoding.InvalidID && int(id) >= NumReservedIDs() {
		rec, ok := db.nodes[id]
		if !ok {
			break
		}

		rev = append(rev, rec.Data)
		id = rec.ParentID
	}

	path := make([]string, 0, len(rev))

	for i := len(rev) - 1; i >= 0; i-- {
		path = append(path, rev[i])
	}

	return path
}

// IDs returns every known node id beyond the bootstrap prefix, sorted.
func (db *DB) IDs() []uint64 {
	ids := make([]uint64, 0, len(db.nodes))

	for id := range db.nodes {
		if int(id) >= NumReservedIDs() {
			ids = append(ids, id)
		}
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// NumReservedIDs returns the size of the bootstrap id prefix.
func NumReservedIDs() int {
	return 12
}
