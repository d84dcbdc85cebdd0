package store

import (
	"context"

	"github.com/konecto/actuator-agent/core"
)

// lookupLimit caps one lookup's result set.
const lookupLimit = 10

// Lookup searches the record store by part number, trying exact equality and
// substring containment in one statement. No match and backend-unavailable
// both yield an empty slice. A row with an unparsable attribute bag degrades
// to an empty bag; the rest of the result set is unaffected.
func (g *Gateway) Lookup(ctx context.Context, query string) []core.ActuatorRecord {
	g.mu.RLock()
	db := g.db
	g.mu.RUnlock()
	if db == nil {
		g.logger.Warn("record store unavailable, returning empty result", "query", query)
		g.countQuery("sqlite", "unavailable")
		return nil
	}

	const stmt = `
		SELECT base_part_number, data_json
		FROM actuators
		WHERE base_part_number = ? OR base_part_number LIKE ?
		LIMIT ?`

	rows, err := db.QueryContext(ctx, stmt, query, "%"+query+"%", lookupLimit)
	if err != nil {
		g.logger.Error("record store query failed", "query", query, "err", err)
		g.countQuery("sqlite", "error")
		return nil
	}
	defer rows.Close()

	var records []core.ActuatorRecord
	for rows.Next() {
		var identifier string
		var payload []byte
		if err := rows.Scan(&identifier, &payload); err != nil {
			g.logger.Error("record store scan failed", "err", err)
			continue
		}
		records = append(records, core.ActuatorRecord{
			Identifier: identifier,
			Attributes: parseRecordAttributes(payload),
		})
	}
	if err := rows.Err(); err != nil {
		g.logger.Error("record store iteration failed", "err", err)
	}
	g.countQuery("sqlite", "ok")
	return records
}

// parseRecordAttributes decodes a stored attribute bag and strips identifier
// aliases: the bag must never duplicate the record's own key.
func parseRecordAttributes(payload []byte) *core.Attributes {
	parsed := core.ParseAttributeBag(payload)
	attrs := core.NewAttributes()
	for _, key := range parsed.Keys() {
		if key == "base_part_number" || key == "identifier" {
			continue
		}
		v, _ := parsed.Get(key)
		attrs.Set(key, v)
	}
	return attrs
}
