package providers

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"sort"

	_ "github.com/jackc/pgx/v5/stdlib"
	"gopkg.in/yaml.v3"

	"freightgraph/internal/geo"
	"freightgraph/internal/model"
)

//go:embed hubs.yml
var defaultCatalog []byte

// StaticHubs resolves hubs from an in-memory catalogue.
type StaticHubs struct {
	hubs []model.Hub
}

func NewStaticHubs(hubs []model.Hub) *StaticHubs { return &StaticHubs{hubs: hubs} }

// LoadStaticHubs reads a YAML catalogue file, or the built-in one when path is empty.
func LoadStaticHubs(path string) (*StaticHubs, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("hub catalogue: %w", err)
		}
		data = b
	}
	var hubs []model.Hub
	if err := yaml.Unmarshal(data, &hubs); err != nil {
		return nil, fmt.Errorf("hub catalogue: %w", err)
	}
	for i, h := range hubs {
		if h.Code == "" || (h.Kind != model.NodeAirport && h.Kind != model.NodeSeaport) || !geo.ValidCoord(h.Lat, h.Lng) {
			return nil, fmt.Errorf("hub catalogue entry %d (%q) is invalid", i, h.Code)
		}
	}
	return NewStaticHubs(hubs), nil
}

func (s *StaticHubs) Nearest(_ context.Context, lat, lng float64, kind model.NodeKind, limit int) ([]model.Hub, error) {
	type cand struct {
		h model.Hub
		d float64
	}
	var cs []cand
	for _, h := range s.hubs {
		if h.Kind == kind {
			cs = append(cs, cand{h, geo.HaversineKm(lat, lng, h.Lat, h.Lng)})
		}
	}
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].d < cs[j].d })
	if limit > 0 && len(cs) > limit {
		cs = cs[:limit]
	}
	out := make([]model.Hub, len(cs))
	for i, c := range cs {
		out[i] = c.h
	}
	return out, nil
}

// PostgresHubs resolves hubs from a hubs table ordered by great-circle distance.
type PostgresHubs struct {
	db *sql.DB
}

const hubsSchema = `CREATE TABLE IF NOT EXISTS hubs (
    code    TEXT PRIMARY KEY,
    name    TEXT NOT NULL,
    kind    TEXT NOT NULL CHECK (kind IN ('airport', 'seaport')),
    lat     DOUBLE PRECISION NOT NULL,
    lng     DOUBLE PRECISION NOT NULL,
    country TEXT
)`

const nearestHubsSQL = `SELECT code, name, kind, lat, lng, COALESCE(country, '')
FROM hubs
WHERE kind = $1
ORDER BY 2 * 6371 * asin(sqrt(
    power(sin(radians(lat - $2) / 2), 2) +
    cos(radians($2)) * cos(radians(lat)) * power(sin(radians(lng - $3) / 2), 2)))
LIMIT $4`

func NewPostgresHubs(dsn string) (*PostgresHubs, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(hubsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("hubs schema: %w", err)
	}
	return &PostgresHubs{db: db}, nil
}

func (p *PostgresHubs) Nearest(ctx context.Context, lat, lng float64, kind model.NodeKind, limit int) ([]model.Hub, error) {
	rows, err := p.db.QueryContext(ctx, nearestHubsSQL, string(kind), lat, lng, limit)
	if err != nil {
		return nil, fmt.Errorf("nearest hubs: %w", err)
	}
	defer rows.Close()
	var out []model.Hub
	for rows.Next() {
		var h model.Hub
		var k string
		if err := rows.Scan(&h.Code, &h.Name, &k, &h.Lat, &h.Lng, &h.Country); err != nil {
			return nil, err
		}
		h.Kind = model.NodeKind(k)
		out = append(out, h)
	}
	return out, rows.Err()
}

// Import upserts hubs, typically the built-in catalogue on first start.
func (p *PostgresHubs) Import(ctx context.Context, hubs []model.Hub) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, h := range hubs {
		_, err := tx.ExecContext(ctx, `INSERT INTO hubs (code, name, kind, lat, lng, country) VALUES ($1,$2,$3,$4,$5,NULLIF($6,''))
ON CONFLICT (code) DO UPDATE SET name=EXCLUDED.name, kind=EXCLUDED.kind, lat=EXCLUDED.lat, lng=EXCLUDED.lng, country=EXCLUDED.country`,
			h.Code, h.Name, string(h.Kind), h.Lat, h.Lng, h.Country)
		if err != nil {
			return fmt.Errorf("import hub %s: %w", h.Code, err)
		}
	}
	return tx.Commit()
}

func (p *PostgresHubs) Close() error { return p.db.Close() }

// Hubs returns the catalogue entries.
func (s *StaticHubs) Hubs() []model.Hub { return append([]model.Hub(nil), s.hubs...) }
