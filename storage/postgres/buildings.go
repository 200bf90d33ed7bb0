package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb/geojson"

	"github.com/melt-b/accesskit/core"
)

// BuildingStore queries building rows with the access scope compiled into
// the WHERE clause, so out-of-scope rows are indistinguishable from absent
// ones.
type BuildingStore struct {
	pg     *pgxpool.Pool
	schema string
}

func NewBuildingStore(pg *pgxpool.Pool, schema string) *BuildingStore {
	s := strings.TrimSpace(schema)
	if s == "" {
		s = "public"
	}
	return &BuildingStore{pg: pg, schema: s}
}

func (s *BuildingStore) buildingsTable() string { return s.schema + ".buildings" }

const buildingColumns = `b.gid, b.dataset_id, b.address,
ST_AsGeoJSON(b.geometry),
b.average_heatloss, b.reference_heatloss, b.heatloss_difference,
b.confidence, b.anomaly_count`

// accessClause renders the scope's OR-of-channels predicate. It must never
// be called with a deny-all scope; callers short-circuit that case so an
// empty filter set can never degrade into an unfiltered query.
func accessClause(scope core.Scope, args *[]any) (string, error) {
	if scope.Unrestricted {
		return "TRUE", nil
	}
	fs := scope.Filters
	var parts []string
	if len(fs.WholeDatasets) > 0 {
		ids := make([]int64, 0, len(fs.WholeDatasets))
		for id := range fs.WholeDatasets {
			ids = append(ids, id)
		}
		*args = append(*args, ids)
		parts = append(parts, fmt.Sprintf("b.dataset_id = ANY($%d)", len(*args)))
	}
	for _, rf := range fs.Regions {
		gj, err := json.Marshal(geojson.NewGeometry(rf.Region))
		if err != nil {
			return "", fmt.Errorf("encode region: %w", err)
		}
		*args = append(*args, rf.DatasetID)
		dsArg := len(*args)
		*args = append(*args, string(gj))
		geomArg := len(*args)
		parts = append(parts, fmt.Sprintf(
			"(b.dataset_id = $%d AND ST_Intersects(b.geometry, ST_SetSRID(ST_GeomFromGeoJSON($%d), 4326)))",
			dsArg, geomArg))
	}
	if len(fs.BuildingGIDs) > 0 {
		gids := make([]string, 0, len(fs.BuildingGIDs))
		for gid := range fs.BuildingGIDs {
			gids = append(gids, gid)
		}
		*args = append(*args, gids)
		parts = append(parts, fmt.Sprintf("b.gid = ANY($%d)", len(*args)))
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("deny-all scope reached query builder")
	}
	return "(" + strings.Join(parts, " OR ") + ")", nil
}

func (s *BuildingStore) List(ctx context.Context, q core.BuildingQuery, scope core.Scope) ([]core.Building, error) {
	if scope.DeniesAll() {
		return nil, nil
	}
	var args []any
	access, err := accessClause(scope, &args)
	if err != nil {
		return nil, err
	}
	where := []string{access}
	if q.DatasetID != nil {
		args = append(args, *q.DatasetID)
		where = append(where, fmt.Sprintf("b.dataset_id = $%d", len(args)))
	}
	limit := q.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	args = append(args, limit)
	limitArg := len(args)
	args = append(args, q.Offset)
	offsetArg := len(args)

	sql := `SELECT ` + buildingColumns + ` FROM ` + s.buildingsTable() + ` b
WHERE ` + strings.Join(where, " AND ") +
		fmt.Sprintf(` ORDER BY b.gid LIMIT $%d OFFSET $%d`, limitArg, offsetArg)

	rows, err := s.pg.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list buildings: %w", err)
	}
	defer rows.Close()
	return scanBuildings(rows)
}

func (s *BuildingStore) GetByGID(ctx context.Context, datasetID int64, gid string, scope core.Scope) (*core.Building, error) {
	if scope.DeniesAll() {
		return nil, nil
	}
	var args []any
	access, err := accessClause(scope, &args)
	if err != nil {
		return nil, err
	}
	args = append(args, datasetID)
	dsArg := len(args)
	args = append(args, gid)
	gidArg := len(args)

	sql := `SELECT ` + buildingColumns + ` FROM ` + s.buildingsTable() + ` b
WHERE ` + access + fmt.Sprintf(` AND b.dataset_id = $%d AND b.gid = $%d LIMIT 1`, dsArg, gidArg)

	rows, err := s.pg.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("get building: %w", err)
	}
	defer rows.Close()
	got, err := scanBuildings(rows)
	if err != nil {
		return nil, err
	}
	if len(got) == 0 {
		return nil, nil
	}
	return &got[0], nil
}

// Stream iterates one dataset in keyset-paginated chunks of batchSize,
// calling fn per row. It checks ctx between chunks and between rows so a
// cancelled export stops consuming promptly.
func (s *BuildingStore) Stream(ctx context.Context, datasetID int64, scope core.Scope, batchSize int, fn func(core.Building) error) error {
	if scope.DeniesAll() {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	lastGID := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var args []any
		access, err := accessClause(scope, &args)
		if err != nil {
			return err
		}
		args = append(args, datasetID)
		dsArg := len(args)
		args = append(args, lastGID)
		gidArg := len(args)
		args = append(args, batchSize)
		limArg := len(args)

		sql := `SELECT ` + buildingColumns + ` FROM ` + s.buildingsTable() + ` b
WHERE ` + access + fmt.Sprintf(` AND b.dataset_id = $%d AND b.gid > $%d ORDER BY b.gid LIMIT $%d`, dsArg, gidArg, limArg)

		rows, err := s.pg.Query(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("stream buildings: %w", err)
		}
		batch, err := scanBuildings(rows)
		rows.Close()
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		for _, b := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(b); err != nil {
				return err
			}
		}
		lastGID = batch[len(batch)-1].GID
		if len(batch) < batchSize {
			return nil
		}
	}
}

func scanBuildings(rows pgx.Rows) ([]core.Building, error) {
	var out []core.Building
	for rows.Next() {
		var (
			b    core.Building
			addr *string
			geom *string
			conf *float64
			anom *int
		)
		if err := rows.Scan(&b.GID, &b.DatasetID, &addr, &geom,
			&b.AverageHeatLoss, &b.ReferenceHeatLoss, &b.HeatLossDifference,
			&conf, &anom); err != nil {
			return nil, fmt.Errorf("scan building: %w", err)
		}
		if addr != nil {
			b.Address = *addr
		}
		if geom != nil && *geom != "" {
			poly, err := decodePolygon([]byte(*geom))
			if err != nil {
				return nil, fmt.Errorf("building %s geometry: %w", b.GID, err)
			}
			b.Geometry = poly
		}
		if conf != nil {
			b.ConfidenceScore = *conf
		}
		if anom != nil {
			b.AnomalyCount = *anom
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate buildings: %w", err)
	}
	return out, nil
}
