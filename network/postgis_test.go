package network

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flood-route-server/routing"
)

// fakeRows serves canned rows to Scan.
type fakeRows struct {
	data [][]any
	pos  int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) {
	return r.data[r.pos-1], nil
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = row[i].(int64)
		case *int:
			*p = row[i].(int)
		case *float64:
			*p = row[i].(float64)
		case *string:
			*p = row[i].(string)
		case **string:
			if row[i] == nil {
				*p = nil
			} else {
				s := row[i].(string)
				*p = &s
			}
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

type fakeQuerier struct {
	responses []*fakeRows
	calls     [][]any
	err       error
}

func (q *fakeQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.calls = append(q.calls, args)
	if q.err != nil {
		return nil, q.err
	}
	rows := q.responses[0]
	q.responses = q.responses[1:]
	return rows, nil
}

func TestPostGISSource_Fetch(t *testing.T) {
	wktGeom := "LINESTRING(-73.6 45.5,-73.6 45.501)"
	db := &fakeQuerier{responses: []*fakeRows{
		{data: [][]any{
			{int64(1), 45.5, -73.6},
			{int64(2), 45.501, -73.6},
		}},
		{data: [][]any{
			{int64(1), int64(2), 0, 111.2, "Rue A", wktGeom},
			{int64(2), int64(1), 0, 111.2, "", nil},
		}},
	}}

	g, err := NewPostGISSource(db, quietLogger).Fetch(context.Background(), routing.Coordinate{Lat: 45.5, Lon: -73.6}, 1000)
	require.NoError(t, err)

	require.Len(t, db.calls, 2)
	assert.Equal(t, []any{-73.6, 45.5, 1000.0}, db.calls[0], "ST_MakePoint takes lon first")
	assert.ElementsMatch(t, []int64{1, 2}, db.calls[1][0])

	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 2, g.EdgeCount())
	fwd := g.EdgesBetween(1, 2)
	require.Len(t, fwd, 1)
	assert.Equal(t, "Rue A", fwd[0].Name)
	assert.Len(t, fwd[0].Geometry, 2)
	assert.Nil(t, g.EdgesBetween(2, 1)[0].Geometry)
}

func TestPostGISSource_NoNodes(t *testing.T) {
	db := &fakeQuerier{responses: []*fakeRows{{}}}

	g, err := NewPostGISSource(db, quietLogger).Fetch(context.Background(), routing.Coordinate{}, 10)
	require.NoError(t, err)
	assert.Zero(t, g.NodeCount())
	assert.Len(t, db.calls, 1, "edge query is skipped when no node is in range")
}

func TestPostGISSource_QueryError(t *testing.T) {
	db := &fakeQuerier{err: errors.New("relation road_nodes does not exist")}

	_, err := NewPostGISSource(db, quietLogger).Fetch(context.Background(), routing.Coordinate{}, 10)
	assert.True(t, errors.Is(err, ErrUpstream))
}
