package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(files, "sql")
	require.NoError(t, err)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file %s", name)
		}
	}
	assert.Equal(t, ups, downs)
	assert.Len(t, ups, 3)
}

func TestSourceWalksVersionsInOrder(t *testing.T) {
	src, err := Source()
	require.NoError(t, err)
	defer src.Close()

	v, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)

	var versions []uint
	for {
		versions = append(versions, v)
		v, err = src.Next(v)
		if err != nil {
			break
		}
	}
	assert.Equal(t, []uint{1, 2, 3}, versions)
}

func TestPOISchemaConstraints(t *testing.T) {
	raw, err := fs.ReadFile(files, "sql/000002_pois.up.sql")
	require.NoError(t, err)
	schema := string(raw)

	for _, col := range []string{"yelp_id", "google_id", "tripadvisor_id"} {
		assert.Contains(t, schema, "ON pois ("+col+") WHERE "+col+" IS NOT NULL")
	}
	assert.Contains(t, schema, "pois_rejection_reason_chk")
}
