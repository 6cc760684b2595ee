package migration

import (
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_OrdersAndChecksums(t *testing.T) {
	src := fstest.MapFS{
		"V2__seed.sql":   {Data: []byte("INSERT INTO t VALUES (1);\n")},
		"V1__schema.sql": {Data: []byte("CREATE TABLE t (id INT);")},
		"README.md":      {Data: []byte("ignored")},
	}

	migs, err := Load(src)
	require.NoError(t, err)
	require.Len(t, migs, 2)
	assert.Equal(t, int64(1), migs[0].Version)
	assert.Equal(t, "schema", migs[0].Name)
	assert.Equal(t, "seed", migs[1].Name)
	assert.Len(t, migs[0].Checksum, 64)

	// trailing whitespace does not change the checksum
	again, err := Load(fstest.MapFS{"V2__seed.sql": {Data: []byte("INSERT INTO t VALUES (1);")}})
	require.NoError(t, err)
	assert.Equal(t, migs[1].Checksum, again[0].Checksum)
}

func TestLoad_Rejects(t *testing.T) {
	_, err := Load(fstest.MapFS{
		"V1__a.sql":  {Data: []byte("SELECT 1")},
		"V01__b.sql": {Data: []byte("SELECT 2")},
	})
	assert.ErrorContains(t, err, "duplicate migration version")

	_, err = Load(fstest.MapFS{"V3__empty.sql": {Data: []byte("  \n")}})
	assert.ErrorContains(t, err, "empty migration file")
}

func TestEmbeddedMigrations(t *testing.T) {
	sub, err := fs.Sub(embedded, "sql")
	require.NoError(t, err)

	migs, err := Load(sub)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(migs), 2)
	assert.Contains(t, migs[0].SQL, "CREATE TABLE IF NOT EXISTS profiles")
	assert.Contains(t, migs[0].SQL, "profile_contact_persons_primary_key")
}
