package database

import (
	"testing"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDSN(t *testing.T) {
	out, err := normalizeDSN("rh:secret@tcp(db:3306)/portal?charset=utf8mb4")
	require.NoError(t, err)

	cfg, err := mysqldrv.ParseDSN(out)
	require.NoError(t, err)
	assert.True(t, cfg.ParseTime)
	assert.True(t, cfg.ClientFoundRows)
	assert.Equal(t, "portal", cfg.DBName)
	assert.Equal(t, "db:3306", cfg.Addr)
}

func TestNormalizeDSN_Invalid(t *testing.T) {
	_, err := normalizeDSN("rh:secret@tcp(db:3306)portal")
	require.Error(t, err)
}
