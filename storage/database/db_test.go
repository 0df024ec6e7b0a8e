package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/campusgrid/core"
)

func TestDSN(t *testing.T) {
	conf := &core.Config{Database: core.DatabaseConfig{
		Engine:        "postgres",
		Host:          "db",
		Port:          "5432",
		Name:          "campusgrid",
		User:          "grid",
		Password:      "p@ss word",
		AdminUser:     "postgres",
		AdminPassword: "root",
	}}

	tests := []struct {
		name       string
		dbName     string
		admin      bool
		disableTLS bool
		want       string
	}{
		{
			name:   "app",
			dbName: "campusgrid",
			want:   "postgres://grid:p%40ss%20word@db:5432/campusgrid?sslmode=require&timezone=utc",
		},
		{
			name:       "admin without tls",
			dbName:     adminDBName,
			admin:      true,
			disableTLS: true,
			want:       "postgres://postgres:root@db:5432/postgres?sslmode=disable&timezone=utc",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf.Database.DisableTLS = tt.disableTLS
			assert.Equal(t, tt.want, dsn(tt.dbName, tt.admin, conf))
		})
	}

	t.Run("admin falls back to the app user", func(t *testing.T) {
		c := *conf
		c.Database.AdminUser = ""
		assert.Contains(t, dsn(adminDBName, true, &c), "//grid:")
	})
}
