package database_test

import (
	"testing"

	"github.com/saldanamusic/splitsheets/internal/config"
	"github.com/saldanamusic/splitsheets/internal/database"
	"github.com/saldanamusic/splitsheets/internal/models"
	"github.com/saldanamusic/splitsheets/internal/testutil"
	"go.uber.org/zap"
)

func TestDialectorNames(t *testing.T) {
	cases := map[string]string{
		"mysql":     "mysql",
		"mariadb":   "mysql",
		"postgres":  "postgres",
		"sqlite":    "sqlite",
		"sqlite3":   "sqlite",
		"sqlserver": "sqlserver",
	}
	for dbType, want := range cases {
		d, err := database.Dialector(&config.Config{DBType: dbType, DBHost: "localhost", DBPort: "1", DBDatabase: "x", DBUser: "u"})
		if err != nil {
			t.Errorf("Dialector(%s) failed: %v", dbType, err)
			continue
		}
		if d.Name() != want {
			t.Errorf("Dialector(%s).Name() = %s, want %s", dbType, d.Name(), want)
		}
	}

	if _, err := database.Dialector(&config.Config{DBType: "oracle"}); err == nil {
		t.Error("Expected error for unsupported database type")
	}
}

func TestConnectSQLiteFile(t *testing.T) {
	cfg := &config.Config{
		DBType:            "sqlite",
		DBDatabase:        t.TempDir() + "/test.db",
		DBConnectionLimit: 5,
	}
	db, err := database.Connect(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}
	for _, m := range database.Models() {
		if !db.Migrator().HasTable(m) {
			t.Errorf("Expected table for %T", m)
		}
	}
}

func TestOpenDBIsolated(t *testing.T) {
	a := testutil.OpenDB(t)
	b := testutil.OpenDB(t)

	if err := a.Create(&models.User{Email: "a@x.com", PasswordHash: "x"}).Error; err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	var count int64
	b.Model(&models.User{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected isolated databases, found %d users in the second", count)
	}
}
