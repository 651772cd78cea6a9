package db

import (
	"testing"
	"testing/fstest"
	"time"
)

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"003_emr_submission.sql":  {Data: []byte("CREATE TABLE emr_submission (id UUID PRIMARY KEY);")},
		"001_terminology.sql":     {Data: []byte("CREATE TABLE terminology_entry (id UUID PRIMARY KEY);")},
		"002_mapping_record.sql":  {Data: []byte("CREATE TABLE mapping_record (id UUID PRIMARY KEY);")},
		"README.md":               {Data: []byte("docs")},
		"notes.sql":               {Data: []byte("SELECT 1;")},
		"abc_not_a_version.sql":   {Data: []byte("SELECT 1;")},
		"archive/004_ignored.sql": {Data: []byte("SELECT 1;")},
	}

	migrations, err := NewMigrator(nil, fsys).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	for i, want := range []string{"001_terminology.sql", "002_mapping_record.sql", "003_emr_submission.sql"} {
		if migrations[i].Name != want {
			t.Errorf("migration %d: expected %s, got %s", i, want, migrations[i].Name)
		}
		if migrations[i].Version != i+1 {
			t.Errorf("migration %d: expected version %d, got %d", i, i+1, migrations[i].Version)
		}
	}
	if migrations[0].SQL != "CREATE TABLE terminology_entry (id UUID PRIMARY KEY);" {
		t.Errorf("unexpected SQL content: %s", migrations[0].SQL)
	}
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"01_b.sql":  {Data: []byte("SELECT 2;")},
	}
	if _, err := NewMigrator(nil, fsys).LoadMigrations(); err == nil {
		t.Fatal("expected error for duplicate version")
	}
}

func TestLoadMigrations_Empty(t *testing.T) {
	migrations, err := NewMigrator(nil, fstest.MapFS{}).LoadMigrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) != 0 {
		t.Errorf("expected no migrations, got %d", len(migrations))
	}
}

func TestPending(t *testing.T) {
	all := []Migration{{Version: 1}, {Version: 2}, {Version: 3}, {Version: 4}}
	applied := map[int]time.Time{1: time.Now(), 3: time.Now()}

	got := pending(all, applied, 0)
	if len(got) != 2 || got[0].Version != 2 || got[1].Version != 4 {
		t.Errorf("unexpected pending set: %+v", got)
	}

	got = pending(all, applied, 3)
	if len(got) != 1 || got[0].Version != 2 {
		t.Errorf("unexpected pending set up to 3: %+v", got)
	}
}

func TestStatuses(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	out := statuses(
		[]Migration{{Version: 1, Name: "001_terminology.sql"}, {Version: 2, Name: "002_mapping_record.sql"}},
		map[int]time.Time{1: at},
	)
	if len(out) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(out))
	}
	if !out[0].Applied || out[0].AppliedAt == nil || !out[0].AppliedAt.Equal(at) {
		t.Errorf("expected first migration applied at %v, got %+v", at, out[0])
	}
	if out[1].Applied || out[1].AppliedAt != nil {
		t.Errorf("expected second migration pending, got %+v", out[1])
	}
}
