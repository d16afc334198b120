package storage

import "testing"

func TestDialect_Rebind(t *testing.T) {
	pg, _ := dialectFor("postgres")
	got := pg.rebind(`UPDATE pages SET name = ? WHERE id = ?`)
	if got != `UPDATE pages SET name = $1 WHERE id = $2` {
		t.Errorf("rebind = %q", got)
	}

	lite, _ := dialectFor("sqlite")
	if q := `SELECT ?`; lite.rebind(q) != q {
		t.Error("sqlite must keep ? placeholders")
	}
}

func TestDialect_Upsert(t *testing.T) {
	lite, _ := dialectFor("sqlite")
	want := `INSERT INTO t (id, a) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET a = excluded.a`
	if got := lite.upsert("t", "id", "id", "a"); got != want {
		t.Errorf("sqlite upsert = %q", got)
	}

	my, _ := dialectFor("mysql")
	want = `INSERT INTO t (id, a) VALUES (?, ?) ON DUPLICATE KEY UPDATE a = VALUES(a)`
	if got := my.upsert("t", "id", "id", "a"); got != want {
		t.Errorf("mysql upsert = %q", got)
	}
}
