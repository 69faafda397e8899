package store

import "testing"

func TestUserCreateAndAuthenticate(t *testing.T) {
	db := newTestDB(t)
	users := NewUserStore(db)

	u, created, err := users.Create("frodo", "frodo@example.com", "the-precious")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created {
		t.Fatal("first create should report created")
	}
	if u.Username != "frodo" || u.ID == 0 {
		t.Errorf("user = %+v", u)
	}

	got, err := users.Authenticate("frodo", "the-precious")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got == nil || got.ID != u.ID {
		t.Errorf("authenticate = %+v, want user %d", got, u.ID)
	}

	// Hashes are stored, never the password itself.
	var hash string
	if err := db.QueryRow(`SELECT password_hash FROM users WHERE id = ?`, u.ID).Scan(&hash); err != nil {
		t.Fatalf("read hash: %v", err)
	}
	if hash == "the-precious" || hash == "" {
		t.Errorf("password stored unhashed: %q", hash)
	}
}

func TestUserCreateDuplicateUsername(t *testing.T) {
	db := newTestDB(t)
	users := NewUserStore(db)

	first, _, err := users.Create("sam", "sam@example.com", "po-ta-toes")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, created, err := users.Create("sam", "other@example.com", "different")
	if err != nil {
		t.Fatalf("duplicate create: %v", err)
	}
	if created {
		t.Error("duplicate create should not report created")
	}
	if second == nil || second.ID != first.ID {
		t.Errorf("duplicate create = %+v, want existing user %d", second, first.ID)
	}
}

func TestUserAuthenticateFailures(t *testing.T) {
	db := newTestDB(t)
	users := NewUserStore(db)

	if _, _, err := users.Create("merry", "merry@example.com", "pipeweed"); err != nil {
		t.Fatalf("create: %v", err)
	}

	u, err := users.Authenticate("merry", "wrong")
	if err != nil {
		t.Fatalf("wrong password: %v", err)
	}
	if u != nil {
		t.Error("wrong password must not authenticate")
	}

	u, err = users.Authenticate("nobody", "pipeweed")
	if err != nil {
		t.Fatalf("unknown user: %v", err)
	}
	if u != nil {
		t.Error("unknown user must not authenticate")
	}
}
