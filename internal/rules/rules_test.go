package rules

import "testing"

func TestDefaultTable_Match(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		name      string
		operation string
		blocked   bool
		rule      string
	}{
		{"drop table", "DROP TABLE users;", true, "full table drop"},
		{"drop table lowercase", "drop table users;", true, "full table drop"},
		{"drop table mixed case", "DrOp TaBlE users;", true, "full table drop"},
		{"drop table embedded", "BEGIN; DROP TABLE sessions; COMMIT;", true, "full table drop"},
		{"drop database", "DROP DATABASE assistdeck", true, "database drop"},
		{"drop schema", "DROP SCHEMA public CASCADE", true, "schema drop"},
		{"truncate", "TRUNCATE TABLE audit_entries", true, "table truncate"},
		{"unqualified delete", "DELETE FROM users;", true, "unqualified bulk delete"},
		{"unqualified delete no semicolon", "DELETE FROM sessions", true, "unqualified bulk delete"},
		{"alter database", "ALTER DATABASE assistdeck SET timezone TO 'UTC'", true, "database-level alter"},
		{"qualified delete", "DELETE FROM users WHERE id = 42", false, ""},
		{"select", "SELECT * FROM users", false, ""},
		{"insert", "INSERT INTO tasks (name) VALUES ('x')", false, ""},
		{"create table", "CREATE TABLE reports (id uuid)", false, ""},
		{"alter table", "ALTER TABLE users ADD COLUMN email text", false, ""},
		{"droplet is not drop", "SELECT * FROM droplets WHERE tablespace = 'x'", false, ""},
		{"empty", "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, matched := table.Match(tt.operation)
			if matched != tt.blocked {
				t.Fatalf("Match(%q) matched = %v, want %v", tt.operation, matched, tt.blocked)
			}
			if matched && rule.Description != tt.rule {
				t.Errorf("rule = %q, want %q", rule.Description, tt.rule)
			}
		})
	}
}

func TestMatch_FirstMatchWins(t *testing.T) {
	table := DefaultTable()

	// Contains both a table drop and a bulk delete; the earlier rule wins.
	rule, matched := table.Match("DROP TABLE users; DELETE FROM users;")
	if !matched {
		t.Fatal("expected a match")
	}
	if rule.Description != "full table drop" {
		t.Errorf("rule = %q, want first-listed %q", rule.Description, "full table drop")
	}
}

func TestNewTable_Extensions(t *testing.T) {
	table, err := NewTable([]Spec{
		{Pattern: `\bGRANT\s+ALL\b`, Description: "blanket grant"},
	})
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}

	if table.Len() != len(DefaultRules())+1 {
		t.Errorf("Len() = %d, want %d", table.Len(), len(DefaultRules())+1)
	}

	rule, matched := table.Match("grant all on users to intern")
	if !matched {
		t.Fatal("extension rule did not match")
	}
	if rule.Description != "blanket grant" {
		t.Errorf("rule = %q, want %q", rule.Description, "blanket grant")
	}
	if rule.Severity != SeverityHigh {
		t.Errorf("default severity = %q, want %q", rule.Severity, SeverityHigh)
	}
}

func TestNewTable_BadPattern(t *testing.T) {
	if _, err := NewTable([]Spec{{Pattern: "("}}); err == nil {
		t.Error("NewTable() with invalid pattern: error = nil, want non-nil")
	}
}
