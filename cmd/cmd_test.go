package cmd

import (
	"reflect"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE DATABASE x;\n\nCREATE TABLE x.t (id String) ENGINE = Memory;\n  ")
	want := []string{"CREATE DATABASE x", "CREATE TABLE x.t (id String) ENGINE = Memory"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestDemoOrganizations(t *testing.T) {
	orgs := demoOrganizations("owner-1")
	owned := 0
	for _, o := range orgs {
		if o.OwnerID == "owner-1" {
			owned++
		}
	}
	if owned != 2 || len(orgs) != 3 {
		t.Fatalf("expected 2 of 3 organizations owned by owner-1, got %d of %d", owned, len(orgs))
	}
}

func TestCanonicalOwner(t *testing.T) {
	got, err := canonicalOwner("7D1C3B0E-5F5A-4B8E-9A3E-2F4C1D9E8A01")
	if err != nil {
		t.Fatalf("canonicalOwner() error: %v", err)
	}
	if got != "7d1c3b0e-5f5a-4b8e-9a3e-2f4c1d9e8a01" {
		t.Fatalf("expected lower-case uuid, got %q", got)
	}

	if _, err := canonicalOwner("service-role"); err == nil {
		t.Fatal("expected an error for a non-uuid owner")
	}
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{{"serve"}, {"migrate"}, {"seed"}, {"secrets", "verify"}, {"worker", "audit"}} {
		c, _, err := rootCmd.Find(path)
		if err != nil || c == rootCmd {
			t.Fatalf("command %v not registered: %v", path, err)
		}
	}
}
