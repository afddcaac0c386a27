package contract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func testContract(rule Rule) *Contract {
	return &Contract{
		Version:   1,
		Enabled:   true,
		CreatedAt: "2026-01-01T00:00:00.000Z",
		Rule:      rule,
	}
}

func TestCheckForbidPattern(t *testing.T) {
	t.Run("reports line and matched span", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, map[string]string{"code.py": "x = Singleton.shared"})
		c := testContract(Rule{
			ID: "no-shared", Type: ForbidPattern, Severity: SeverityError,
			Pattern: `\.shared\b`, FileGlob: "**/*.py", Message: "do not use .shared",
		})

		res, err := NewChecker(dir).Check(c)
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if res.Passed || len(res.Violations) != 1 {
			t.Fatalf("result = %+v", res)
		}
		v := res.Violations[0]
		if v.Path != "code.py" || v.Line != 1 || v.Matched != ".shared" {
			t.Errorf("violation = %+v", v)
		}
	})

	t.Run("glob matching zero files passes", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, map[string]string{"main.go": "package main"})
		c := testContract(Rule{
			ID: "no-shared", Type: ForbidPattern, Severity: SeverityError,
			Pattern: `\.shared\b`, FileGlob: "**/*.py", Message: "m",
		})
		res, err := NewChecker(dir).Check(c)
		if err != nil {
			t.Fatal(err)
		}
		if !res.Passed {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("oversized file is skipped", func(t *testing.T) {
		dir := t.TempDir()
		big := strings.Repeat("Singleton.shared\n", MaxCheckFileBytes/16)
		writeFiles(t, dir, map[string]string{"big.py": big})
		c := testContract(Rule{
			ID: "no-shared", Type: ForbidPattern, Severity: SeverityError,
			Pattern: `\.shared\b`, FileGlob: "**/*.py", Message: "m",
		})
		res, err := NewChecker(dir).Check(c)
		if err != nil {
			t.Fatal(err)
		}
		if !res.Passed {
			t.Errorf("oversized file should be skipped, got %d violations", len(res.Violations))
		}
	})

	t.Run("same-line ignore directive suppresses", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, map[string]string{
			"code.py": "x = Singleton.shared  # phaser:ignore no-shared\n",
		})
		c := testContract(Rule{
			ID: "no-shared", Type: ForbidPattern, Severity: SeverityError,
			Pattern: `\.shared\b`, FileGlob: "**/*.py", Message: "m",
		})
		res, err := NewChecker(dir).Check(c)
		if err != nil {
			t.Fatal(err)
		}
		if !res.Passed {
			t.Errorf("violations = %+v", res.Violations)
		}
	})

	t.Run("disabled contract is skipped", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, map[string]string{"code.py": "Singleton.shared"})
		c := testContract(Rule{
			ID: "no-shared", Type: ForbidPattern, Severity: SeverityError,
			Pattern: `\.shared\b`, FileGlob: "**/*.py", Message: "m",
		})
		c.Enabled = false
		res, err := NewChecker(dir).Check(c)
		if err != nil {
			t.Fatal(err)
		}
		if !res.Passed {
			t.Error("disabled contract produced violations")
		}
	})
}

func TestCheckRequirePattern(t *testing.T) {
	c := testContract(Rule{
		ID: "needs-observable", Type: RequirePattern, Severity: SeverityError,
		Pattern: `@Observable`, FileGlob: "**/*.py", Message: "models must be observable",
	})

	t.Run("absent pattern fails with glob as path", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, map[string]string{"model.py": "class Model: pass"})
		res, err := NewChecker(dir).Check(c)
		if err != nil {
			t.Fatal(err)
		}
		if res.Passed || len(res.Violations) != 1 {
			t.Fatalf("result = %+v", res)
		}
		if res.Violations[0].Path != "**/*.py" {
			t.Errorf("path = %q, want the glob", res.Violations[0].Path)
		}
	})

	t.Run("zero matching files fails", func(t *testing.T) {
		res, err := NewChecker(t.TempDir()).Check(c)
		if err != nil {
			t.Fatal(err)
		}
		if res.Passed {
			t.Error("require over empty glob should fail")
		}
	})

	t.Run("present pattern passes", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, map[string]string{"model.py": "@Observable\nclass Model: pass"})
		res, err := NewChecker(dir).Check(c)
		if err != nil {
			t.Fatal(err)
		}
		if !res.Passed {
			t.Errorf("violations = %+v", res.Violations)
		}
	})
}

func TestCheckFilePredicates(t *testing.T) {
	t.Run("file_exists", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, map[string]string{"LICENSE": "MIT"})

		ok := testContract(Rule{ID: "has-license", Type: FileExists, Severity: SeverityError,
			FileGlob: "LICENSE", Message: "license required"})
		res, _ := NewChecker(dir).Check(ok)
		if !res.Passed {
			t.Errorf("existing file reported missing")
		}

		missing := testContract(Rule{ID: "has-notice", Type: FileExists, Severity: SeverityError,
			FileGlob: "NOTICE", Message: "notice required"})
		res, _ = NewChecker(dir).Check(missing)
		if res.Passed {
			t.Error("missing file passed file_exists")
		}
	})

	t.Run("file_not_exists", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, map[string]string{".env": "SECRET=1"})
		c := testContract(Rule{ID: "no-env", Type: FileNotExists, Severity: SeverityError,
			FileGlob: ".env", Message: "do not commit env files"})
		res, _ := NewChecker(dir).Check(c)
		if res.Passed {
			t.Error("present file passed file_not_exists")
		}
	})

	t.Run("file_contains and file_not_contains", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, map[string]string{"Makefile": "test:\n\tgo test ./...\n"})

		has := testContract(Rule{ID: "has-test-target", Type: FileContains, Severity: SeverityWarning,
			Pattern: "go test", FileGlob: "Makefile", Message: "makefile needs a test target"})
		res, _ := NewChecker(dir).Check(has)
		if !res.Passed {
			t.Errorf("violations = %+v", res.Violations)
		}

		not := testContract(Rule{ID: "no-sudo", Type: FileNotContains, Severity: SeverityError,
			Pattern: "go test", FileGlob: "Makefile", Message: "no sudo in makefiles"})
		res, _ = NewChecker(dir).Check(not)
		if res.Passed || res.Violations[0].Line != 2 {
			t.Errorf("result = %+v", res)
		}
	})
}

func TestCheckAll(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.py": "print('x')"})
	failing := testContract(Rule{ID: "no-print", Type: ForbidPattern, Severity: SeverityError,
		Pattern: `print\(`, FileGlob: "**/*.py", Message: "no print"})
	passing := testContract(Rule{ID: "has-a", Type: FileExists, Severity: SeverityError,
		FileGlob: "a.py", Message: "need a.py"})

	t.Run("fail fast stops at first failure", func(t *testing.T) {
		results, err := NewChecker(dir).CheckAll([]*Contract{failing, passing}, true)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 1 {
			t.Errorf("len(results) = %d, want 1", len(results))
		}
	})

	t.Run("full run returns one result per contract", func(t *testing.T) {
		results, err := NewChecker(dir).CheckAll([]*Contract{failing, passing}, false)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 2 {
			t.Errorf("len(results) = %d, want 2", len(results))
		}
	})
}

func TestCheckProposed(t *testing.T) {
	noPrint := testContract(Rule{ID: "no-print", Type: ForbidPattern, Severity: SeverityError,
		Pattern: `print\(`, FileGlob: "**/*.py", Message: "no print calls"})

	t.Run("violation against in-memory content", func(t *testing.T) {
		vs, err := CheckProposed([]*Contract{noPrint}, "test.py", "def main():\n    print('hello')\n")
		if err != nil {
			t.Fatal(err)
		}
		if len(vs) != 1 || vs[0].Line != 2 {
			t.Errorf("violations = %+v", vs)
		}
	})

	t.Run("ignore directive in proposed content suppresses", func(t *testing.T) {
		content := "def main():\n    print('hello')  # phaser:ignore no-print\n"
		vs, err := CheckProposed([]*Contract{noPrint}, "test.py", content)
		if err != nil {
			t.Fatal(err)
		}
		if len(vs) != 0 {
			t.Errorf("violations = %+v", vs)
		}
	})

	t.Run("glob filter skips unmatched paths", func(t *testing.T) {
		vs, err := CheckProposed([]*Contract{noPrint}, "main.go", "print(")
		if err != nil {
			t.Fatal(err)
		}
		if len(vs) != 0 {
			t.Errorf("violations = %+v", vs)
		}
	})
}
