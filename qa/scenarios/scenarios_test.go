package scenarios

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScenario(t *testing.T) {
	files, err := filepath.Glob("*.yaml")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no scenario files")
	}
	for _, f := range files {
		sc, err := Load(f)
		if err != nil {
			t.Fatalf("load %s: %v", f, err)
		}
		t.Run(sc.Name, func(t *testing.T) {
			RunScenario(t, sc)
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	sc, err := Load("three_bus.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(sc.Network.Buses) != 3 || !sc.Network.Buses[0].Slack {
		t.Fatalf("unexpected buses: %+v", sc.Network.Buses)
	}
	if sc.Solver.InitialRadius != nil {
		t.Errorf("initial radius should be left to the solver default")
	}
	if sc.Expected.Cost == nil {
		t.Errorf("expected cost missing")
	}
}

func TestLoadInvalid(t *testing.T) {
	if _, err := Load("no-file.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
	tmp, err := os.CreateTemp(t.TempDir(), "bad*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tmp.WriteString(":"); err != nil {
		t.Fatal(err)
	}
	if err := tmp.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(tmp.Name()); err == nil {
		t.Fatal("expected unmarshal error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing", "x.yaml")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
