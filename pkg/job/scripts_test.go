package job

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteScripts(t *testing.T) {
	params := scriptParams{
		Name:      "clef-run",
		Base:      "/opt/severn/bin",
		Code:      "source /opt/env/activate",
		Config:    "/runs/clef/qsub/config.yml",
		Debug:     true,
		NumJobs:   4,
		Resources: "h_rt=2:00:00",
		Stage:     1,
		Queue:     "all.q",
		Email:     "jobs@example.org",
		LogDir:    "/runs/clef/logs",
	}

	t.Run("qsub map", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "map_stage1.sh")
		if err := writeScript(path, qsubMapTemplate, params); err != nil {
			t.Fatal(err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm()&0o100 == 0 {
			t.Error("script is not executable")
		}
		text := readScript(t, path)
		for _, want := range []string{
			"#$ -N clef-run-map1",
			"#$ -q all.q",
			"#$ -l h_rt=2:00:00",
			"source /opt/env/activate",
			"/opt/severn/bin/severn-map --stage 1 --job $(($SGE_TASK_ID - 1)) --increment 4 --debug /runs/clef/qsub/config.yml",
		} {
			if !strings.Contains(text, want) {
				t.Errorf("script missing %q:\n%s", want, text)
			}
		}
	})

	t.Run("qsub reduce", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "reduce_stage1.sh")
		if err := writeScript(path, qsubReduceTemplate, params); err != nil {
			t.Fatal(err)
		}
		text := readScript(t, path)
		if !strings.Contains(text, "severn-reduce --stage 1 --debug /runs/clef/qsub/config.yml") {
			t.Errorf("reduce invocation missing:\n%s", text)
		}
	})

	t.Run("sbatch map", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "map_stage1.sh")
		if err := writeScript(path, sbatchMapTemplate, params); err != nil {
			t.Fatal(err)
		}
		text := readScript(t, path)
		for _, want := range []string{
			"#SBATCH --job-name=clef-run-map1",
			"#SBATCH --partition=all.q",
			"--job $(($SLURM_ARRAY_TASK_ID - 1))",
		} {
			if !strings.Contains(text, want) {
				t.Errorf("script missing %q:\n%s", want, text)
			}
		}
	})

	t.Run("optional directives omitted", func(t *testing.T) {
		bare := scriptParams{Name: "r", Base: "/b", Config: "/c.yml", NumJobs: 1, Stage: 2, LogDir: "/l"}
		path := filepath.Join(t.TempDir(), "map_stage2.sh")
		if err := writeScript(path, qsubMapTemplate, bare); err != nil {
			t.Fatal(err)
		}
		text := readScript(t, path)
		for _, banned := range []string{"#$ -q", "#$ -l", "#$ -M", "--debug"} {
			if strings.Contains(text, banned) {
				t.Errorf("script should not contain %q:\n%s", banned, text)
			}
		}
	})
}

func readScript(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestScriptName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"clef 2002", "clef-2002"},
		{"run's \"best\", final", "runs-best-final"},
		{"", "severn"},
	}
	for _, tt := range tests {
		if got := scriptName(tt.in); got != tt.want {
			t.Errorf("scriptName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
