package job

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// scriptParams feeds the scheduler script templates. Base is the
// directory holding the severn binaries; Code is an optional block of
// shell lines for environment setup, written verbatim.
type scriptParams struct {
	Name      string
	Base      string
	Code      string
	Config    string
	Debug     bool
	NumJobs   int
	Resources string
	Stage     int
	Queue     string
	Email     string
	LogDir    string
}

var qsubMapTemplate = template.Must(template.New("qsub-map").Parse(`#!/bin/bash
#$ -N {{.Name}}-map{{.Stage}}
#$ -j y
#$ -o {{.LogDir}}
{{- if .Queue}}
#$ -q {{.Queue}}
{{- end}}
{{- if .Resources}}
#$ -l {{.Resources}}
{{- end}}
{{- if .Email}}
#$ -M {{.Email}}
#$ -m a
{{- end}}
{{if .Code}}{{.Code}}
{{end -}}
{{.Base}}/severn-map --stage {{.Stage}} --job $(($SGE_TASK_ID - 1)) --increment {{.NumJobs}}{{if .Debug}} --debug{{end}} {{.Config}}
`))

var qsubReduceTemplate = template.Must(template.New("qsub-reduce").Parse(`#!/bin/bash
#$ -N {{.Name}}-reduce{{.Stage}}
#$ -j y
#$ -o {{.LogDir}}
{{- if .Queue}}
#$ -q {{.Queue}}
{{- end}}
{{- if .Email}}
#$ -M {{.Email}}
#$ -m ae
{{- end}}
{{if .Code}}{{.Code}}
{{end -}}
{{.Base}}/severn-reduce --stage {{.Stage}}{{if .Debug}} --debug{{end}} {{.Config}}
`))

var sbatchMapTemplate = template.Must(template.New("sbatch-map").Parse(`#!/bin/bash
#SBATCH --job-name={{.Name}}-map{{.Stage}}
#SBATCH --output={{.LogDir}}/%x.%a.log
{{- if .Queue}}
#SBATCH --partition={{.Queue}}
{{- end}}
{{- if .Resources}}
#SBATCH {{.Resources}}
{{- end}}
{{- if .Email}}
#SBATCH --mail-user={{.Email}}
#SBATCH --mail-type=FAIL
{{- end}}
{{if .Code}}{{.Code}}
{{end -}}
{{.Base}}/severn-map --stage {{.Stage}} --job $(($SLURM_ARRAY_TASK_ID - 1)) --increment {{.NumJobs}}{{if .Debug}} --debug{{end}} {{.Config}}
`))

var sbatchReduceTemplate = template.Must(template.New("sbatch-reduce").Parse(`#!/bin/bash
#SBATCH --job-name={{.Name}}-reduce{{.Stage}}
#SBATCH --output={{.LogDir}}/%x.log
{{- if .Queue}}
#SBATCH --partition={{.Queue}}
{{- end}}
{{- if .Email}}
#SBATCH --mail-user={{.Email}}
#SBATCH --mail-type=END,FAIL
{{- end}}
{{if .Code}}{{.Code}}
{{end -}}
{{.Base}}/severn-reduce --stage {{.Stage}}{{if .Debug}} --debug{{end}} {{.Config}}
`))

// writeScript renders a template into an executable file.
func writeScript(path string, tmpl *template.Template, params scriptParams) error {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, params); err != nil {
		return fmt.Errorf("rendering %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o755); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}
